package acceptance

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/prperemyshlev/booking-service/internal/dto"
)

type bookingParties struct {
	hostToken  string
	guestToken string
	hostID     string
	guestID    string
	propertyID string
}

func (s *Suite) parties() bookingParties {
	p := bookingParties{
		hostToken:  s.token("idp|host", jwt.MapClaims{"email": "host@example.com", "name": "Hana Host"}),
		guestToken: s.token("idp|guest", jwt.MapClaims{"email": "guest@example.com", "name": "Gil Guest"}),
	}
	p.hostID = s.me(p.hostToken).ID
	p.guestID = s.me(p.guestToken).ID
	p.propertyID = s.seedProperty(p.hostID, "120.00")
	return p
}

func stayRequest(propertyID string, nights int) dto.CreateReservationRequest {
	checkIn := time.Now().UTC().AddDate(0, 0, 14)
	return dto.CreateReservationRequest{
		QuoteRequest: dto.QuoteRequest{
			PropertyID:   propertyID,
			CheckInDate:  checkIn.Format("2006-01-02"),
			CheckOutDate: checkIn.AddDate(0, 0, nights).Format("2006-01-02"),
			Guests:       2,
		},
		SpecialRequests: "Late arrival <script>alert(1)</script>",
	}
}

func (s *Suite) book(p bookingParties, nights int) dto.ReservationResponse {
	var reservation dto.ReservationResponse
	status := s.do(http.MethodPost, "/api/v1/reservations", p.guestToken, stayRequest(p.propertyID, nights), &reservation)
	s.Require().Equal(http.StatusCreated, status)
	return reservation
}

func (s *Suite) TestQuote_Anonymous() {
	p := s.parties()

	var quote dto.QuoteResponse
	status := s.do(http.MethodPost, "/api/v1/reservations/quote", "", stayRequest(p.propertyID, 3).QuoteRequest, &quote)

	s.Require().Equal(http.StatusOK, status)
	s.Equal("nightly", quote.Mode)
	s.Equal("360.00", quote.TotalPrice)
	s.Equal("36.00", quote.BookingFee)
	s.Equal("324.00", quote.HostEarnings)
	s.Equal("USD", quote.Currency)
}

func (s *Suite) TestQuote_Hourly() {
	p := s.parties()
	propertyID := s.seedHourlyProperty(p.hostID, "200.00", "25.00")
	day := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")

	var quote dto.QuoteResponse
	status := s.do(http.MethodPost, "/api/v1/reservations/quote", "", dto.QuoteRequest{
		PropertyID:   propertyID,
		CheckInDate:  day,
		CheckOutDate: day,
		CheckInTime:  "10:00",
		CheckOutTime: "12:30",
		Guests:       1,
	}, &quote)

	s.Require().Equal(http.StatusOK, status)
	s.Equal("hourly", quote.Mode)
	s.Equal("62.50", quote.TotalPrice)
	s.Equal("6.25", quote.BookingFee)
	s.Equal("56.25", quote.HostEarnings)
}

func (s *Suite) TestQuote_ReversedRange() {
	p := s.parties()
	req := stayRequest(p.propertyID, 3).QuoteRequest
	req.CheckInDate, req.CheckOutDate = req.CheckOutDate, req.CheckInDate

	status := s.do(http.MethodPost, "/api/v1/reservations/quote", "", req, nil)
	s.Equal(http.StatusBadRequest, status)
}

func (s *Suite) TestCreate_RequiresAuthentication() {
	p := s.parties()

	status := s.do(http.MethodPost, "/api/v1/reservations", "", stayRequest(p.propertyID, 2), nil)
	s.Equal(http.StatusUnauthorized, status)
	s.Equal(0, s.countRows("reservations"))
}

func (s *Suite) TestCreate_PendingWithServerSidePrice() {
	p := s.parties()

	reservation := s.book(p, 2)

	s.Equal(string(domain.StatusPending), reservation.Status)
	s.Equal(p.guestID, reservation.GuestID)
	s.Equal(p.hostID, reservation.HostID)
	s.Equal("240.00", reservation.TotalPrice)
	s.Equal("24.00", reservation.BookingFee)
	s.Equal("216.00", reservation.HostEarnings)
	s.NotContains(reservation.SpecialRequests, "<script>")

	s.Eventually(func() bool {
		events := s.Events.ofType(domain.EventBookingRequestCreated)
		return len(events) == 1 && events[0].UserID == p.hostID
	}, 2*time.Second, 20*time.Millisecond)
}

func (s *Suite) TestCreate_HostCannotBookOwnProperty() {
	p := s.parties()

	status := s.do(http.MethodPost, "/api/v1/reservations", p.hostToken, stayRequest(p.propertyID, 2), nil)
	s.Equal(http.StatusForbidden, status)
}

func (s *Suite) TestCreate_IdempotencyKey() {
	p := s.parties()
	req := stayRequest(p.propertyID, 2)

	var first, second dto.ReservationResponse
	s.Require().Equal(http.StatusCreated,
		s.do(http.MethodPost, "/api/v1/reservations", p.guestToken, req, &first, "Idempotency-Key", "retry-1"))
	s.Require().Equal(http.StatusCreated,
		s.do(http.MethodPost, "/api/v1/reservations", p.guestToken, req, &second, "Idempotency-Key", "retry-1"))

	s.Equal(first.ID, second.ID)
	s.Equal(1, s.countRows("reservations"))
}

func (s *Suite) TestApprove_CreatesSingleEarningsRecord() {
	p := s.parties()
	reservation := s.book(p, 3)
	path := "/api/v1/reservations/" + reservation.ID + "/status"

	var first dto.StatusUpdateResponse
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, path, p.hostToken, dto.UpdateStatusRequest{Status: "approved"}, &first))
	s.True(first.Changed)
	s.Equal(string(domain.StatusApproved), first.Reservation.Status)
	s.Require().NotNil(first.Earnings)
	s.Equal("360.00", first.Earnings.GrossAmount)
	s.Equal("36.00", first.Earnings.PlatformFee)
	s.Equal("324.00", first.Earnings.NetAmount)
	s.Equal("pending", first.Earnings.PayoutStatus)

	var second dto.StatusUpdateResponse
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, path, p.hostToken, dto.UpdateStatusRequest{Status: "approved"}, &second))
	s.False(second.Changed)
	s.Require().NotNil(second.Earnings)
	s.Equal(first.Earnings.ID, second.Earnings.ID)
	s.Equal(1, s.countRows("host_earnings"))

	var earnings dto.EarningsResponse
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/host/earnings", p.hostToken, nil, &earnings))
	s.Len(earnings.Records, 1)
	s.Equal("324.00", earnings.TotalNet)
	s.Equal("324.00", earnings.PendingNet)

	s.Eventually(func() bool {
		events := s.Events.ofType(domain.EventBookingApproved)
		return len(events) == 1 && events[0].UserID == p.guestID
	}, 2*time.Second, 20*time.Millisecond)
}

func (s *Suite) TestDecline_NoEarnings() {
	p := s.parties()
	reservation := s.book(p, 1)

	var update dto.StatusUpdateResponse
	status := s.do(http.MethodPost, "/api/v1/reservations/"+reservation.ID+"/status", p.hostToken,
		dto.UpdateStatusRequest{Status: "declined"}, &update)

	s.Require().Equal(http.StatusOK, status)
	s.Equal(string(domain.StatusDeclined), update.Reservation.Status)
	s.Nil(update.Earnings)
	s.Equal(0, s.countRows("host_earnings"))

	status = s.do(http.MethodPost, "/api/v1/reservations/"+reservation.ID+"/status", p.hostToken,
		dto.UpdateStatusRequest{Status: "approved"}, nil)
	s.Equal(http.StatusConflict, status)
}

func (s *Suite) TestGuestCannotApprove() {
	p := s.parties()
	reservation := s.book(p, 1)

	status := s.do(http.MethodPost, "/api/v1/reservations/"+reservation.ID+"/status", p.guestToken,
		dto.UpdateStatusRequest{Status: "approved"}, nil)

	s.Equal(http.StatusForbidden, status)
	s.Equal(0, s.countRows("host_earnings"))
}

func (s *Suite) TestStrangerCannotSeeReservation() {
	p := s.parties()
	reservation := s.book(p, 1)
	stranger := s.token("idp|stranger", nil)

	status := s.do(http.MethodGet, "/api/v1/reservations/"+reservation.ID, stranger, nil, nil)
	s.Equal(http.StatusNotFound, status)
}

func (s *Suite) TestUnknownIDs() {
	p := s.parties()

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/v1/reservations/abc", p.guestToken, nil, nil))
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/v1/reservations/"+uuid.NewString(), p.guestToken, nil, nil))
	s.Equal(http.StatusNotFound, s.do(http.MethodPost, "/api/v1/reservations/abc/status", p.hostToken,
		dto.UpdateStatusRequest{Status: "approved"}, nil))

	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/api/v1/reservations/quote", "", stayRequest("abc", 2).QuoteRequest, nil))
	s.Equal(http.StatusNotFound, s.do(http.MethodPost, "/api/v1/reservations/quote", "", stayRequest(uuid.NewString(), 2).QuoteRequest, nil))
}

func (s *Suite) TestCancel_ByGuest() {
	p := s.parties()
	reservation := s.book(p, 1)

	var cancelled dto.ReservationResponse
	status := s.do(http.MethodPost, "/api/v1/reservations/"+reservation.ID+"/cancel", p.guestToken, nil, &cancelled)

	s.Require().Equal(http.StatusOK, status)
	s.Equal(string(domain.StatusCancelled), cancelled.Status)
	s.Eventually(func() bool {
		events := s.Events.ofType(domain.EventBookingCancelled)
		return len(events) == 1 && events[0].UserID == p.hostID
	}, 2*time.Second, 20*time.Millisecond)
}

func (s *Suite) TestListings() {
	p := s.parties()
	s.book(p, 1)
	s.book(p, 2)

	var hostList dto.ReservationListResponse
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/host/reservations?status=pending", p.hostToken, nil, &hostList))
	s.Equal(2, hostList.Count)

	var guestList dto.ReservationListResponse
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/guest/reservations", p.guestToken, nil, &guestList))
	s.Equal(2, guestList.Count)

	var empty dto.ReservationListResponse
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/api/v1/host/reservations", p.guestToken, nil, &empty))
	s.Equal(0, empty.Count)
}
