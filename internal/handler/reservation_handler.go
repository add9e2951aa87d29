package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/prperemyshlev/booking-service/internal/dto"
	"github.com/prperemyshlev/booking-service/internal/service"
)

const (
	dateLayout           = "2006-01-02"
	idempotencyKeyHeader = "Idempotency-Key"
	maxIdempotencyKeyLen = 128
)

// ReservationHandler handles reservation requests
type ReservationHandler struct {
	reservations service.ReservationService
	errs         *ErrorWriter
	currency     string
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(reservations service.ReservationService, errs *ErrorWriter, currency string) *ReservationHandler {
	return &ReservationHandler{
		reservations: reservations,
		errs:         errs,
		currency:     currency,
	}
}

// Quote handles price previews
// @Summary Preview a reservation price
// @Tags reservations
// @Accept json
// @Produce json
// @Param request body dto.QuoteRequest true "Stay"
// @Success 200 {object} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /reservations/quote [post]
func (h *ReservationHandler) Quote(c *gin.Context) {
	var req dto.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.Write(c, fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return
	}

	quoteReq, err := parseQuoteRequest(req)
	if err != nil {
		h.errs.Write(c, err)
		return
	}

	result, err := h.reservations.Quote(c.Request.Context(), quoteReq)
	if err != nil {
		h.errs.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.QuoteResponse{
		PropertyID:   result.PropertyID,
		Mode:         string(result.Quote.Mode),
		Units:        result.Quote.Units.StringFixed(2),
		UnitPrice:    dto.Money(result.Quote.UnitPrice),
		TotalPrice:   dto.Money(result.Quote.Total),
		BookingFee:   dto.Money(result.Quote.PlatformFee),
		HostEarnings: dto.Money(result.Quote.HostNet),
		Currency:     h.currency,
	})
}

// Create handles booking requests
// @Summary Request a reservation
// @Tags reservations
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Client retry key"
// @Param request body dto.CreateReservationRequest true "Booking"
// @Success 201 {object} dto.ReservationResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /reservations [post]
func (h *ReservationHandler) Create(c *gin.Context) {
	var req dto.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.Write(c, fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return
	}

	quoteReq, err := parseQuoteRequest(req.QuoteRequest)
	if err != nil {
		h.errs.Write(c, err)
		return
	}

	key := strings.TrimSpace(c.GetHeader(idempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLen {
		h.errs.Write(c, fmt.Errorf("%w: %s must be at most %d characters", domain.ErrValidation, idempotencyKeyHeader, maxIdempotencyKeyLen))
		return
	}

	reservation, err := h.reservations.Create(c.Request.Context(), PrincipalFrom(c), service.CreateReservationRequest{
		QuoteRequest:    quoteReq,
		SpecialRequests: req.SpecialRequests,
		IdempotencyKey:  key,
	})
	if err != nil {
		h.errs.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewReservationResponse(reservation, h.currency))
}

// Get handles reading a single reservation
// @Summary Get a reservation
// @Tags reservations
// @Security BearerAuth
// @Produce json
// @Param id path string true "Reservation ID"
// @Success 200 {object} dto.ReservationResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /reservations/{id} [get]
func (h *ReservationHandler) Get(c *gin.Context) {
	id, err := reservationID(c)
	if err != nil {
		h.errs.Write(c, err)
		return
	}

	reservation, err := h.reservations.Get(c.Request.Context(), PrincipalFrom(c), id)
	if err != nil {
		h.errs.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewReservationResponse(reservation, h.currency))
}

// UpdateStatus handles the host's approve or decline decision
// @Summary Approve or decline a reservation
// @Tags reservations
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Param request body dto.UpdateStatusRequest true "Decision"
// @Success 200 {object} dto.StatusUpdateResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /reservations/{id}/status [post]
func (h *ReservationHandler) UpdateStatus(c *gin.Context) {
	id, err := reservationID(c)
	if err != nil {
		h.errs.Write(c, err)
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errs.Write(c, fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return
	}

	status, err := domain.ParseReservationStatus(req.Status)
	if err != nil {
		h.errs.Write(c, err)
		return
	}

	update, err := h.reservations.UpdateStatus(c.Request.Context(), PrincipalFrom(c), id, status)
	if err != nil {
		h.errs.Write(c, err)
		return
	}

	resp := dto.StatusUpdateResponse{
		Reservation: dto.NewReservationResponse(update.Reservation, h.currency),
		Changed:     update.Changed,
	}
	if update.Earnings != nil {
		earnings := dto.NewEarningsRecordResponse(update.Earnings)
		resp.Earnings = &earnings
	}

	c.JSON(http.StatusOK, resp)
}

// Cancel handles cancellation by the guest or the host
// @Summary Cancel a reservation
// @Tags reservations
// @Security BearerAuth
// @Produce json
// @Param id path string true "Reservation ID"
// @Success 200 {object} dto.ReservationResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /reservations/{id}/cancel [post]
func (h *ReservationHandler) Cancel(c *gin.Context) {
	id, err := reservationID(c)
	if err != nil {
		h.errs.Write(c, err)
		return
	}

	reservation, err := h.reservations.Cancel(c.Request.Context(), PrincipalFrom(c), id)
	if err != nil {
		h.errs.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewReservationResponse(reservation, h.currency))
}

// ListForHost handles the host's reservation inbox
// @Summary List reservations on the caller's properties
// @Tags host
// @Security BearerAuth
// @Produce json
// @Param status query string false "Status filter"
// @Success 200 {object} dto.ReservationListResponse
// @Router /host/reservations [get]
func (h *ReservationHandler) ListForHost(c *gin.Context) {
	var status *domain.ReservationStatus
	if raw := c.Query("status"); raw != "" {
		parsed, err := domain.ParseReservationStatus(raw)
		if err != nil {
			h.errs.Write(c, err)
			return
		}
		status = &parsed
	}

	reservations, err := h.reservations.ListForHost(c.Request.Context(), PrincipalFrom(c), status)
	if err != nil {
		h.errs.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewReservationListResponse(reservations, h.currency))
}

// ListForGuest handles the guest's trips
// @Summary List reservations made by the caller
// @Tags guest
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.ReservationListResponse
// @Router /guest/reservations [get]
func (h *ReservationHandler) ListForGuest(c *gin.Context) {
	reservations, err := h.reservations.ListForGuest(c.Request.Context(), PrincipalFrom(c))
	if err != nil {
		h.errs.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewReservationListResponse(reservations, h.currency))
}

// ListEarnings handles the host's earnings summary
// @Summary List the caller's earnings
// @Tags host
// @Security BearerAuth
// @Produce json
// @Param from query string false "Inclusive start date (YYYY-MM-DD)"
// @Param to query string false "Exclusive end date (YYYY-MM-DD)"
// @Success 200 {object} dto.EarningsResponse
// @Router /host/earnings [get]
func (h *ReservationHandler) ListEarnings(c *gin.Context) {
	from, err := optionalDate(c.Query("from"), "from")
	if err != nil {
		h.errs.Write(c, err)
		return
	}
	to, err := optionalDate(c.Query("to"), "to")
	if err != nil {
		h.errs.Write(c, err)
		return
	}

	summary, err := h.reservations.ListEarnings(c.Request.Context(), PrincipalFrom(c), from, to)
	if err != nil {
		h.errs.Write(c, err)
		return
	}

	records := make([]dto.EarningsRecordResponse, 0, len(summary.Records))
	for _, r := range summary.Records {
		records = append(records, dto.NewEarningsRecordResponse(r))
	}

	c.JSON(http.StatusOK, dto.EarningsResponse{
		Records:    records,
		TotalGross: dto.Money(summary.TotalGross),
		TotalFees:  dto.Money(summary.TotalFees),
		TotalNet:   dto.Money(summary.TotalNet),
		PendingNet: dto.Money(summary.PendingNet),
		Currency:   h.currency,
	})
}

func parseQuoteRequest(req dto.QuoteRequest) (service.QuoteRequest, error) {
	checkIn, err := parseDate(req.CheckInDate, "check_in_date")
	if err != nil {
		return service.QuoteRequest{}, err
	}
	checkOut, err := parseDate(req.CheckOutDate, "check_out_date")
	if err != nil {
		return service.QuoteRequest{}, err
	}

	propertyID := strings.TrimSpace(req.PropertyID)
	if _, err := uuid.Parse(propertyID); err != nil {
		return service.QuoteRequest{}, fmt.Errorf("%w: property_id must be a UUID", domain.ErrValidation)
	}

	out := service.QuoteRequest{
		PropertyID:   propertyID,
		CheckInDate:  checkIn,
		CheckOutDate: checkOut,
		GuestsCount:  req.Guests,
	}

	if req.CheckInTime != "" {
		t, err := domain.ParseTimeOfDay(req.CheckInTime)
		if err != nil {
			return service.QuoteRequest{}, err
		}
		out.CheckInTime = &t
	}
	if req.CheckOutTime != "" {
		t, err := domain.ParseTimeOfDay(req.CheckOutTime)
		if err != nil {
			return service.QuoteRequest{}, err
		}
		out.CheckOutTime = &t
	}

	return out, nil
}

// reservationID returns the path id. An id that is not a UUID names no reservation.
func reservationID(c *gin.Context) (string, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: reservation %s", domain.ErrNotFound, id)
	}
	return id, nil
}

func parseDate(value, field string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be a date in YYYY-MM-DD format", domain.ErrValidation, field)
	}
	return t, nil
}

func optionalDate(value, field string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := parseDate(value, field)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
