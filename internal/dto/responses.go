package dto

import (
	"time"

	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	dateLayout = "2006-01-02"
	moneyScale = 2
)

// UserResponse represents the current user
type UserResponse struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	IsActive   bool   `json:"is_active"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// QuoteResponse represents a computed price
type QuoteResponse struct {
	PropertyID   string `json:"property_id"`
	Mode         string `json:"mode"`
	Units        string `json:"units"`
	UnitPrice    string `json:"unit_price"`
	TotalPrice   string `json:"total_price"`
	BookingFee   string `json:"booking_fee"`
	HostEarnings string `json:"host_earnings"`
	Currency     string `json:"currency"`
}

// ReservationResponse represents a reservation
type ReservationResponse struct {
	ID              string  `json:"id"`
	PropertyID      string  `json:"property_id"`
	GuestID         string  `json:"guest_id"`
	HostID          string  `json:"host_id"`
	CheckInDate     string  `json:"check_in_date"`
	CheckOutDate    string  `json:"check_out_date"`
	CheckInTime     *string `json:"check_in_time,omitempty"`
	CheckOutTime    *string `json:"check_out_time,omitempty"`
	Guests          int     `json:"guests"`
	TotalPrice      string  `json:"total_price"`
	BookingFee      string  `json:"booking_fee"`
	HostEarnings    string  `json:"host_earnings"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
	SpecialRequests string  `json:"special_requests,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// EarningsRecordResponse represents a host earnings record
type EarningsRecordResponse struct {
	ID            string  `json:"id"`
	ReservationID string  `json:"reservation_id"`
	GrossAmount   string  `json:"gross_amount"`
	PlatformFee   string  `json:"platform_fee"`
	NetAmount     string  `json:"net_amount"`
	PayoutStatus  string  `json:"payout_status"`
	PayoutDate    *string `json:"payout_date,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// StatusUpdateResponse represents the outcome of approve or decline
type StatusUpdateResponse struct {
	Reservation ReservationResponse     `json:"reservation"`
	Earnings    *EarningsRecordResponse `json:"earnings,omitempty"`
	Changed     bool                    `json:"changed"`
}

// ReservationListResponse wraps a reservation list
type ReservationListResponse struct {
	Reservations []ReservationResponse `json:"reservations"`
	Count        int                   `json:"count"`
}

// EarningsResponse represents a host's earnings summary
type EarningsResponse struct {
	Records    []EarningsRecordResponse `json:"records"`
	TotalGross string                   `json:"total_gross"`
	TotalFees  string                   `json:"total_fees"`
	TotalNet   string                   `json:"total_net"`
	PendingNet string                   `json:"pending_net"`
	Currency   string                   `json:"currency"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// Money formats an amount with two decimal places
func Money(d decimal.Decimal) string {
	return d.StringFixed(moneyScale)
}

// NewUserResponse converts a user
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		ExternalID: u.ExternalID,
		Email:      u.Email,
		Name:       u.Name,
		IsActive:   u.IsActive,
		CreatedAt:  u.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  u.UpdatedAt.Format(time.RFC3339),
	}
}

// NewReservationResponse converts a reservation
func NewReservationResponse(r *domain.Reservation, currency string) ReservationResponse {
	resp := ReservationResponse{
		ID:              r.ID,
		PropertyID:      r.PropertyID,
		GuestID:         r.GuestID,
		HostID:          r.HostID,
		CheckInDate:     r.CheckInDate.Format(dateLayout),
		CheckOutDate:    r.CheckOutDate.Format(dateLayout),
		Guests:          r.GuestsCount,
		TotalPrice:      Money(r.TotalPrice),
		BookingFee:      Money(r.BookingFee),
		HostEarnings:    Money(r.HostEarnings),
		Currency:        currency,
		Status:          string(r.Status),
		SpecialRequests: r.SpecialRequests,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       r.UpdatedAt.Format(time.RFC3339),
	}
	if r.CheckInTime != nil {
		s := r.CheckInTime.String()
		resp.CheckInTime = &s
	}
	if r.CheckOutTime != nil {
		s := r.CheckOutTime.String()
		resp.CheckOutTime = &s
	}
	return resp
}

// NewReservationListResponse converts a reservation list
func NewReservationListResponse(reservations []*domain.Reservation, currency string) ReservationListResponse {
	items := make([]ReservationResponse, 0, len(reservations))
	for _, r := range reservations {
		items = append(items, NewReservationResponse(r, currency))
	}
	return ReservationListResponse{Reservations: items, Count: len(items)}
}

// NewEarningsRecordResponse converts an earnings record
func NewEarningsRecordResponse(e *domain.EarningsRecord) EarningsRecordResponse {
	resp := EarningsRecordResponse{
		ID:            e.ID,
		ReservationID: e.ReservationID,
		GrossAmount:   Money(e.GrossAmount),
		PlatformFee:   Money(e.PlatformFee),
		NetAmount:     Money(e.NetAmount),
		PayoutStatus:  string(e.PayoutStatus),
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
	}
	if e.PayoutDate != nil {
		s := e.PayoutDate.Format(time.RFC3339)
		resp.PayoutDate = &s
	}
	return resp
}
