package domain

import "time"

// Event types emitted to the notifier.
const (
	EventBookingRequestCreated = "booking_request_created"
	EventBookingApproved       = "booking_approved"
	EventBookingDeclined       = "booking_declined"
	EventBookingCancelled      = "booking_cancelled"
)

// NotificationEvent is the payload handed to the external notifier.
type NotificationEvent struct {
	EventType     string    `json:"event_type"`
	UserID        string    `json:"user_id"`
	ReservationID string    `json:"reservation_id"`
	SummaryText   string    `json:"summary_text"`
	OccurredAt    time.Time `json:"occurred_at"`
}
