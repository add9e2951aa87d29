package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReservationStatus is the lifecycle state of a booking.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusApproved  ReservationStatus = "approved"
	StatusDeclined  ReservationStatus = "declined"
	StatusCancelled ReservationStatus = "cancelled"
	StatusCompleted ReservationStatus = "completed"
)

// completed is entered by the post check-out job, never by a request.
var allowedTransitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:  {StatusApproved, StatusDeclined, StatusCancelled},
	StatusApproved: {StatusCancelled, StatusCompleted},
}

// ParseReservationStatus validates a status name.
func ParseReservationStatus(s string) (ReservationStatus, error) {
	status := ReservationStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case StatusPending, StatusApproved, StatusDeclined, StatusCancelled, StatusCompleted:
		return status, nil
	}
	return "", fmt.Errorf("%w: unknown reservation status %q", ErrValidation, s)
}

// IsTerminal reports whether no further transitions are possible.
func (s ReservationStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Reservation is a single booking of a property by a guest.
type Reservation struct {
	ID              string
	PropertyID      string
	GuestID         string
	HostID          string
	CheckInDate     time.Time
	CheckOutDate    time.Time
	CheckInTime     *TimeOfDay
	CheckOutTime    *TimeOfDay
	GuestsCount     int
	TotalPrice      decimal.Decimal
	BookingFee      decimal.Decimal
	HostEarnings    decimal.Decimal
	Status          ReservationStatus
	SpecialRequests string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsParticipant reports whether the user is the guest or the host.
func (r *Reservation) IsParticipant(userID string) bool {
	return r.GuestID == userID || r.HostID == userID
}

// PayoutStatus tracks the payout of an earnings record.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutPaid       PayoutStatus = "paid"
	PayoutFailed     PayoutStatus = "failed"
)

// EarningsRecord is the ledger entry created when a reservation is approved.
type EarningsRecord struct {
	ID            string
	HostID        string
	ReservationID string
	GrossAmount   decimal.Decimal
	PlatformFee   decimal.Decimal
	NetAmount     decimal.Decimal
	PayoutStatus  PayoutStatus
	PayoutDate    *time.Time
	CreatedAt     time.Time
}

// NewEarningsRecord derives the ledger entry from the reservation's price split.
func NewEarningsRecord(r *Reservation) *EarningsRecord {
	return &EarningsRecord{
		HostID:        r.HostID,
		ReservationID: r.ID,
		GrossAmount:   r.TotalPrice,
		PlatformFee:   r.BookingFee,
		NetAmount:     r.HostEarnings,
		PayoutStatus:  PayoutPending,
	}
}

// Property is the read-only view of a listing needed for booking.
type Property struct {
	ID            string
	HostID        string
	Title         string
	NightlyRate   decimal.Decimal
	HourlyRate    *decimal.Decimal
	HourlyEnabled bool
	HourlyStart   *TimeOfDay
	HourlyEnd     *TimeOfDay
	MaxGuests     int
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Minutes int
}

// ParseTimeOfDay accepts "15:04" or "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Minutes: t.Hour()*60 + t.Minute()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("%w: invalid time of day %q", ErrValidation, s)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Minutes/60, t.Minutes%60)
}

// On returns the instant on the given date at this time of day, in the date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Minutes/60, t.Minutes%60, 0, 0, date.Location())
}

// Scan implements sql.Scanner for TIME columns.
func (t *TimeOfDay) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseTimeOfDay(v)
		if err != nil {
			return err
		}
		*t = parsed
	case []byte:
		return t.Scan(string(v))
	case time.Time:
		*t = TimeOfDay{Minutes: v.Hour()*60 + v.Minute()}
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}
