package service

import (
	"context"
	"time"

	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/prperemyshlev/booking-service/internal/pricing"
	"github.com/shopspring/decimal"
)

// TokenVerifier validates bearer tokens
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*domain.VerifiedClaims, error)
}

// IdentityResolver maps verified claims to a local principal
type IdentityResolver interface {
	Resolve(ctx context.Context, claims *domain.VerifiedClaims) (*domain.Principal, error)
}

// AuthService defines methods for authentication operations
type AuthService interface {
	// Authenticate returns nil, nil for requests without credentials.
	Authenticate(ctx context.Context, authorizationHeader string) (*domain.Principal, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// ReservationService defines the reservation lifecycle
type ReservationService interface {
	Quote(ctx context.Context, req QuoteRequest) (*QuoteResult, error)
	Create(ctx context.Context, principal *domain.Principal, req CreateReservationRequest) (*domain.Reservation, error)
	UpdateStatus(ctx context.Context, principal *domain.Principal, reservationID string, status domain.ReservationStatus) (*StatusUpdate, error)
	Cancel(ctx context.Context, principal *domain.Principal, reservationID string) (*domain.Reservation, error)
	Get(ctx context.Context, principal *domain.Principal, reservationID string) (*domain.Reservation, error)
	ListForHost(ctx context.Context, principal *domain.Principal, status *domain.ReservationStatus) ([]*domain.Reservation, error)
	ListForGuest(ctx context.Context, principal *domain.Principal) ([]*domain.Reservation, error)
	ListEarnings(ctx context.Context, principal *domain.Principal, from, to *time.Time) (*EarningsSummary, error)
}

// EventDispatcher hands notification events off without blocking the caller
type EventDispatcher interface {
	Dispatch(event domain.NotificationEvent)
}

// IdempotencyStore remembers which reservation a client-supplied key produced
type IdempotencyStore interface {
	// Begin claims the key. If the key already completed, the stored
	// reservation id is returned instead.
	Begin(ctx context.Context, scope, key string) (existingID string, err error)
	Complete(ctx context.Context, scope, key, reservationID string) error
	Abort(ctx context.Context, scope, key string) error
}

// Limiter is a keyed request budget
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}

// QuoteRequest is a price preview request
type QuoteRequest struct {
	PropertyID   string
	CheckInDate  time.Time
	CheckOutDate time.Time
	CheckInTime  *domain.TimeOfDay
	CheckOutTime *domain.TimeOfDay
	GuestsCount  int
}

// QuoteResult is a computed price for a property
type QuoteResult struct {
	PropertyID string
	Quote      pricing.Quote
}

// CreateReservationRequest carries the guest's booking input
type CreateReservationRequest struct {
	QuoteRequest
	SpecialRequests string
	IdempotencyKey  string
}

// StatusUpdate is the outcome of a host decision
type StatusUpdate struct {
	Reservation *domain.Reservation
	Earnings    *domain.EarningsRecord
	Changed     bool
}

// EarningsSummary aggregates a host's earnings records
type EarningsSummary struct {
	Records    []*domain.EarningsRecord
	TotalGross decimal.Decimal
	TotalFees  decimal.Decimal
	TotalNet   decimal.Decimal
	PendingNet decimal.Decimal
}
