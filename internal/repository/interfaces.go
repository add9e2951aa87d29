package repository

import (
	"context"
	"time"

	"github.com/prperemyshlev/booking-service/internal/domain"
)

// UserRepository defines methods for user operations
type UserRepository interface {
	// GetOrCreateByExternalID inserts the user unless one with the same
	// external id exists, and returns the stored row either way.
	GetOrCreateByExternalID(ctx context.Context, user *domain.User) (*domain.User, bool, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	EmailTaken(ctx context.Context, email, exceptExternalID string) (bool, error)
	UpdateProfile(ctx context.Context, id, name, email string) error
}

// PropertyRepository reads listings. Listings are managed elsewhere.
type PropertyRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Property, error)
}

// ReservationFilter narrows reservation listings
type ReservationFilter struct {
	Status *domain.ReservationStatus
	Limit  int
}

// ReservationRepository defines methods for reservation operations
type ReservationRepository interface {
	Create(ctx context.Context, reservation *domain.Reservation) error
	GetByID(ctx context.Context, id string) (*domain.Reservation, error)
	ListByHost(ctx context.Context, hostID string, filter ReservationFilter) ([]*domain.Reservation, error)
	ListByGuest(ctx context.Context, guestID string, filter ReservationFilter) ([]*domain.Reservation, error)

	// ApproveWithEarnings moves a pending reservation to approved and writes
	// its earnings record in one transaction. Approving an already approved
	// reservation returns the existing record with transitioned=false.
	ApproveWithEarnings(ctx context.Context, id string, record *domain.EarningsRecord) (stored *domain.EarningsRecord, transitioned bool, err error)

	// SetStatus updates the status only if the current one is in from.
	SetStatus(ctx context.Context, id string, from []domain.ReservationStatus, to domain.ReservationStatus) (*domain.Reservation, error)
}

// EarningsRepository defines methods for host earnings
type EarningsRepository interface {
	ListByHost(ctx context.Context, hostID string, from, to *time.Time) ([]*domain.EarningsRecord, error)
}
