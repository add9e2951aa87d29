package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/prperemyshlev/booking-service/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	User        UserRepository
	Property    PropertyRepository
	Reservation ReservationRepository
	Earnings    EarningsRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		Property:    NewPropertyRepository(db),
		Reservation: NewReservationRepository(db),
		Earnings:    NewEarningsRepository(db),
	}
}

// isUniqueViolation reports whether err is a unique_violation, optionally on a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// isMissingRow reports whether a lookup matched nothing. A key that is not a
// valid UUID (invalid_text_representation) cannot match any row either.
func isMissingRow(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation
}
