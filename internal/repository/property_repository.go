package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/prperemyshlev/booking-service/pkg/database"
	"github.com/shopspring/decimal"
)

// propertyRepository implements PropertyRepository interface
type propertyRepository struct {
	db *database.Postgres
}

// NewPropertyRepository creates a new property repository
func NewPropertyRepository(db *database.Postgres) PropertyRepository {
	return &propertyRepository{db: db}
}

// GetByID retrieves the booking-relevant view of a property
func (r *propertyRepository) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	query := `
		SELECT id, host_id, title, price_per_night, price_per_hour, is_hourly_booking,
			available_hours_start::text, available_hours_end::text, max_guests
		FROM properties
		WHERE id = $1
	`

	property := &domain.Property{}
	var (
		hourlyRate decimal.NullDecimal
		start, end sql.NullString
	)

	err := r.db.DB.QueryRowContext(ctx, query, id).Scan(
		&property.ID,
		&property.HostID,
		&property.Title,
		&property.NightlyRate,
		&hourlyRate,
		&property.HourlyEnabled,
		&start,
		&end,
		&property.MaxGuests,
	)
	if err != nil {
		if isMissingRow(err) {
			return nil, fmt.Errorf("property with id %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get property: %w", err)
	}

	if hourlyRate.Valid {
		property.HourlyRate = &hourlyRate.Decimal
	}
	if property.HourlyStart, err = timeOfDayFrom(start); err != nil {
		return nil, err
	}
	if property.HourlyEnd, err = timeOfDayFrom(end); err != nil {
		return nil, err
	}

	return property, nil
}

func timeOfDayFrom(s sql.NullString) (*domain.TimeOfDay, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := domain.ParseTimeOfDay(s.String)
	if err != nil {
		return nil, fmt.Errorf("failed to scan time of day: %w", err)
	}
	return &t, nil
}

func timeOfDayArg(t *domain.TimeOfDay) any {
	if t == nil {
		return nil
	}
	return t.String()
}
