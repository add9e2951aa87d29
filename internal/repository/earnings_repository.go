package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/prperemyshlev/booking-service/pkg/database"
)

const earningsColumns = `id, host_id, reservation_id, gross_amount, platform_fee, net_amount,
	payout_status, payout_date, created_at`

// earningsRepository implements EarningsRepository interface
type earningsRepository struct {
	db *database.Postgres
}

// NewEarningsRepository creates a new earnings repository
func NewEarningsRepository(db *database.Postgres) EarningsRepository {
	return &earningsRepository{db: db}
}

// ListByHost lists a host's earnings, optionally bounded by creation time
func (r *earningsRepository) ListByHost(ctx context.Context, hostID string, from, to *time.Time) ([]*domain.EarningsRecord, error) {
	query := `
		SELECT ` + earningsColumns + `
		FROM host_earnings
		WHERE host_id = $1
			AND ($2::timestamptz IS NULL OR created_at >= $2)
			AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, hostID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to list earnings: %w", err)
	}
	defer rows.Close()

	records := []*domain.EarningsRecord{}
	for rows.Next() {
		record, err := scanEarnings(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan earnings: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate earnings: %w", err)
	}

	return records, nil
}

func scanEarnings(row scanner) (*domain.EarningsRecord, error) {
	record := &domain.EarningsRecord{}
	var payoutDate sql.NullTime

	err := row.Scan(
		&record.ID,
		&record.HostID,
		&record.ReservationID,
		&record.GrossAmount,
		&record.PlatformFee,
		&record.NetAmount,
		&record.PayoutStatus,
		&payoutDate,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if payoutDate.Valid {
		record.PayoutDate = &payoutDate.Time
	}
	return record, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
