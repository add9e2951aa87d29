package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/prperemyshlev/booking-service/pkg/database"
)

const (
	defaultListLimit = 50

	reservationColumns = `id, property_id, guest_id, host_id, check_in_date, check_out_date,
		check_in_time::text, check_out_time::text, guests_count, total_price, booking_fee,
		host_earnings, status, special_requests, created_at, updated_at`
)

type scanner interface {
	Scan(dest ...any) error
}

// reservationRepository implements ReservationRepository interface
type reservationRepository struct {
	db *database.Postgres
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(db *database.Postgres) ReservationRepository {
	return &reservationRepository{db: db}
}

// Create inserts a new reservation
func (r *reservationRepository) Create(ctx context.Context, reservation *domain.Reservation) error {
	query := `
		INSERT INTO reservations (id, property_id, guest_id, host_id, check_in_date, check_out_date,
			check_in_time, check_out_time, guests_count, total_price, booking_fee, host_earnings,
			status, special_requests, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	if reservation.ID == "" {
		reservation.ID = uuid.New().String()
	}

	now := time.Now()
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = now
	}
	if reservation.UpdatedAt.IsZero() {
		reservation.UpdatedAt = now
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		reservation.ID,
		reservation.PropertyID,
		reservation.GuestID,
		reservation.HostID,
		reservation.CheckInDate,
		reservation.CheckOutDate,
		timeOfDayArg(reservation.CheckInTime),
		timeOfDayArg(reservation.CheckOutTime),
		reservation.GuestsCount,
		reservation.TotalPrice,
		reservation.BookingFee,
		reservation.HostEarnings,
		reservation.Status,
		reservation.SpecialRequests,
		reservation.CreatedAt,
		reservation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	return nil
}

// GetByID retrieves a reservation by ID
func (r *reservationRepository) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	reservation, err := scanReservation(r.db.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if isMissingRow(err) {
			return nil, fmt.Errorf("reservation with id %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return reservation, nil
}

// ListByHost lists the newest reservations of a host
func (r *reservationRepository) ListByHost(ctx context.Context, hostID string, filter ReservationFilter) ([]*domain.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE host_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`

	var status sql.NullString
	if filter.Status != nil {
		status = sql.NullString{String: string(*filter.Status), Valid: true}
	}

	return r.list(ctx, query, hostID, status, limitOf(filter))
}

// ListByGuest lists the newest reservations made by a guest
func (r *reservationRepository) ListByGuest(ctx context.Context, guestID string, filter ReservationFilter) ([]*domain.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE guest_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`

	var status sql.NullString
	if filter.Status != nil {
		status = sql.NullString{String: string(*filter.Status), Valid: true}
	}

	return r.list(ctx, query, guestID, status, limitOf(filter))
}

// ApproveWithEarnings locks the reservation row so that concurrent approvals
// serialize, then relies on the reservation_id unique constraint for the
// earnings insert.
func (r *reservationRepository) ApproveWithEarnings(ctx context.Context, id string, record *domain.EarningsRecord) (*domain.EarningsRecord, bool, error) {
	tx, err := r.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current domain.ReservationStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM reservations WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if isMissingRow(err) {
			return nil, false, fmt.Errorf("reservation with id %s not found: %w", id, ErrNotFound)
		}
		return nil, false, fmt.Errorf("failed to lock reservation: %w", err)
	}

	transitioned := false
	switch current {
	case domain.StatusPending:
		_, err = tx.ExecContext(ctx,
			`UPDATE reservations SET status = $2, updated_at = $3 WHERE id = $1`,
			id, domain.StatusApproved, time.Now(),
		)
		if err != nil {
			return nil, false, fmt.Errorf("failed to approve reservation: %w", err)
		}
		transitioned = true
	case domain.StatusApproved:
	default:
		return nil, false, fmt.Errorf("reservation %s is %s: %w", id, current, ErrStatusConflict)
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	stored, err := scanEarnings(tx.QueryRowContext(ctx, `
		INSERT INTO host_earnings (id, host_id, reservation_id, gross_amount, platform_fee,
			net_amount, payout_status, payout_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (reservation_id) DO NOTHING
		RETURNING `+earningsColumns,
		record.ID,
		record.HostID,
		record.ReservationID,
		record.GrossAmount,
		record.PlatformFee,
		record.NetAmount,
		record.PayoutStatus,
		record.PayoutDate,
		record.CreatedAt,
	))
	if isMissingRow(err) {
		stored, err = scanEarnings(tx.QueryRowContext(ctx,
			`SELECT `+earningsColumns+` FROM host_earnings WHERE reservation_id = $1`, id))
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to write earnings record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return stored, transitioned, nil
}

// SetStatus updates the status if the current one is in from
func (r *reservationRepository) SetStatus(ctx context.Context, id string, from []domain.ReservationStatus, to domain.ReservationStatus) (*domain.Reservation, error) {
	query := `
		UPDATE reservations
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = ANY($2)
		RETURNING ` + reservationColumns

	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	reservation, err := scanReservation(r.db.DB.QueryRowContext(ctx, query, id, pq.Array(allowed), to, time.Now()))
	if err != nil {
		if isMissingRow(err) {
			return nil, fmt.Errorf("reservation %s cannot move to %s: %w", id, to, ErrStatusConflict)
		}
		return nil, fmt.Errorf("failed to update reservation status: %w", err)
	}
	return reservation, nil
}

func (r *reservationRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Reservation, error) {
	rows, err := r.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	reservations := []*domain.Reservation{}
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, reservation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reservations: %w", err)
	}

	return reservations, nil
}

func limitOf(filter ReservationFilter) int {
	if filter.Limit <= 0 || filter.Limit > defaultListLimit {
		return defaultListLimit
	}
	return filter.Limit
}

func scanReservation(row scanner) (*domain.Reservation, error) {
	reservation := &domain.Reservation{}
	var (
		checkInTime, checkOutTime sql.NullString
		specialRequests           sql.NullString
	)

	err := row.Scan(
		&reservation.ID,
		&reservation.PropertyID,
		&reservation.GuestID,
		&reservation.HostID,
		&reservation.CheckInDate,
		&reservation.CheckOutDate,
		&checkInTime,
		&checkOutTime,
		&reservation.GuestsCount,
		&reservation.TotalPrice,
		&reservation.BookingFee,
		&reservation.HostEarnings,
		&reservation.Status,
		&specialRequests,
		&reservation.CreatedAt,
		&reservation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	reservation.SpecialRequests = specialRequests.String
	if reservation.CheckInTime, err = timeOfDayFrom(checkInTime); err != nil {
		return nil, err
	}
	if reservation.CheckOutTime, err = timeOfDayFrom(checkOutTime); err != nil {
		return nil, err
	}
	return reservation, nil
}
