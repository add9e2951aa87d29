package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/prperemyshlev/booking-service/pkg/database"
)

const userColumns = `id, external_id, email, name, is_active, created_at, updated_at`

// userRepository implements UserRepository interface
type userRepository struct {
	db *database.Postgres
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.Postgres) UserRepository {
	return &userRepository{db: db}
}

// GetOrCreateByExternalID relies on the external_id unique constraint, so two
// concurrent first logins of the same subject end up with one row.
func (r *userRepository) GetOrCreateByExternalID(ctx context.Context, user *domain.User) (*domain.User, bool, error) {
	query := `
		INSERT INTO users (id, external_id, email, name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING ` + userColumns

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	created, err := scanUser(r.db.DB.QueryRowContext(ctx, query,
		user.ID,
		user.ExternalID,
		user.Email,
		user.Name,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	))
	switch {
	case err == nil:
		return created, true, nil
	case errors.Is(err, sql.ErrNoRows):
		// Another request created the row first.
		existing, err := r.GetByExternalID(ctx, user.ExternalID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case isUniqueViolation(err, usersEmailConstraint):
		return nil, false, fmt.Errorf("user with email %s already exists: %w", user.Email, ErrDuplicateEmail)
	default:
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}
}

// GetByExternalID retrieves a user by identity provider subject
func (r *userRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_id = $1`

	user, err := scanUser(r.db.DB.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if isMissingRow(err) {
			return nil, fmt.Errorf("user with external id %s not found: %w", externalID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by external id: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if isMissingRow(err) {
			return nil, fmt.Errorf("user with id %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

// EmailTaken reports whether a user other than exceptExternalID owns the email
func (r *userRepository) EmailTaken(ctx context.Context, email, exceptExternalID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND external_id <> $2)`

	var taken bool
	if err := r.db.DB.QueryRowContext(ctx, query, email, exceptExternalID).Scan(&taken); err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return taken, nil
}

// UpdateProfile updates the name and email of a user
func (r *userRepository) UpdateProfile(ctx context.Context, id, name, email string) error {
	query := `
		UPDATE users
		SET name = $2, email = $3, updated_at = $4
		WHERE id = $1
	`

	result, err := r.db.DB.ExecContext(ctx, query, id, name, email, time.Now())
	if err != nil {
		if isUniqueViolation(err, usersEmailConstraint) {
			return fmt.Errorf("user with email %s already exists: %w", email, ErrDuplicateEmail)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user with id %s not found: %w", id, ErrNotFound)
	}

	return nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID,
		&user.ExternalID,
		&user.Email,
		&user.Name,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}
