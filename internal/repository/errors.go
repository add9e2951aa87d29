package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when another user already owns the email
	ErrDuplicateEmail = errors.New("user with this email already exists")

	// ErrStatusConflict is returned when a conditional status update finds the
	// reservation in a state the caller did not expect
	ErrStatusConflict = errors.New("reservation status changed concurrently")
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"

	usersEmailConstraint = "users_email_key"
)
