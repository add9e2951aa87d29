package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrValidation      = errors.New("validation failed")
	ErrInvalidRange    = errors.New("invalid date or time range")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflicting state")
)

// AuthFailureKind identifies why a bearer token was rejected. The values are
// stable and safe to expose as error codes.
type AuthFailureKind string

const (
	AuthMalformed        AuthFailureKind = "token_malformed"
	AuthKeyNotFound      AuthFailureKind = "key_not_found"
	AuthSignatureInvalid AuthFailureKind = "signature_invalid"
	AuthExpired          AuthFailureKind = "token_expired"
	AuthIssuerMismatch   AuthFailureKind = "issuer_mismatch"
	AuthAudienceMismatch AuthFailureKind = "audience_mismatch"
	AuthNetworkError     AuthFailureKind = "key_set_unavailable"
)

// AuthError is returned for every token verification failure.
type AuthError struct {
	Kind AuthFailureKind
	Err  error
}

// Sentinels for errors.Is comparisons by kind.
var (
	ErrTokenMalformed    = &AuthError{Kind: AuthMalformed}
	ErrKeyNotFound       = &AuthError{Kind: AuthKeyNotFound}
	ErrSignatureInvalid  = &AuthError{Kind: AuthSignatureInvalid}
	ErrTokenExpired      = &AuthError{Kind: AuthExpired}
	ErrIssuerMismatch    = &AuthError{Kind: AuthIssuerMismatch}
	ErrAudienceMismatch  = &AuthError{Kind: AuthAudienceMismatch}
	ErrKeySetUnavailable = &AuthError{Kind: AuthNetworkError}
)

// NewAuthError wraps err with the given failure kind.
func NewAuthError(kind AuthFailureKind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("authentication failed: %s", e.Kind)
	}
	return fmt.Sprintf("authentication failed: %s: %v", e.Kind, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches any AuthError of the same kind.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// AuthFailureOf reports the failure kind carried by err, if any.
func AuthFailureOf(err error) (AuthFailureKind, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind, true
	}
	return "", false
}
