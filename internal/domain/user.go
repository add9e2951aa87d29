package domain

import "time"

// User is the local account linked to an external identity provider subject.
type User struct {
	ID         string    `json:"id" db:"id"`
	ExternalID string    `json:"external_id" db:"external_id"`
	Email      string    `json:"email" db:"email"`
	Name       string    `json:"name" db:"name"`
	IsActive   bool      `json:"is_active" db:"is_active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID     string
	ExternalID string
	Name       string
	Email      string
	IsActive   bool
}

// NewPrincipal builds a principal from a stored user.
func NewPrincipal(u *User) *Principal {
	return &Principal{
		UserID:     u.ID,
		ExternalID: u.ExternalID,
		Name:       u.Name,
		Email:      u.Email,
		IsActive:   u.IsActive,
	}
}

// DisplayName returns the name, or the email when no name is stored.
func (p *Principal) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Email
}

// VerifiedClaims are extracted from a token after signature and policy checks.
// They are never persisted.
type VerifiedClaims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	Email     string
	Name      string
}
