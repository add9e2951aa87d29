package utils

import (
	"encoding/base32"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// PlaceholderDomain hosts synthetic addresses for users whose provider sent no usable email.
const PlaceholderDomain = "users.noreply.flexbnb.invalid"

var placeholderEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ValidateEmail validates an email address
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// SanitizeEmail sanitizes an email address
func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PlaceholderEmail derives a stable address from an external subject id.
// The encoding is reversible, so two subjects never share a placeholder.
func PlaceholderEmail(subject string) string {
	local := strings.ToLower(placeholderEncoding.EncodeToString([]byte(subject)))
	return "user-" + local + "@" + PlaceholderDomain
}

// IsPlaceholderEmail reports whether the address was produced by PlaceholderEmail.
func IsPlaceholderEmail(email string) bool {
	return strings.HasSuffix(SanitizeEmail(email), "@"+PlaceholderDomain)
}

// DefaultDisplayName is used when the provider sent no name.
func DefaultDisplayName(subject string) string {
	short := subject
	if len(short) > 8 {
		short = short[:8]
	}
	return "User " + short
}
