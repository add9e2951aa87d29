package utils

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prperemyshlev/booking-service/internal/domain"
)

// VerificationPolicy selects which claim checks a TokenVerifier enforces.
// Signature and expiry are checked under every policy.
type VerificationPolicy string

const (
	PolicyStrict        VerificationPolicy = "strict"
	PolicyIssuerOnly    VerificationPolicy = "issuer_only"
	PolicySignatureOnly VerificationPolicy = "signature_only"
)

// Guarantees lists the checks a policy enforces.
type Guarantees struct {
	Signature bool
	Expiry    bool
	Issuer    bool
	Audience  bool
}

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (VerificationPolicy, error) {
	switch p := VerificationPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyStrict, PolicyIssuerOnly, PolicySignatureOnly:
		return p, nil
	}
	return "", fmt.Errorf("unknown verification policy %q", s)
}

// Guarantees returns the checks enforced by the policy. Audience is only
// checked under strict and only when an allow-list is configured.
func (p VerificationPolicy) Guarantees() Guarantees {
	g := Guarantees{Signature: true, Expiry: true}
	switch p {
	case PolicyStrict:
		g.Issuer = true
		g.Audience = true
	case PolicyIssuerOnly:
		g.Issuer = true
	}
	return g
}

// IsInsecure reports whether the policy skips the issuer check.
func (p VerificationPolicy) IsInsecure() bool {
	return p == PolicySignatureOnly
}

var allowedAlgorithms = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "PS256"}

var errMissingKeyID = errors.New("token header has no kid")

// KeySource resolves signing keys by kid.
type KeySource interface {
	Get(ctx context.Context, kid string) (crypto.PublicKey, error)
}

// VerifierConfig configures a TokenVerifier.
type VerifierConfig struct {
	Issuer        string
	Audiences     []string
	Policy        VerificationPolicy
	AllowInsecure bool
	Leeway        time.Duration
	Now           func() time.Time
}

// TokenVerifier validates externally issued bearer tokens against a remote key set.
type TokenVerifier struct {
	keys      KeySource
	issuer    string
	audiences []string
	policy    VerificationPolicy
	parser    *jwt.Parser
}

// NewTokenVerifier creates a verifier. signature_only requires AllowInsecure.
func NewTokenVerifier(keys KeySource, cfg VerifierConfig) (*TokenVerifier, error) {
	if keys == nil {
		return nil, errors.New("key source is required")
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyStrict
	}
	if _, err := ParsePolicy(string(cfg.Policy)); err != nil {
		return nil, err
	}
	if cfg.Policy.IsInsecure() && !cfg.AllowInsecure {
		return nil, fmt.Errorf("policy %s is not allowed without the insecure flag", cfg.Policy)
	}

	guarantees := cfg.Policy.Guarantees()
	if guarantees.Issuer && cfg.Issuer == "" {
		return nil, fmt.Errorf("policy %s requires an issuer", cfg.Policy)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(allowedAlgorithms),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(cfg.Now))
	}
	if guarantees.Issuer {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &TokenVerifier{
		keys:      keys,
		issuer:    cfg.Issuer,
		audiences: cfg.Audiences,
		policy:    cfg.Policy,
		parser:    jwt.NewParser(opts...),
	}, nil
}

// Policy returns the active verification policy.
func (v *TokenVerifier) Policy() VerificationPolicy {
	return v.policy
}

// Verify checks the token and returns its claims. Every failure is a *domain.AuthError.
func (v *TokenVerifier) Verify(ctx context.Context, raw string) (*domain.VerifiedClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Count(raw, ".") != 2 {
		return nil, domain.NewAuthError(domain.AuthMalformed, errors.New("token must have three segments"))
	}

	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errMissingKeyID
		}
		return v.keys.Get(ctx, kid)
	})
	if err != nil {
		if v.policy.Guarantees().Issuer && errors.Is(err, jwt.ErrTokenRequiredClaimMissing) && firstString(claims, "iss") == "" {
			return nil, domain.NewAuthError(domain.AuthIssuerMismatch, fmt.Errorf("token has no issuer: %w", err))
		}
		return nil, classify(err)
	}

	if v.policy.Guarantees().Audience && len(v.audiences) > 0 {
		aud, err := claims.GetAudience()
		if err != nil {
			return nil, domain.NewAuthError(domain.AuthMalformed, err)
		}
		if !intersects(aud, v.audiences) {
			return nil, domain.NewAuthError(domain.AuthAudienceMismatch, fmt.Errorf("audience %v not accepted", []string(aud)))
		}
	}

	return extractClaims(claims)
}

func classify(err error) error {
	switch {
	case errors.Is(err, errMissingKeyID), errors.Is(err, jwt.ErrTokenMalformed):
		return domain.NewAuthError(domain.AuthMalformed, err)
	case errors.Is(err, ErrKeyNotFound):
		return domain.NewAuthError(domain.AuthKeyNotFound, err)
	case errors.Is(err, ErrKeySetUnavailable):
		return domain.NewAuthError(domain.AuthNetworkError, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return domain.NewAuthError(domain.AuthSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return domain.NewAuthError(domain.AuthExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return domain.NewAuthError(domain.AuthIssuerMismatch, err)
	default:
		return domain.NewAuthError(domain.AuthMalformed, err)
	}
}

func extractClaims(claims jwt.MapClaims) (*domain.VerifiedClaims, error) {
	subject := firstString(claims, "sub", "user_id", "userId")
	if subject == "" {
		return nil, domain.NewAuthError(domain.AuthMalformed, errors.New("token has no subject"))
	}

	verified := &domain.VerifiedClaims{
		Subject: subject,
		Email:   firstString(claims, "email", "email_address"),
		Name:    firstString(claims, "name", "full_name"),
	}
	verified.Issuer, _ = claims.GetIssuer()
	if aud, err := claims.GetAudience(); err == nil {
		verified.Audience = aud
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		verified.ExpiresAt = exp.Time
	}
	return verified, nil
}

func firstString(claims jwt.MapClaims, names ...string) string {
	for _, name := range names {
		if s, ok := claims[name].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func intersects(have, want []string) bool {
	for _, a := range have {
		for _, b := range want {
			if a == b {
				return true
			}
		}
	}
	return false
}
