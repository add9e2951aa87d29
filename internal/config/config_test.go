package config

import (
	"context"
	"testing"
	"time"

	"github.com/prperemyshlev/booking-service/internal/utils"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFrom(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	return load(context.Background(), envconfig.MapLookuper(env))
}

func TestLoad(t *testing.T) {
	t.Setenv("IDENTITY_ISSUER", "https://clerk.example.com")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout.Duration)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, "development", cfg.Env)

	assert.Equal(t, utils.PolicyStrict, cfg.Identity.VerificationPolicy())
	assert.Equal(t, 5*time.Second, cfg.Identity.FetchTimeout.Duration)
	assert.Equal(t, "https://clerk.example.com/.well-known/jwks.json", cfg.Identity.KeySetURL())
	assert.True(t, cfg.Identity.SSRFGuard)

	assert.Equal(t, 10, cfg.Booking.FeePercent)
	assert.Equal(t, 24*time.Hour, cfg.Security.IdempotencyTTL.Duration)
	assert.False(t, cfg.Notifications.Enabled)

	assert.NotEmpty(t, cfg.CORS.AllowedOrigins)
	assert.Contains(t, cfg.CORS.AllowedHeaders, "Idempotency-Key")
}

func TestLoadWithCustomValues(t *testing.T) {
	cfg, err := loadFrom(t, map[string]string{
		"IDENTITY_ISSUER":     "https://issuer.example.com",
		"IDENTITY_JWKS_URL":   "https://keys.example.com/jwks",
		"IDENTITY_AUDIENCES":  "web,mobile",
		"IDENTITY_POLICY":     "issuer_only",
		"SERVER_PORT":         "9090",
		"POSTGRES_HOST":       "postgres.example.com",
		"BOOKING_FEE_PERCENT": "12",
		"ENV":                 "production",
	})
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres.example.com", cfg.Postgres.Host)
	assert.Equal(t, "https://keys.example.com/jwks", cfg.Identity.KeySetURL())
	assert.Equal(t, []string{"web", "mobile"}, cfg.Identity.Audiences)
	assert.Equal(t, utils.PolicyIssuerOnly, cfg.Identity.VerificationPolicy())
	assert.Equal(t, 12, cfg.Booking.FeePercent)
	assert.True(t, cfg.IsProduction())
}

func TestLoadRequiresIssuer(t *testing.T) {
	_, err := loadFrom(t, map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IDENTITY_ISSUER")
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	_, err := loadFrom(t, map[string]string{
		"IDENTITY_ISSUER": "https://issuer.example.com",
		"IDENTITY_POLICY": "whatever",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IDENTITY_POLICY")
}

func TestSignatureOnlyPolicy(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{
			name: "without insecure flag",
			env: map[string]string{
				"IDENTITY_ISSUER": "https://issuer.example.com",
				"IDENTITY_POLICY": "signature_only",
			},
			wantErr: true,
		},
		{
			name: "in production",
			env: map[string]string{
				"IDENTITY_ISSUER":                "https://issuer.example.com",
				"IDENTITY_POLICY":                "signature_only",
				"IDENTITY_ALLOW_INSECURE_POLICY": "true",
				"ENV":                            "production",
			},
			wantErr: true,
		},
		{
			name: "flagged outside production",
			env: map[string]string{
				"IDENTITY_ISSUER":                "https://issuer.example.com",
				"IDENTITY_POLICY":                "signature_only",
				"IDENTITY_ALLOW_INSECURE_POLICY": "true",
				"ENV":                            "staging",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadFrom(t, tt.env)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, utils.PolicySignatureOnly, cfg.Identity.VerificationPolicy())
		})
	}
}

func TestLoadRejectsFeeOutOfRange(t *testing.T) {
	_, err := loadFrom(t, map[string]string{
		"IDENTITY_ISSUER":     "https://issuer.example.com",
		"BOOKING_FEE_PERCENT": "150",
	})
	require.Error(t, err)
}

func TestPostgresURL(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: "5432", User: "u", Password: "p@ss", DBName: "bookings", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/bookings?sslmode=disable", p.URL())
}

func TestDurationDays(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("2d")))
	assert.Equal(t, 48*time.Hour, d.Duration)

	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	require.NoError(t, d.UnmarshalText([]byte("1d12h")))
	assert.Equal(t, 36*time.Hour, d.Duration)

	assert.Error(t, d.UnmarshalText([]byte("xd")))
	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("1d-30h")))
}
