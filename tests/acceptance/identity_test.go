package acceptance

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prperemyshlev/booking-service/internal/dto"
)

func (s *Suite) TestMe_CreatesUserOnFirstSight() {
	token := s.token("idp|alice", jwt.MapClaims{"email": "Alice@Example.com", "name": "Alice"})

	first := s.me(token)
	s.NotEmpty(first.ID)
	s.Equal("idp|alice", first.ExternalID)
	s.Equal("alice@example.com", first.Email)
	s.Equal("Alice", first.Name)
	s.True(first.IsActive)

	second := s.me(token)
	s.Equal(first.ID, second.ID, "the same subject must map to the same user")
	s.Equal(1, s.countRows("users"))
}

func (s *Suite) TestMe_MissingEmailGetsPlaceholder() {
	user := s.me(s.token("idp|no-email", nil))

	s.Contains(user.Email, "@users.noreply.flexbnb.invalid")
	s.Equal("User idp|no-e", user.Name)
}

func (s *Suite) TestMe_EmailTakenByAnotherSubject() {
	owner := s.me(s.token("idp|owner", jwt.MapClaims{"email": "shared@example.com"}))
	other := s.me(s.token("idp|other", jwt.MapClaims{"email": "shared@example.com"}))

	s.NotEqual(owner.ID, other.ID)
	s.Equal("shared@example.com", owner.Email)
	s.NotEqual("shared@example.com", other.Email)
}

func (s *Suite) TestMe_WithoutToken() {
	var errResp dto.ErrorResponse
	status := s.do(http.MethodGet, "/api/v1/auth/me", "", nil, &errResp)

	s.Equal(http.StatusUnauthorized, status)
	s.Equal("Unauthorized", errResp.Error)
}

func (s *Suite) TestMe_RejectedTokens() {
	cases := []struct {
		name  string
		token string
		code  string
	}{
		{
			name:  "malformed",
			token: "not-a-jwt",
			code:  "token_malformed",
		},
		{
			name:  "unknown kid",
			token: s.sign("rotated-away", jwt.MapClaims{"iss": testIssuer, "aud": testAudience, "sub": "idp|x", "exp": time.Now().Add(time.Hour).Unix()}),
			code:  "key_not_found",
		},
		{
			name:  "expired",
			token: s.token("idp|x", jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()}),
			code:  "token_expired",
		},
		{
			name:  "wrong issuer",
			token: s.token("idp|x", jwt.MapClaims{"iss": "https://evil.example"}),
			code:  "issuer_mismatch",
		},
		{
			name:  "wrong audience",
			token: s.token("idp|x", jwt.MapClaims{"aud": "another-api"}),
			code:  "audience_mismatch",
		},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			var errResp dto.ErrorResponse
			status := s.do(http.MethodGet, "/api/v1/auth/me", tc.token, nil, &errResp)

			s.Equal(http.StatusUnauthorized, status)
			s.Equal(tc.code, errResp.Code)
		})
	}

	s.Equal(0, s.countRows("users"), "rejected tokens must not create users")
}
