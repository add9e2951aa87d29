package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/prperemyshlev/booking-service/internal/repository"
	"github.com/prperemyshlev/booking-service/pkg/observability"
	"go.uber.org/zap"
)

const bearerScheme = "bearer"

// authService implements AuthService interface
type authService struct {
	verifier TokenVerifier
	identity IdentityResolver
	userRepo repository.UserRepository
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewAuthService creates a new authentication gate
func NewAuthService(
	verifier TokenVerifier,
	identity IdentityResolver,
	userRepo repository.UserRepository,
	metrics *observability.Metrics,
	logger *zap.Logger,
) AuthService {
	return &authService{
		verifier: verifier,
		identity: identity,
		userRepo: userRepo,
		metrics:  metrics,
		logger:   logger,
	}
}

// Authenticate verifies the bearer token and resolves its principal.
// An empty header is anonymous. Token problems are *domain.AuthError;
// storage problems are returned as-is.
func (s *authService) Authenticate(ctx context.Context, authorizationHeader string) (*domain.Principal, error) {
	header := strings.TrimSpace(authorizationHeader)
	if header == "" {
		return nil, nil
	}

	token, err := bearerToken(header)
	if err != nil {
		return nil, s.reject(ctx, err)
	}

	claims, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, s.reject(ctx, err)
	}

	principal, err := s.identity.Resolve(ctx, claims)
	if err != nil {
		if _, ok := domain.AuthFailureOf(err); ok {
			return nil, s.reject(ctx, err)
		}
		return nil, fmt.Errorf("failed to resolve principal: %w", err)
	}

	return principal, nil
}

// GetUser gets user information
func (s *authService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *authService) reject(ctx context.Context, err error) error {
	kind, ok := domain.AuthFailureOf(err)
	if !ok {
		kind = domain.AuthMalformed
		err = domain.NewAuthError(kind, err)
	}

	s.metrics.AuthFailure(ctx, string(kind))
	s.logger.Info("rejected bearer token", zap.String("kind", string(kind)), zap.Error(err))
	return err
}

func bearerToken(header string) (string, error) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", domain.NewAuthError(domain.AuthMalformed, errors.New("authorization header must use the Bearer scheme"))
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", domain.NewAuthError(domain.AuthMalformed, errors.New("bearer token is empty"))
	}
	return token, nil
}
