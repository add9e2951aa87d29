package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/prperemyshlev/booking-service/internal/repository"
	"github.com/prperemyshlev/booking-service/internal/utils"
	"github.com/prperemyshlev/booking-service/pkg/observability"
	"go.uber.org/zap"
)

// identityService links identity provider subjects to local users
type identityService struct {
	userRepo repository.UserRepository
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewIdentityService creates a new identity reconciler
func NewIdentityService(userRepo repository.UserRepository, metrics *observability.Metrics, logger *zap.Logger) IdentityResolver {
	return &identityService{
		userRepo: userRepo,
		metrics:  metrics,
		logger:   logger,
	}
}

// Resolve returns the principal for the subject, creating the local user on first sight
func (s *identityService) Resolve(ctx context.Context, claims *domain.VerifiedClaims) (*domain.Principal, error) {
	if claims == nil || claims.Subject == "" {
		return nil, domain.NewAuthError(domain.AuthMalformed, errors.New("claims carry no subject"))
	}

	user, err := s.userRepo.GetByExternalID(ctx, claims.Subject)
	switch {
	case err == nil:
		s.refreshProfile(ctx, user, claims)
		return domain.NewPrincipal(user), nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user, err = s.create(ctx, claims)
	if err != nil {
		return nil, err
	}
	return domain.NewPrincipal(user), nil
}

func (s *identityService) create(ctx context.Context, claims *domain.VerifiedClaims) (*domain.User, error) {
	email, err := s.claimableEmail(ctx, claims)
	if err != nil {
		return nil, err
	}

	name := claims.Name
	if name == "" {
		name = utils.DefaultDisplayName(claims.Subject)
	}

	candidate := &domain.User{
		ExternalID: claims.Subject,
		Email:      email,
		Name:       name,
		IsActive:   true,
	}

	user, created, err := s.userRepo.GetOrCreateByExternalID(ctx, candidate)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		// Another subject took the email between the check and the insert.
		candidate.ID = ""
		candidate.Email = utils.PlaceholderEmail(claims.Subject)
		user, created, err = s.userRepo.GetOrCreateByExternalID(ctx, candidate)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}

	if created {
		s.metrics.PrincipalCreated(ctx)
		s.logger.Info("provisioned local user",
			zap.String("user_id", user.ID),
			zap.String("external_id", user.ExternalID),
			zap.Bool("placeholder_email", utils.IsPlaceholderEmail(user.Email)),
		)
	}

	return user, nil
}

// claimableEmail returns the claim email unless it is unusable or owned by a
// different subject, in which case the placeholder is used.
func (s *identityService) claimableEmail(ctx context.Context, claims *domain.VerifiedClaims) (string, error) {
	email := usableClaimEmail(claims)
	if email == "" {
		return utils.PlaceholderEmail(claims.Subject), nil
	}

	taken, err := s.userRepo.EmailTaken(ctx, email, claims.Subject)
	if err != nil {
		return "", fmt.Errorf("failed to check email ownership: %w", err)
	}
	if taken {
		return utils.PlaceholderEmail(claims.Subject), nil
	}
	return email, nil
}

// refreshProfile is best effort. Failures are logged and the stored profile is kept.
func (s *identityService) refreshProfile(ctx context.Context, user *domain.User, claims *domain.VerifiedClaims) {
	name := user.Name
	if claims.Name != "" && claims.Name != user.Name {
		name = claims.Name
	}

	email := user.Email
	if claimEmail := usableClaimEmail(claims); claimEmail != "" && claimEmail != user.Email {
		taken, err := s.userRepo.EmailTaken(ctx, claimEmail, user.ExternalID)
		switch {
		case err != nil:
			s.logger.Warn("failed to check email ownership", zap.String("user_id", user.ID), zap.Error(err))
		case taken:
			s.logger.Debug("claim email owned by another user, keeping stored email", zap.String("user_id", user.ID))
		default:
			email = claimEmail
		}
	}

	if name == user.Name && email == user.Email {
		return
	}

	if err := s.userRepo.UpdateProfile(ctx, user.ID, name, email); err != nil {
		s.logger.Warn("failed to refresh user profile", zap.String("user_id", user.ID), zap.Error(err))
		return
	}

	user.Name = name
	user.Email = email
}

// usableClaimEmail returns the normalized claim email, or "" when it is
// missing, invalid, or inside the placeholder domain. Placeholders are
// reserved for the subject they encode.
func usableClaimEmail(claims *domain.VerifiedClaims) string {
	email := utils.SanitizeEmail(claims.Email)
	if email == "" || !utils.ValidateEmail(email) || utils.IsPlaceholderEmail(email) {
		return ""
	}
	return email
}
