package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/prperemyshlev/booking-service/internal/pricing"
	"github.com/prperemyshlev/booking-service/internal/repository"
	"github.com/prperemyshlev/booking-service/pkg/observability"
	"go.uber.org/zap"
)

const (
	maxSpecialRequestsLength = 1000
	listLimit                = 50
	dateLayout               = "2006-01-02"
)

// ReservationOptions configures the reservation service
type ReservationOptions struct {
	MaxGuests int
	Now       func() time.Time
}

// reservationService implements ReservationService interface
type reservationService struct {
	properties   repository.PropertyRepository
	reservations repository.ReservationRepository
	earnings     repository.EarningsRepository
	engine       *pricing.Engine
	idempotency  IdempotencyStore
	events       EventDispatcher
	metrics      *observability.Metrics
	logger       *zap.Logger
	sanitizer    *bluemonday.Policy
	maxGuests    int
	now          func() time.Time
}

// NewReservationService creates a new reservation service. idempotency may be nil.
func NewReservationService(
	repos *repository.Repositories,
	engine *pricing.Engine,
	idempotency IdempotencyStore,
	events EventDispatcher,
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts ReservationOptions,
) ReservationService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &reservationService{
		properties:   repos.Property,
		reservations: repos.Reservation,
		earnings:     repos.Earnings,
		engine:       engine,
		idempotency:  idempotency,
		events:       events,
		metrics:      metrics,
		logger:       logger,
		sanitizer:    bluemonday.StrictPolicy(),
		maxGuests:    opts.MaxGuests,
		now:          opts.Now,
	}
}

// Quote prices a stay without persisting anything
func (s *reservationService) Quote(ctx context.Context, req QuoteRequest) (*QuoteResult, error) {
	_, quote, err := s.price(ctx, req)
	if err != nil {
		return nil, err
	}
	return &QuoteResult{PropertyID: req.PropertyID, Quote: quote}, nil
}

// Create validates and prices the request and stores a pending reservation
func (s *reservationService) Create(ctx context.Context, principal *domain.Principal, req CreateReservationRequest) (*domain.Reservation, error) {
	if principal == nil {
		return nil, domain.ErrUnauthenticated
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		existingID, err := s.idempotency.Begin(ctx, principal.UserID, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existingID != "" {
			return s.Get(ctx, principal, existingID)
		}
	}

	reservation, err := s.create(ctx, principal, req)

	if req.IdempotencyKey != "" && s.idempotency != nil {
		// Bookkeeping must not be cut short by a client disconnect.
		bg := context.WithoutCancel(ctx)
		if err != nil {
			if abortErr := s.idempotency.Abort(bg, principal.UserID, req.IdempotencyKey); abortErr != nil {
				s.logger.Warn("failed to release idempotency key", zap.Error(abortErr))
			}
		} else if completeErr := s.idempotency.Complete(bg, principal.UserID, req.IdempotencyKey, reservation.ID); completeErr != nil {
			s.logger.Warn("failed to store idempotency result", zap.String("reservation_id", reservation.ID), zap.Error(completeErr))
		}
	}

	return reservation, err
}

func (s *reservationService) create(ctx context.Context, principal *domain.Principal, req CreateReservationRequest) (*domain.Reservation, error) {
	property, quote, err := s.price(ctx, req.QuoteRequest)
	if err != nil {
		return nil, err
	}

	if property.HostID == principal.UserID {
		return nil, fmt.Errorf("%w: guest cannot book own property", domain.ErrForbidden)
	}

	specialRequests := strings.TrimSpace(s.plainText(req.SpecialRequests))
	if utf8.RuneCountInString(specialRequests) > maxSpecialRequestsLength {
		return nil, fmt.Errorf("%w: special requests must be at most %d characters", domain.ErrValidation, maxSpecialRequestsLength)
	}

	reservation := &domain.Reservation{
		PropertyID:      property.ID,
		GuestID:         principal.UserID,
		HostID:          property.HostID,
		CheckInDate:     req.CheckInDate,
		CheckOutDate:    req.CheckOutDate,
		GuestsCount:     req.GuestsCount,
		TotalPrice:      quote.Total,
		BookingFee:      quote.PlatformFee,
		HostEarnings:    quote.HostNet,
		Status:          domain.StatusPending,
		SpecialRequests: specialRequests,
	}
	if quote.Mode == pricing.ModeHourly {
		reservation.CheckInTime = req.CheckInTime
		reservation.CheckOutTime = req.CheckOutTime
	}

	if err := s.reservations.Create(ctx, reservation); err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	s.metrics.ReservationCreated(ctx)
	s.logger.Info("reservation created",
		zap.String("reservation_id", reservation.ID),
		zap.String("property_id", reservation.PropertyID),
		zap.String("guest_id", reservation.GuestID),
		zap.String("total", reservation.TotalPrice.StringFixed(2)),
	)

	s.notify(domain.EventBookingRequestCreated, reservation.HostID, reservation,
		fmt.Sprintf("%s wants to book %s from %s to %s",
			principal.DisplayName(), property.Title,
			reservation.CheckInDate.Format(dateLayout), reservation.CheckOutDate.Format(dateLayout)))

	return reservation, nil
}

// UpdateStatus applies the host's approve or decline decision
func (s *reservationService) UpdateStatus(ctx context.Context, principal *domain.Principal, reservationID string, status domain.ReservationStatus) (*StatusUpdate, error) {
	if principal == nil {
		return nil, domain.ErrUnauthenticated
	}
	if status != domain.StatusApproved && status != domain.StatusDeclined {
		return nil, fmt.Errorf("%w: status must be approved or declined", domain.ErrValidation)
	}

	reservation, err := s.load(ctx, principal, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation.HostID != principal.UserID {
		return nil, fmt.Errorf("%w: only the host can approve or decline", domain.ErrForbidden)
	}

	if status == domain.StatusApproved {
		return s.approve(ctx, reservation)
	}
	return s.decline(ctx, reservation)
}

func (s *reservationService) approve(ctx context.Context, reservation *domain.Reservation) (*StatusUpdate, error) {
	if reservation.Status != domain.StatusApproved && !reservation.Status.CanTransitionTo(domain.StatusApproved) {
		return nil, fmt.Errorf("%w: cannot approve a %s reservation", domain.ErrConflict, reservation.Status)
	}

	record, transitioned, err := s.reservations.ApproveWithEarnings(ctx, reservation.ID, domain.NewEarningsRecord(reservation))
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: reservation is no longer pending", domain.ErrConflict)
		}
		return nil, fmt.Errorf("failed to approve reservation: %w", err)
	}

	reservation.Status = domain.StatusApproved
	update := &StatusUpdate{Reservation: reservation, Earnings: record, Changed: transitioned}
	if !transitioned {
		return update, nil
	}

	s.metrics.StatusTransition(ctx, string(domain.StatusApproved))
	s.metrics.EarningsRecordCreated(ctx)
	s.logger.Info("reservation approved",
		zap.String("reservation_id", reservation.ID),
		zap.String("earnings_id", record.ID),
		zap.String("net", record.NetAmount.StringFixed(2)),
	)

	s.notify(domain.EventBookingApproved, reservation.GuestID, reservation,
		fmt.Sprintf("Your booking from %s to %s has been approved",
			reservation.CheckInDate.Format(dateLayout), reservation.CheckOutDate.Format(dateLayout)))

	return update, nil
}

func (s *reservationService) decline(ctx context.Context, reservation *domain.Reservation) (*StatusUpdate, error) {
	if reservation.Status == domain.StatusDeclined {
		return &StatusUpdate{Reservation: reservation}, nil
	}
	if !reservation.Status.CanTransitionTo(domain.StatusDeclined) {
		return nil, fmt.Errorf("%w: cannot decline a %s reservation", domain.ErrConflict, reservation.Status)
	}

	updated, err := s.reservations.SetStatus(ctx, reservation.ID, []domain.ReservationStatus{domain.StatusPending}, domain.StatusDeclined)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return s.settledConcurrently(ctx, reservation.ID, domain.StatusDeclined)
		}
		return nil, fmt.Errorf("failed to decline reservation: %w", err)
	}

	s.metrics.StatusTransition(ctx, string(domain.StatusDeclined))
	s.logger.Info("reservation declined", zap.String("reservation_id", updated.ID))

	s.notify(domain.EventBookingDeclined, updated.GuestID, updated,
		fmt.Sprintf("Your booking from %s to %s has been declined",
			updated.CheckInDate.Format(dateLayout), updated.CheckOutDate.Format(dateLayout)))

	return &StatusUpdate{Reservation: updated, Changed: true}, nil
}

// Cancel lets either participant withdraw a pending or approved reservation
func (s *reservationService) Cancel(ctx context.Context, principal *domain.Principal, reservationID string) (*domain.Reservation, error) {
	if principal == nil {
		return nil, domain.ErrUnauthenticated
	}

	reservation, err := s.load(ctx, principal, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation.Status == domain.StatusCancelled {
		return reservation, nil
	}
	if !reservation.Status.CanTransitionTo(domain.StatusCancelled) {
		return nil, fmt.Errorf("%w: cannot cancel a %s reservation", domain.ErrConflict, reservation.Status)
	}

	updated, err := s.reservations.SetStatus(ctx, reservation.ID,
		[]domain.ReservationStatus{domain.StatusPending, domain.StatusApproved}, domain.StatusCancelled)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			update, err := s.settledConcurrently(ctx, reservation.ID, domain.StatusCancelled)
			if err != nil {
				return nil, err
			}
			return update.Reservation, nil
		}
		return nil, fmt.Errorf("failed to cancel reservation: %w", err)
	}

	s.metrics.StatusTransition(ctx, string(domain.StatusCancelled))
	s.logger.Info("reservation cancelled",
		zap.String("reservation_id", updated.ID),
		zap.String("cancelled_by", principal.UserID),
	)

	recipient := updated.HostID
	if principal.UserID == updated.HostID {
		recipient = updated.GuestID
	}
	s.notify(domain.EventBookingCancelled, recipient, updated,
		fmt.Sprintf("The booking from %s to %s has been cancelled",
			updated.CheckInDate.Format(dateLayout), updated.CheckOutDate.Format(dateLayout)))

	return updated, nil
}

// Get returns a reservation visible to the principal
func (s *reservationService) Get(ctx context.Context, principal *domain.Principal, reservationID string) (*domain.Reservation, error) {
	if principal == nil {
		return nil, domain.ErrUnauthenticated
	}
	return s.load(ctx, principal, reservationID)
}

// ListForHost lists the latest reservations on the principal's properties
func (s *reservationService) ListForHost(ctx context.Context, principal *domain.Principal, status *domain.ReservationStatus) ([]*domain.Reservation, error) {
	if principal == nil {
		return nil, domain.ErrUnauthenticated
	}

	reservations, err := s.reservations.ListByHost(ctx, principal.UserID, repository.ReservationFilter{Status: status, Limit: listLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list host reservations: %w", err)
	}
	return reservations, nil
}

// ListForGuest lists the latest reservations made by the principal
func (s *reservationService) ListForGuest(ctx context.Context, principal *domain.Principal) ([]*domain.Reservation, error) {
	if principal == nil {
		return nil, domain.ErrUnauthenticated
	}

	reservations, err := s.reservations.ListByGuest(ctx, principal.UserID, repository.ReservationFilter{Limit: listLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list guest reservations: %w", err)
	}
	return reservations, nil
}

// ListEarnings returns the principal's earnings records and their totals
func (s *reservationService) ListEarnings(ctx context.Context, principal *domain.Principal, from, to *time.Time) (*EarningsSummary, error) {
	if principal == nil {
		return nil, domain.ErrUnauthenticated
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, fmt.Errorf("%w: from must be before to", domain.ErrInvalidRange)
	}

	records, err := s.earnings.ListByHost(ctx, principal.UserID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list earnings: %w", err)
	}

	summary := &EarningsSummary{Records: records}
	for _, r := range records {
		summary.TotalGross = summary.TotalGross.Add(r.GrossAmount)
		summary.TotalFees = summary.TotalFees.Add(r.PlatformFee)
		summary.TotalNet = summary.TotalNet.Add(r.NetAmount)
		if r.PayoutStatus == domain.PayoutPending {
			summary.PendingNet = summary.PendingNet.Add(r.NetAmount)
		}
	}
	return summary, nil
}

// price validates the request against the property and computes the quote
func (s *reservationService) price(ctx context.Context, req QuoteRequest) (*domain.Property, pricing.Quote, error) {
	if strings.TrimSpace(req.PropertyID) == "" {
		return nil, pricing.Quote{}, fmt.Errorf("%w: property id is required", domain.ErrValidation)
	}
	if req.GuestsCount < 1 {
		return nil, pricing.Quote{}, fmt.Errorf("%w: at least one guest is required", domain.ErrValidation)
	}
	if s.maxGuests > 0 && req.GuestsCount > s.maxGuests {
		return nil, pricing.Quote{}, fmt.Errorf("%w: at most %d guests are allowed", domain.ErrValidation, s.maxGuests)
	}

	today := truncateDay(s.now())
	if !req.CheckInDate.IsZero() && truncateDay(req.CheckInDate).Before(today) {
		return nil, pricing.Quote{}, fmt.Errorf("%w: check-in date is in the past", domain.ErrInvalidRange)
	}

	property, err := s.properties.GetByID(ctx, req.PropertyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, pricing.Quote{}, fmt.Errorf("%w: property %s", domain.ErrNotFound, req.PropertyID)
		}
		return nil, pricing.Quote{}, fmt.Errorf("failed to load property: %w", err)
	}

	if property.MaxGuests > 0 && req.GuestsCount > property.MaxGuests {
		return nil, pricing.Quote{}, fmt.Errorf("%w: property accommodates at most %d guests", domain.ErrValidation, property.MaxGuests)
	}

	stay := pricing.Stay{
		CheckIn:   req.CheckInDate,
		CheckOut:  req.CheckOutDate,
		StartTime: req.CheckInTime,
		EndTime:   req.CheckOutTime,
	}

	quote, err := s.engine.Price(pricing.RatesFor(property), stay)
	if err != nil {
		return nil, pricing.Quote{}, err
	}

	if quote.Mode == pricing.ModeHourly {
		if err := withinHourlyWindow(property, stay); err != nil {
			return nil, pricing.Quote{}, err
		}
	}

	return property, quote, nil
}

// load fetches a reservation and hides it from non-participants
func (s *reservationService) load(ctx context.Context, principal *domain.Principal, reservationID string) (*domain.Reservation, error) {
	reservation, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: reservation %s", domain.ErrNotFound, reservationID)
		}
		return nil, fmt.Errorf("failed to load reservation: %w", err)
	}
	if !reservation.IsParticipant(principal.UserID) {
		return nil, fmt.Errorf("%w: reservation %s", domain.ErrNotFound, reservationID)
	}
	return reservation, nil
}

// settledConcurrently handles a lost race on a conditional status update.
// Reaching the requested status anyway is a no-op; anything else is a conflict.
func (s *reservationService) settledConcurrently(ctx context.Context, reservationID string, want domain.ReservationStatus) (*StatusUpdate, error) {
	current, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload reservation: %w", err)
	}
	if current.Status == want {
		return &StatusUpdate{Reservation: current}, nil
	}
	return nil, fmt.Errorf("%w: reservation is %s", domain.ErrConflict, current.Status)
}

func (s *reservationService) notify(eventType, userID string, reservation *domain.Reservation, summary string) {
	if s.events == nil {
		return
	}
	s.events.Dispatch(domain.NotificationEvent{
		EventType:     eventType,
		UserID:        userID,
		ReservationID: reservation.ID,
		SummaryText:   s.plainText(summary),
		OccurredAt:    s.now().UTC(),
	})
}

// plainText strips markup and returns the text unescaped. Decoded entities
// are stripped again so "&lt;b&gt;" cannot smuggle a tag through.
func (s *reservationService) plainText(in string) string {
	out := in
	for i := 0; i < 4; i++ {
		next := html.UnescapeString(s.sanitizer.Sanitize(out))
		if next == out {
			break
		}
		out = next
	}
	return out
}

func withinHourlyWindow(property *domain.Property, stay pricing.Stay) error {
	if property.HourlyStart == nil || property.HourlyEnd == nil {
		return nil
	}
	if stay.StartTime.Minutes < property.HourlyStart.Minutes || stay.EndTime.Minutes > property.HourlyEnd.Minutes {
		return fmt.Errorf("%w: hourly bookings are available between %s and %s",
			domain.ErrValidation, property.HourlyStart, property.HourlyEnd)
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
