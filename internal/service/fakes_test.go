package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/prperemyshlev/booking-service/internal/repository"
)

// memStore is an in-memory stand-in for the Postgres repositories
type memStore struct {
	mu           sync.Mutex
	users        map[string]*domain.User // by external id
	properties   map[string]*domain.Property
	reservations map[string]*domain.Reservation
	earnings     map[string]*domain.EarningsRecord // by reservation id

	// emailRace makes EmailTaken miss an owner so the insert hits the unique constraint
	emailRace bool
	lookupErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:        map[string]*domain.User{},
		properties:   map[string]*domain.Property{},
		reservations: map[string]*domain.Reservation{},
		earnings:     map[string]*domain.EarningsRecord{},
	}
}

func (m *memStore) repositories() *repository.Repositories {
	return &repository.Repositories{
		User:        memUsers{m},
		Property:    memProperties{m},
		Reservation: memReservations{m},
		Earnings:    memEarnings{m},
	}
}

func (m *memStore) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *memStore) earningsCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.earnings)
}

type memUsers struct{ m *memStore }

func (r memUsers) GetOrCreateByExternalID(_ context.Context, user *domain.User) (*domain.User, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if existing, ok := r.m.users[user.ExternalID]; ok {
		copied := *existing
		return &copied, false, nil
	}
	for _, u := range r.m.users {
		if u.Email == user.Email {
			return nil, false, repository.ErrDuplicateEmail
		}
	}

	stored := *user
	stored.ID = uuid.NewString()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	r.m.users[stored.ExternalID] = &stored

	copied := stored
	return &copied, true, nil
}

func (r memUsers) GetByExternalID(_ context.Context, externalID string) (*domain.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if r.m.lookupErr != nil {
		return nil, r.m.lookupErr
	}
	u, ok := r.m.users[externalID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, u := range r.m.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memUsers) EmailTaken(_ context.Context, email, exceptExternalID string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if r.m.emailRace {
		return false, nil
	}
	for _, u := range r.m.users {
		if u.Email == email && u.ExternalID != exceptExternalID {
			return true, nil
		}
	}
	return false, nil
}

func (r memUsers) UpdateProfile(_ context.Context, id, name, email string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, u := range r.m.users {
		if u.ID == id {
			u.Name = name
			u.Email = email
			u.UpdatedAt = time.Now()
			return nil
		}
	}
	return repository.ErrNotFound
}

type memProperties struct{ m *memStore }

func (r memProperties) GetByID(_ context.Context, id string) (*domain.Property, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	p, ok := r.m.properties[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

type memReservations struct{ m *memStore }

func (r memReservations) Create(_ context.Context, reservation *domain.Reservation) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	reservation.ID = uuid.NewString()
	reservation.CreatedAt = time.Now()
	reservation.UpdatedAt = reservation.CreatedAt
	stored := *reservation
	r.m.reservations[stored.ID] = &stored
	return nil
}

func (r memReservations) GetByID(_ context.Context, id string) (*domain.Reservation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	res, ok := r.m.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *res
	return &copied, nil
}

func (r memReservations) ListByHost(_ context.Context, hostID string, filter repository.ReservationFilter) ([]*domain.Reservation, error) {
	return r.list(func(res *domain.Reservation) bool {
		return res.HostID == hostID && (filter.Status == nil || res.Status == *filter.Status)
	}), nil
}

func (r memReservations) ListByGuest(_ context.Context, guestID string, filter repository.ReservationFilter) ([]*domain.Reservation, error) {
	return r.list(func(res *domain.Reservation) bool {
		return res.GuestID == guestID && (filter.Status == nil || res.Status == *filter.Status)
	}), nil
}

func (r memReservations) list(match func(*domain.Reservation) bool) []*domain.Reservation {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	out := []*domain.Reservation{}
	for _, res := range r.m.reservations {
		if match(res) {
			copied := *res
			out = append(out, &copied)
		}
	}
	return out
}

func (r memReservations) ApproveWithEarnings(_ context.Context, id string, record *domain.EarningsRecord) (*domain.EarningsRecord, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	res, ok := r.m.reservations[id]
	if !ok {
		return nil, false, repository.ErrNotFound
	}

	switch res.Status {
	case domain.StatusPending:
		res.Status = domain.StatusApproved
		stored := *record
		stored.ID = uuid.NewString()
		stored.CreatedAt = time.Now()
		r.m.earnings[id] = &stored
		copied := stored
		return &copied, true, nil
	case domain.StatusApproved:
		existing, ok := r.m.earnings[id]
		if !ok {
			return nil, false, errors.New("approved reservation without earnings")
		}
		copied := *existing
		return &copied, false, nil
	default:
		return nil, false, fmt.Errorf("reservation %s is %s: %w", id, res.Status, repository.ErrStatusConflict)
	}
}

func (r memReservations) SetStatus(_ context.Context, id string, from []domain.ReservationStatus, to domain.ReservationStatus) (*domain.Reservation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	res, ok := r.m.reservations[id]
	if !ok {
		return nil, repository.ErrStatusConflict
	}
	for _, status := range from {
		if res.Status == status {
			res.Status = to
			res.UpdatedAt = time.Now()
			copied := *res
			return &copied, nil
		}
	}
	return nil, repository.ErrStatusConflict
}

type memEarnings struct{ m *memStore }

func (r memEarnings) ListByHost(_ context.Context, hostID string, from, to *time.Time) ([]*domain.EarningsRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	out := []*domain.EarningsRecord{}
	for _, e := range r.m.earnings {
		if e.HostID != hostID {
			continue
		}
		if from != nil && e.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && !e.CreatedAt.Before(*to) {
			continue
		}
		copied := *e
		out = append(out, &copied)
	}
	return out, nil
}

// recordingDispatcher collects events synchronously
type recordingDispatcher struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
}

func (d *recordingDispatcher) Dispatch(event domain.NotificationEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *recordingDispatcher) ofType(eventType string) []domain.NotificationEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.NotificationEvent
	for _, e := range d.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// memIdempotency mirrors RedisIdempotencyStore without expiry
type memIdempotency struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{values: map[string]string{}}
}

func (s *memIdempotency) Begin(_ context.Context, scope, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := idempotencyKey(scope, key)
	value, ok := s.values[k]
	if !ok {
		s.values[k] = idempotencyPending
		return "", nil
	}
	if value == idempotencyPending {
		return "", domain.ErrConflict
	}
	return value, nil
}

func (s *memIdempotency) Complete(_ context.Context, scope, key, reservationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[idempotencyKey(scope, key)] = reservationID
	return nil
}

func (s *memIdempotency) Abort(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, idempotencyKey(scope, key))
	return nil
}

// stubVerifier returns fixed claims or a fixed error
type stubVerifier struct {
	claims *domain.VerifiedClaims
	err    error
	calls  int
}

func (v *stubVerifier) Verify(_ context.Context, _ string) (*domain.VerifiedClaims, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return v.claims, nil
}
