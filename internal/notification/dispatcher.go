package notification

import (
	"context"
	"sync"
	"time"

	"github.com/prperemyshlev/booking-service/internal/domain"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single publish
	DefaultTimeout = 5 * time.Second
	// DefaultMaxInFlight caps concurrent publishes; events beyond it are dropped
	DefaultMaxInFlight = 256
)

// FailureRecorder is notified of failed publishes
type FailureRecorder interface {
	NotificationFailed(ctx context.Context, eventType string)
}

// Dispatcher publishes events in the background. Failures are logged and
// counted, never returned to the caller.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	failures FailureRecorder
	logger   *zap.Logger
	slots    chan struct{}

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a dispatcher. failures may be nil.
func NewDispatcher(notifier Notifier, timeout time.Duration, failures FailureRecorder, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		notifier: notifier,
		timeout:  timeout,
		failures: failures,
		logger:   logger,
		slots:    make(chan struct{}, DefaultMaxInFlight),
	}
}

// Dispatch schedules the event for publishing and returns immediately
func (d *Dispatcher) Dispatch(event domain.NotificationEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("dropping notification after shutdown",
			zap.String("event_type", event.EventType),
			zap.String("reservation_id", event.ReservationID),
		)
		return
	}

	select {
	case d.slots <- struct{}{}:
	default:
		// The broker is not keeping up; drop rather than pile up goroutines.
		if d.failures != nil {
			d.failures.NotificationFailed(context.Background(), event.EventType)
		}
		d.logger.Warn("dropping notification, too many publishes in flight",
			zap.String("event_type", event.EventType),
			zap.String("reservation_id", event.ReservationID),
		)
		return
	}

	d.wg.Add(1)
	go func() {
		defer func() {
			<-d.slots
			d.wg.Done()
		}()
		d.publish(event)
	}()
}

// Close stops accepting events and waits for in-flight publishes
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) publish(event domain.NotificationEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.notifier.Publish(ctx, event); err != nil {
		if d.failures != nil {
			d.failures.NotificationFailed(ctx, event.EventType)
		}
		d.logger.Error("failed to publish notification",
			zap.String("event_type", event.EventType),
			zap.String("reservation_id", event.ReservationID),
			zap.Error(err),
		)
	}
}
