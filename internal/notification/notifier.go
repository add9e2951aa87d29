// Package notification hands booking events to the external notifier.
package notification

import (
	"context"

	"github.com/prperemyshlev/booking-service/internal/domain"
	"go.uber.org/zap"
)

// Notifier publishes a single event
type Notifier interface {
	Publish(ctx context.Context, event domain.NotificationEvent) error
}

// LogNotifier only logs events. It is used when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that writes events to the log
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Publish logs the event
func (n *LogNotifier) Publish(_ context.Context, event domain.NotificationEvent) error {
	n.logger.Info("notification event",
		zap.String("event_type", event.EventType),
		zap.String("user_id", event.UserID),
		zap.String("reservation_id", event.ReservationID),
	)
	return nil
}
