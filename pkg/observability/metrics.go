package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/prperemyshlev/booking-service"

// PrometheusHandler returns a Gin handler for Prometheus metrics
func PrometheusHandler(handler http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if handler != nil {
			handler.ServeHTTP(c.Writer, c.Request)
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "metrics handler not initialized",
			})
		}
	}
}

// Metrics holds the domain counters. A nil *Metrics records nothing.
type Metrics struct {
	authFailures        metric.Int64Counter
	principalsCreated   metric.Int64Counter
	reservationsCreated metric.Int64Counter
	statusTransitions   metric.Int64Counter
	earningsCreated     metric.Int64Counter
	notifyFailures      metric.Int64Counter
	keySetRefreshes     metric.Int64Counter
}

// NewMetrics registers the domain counters on the provider's meter
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)

	counters := []struct {
		name string
		desc string
	}{
		{"booking_auth_failures_total", "Rejected bearer tokens by failure kind"},
		{"booking_principals_created_total", "Local users created from identity provider subjects"},
		{"booking_reservations_created_total", "Reservations created"},
		{"booking_status_transitions_total", "Reservation status transitions by target status"},
		{"booking_earnings_records_created_total", "Host earnings records written"},
		{"booking_notification_failures_total", "Notification publishes that failed"},
		{"booking_jwks_refreshes_total", "Signing key set refreshes by outcome"},
	}

	m := &Metrics{}
	targets := []*metric.Int64Counter{
		&m.authFailures,
		&m.principalsCreated,
		&m.reservationsCreated,
		&m.statusTransitions,
		&m.earningsCreated,
		&m.notifyFailures,
		&m.keySetRefreshes,
	}

	for i, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
		*targets[i] = counter
	}

	return m, nil
}

// AuthFailure counts a rejected token
func (m *Metrics) AuthFailure(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.authFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// PrincipalCreated counts a newly provisioned local user
func (m *Metrics) PrincipalCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.principalsCreated.Add(ctx, 1)
}

// ReservationCreated counts a new reservation
func (m *Metrics) ReservationCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.reservationsCreated.Add(ctx, 1)
}

// StatusTransition counts a status change
func (m *Metrics) StatusTransition(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.statusTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// EarningsRecordCreated counts a written earnings record
func (m *Metrics) EarningsRecordCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.earningsCreated.Add(ctx, 1)
}

// NotificationFailed counts a failed publish
func (m *Metrics) NotificationFailed(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.notifyFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

// KeySetRefresh counts a JWKS refresh attempt
func (m *Metrics) KeySetRefresh(outcome string) {
	if m == nil {
		return
	}
	m.keySetRefreshes.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
