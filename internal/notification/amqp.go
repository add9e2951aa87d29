package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prperemyshlev/booking-service/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const amqpHeartbeat = 10 * time.Second

// AMQPPublisher sends events to a durable RabbitMQ queue. The connection is
// opened on first use and reopened after a failure.
type AMQPPublisher struct {
	url    string
	queue  string
	logger *zap.Logger

	// lock is a one-slot semaphore so waiters can give up when their context ends
	lock    chan struct{}
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPPublisher creates a publisher for the given queue
func NewAMQPPublisher(url, queue string, logger *zap.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, queue: queue, logger: logger, lock: make(chan struct{}, 1)}
}

// Publish sends the event as a persistent JSON message on the default exchange
func (p *AMQPPublisher) Publish(ctx context.Context, event domain.NotificationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.acquire(ctx); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	defer p.release()

	ch, err := p.channelLocked(ctx)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         event.EventType,
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.resetLocked()
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close closes the channel and connection
func (p *AMQPPublisher) Close() error {
	p.lock <- struct{}{}
	defer p.release()

	p.resetLocked()
	return nil
}

func (p *AMQPPublisher) acquire(ctx context.Context) error {
	select {
	case p.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *AMQPPublisher) release() {
	<-p.lock
}

// dialTimeout bounds the TCP connect and AMQP handshake by the caller's deadline
func dialTimeout(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return DefaultTimeout
	}
	return time.Until(deadline)
}

func (p *AMQPPublisher) channelLocked(ctx context.Context) (*amqp.Channel, error) {
	if p.channel != nil && !p.channel.IsClosed() {
		return p.channel, nil
	}
	p.resetLocked()

	timeout := dialTimeout(ctx)
	if timeout <= 0 {
		return nil, fmt.Errorf("failed to dial broker: %w", context.DeadlineExceeded)
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: amqpHeartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", p.queue, err)
	}

	p.conn = conn
	p.channel = ch
	p.logger.Info("connected to message broker", zap.String("queue", p.queue))
	return ch, nil
}

func (p *AMQPPublisher) resetLocked() {
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
