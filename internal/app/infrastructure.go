package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prperemyshlev/booking-service/internal/config"
	"github.com/prperemyshlev/booking-service/internal/notification"
	"github.com/prperemyshlev/booking-service/pkg/database"
	"github.com/prperemyshlev/booking-service/pkg/observability"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const serviceName = "booking-service"

type Infrastructure interface {
	Postgres() *database.Postgres
	Redis() *database.Redis
	Logger() *zap.Logger
	MetricsHandler() http.Handler
	MeterProvider() *metric.MeterProvider
	Notifier() notification.Notifier

	Shutdown(ctx context.Context) error
}

type infrastructure struct {
	postgres       *database.Postgres
	redis          *database.Redis
	logger         *zap.Logger
	metricsHandler http.Handler
	meterProvider  *metric.MeterProvider
	notifier       notification.Notifier
	publisher      *notification.AMQPPublisher
}

var _ Infrastructure = &infrastructure{}

func NewInfrastructure(ctx context.Context, cfg config.Config) (*infrastructure, error) {
	i := &infrastructure{}

	logger, err := observability.InitLogger(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	i.logger = logger

	if cfg.Postgres.AutoMigrate {
		if err := database.RunMigrations(cfg.Postgres.URL()); err != nil {
			return nil, fmt.Errorf("failed to migrate PostgreSQL: %w", err)
		}
		logger.Info("database migrations applied")
	}

	postgres, err := database.NewPostgres(ctx, cfg.Postgres.DSN(), database.PoolOptions{
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime.Duration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	i.postgres = postgres

	redis, err := database.NewRedis(ctx, cfg.Redis.Address(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		_ = i.postgres.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	i.redis = redis

	meterProvider, metricsHandler, err := observability.InitTelemetry(serviceName)
	if err != nil {
		_ = i.postgres.Close()
		_ = i.redis.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	i.meterProvider = meterProvider
	i.metricsHandler = metricsHandler

	if cfg.Notifications.Enabled {
		i.publisher = notification.NewAMQPPublisher(cfg.Notifications.AMQPURL, cfg.Notifications.Queue, logger)
		i.notifier = i.publisher
	} else {
		logger.Info("notification broker disabled, events are logged only")
		i.notifier = notification.NewLogNotifier(logger)
	}

	return i, nil
}

func (i *infrastructure) Postgres() *database.Postgres {
	return i.postgres
}

func (i *infrastructure) Redis() *database.Redis {
	return i.redis
}

func (i *infrastructure) Logger() *zap.Logger {
	return i.logger
}

func (i *infrastructure) MetricsHandler() http.Handler {
	return i.metricsHandler
}

func (i *infrastructure) MeterProvider() *metric.MeterProvider {
	return i.meterProvider
}

func (i *infrastructure) Notifier() notification.Notifier {
	return i.notifier
}

func (i *infrastructure) Shutdown(ctx context.Context) error {
	errs := make(chan error, 4)

	go func() { errs <- i.postgres.Close() }()
	go func() { errs <- i.redis.Close() }()
	go func() {
		if i.publisher == nil {
			errs <- nil
			return
		}
		errs <- i.publisher.Close()
	}()
	go func() { errs <- observability.Shutdown(ctx, i.meterProvider, i.logger) }()

	return errors.Join(<-errs, <-errs, <-errs, <-errs)
}
