package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/booking-service/internal/config"
	"github.com/prperemyshlev/booking-service/internal/handler"
	"github.com/prperemyshlev/booking-service/internal/notification"
	"github.com/prperemyshlev/booking-service/internal/pricing"
	"github.com/prperemyshlev/booking-service/internal/repository"
	"github.com/prperemyshlev/booking-service/internal/service"
	"github.com/prperemyshlev/booking-service/internal/utils"
	"github.com/prperemyshlev/booking-service/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const bookingWindow = time.Hour

type App struct {
	infra      Infrastructure
	config     *config.Config
	router     *gin.Engine
	server     *http.Server
	dispatcher *notification.Dispatcher
}

type routes struct {
	auth         *handler.AuthHandler
	reservations *handler.ReservationHandler
	authService  service.AuthService
	limiter      service.Limiter
	errs         *handler.ErrorWriter
	health       *HealthChecker
	metrics      http.Handler
	logger       *zap.Logger
}

func NewApp(infra Infrastructure, cfg *config.Config) (*App, error) {
	logger := infra.Logger()
	repos := repository.NewRepositories(infra.Postgres())

	metrics, err := observability.NewMetrics(infra.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	keys := utils.NewKeySetCache(cfg.Identity.KeySetURL(),
		utils.WithHTTPClient(utils.NewKeySetHTTPClient(cfg.Identity.FetchTimeout.Duration, cfg.Identity.SSRFGuard)),
		utils.WithFetchTimeout(cfg.Identity.FetchTimeout.Duration),
		utils.WithRefreshLimiter(rate.NewLimiter(rate.Every(cfg.Identity.RefreshRate.Duration), cfg.Identity.RefreshBurst)),
		utils.WithLogger(logger),
		utils.WithRefreshObserver(metrics.KeySetRefresh),
	)

	verifier, err := utils.NewTokenVerifier(keys, utils.VerifierConfig{
		Issuer:        cfg.Identity.Issuer,
		Audiences:     cfg.Identity.Audiences,
		Policy:        cfg.Identity.VerificationPolicy(),
		AllowInsecure: cfg.Identity.AllowInsecure,
		Leeway:        cfg.Identity.Leeway.Duration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}
	if verifier.Policy().IsInsecure() {
		logger.Warn("token verification runs with a reduced policy",
			zap.String("policy", string(verifier.Policy())),
		)
	}

	engine, err := pricing.NewEngine(cfg.Booking.FeePercent)
	if err != nil {
		return nil, fmt.Errorf("failed to create pricing engine: %w", err)
	}

	identity := service.NewIdentityService(repos.User, metrics, logger)
	authService := service.NewAuthService(verifier, identity, repos.User, metrics, logger)

	dispatcher := notification.NewDispatcher(infra.Notifier(), cfg.Notifications.Timeout.Duration, metrics, logger)
	idempotency := service.NewRedisIdempotencyStore(infra.Redis(), cfg.Security.IdempotencyTTL.Duration)
	reservationService := service.NewReservationService(repos, engine, idempotency, dispatcher, metrics, logger,
		service.ReservationOptions{MaxGuests: cfg.Booking.MaxGuests},
	)

	errs := handler.NewErrorWriter(logger, cfg.IsProduction())

	router := gin.Default()
	router.Use(otelgin.Middleware(serviceName))
	router.Use(handler.LoggerMiddleware(logger))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, cfg, routes{
		auth:         handler.NewAuthHandler(authService, errs),
		reservations: handler.NewReservationHandler(reservationService, errs, cfg.Booking.Currency),
		authService:  authService,
		limiter:      service.NewRateLimiter(infra.Redis()),
		errs:         errs,
		health:       NewHealthChecker(infra),
		metrics:      infra.MetricsHandler(),
		logger:       logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:      infra,
		config:     cfg,
		router:     router,
		server:     srv,
		dispatcher: dispatcher,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func setupRoutes(router *gin.Engine, cfg *config.Config, r routes) {
	router.GET("/metrics", observability.PrometheusHandler(r.metrics))
	router.GET("/health", r.health.Handler)

	perIP := handler.RateLimitMiddleware(r.limiter, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration, handler.IPBasedKey, r.logger)
	bookings := handler.RateLimitMiddleware(r.limiter, cfg.Security.BookingLimitPerHour, bookingWindow, handler.PrincipalKey, r.logger)
	authed := handler.RequireAuth(r.errs)

	api := router.Group("/api/v1")
	api.Use(handler.AuthMiddleware(r.authService, r.errs))
	{
		api.GET("/auth/me", authed, r.auth.GetMe)

		reservations := api.Group("/reservations")
		{
			reservations.POST("/quote", perIP, r.reservations.Quote)
			reservations.POST("", authed, bookings, r.reservations.Create)
			reservations.GET("/:id", authed, r.reservations.Get)
			reservations.POST("/:id/status", authed, r.reservations.UpdateStatus)
			reservations.POST("/:id/cancel", authed, r.reservations.Cancel)
		}

		host := api.Group("/host", authed)
		{
			host.GET("/reservations", r.reservations.ListForHost)
			host.GET("/earnings", r.reservations.ListEarnings)
		}

		api.GET("/guest/reservations", authed, r.reservations.ListForGuest)
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

// Shutdown drains HTTP traffic and pending notifications before closing infrastructure
func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout.Duration)
	defer cancel()

	err := a.server.Shutdown(ctx)
	err = errors.Join(err, a.dispatcher.Close(ctx))
	err = errors.Join(err, a.infra.Shutdown(ctx))
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
