package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prperemyshlev/booking-service/internal/app"
	"github.com/prperemyshlev/booking-service/internal/config"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	// A missing .env is fine, the process environment still applies.
	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	infra, err := app.NewInfrastructure(ctx, *cfg)
	if err != nil {
		log.Fatalf("Failed to initialize infrastructure: %v", err)
	}

	application, err := app.NewApp(infra, cfg)
	if err != nil {
		infra.Logger().Fatal("Failed to build application", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		infra.Logger().Fatal("Application failed", zap.Error(err))
	}
}
