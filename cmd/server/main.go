package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/khaledkhbro/marketplace-payments/internal/config"
	"github.com/khaledkhbro/marketplace-payments/internal/infrastructure/database"
	gatewayfactory "github.com/khaledkhbro/marketplace-payments/internal/infrastructure/gateway"
	httpServer "github.com/khaledkhbro/marketplace-payments/internal/infrastructure/http"
	"github.com/khaledkhbro/marketplace-payments/internal/infrastructure/messaging"
	"github.com/khaledkhbro/marketplace-payments/internal/usecase"
	"github.com/khaledkhbro/marketplace-payments/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		FilePath:    cfg.Log.FilePath,
		Development: cfg.Log.Development,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	repos := database.NewRepositories(db, zapLogger)

	// Event publishing is optional; without redis the service runs standalone.
	var publisher messaging.Publisher = messaging.NopPublisher{}
	if cfg.Redis.Addr != "" {
		publisher, err = messaging.NewRedisPublisher(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer publisher.Close()
	}

	// Initialize services
	factory := gatewayfactory.NewFactory(zapLogger)
	paymentService := usecase.NewPaymentService(
		repos.Gateway,
		repos.Transaction,
		repos.WebhookEvent,
		factory,
		publisher,
		zapLogger,
		cfg.Service.EscrowAutoReleaseDays,
	)
	currencyService := usecase.NewCurrencyService(repos.Currency, zapLogger)

	httpSrv := httpServer.NewServer(cfg, zapLogger, paymentService, currencyService)

	go func() {
		if err := httpSrv.Start(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	zapLogger.Info("Server shut down successfully")
}
