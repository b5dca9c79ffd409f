package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	err := db.AutoMigrate(
		&model.PaymentGateway{},
		&model.Transaction{},
		&model.WebhookEvent{},
		&model.Currency{},
		&model.Wallet{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomIndexes creates indexes GORM doesn't handle automatically.
func createCustomIndexes(db *gorm.DB) error {
	// Partial index for the unprocessed-event re-drive scan.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_webhook_events_unprocessed ON webhook_events (created_at) WHERE processed = false`).Error; err != nil {
		return err
	}

	// Partial index for the abandoned-transaction sweeper.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_transactions_expiring ON transactions (expires_at) WHERE status IN ('pending', 'processing')`).Error; err != nil {
		return err
	}

	return nil
}
