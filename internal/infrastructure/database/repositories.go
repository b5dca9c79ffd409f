package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/khaledkhbro/marketplace-payments/internal/adapter/repository"
	domainRepo "github.com/khaledkhbro/marketplace-payments/internal/domain/repository"
)

// Repositories holds all repository instances
type Repositories struct {
	Gateway      domainRepo.GatewayRepository
	Transaction  domainRepo.TransactionRepository
	WebhookEvent domainRepo.WebhookEventRepository
	Currency     domainRepo.CurrencyRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Gateway:      repository.NewGatewayRepository(db, logger),
		Transaction:  repository.NewTransactionRepository(db, logger),
		WebhookEvent: repository.NewWebhookEventRepository(db, logger),
		Currency:     repository.NewCurrencyRepository(db, logger),
	}
}
