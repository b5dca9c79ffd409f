package repository

import (
	"context"

	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
)

// GatewayRepository reads payment gateway configuration.
type GatewayRepository interface {
	// GetByName returns the gateway row regardless of enabled state, or
	// errors.ErrGatewayNotFound when absent.
	GetByName(ctx context.Context, name string) (*model.PaymentGateway, error)

	// ListEnabled returns all enabled gateways ordered by sort order then name.
	ListEnabled(ctx context.Context) ([]*model.PaymentGateway, error)
}
