package repository

import (
	"context"

	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
)

// CurrencyRepository reads the exchange rate table.
type CurrencyRepository interface {
	// GetByCode returns the active currency row, or
	// errors.ErrUnsupportedCurrency when absent or inactive.
	GetByCode(ctx context.Context, code string) (*model.Currency, error)
}
