package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	domainerrors "github.com/khaledkhbro/marketplace-payments/internal/domain/errors"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/repository"
	pkgerrors "github.com/khaledkhbro/marketplace-payments/pkg/errors"
)

type currencyRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCurrencyRepository creates a gorm-backed currency repository.
func NewCurrencyRepository(db *gorm.DB, logger *zap.Logger) repository.CurrencyRepository {
	return &currencyRepository{
		db:     db,
		logger: logger,
	}
}

func (r *currencyRepository) GetByCode(ctx context.Context, code string) (*model.Currency, error) {
	var currency model.Currency

	err := r.db.WithContext(ctx).
		Where("code = ? AND is_active = ?", code, true).
		First(&currency).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrUnsupportedCurrency
		}
		r.logger.Error("Failed to get currency",
			zap.String("code", code),
			zap.Error(err))
		return nil, pkgerrors.Wrap(err, "failed to get currency")
	}

	return &currency, nil
}
