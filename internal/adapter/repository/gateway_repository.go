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

type gatewayRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGatewayRepository creates a gorm-backed gateway configuration repository.
func NewGatewayRepository(db *gorm.DB, logger *zap.Logger) repository.GatewayRepository {
	return &gatewayRepository{
		db:     db,
		logger: logger,
	}
}

func (r *gatewayRepository) GetByName(ctx context.Context, name string) (*model.PaymentGateway, error) {
	var gw model.PaymentGateway

	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&gw).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrGatewayNotFound
		}
		r.logger.Error("Failed to get payment gateway",
			zap.String("gateway", name),
			zap.Error(err))
		return nil, pkgerrors.Wrap(err, "failed to get payment gateway")
	}

	return &gw, nil
}

func (r *gatewayRepository) ListEnabled(ctx context.Context) ([]*model.PaymentGateway, error) {
	var gateways []*model.PaymentGateway

	err := r.db.WithContext(ctx).
		Where("is_enabled = ?", true).
		Order("sort_order ASC, name ASC").
		Find(&gateways).Error

	if err != nil {
		r.logger.Error("Failed to list enabled payment gateways", zap.Error(err))
		return nil, pkgerrors.Wrap(err, "failed to list enabled payment gateways")
	}

	return gateways, nil
}
