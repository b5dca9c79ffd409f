package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/repository"
	pkgerrors "github.com/khaledkhbro/marketplace-payments/pkg/errors"
)

type webhookEventRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWebhookEventRepository creates a gorm-backed webhook event repository.
func NewWebhookEventRepository(db *gorm.DB, logger *zap.Logger) repository.WebhookEventRepository {
	return &webhookEventRepository{
		db:     db,
		logger: logger,
	}
}

func (r *webhookEventRepository) Save(ctx context.Context, event *model.WebhookEvent) (bool, error) {
	// ON CONFLICT DO NOTHING on (payment_gateway_id, event_id): providers
	// deliver at least once, the insert succeeds exactly once.
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event)

	if result.Error != nil {
		r.logger.Error("Failed to save webhook event",
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.EventType),
			zap.Error(result.Error))
		return false, pkgerrors.Wrap(result.Error, "failed to save webhook event")
	}

	duplicate := result.RowsAffected == 0
	if duplicate {
		r.logger.Info("Duplicate webhook delivery ignored",
			zap.Int64("payment_gateway_id", event.PaymentGatewayID),
			zap.String("event_id", event.EventID))
	}

	return duplicate, nil
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, gatewayID int64, eventID string) error {
	now := time.Now()

	result := r.db.WithContext(ctx).
		Model(&model.WebhookEvent{}).
		Where("payment_gateway_id = ? AND event_id = ?", gatewayID, eventID).
		Updates(map[string]interface{}{
			"processed":           true,
			"processed_at":        &now,
			"error_message":       nil,
			"processing_attempts": gorm.Expr("processing_attempts + 1"),
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark webhook event as processed",
			zap.String("event_id", eventID),
			zap.Error(result.Error))
		return pkgerrors.Wrap(result.Error, "failed to mark webhook event as processed")
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("webhook event not found: %s", eventID)
	}

	return nil
}

func (r *webhookEventRepository) MarkFailed(ctx context.Context, gatewayID int64, eventID string, cause error) error {
	now := time.Now()
	errorMsg := cause.Error()

	result := r.db.WithContext(ctx).
		Model(&model.WebhookEvent{}).
		Where("payment_gateway_id = ? AND event_id = ?", gatewayID, eventID).
		Updates(map[string]interface{}{
			"processed":           false,
			"processed_at":        &now,
			"error_message":       &errorMsg,
			"processing_attempts": gorm.Expr("processing_attempts + 1"),
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark webhook event as failed",
			zap.String("event_id", eventID),
			zap.Error(result.Error))
		return pkgerrors.Wrap(result.Error, "failed to mark webhook event as failed")
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("webhook event not found: %s", eventID)
	}

	return nil
}

func (r *webhookEventRepository) ListUnprocessed(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	if limit < 1 {
		limit = 50
	}

	var events []*model.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error

	if err != nil {
		r.logger.Error("Failed to list unprocessed webhook events", zap.Error(err))
		return nil, pkgerrors.Wrap(err, "failed to list unprocessed webhook events")
	}

	return events, nil
}
