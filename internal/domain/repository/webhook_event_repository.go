package repository

import (
	"context"

	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
)

// WebhookEventRepository persists inbound webhook events before they are acted
// upon and records the processing outcome.
type WebhookEventRepository interface {
	// Save inserts the event. A duplicate (gateway, event id) pair is ignored
	// and reported via the duplicate flag so the caller can skip reprocessing.
	Save(ctx context.Context, event *model.WebhookEvent) (duplicate bool, err error)

	// MarkProcessed flags the event as handled.
	MarkProcessed(ctx context.Context, gatewayID int64, eventID string) error

	// MarkFailed records why the event could not be handled.
	MarkFailed(ctx context.Context, gatewayID int64, eventID string, cause error) error

	// ListUnprocessed returns events awaiting a re-drive, oldest first.
	ListUnprocessed(ctx context.Context, limit int) ([]*model.WebhookEvent, error)
}
