package repository

import (
	"context"
	"time"

	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
)

// ExternalDetails is what the provider returned for a created payment.
type ExternalDetails struct {
	ExternalTransactionID string
	PaymentURL            string
	QRCodeData            string
	Status                model.TransactionStatus
	GatewayResponse       model.JSONB
	ExpiresAt             *time.Time
}

// TransactionRepository persists escrow transactions.
type TransactionRepository interface {
	// CreateEscrow atomically inserts the transaction in pending state with
	// funds marked held. Runs before any external provider call.
	CreateEscrow(ctx context.Context, tx *model.Transaction) error

	// UpdateExternalDetails enriches the row with provider-side identifiers.
	UpdateExternalDetails(ctx context.Context, transactionID string, details *ExternalDetails) error

	// TransitionStatus applies a conditional status update: only rows still in
	// a non-terminal state transition. Returns whether the update applied, so
	// replayed webhooks become no-ops instead of double transitions.
	TransitionStatus(ctx context.Context, transactionID string, to model.TransactionStatus) (bool, error)

	// ReleaseEscrow atomically flips escrow funds from held to released and
	// credits the seller wallet. A second call for the same transaction does
	// nothing and reports false.
	ReleaseEscrow(ctx context.Context, transactionID string, reason string) (bool, error)

	GetByTransactionID(ctx context.Context, transactionID string) (*model.Transaction, error)

	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Transaction, error)
}
