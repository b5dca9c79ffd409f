package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainerrors "github.com/khaledkhbro/marketplace-payments/internal/domain/errors"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/repository"
	pkgerrors "github.com/khaledkhbro/marketplace-payments/pkg/errors"
)

type transactionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewTransactionRepository creates a gorm-backed escrow transaction repository.
func NewTransactionRepository(db *gorm.DB, logger *zap.Logger) repository.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *transactionRepository) CreateEscrow(ctx context.Context, tx *model.Transaction) error {
	if tx.Status == "" {
		tx.Status = model.TransactionStatusPending
	}
	if tx.EscrowStatus == "" {
		tx.EscrowStatus = model.EscrowStatusHeld
	}

	err := r.db.WithContext(ctx).Transaction(func(dbTx *gorm.DB) error {
		return dbTx.Create(tx).Error
	})

	if err != nil {
		r.logger.Error("Failed to create escrow transaction",
			zap.String("transaction_id", tx.TransactionID),
			zap.String("gateway", tx.GatewayName),
			zap.Error(err))
		return pkgerrors.Wrap(err, "failed to create escrow transaction")
	}

	return nil
}

func (r *transactionRepository) UpdateExternalDetails(ctx context.Context, transactionID string, details *repository.ExternalDetails) error {
	updates := map[string]interface{}{
		"status":     details.Status,
		"updated_at": time.Now(),
	}
	if details.ExternalTransactionID != "" {
		updates["external_transaction_id"] = details.ExternalTransactionID
	}
	if details.PaymentURL != "" {
		updates["payment_url"] = details.PaymentURL
	}
	if details.QRCodeData != "" {
		updates["qr_code_data"] = details.QRCodeData
	}
	if details.GatewayResponse != nil {
		updates["gateway_response"] = details.GatewayResponse
	}
	if details.ExpiresAt != nil {
		updates["expires_at"] = details.ExpiresAt
	}

	result := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("transaction_id = ?", transactionID).
		Updates(updates)

	if result.Error != nil {
		r.logger.Error("Failed to update transaction with external details",
			zap.String("transaction_id", transactionID),
			zap.Error(result.Error))
		return pkgerrors.Wrap(result.Error, "failed to update transaction")
	}

	if result.RowsAffected == 0 {
		return domainerrors.ErrTransactionNotFound
	}

	return nil
}

func (r *transactionRepository) TransitionStatus(ctx context.Context, transactionID string, to model.TransactionStatus) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if to == model.TransactionStatusCompleted {
		now := time.Now()
		updates["completed_at"] = &now
	}

	// Terminal states are sticky: only non-terminal rows transition, so a
	// replayed webhook cannot re-apply a terminal transition.
	result := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("transaction_id = ? AND status IN ?", transactionID,
			[]model.TransactionStatus{model.TransactionStatusPending, model.TransactionStatusProcessing}).
		Updates(updates)

	if result.Error != nil {
		r.logger.Error("Failed to transition transaction status",
			zap.String("transaction_id", transactionID),
			zap.String("to", string(to)),
			zap.Error(result.Error))
		return false, pkgerrors.Wrap(result.Error, "failed to transition transaction status")
	}

	return result.RowsAffected > 0, nil
}

func (r *transactionRepository) ReleaseEscrow(ctx context.Context, transactionID string, reason string) (bool, error) {
	released := false

	err := r.db.WithContext(ctx).Transaction(func(dbTx *gorm.DB) error {
		var tx model.Transaction
		if err := dbTx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("transaction_id = ?", transactionID).
			First(&tx).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrTransactionNotFound
			}
			return err
		}

		if tx.EscrowStatus != model.EscrowStatusHeld {
			// Already released or refunded. Not an error: replays are no-ops.
			return nil
		}

		result := dbTx.Model(&model.Transaction{}).
			Where("transaction_id = ? AND escrow_status = ?", transactionID, model.EscrowStatusHeld).
			Updates(map[string]interface{}{
				"escrow_status": model.EscrowStatusReleased,
				"updated_at":    time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		if tx.SellerID != nil && *tx.SellerID != "" {
			if err := creditWallet(dbTx, *tx.SellerID, tx.Currency, tx.Amount); err != nil {
				return err
			}
		}

		released = true
		return nil
	})

	if err != nil {
		r.logger.Error("Failed to release escrow funds",
			zap.String("transaction_id", transactionID),
			zap.String("reason", reason),
			zap.Error(err))
		return false, pkgerrors.Wrap(err, "failed to release escrow funds")
	}

	if released {
		r.logger.Info("Escrow funds released",
			zap.String("transaction_id", transactionID),
			zap.String("reason", reason))
	}

	return released, nil
}

// creditWallet adds the amount to the user's wallet for the currency,
// creating the wallet row on first credit.
func creditWallet(dbTx *gorm.DB, userID, currency string, amount decimal.Decimal) error {
	var wallet model.Wallet
	err := dbTx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND currency = ?", userID, currency).
		First(&wallet).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		wallet = model.Wallet{
			UserID:   userID,
			Currency: currency,
			Balance:  amount,
		}
		return dbTx.Create(&wallet).Error
	}
	if err != nil {
		return err
	}

	return dbTx.Model(&model.Wallet{}).
		Where("id = ?", wallet.ID).
		Updates(map[string]interface{}{
			"balance":    wallet.Balance.Add(amount),
			"updated_at": time.Now(),
		}).Error
}

func (r *transactionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*model.Transaction, error) {
	var tx model.Transaction

	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&tx).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrTransactionNotFound
		}
		r.logger.Error("Failed to get transaction",
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		return nil, pkgerrors.Wrap(err, "failed to get transaction")
	}

	return &tx, nil
}

func (r *transactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Transaction, error) {
	if limit < 1 {
		limit = 20
	} else if limit > 100 {
		limit = 100
	}

	var txs []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error

	if err != nil {
		r.logger.Error("Failed to list user transactions",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, pkgerrors.Wrap(err, "failed to list user transactions")
	}

	return txs, nil
}
