package model

import (
	"database/sql/driver"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the canonical payment lifecycle state.
type TransactionStatus string

const (
	// TransactionStatusPending: created, awaiting payer action at the provider.
	TransactionStatusPending TransactionStatus = "pending"
	// TransactionStatusProcessing: provider acknowledged but not finalized.
	TransactionStatusProcessing TransactionStatus = "processing"
	// TransactionStatusCompleted: provider confirmed settlement, escrow released.
	TransactionStatusCompleted TransactionStatus = "completed"
	// TransactionStatusFailed: provider reported cancellation, expiry or failure.
	TransactionStatusFailed TransactionStatus = "failed"
)

// Scan implements sql.Scanner interface
func (s *TransactionStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = TransactionStatus(v)
	case []byte:
		*s = TransactionStatus(v)
	default:
		*s = TransactionStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (s TransactionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// IsTerminal reports whether the status can no longer change.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// EscrowStatus tracks what happened to the held funds.
type EscrowStatus string

const (
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

// Transaction is the durable escrow record for one payment attempt.
// Rows are never deleted; they are the audit trail.
type Transaction struct {
	ID                    int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID         string            `gorm:"column:transaction_id;unique;not null;size:64;index" json:"transaction_id"`
	UserID                string            `gorm:"not null;size:64;index" json:"user_id"`
	SellerID              *string           `gorm:"size:64;index" json:"seller_id,omitempty"`
	JobID                 *string           `gorm:"size:64" json:"job_id,omitempty"`
	GatewayName           string            `gorm:"not null;size:50;index" json:"gateway_name"`
	Amount                decimal.Decimal   `gorm:"type:decimal(15,2);not null" json:"amount"`
	Currency              string            `gorm:"size:3;not null" json:"currency"`
	Status                TransactionStatus `gorm:"size:20;default:'pending';index" json:"status"`
	EscrowStatus          EscrowStatus      `gorm:"size:20;default:'held'" json:"escrow_status"`
	Description           string            `gorm:"size:500" json:"description"`
	ExternalTransactionID *string           `gorm:"size:100;index" json:"external_transaction_id,omitempty"`
	PaymentURL            *string           `gorm:"size:1000" json:"payment_url,omitempty"`
	QRCodeData            *string           `gorm:"column:qr_code_data;size:1000" json:"qr_code_data,omitempty"`
	GatewayResponse       JSONB             `gorm:"type:jsonb" json:"gateway_response,omitempty"`
	ExpiresAt             *time.Time        `json:"expires_at,omitempty"`
	AutoReleaseAt         *time.Time        `json:"auto_release_at,omitempty"`
	CompletedAt           *time.Time        `json:"completed_at,omitempty"`
	CreatedAt             time.Time         `gorm:"default:now()" json:"created_at"`
	UpdatedAt             time.Time         `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Transaction) TableName() string {
	return "transactions"
}
