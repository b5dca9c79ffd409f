package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds a user's released balance per currency. Escrow release credits
// the seller wallet exactly once per completed transaction.
type Wallet struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string          `gorm:"not null;size:64;uniqueIndex:idx_wallet_user_currency" json:"user_id"`
	Currency  string          `gorm:"not null;size:3;uniqueIndex:idx_wallet_user_currency" json:"currency"`
	Balance   decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"balance"`
	UpdatedAt time.Time       `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Wallet) TableName() string {
	return "wallets"
}
