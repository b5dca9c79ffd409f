package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is a supported currency with its exchange rate.
//
// ExchangeRate is quoted against a single common base (USD): units of this
// currency per one USD. Whoever populates the table must keep every rate on
// that base, otherwise cross-currency conversion silently goes wrong.
type Currency struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Code          string          `gorm:"unique;not null;size:3" json:"code"`
	Name          string          `gorm:"not null;size:50" json:"name"`
	Symbol        string          `gorm:"size:8" json:"symbol"`
	ExchangeRate  decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"exchange_rate"`
	DecimalPlaces int             `gorm:"default:2" json:"decimal_places"`
	IsActive      bool            `gorm:"default:true" json:"is_active"`
	UpdatedAt     time.Time       `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Currency) TableName() string {
	return "currencies"
}
