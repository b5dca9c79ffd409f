package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// GatewayType distinguishes card/bank processors from crypto processors.
type GatewayType string

const (
	GatewayTypeFiat   GatewayType = "fiat"
	GatewayTypeCrypto GatewayType = "crypto"
)

// PaymentGateway is a configured payment provider row.
//
// Credentials hold the provider-specific secret bundle (keys, signing secrets,
// base URLs). They are excluded from JSON serialization and must never be
// logged.
type PaymentGateway struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name                string          `gorm:"unique;not null;size:50;index" json:"name"`
	DisplayName         string          `gorm:"not null;size:100" json:"display_name"`
	Type                GatewayType     `gorm:"not null;size:10" json:"type"`
	IsEnabled           bool            `gorm:"default:false;index" json:"is_enabled"`
	IsSandbox           bool            `gorm:"default:true" json:"is_sandbox"`
	FeePercentage       decimal.Decimal `gorm:"type:decimal(6,3);default:0" json:"fee_percentage"`
	FeeFixed            decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"fee_fixed"`
	MinAmount           decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"min_amount"`
	MaxAmount           decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"max_amount"`
	SupportedCurrencies StringList      `gorm:"type:jsonb" json:"supported_currencies"`
	SupportedCountries  StringList      `gorm:"type:jsonb" json:"supported_countries"`
	Credentials         JSONB           `gorm:"column:api_credentials;type:jsonb" json:"-"`
	WebhookURL          string          `gorm:"size:500" json:"webhook_url,omitempty"`
	SortOrder           int             `gorm:"default:0" json:"sort_order"`
	CreatedAt           time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (PaymentGateway) TableName() string {
	return "payment_gateway_settings"
}

// SupportsCurrency reports whether the gateway accepts the currency.
// An empty supported set means every currency is accepted.
func (g *PaymentGateway) SupportsCurrency(currency string) bool {
	if currency == "" || len(g.SupportedCurrencies) == 0 {
		return true
	}
	return g.SupportedCurrencies.Contains(currency)
}

// SupportsCountry reports whether the gateway serves the country.
// An empty supported set means every country is served.
func (g *PaymentGateway) SupportsCountry(country string) bool {
	if country == "" || len(g.SupportedCountries) == 0 {
		return true
	}
	return g.SupportedCountries.Contains(country)
}

// Fee computes the gateway charge for an amount: percentage cut plus fixed fee.
func (g *PaymentGateway) Fee(amount decimal.Decimal) decimal.Decimal {
	percent := amount.Mul(g.FeePercentage).Div(decimal.NewFromInt(100))
	return percent.Add(g.FeeFixed)
}
