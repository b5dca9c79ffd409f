package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSupportsCurrency(t *testing.T) {
	gw := &PaymentGateway{SupportedCurrencies: StringList{"USD", "BDT"}}

	assert.True(t, gw.SupportsCurrency("USD"))
	assert.False(t, gw.SupportsCurrency("EUR"))

	// Empty filter matches any gateway.
	assert.True(t, gw.SupportsCurrency(""))

	// Empty supported set accepts everything.
	open := &PaymentGateway{}
	assert.True(t, open.SupportsCurrency("JPY"))
}

func TestSupportsCountry(t *testing.T) {
	gw := &PaymentGateway{SupportedCountries: StringList{"BD"}}

	assert.True(t, gw.SupportsCountry("BD"))
	assert.False(t, gw.SupportsCountry("US"))
	assert.True(t, gw.SupportsCountry(""))
}

func TestFee(t *testing.T) {
	gw := &PaymentGateway{
		FeePercentage: decimal.RequireFromString("2.5"),
		FeeFixed:      decimal.RequireFromString("0.30"),
	}

	// 2.5% of 100 plus 0.30 fixed.
	fee := gw.Fee(decimal.NewFromInt(100))
	assert.True(t, decimal.RequireFromString("2.80").Equal(fee), "got %s", fee)

	zero := &PaymentGateway{}
	assert.True(t, zero.Fee(decimal.NewFromInt(100)).IsZero())
}

func TestTransactionStatusIsTerminal(t *testing.T) {
	assert.False(t, TransactionStatusPending.IsTerminal())
	assert.False(t, TransactionStatusProcessing.IsTerminal())
	assert.True(t, TransactionStatusCompleted.IsTerminal())
	assert.True(t, TransactionStatusFailed.IsTerminal())
}
