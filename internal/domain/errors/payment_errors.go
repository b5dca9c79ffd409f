package errors

import (
	"errors"
	"fmt"
)

// Configuration and validation errors, raised before any external side effect.
var (
	// ErrGatewayNotFound: the requested gateway name has no configuration row.
	ErrGatewayNotFound = errors.New("payment gateway not found")

	// ErrGatewayDisabled: the gateway exists but is not enabled.
	ErrGatewayDisabled = errors.New("payment gateway is disabled")

	// ErrUnsupportedGateway: configuration references a provider with no
	// handler implementation.
	ErrUnsupportedGateway = errors.New("unsupported payment gateway")

	// ErrAmountOutOfRange: request amount outside the gateway's min/max.
	ErrAmountOutOfRange = errors.New("amount outside gateway limits")

	// ErrUnsupportedCurrency: no stored exchange rate, or the gateway does not
	// accept the currency.
	ErrUnsupportedCurrency = errors.New("unsupported currency")

	// ErrInvalidWebhookSignature: computed signature does not match.
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")

	// ErrTransactionNotFound: no transaction row for the given identifier.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// PaymentCreationError wraps the provider's own error after the local
// transaction record already exists. The caller can inspect and retry with
// the transaction id.
type PaymentCreationError struct {
	Gateway       string
	TransactionID string
	Err           error
}

func (e *PaymentCreationError) Error() string {
	return fmt.Sprintf("payment creation failed on %s (transaction %s): %v",
		e.Gateway, e.TransactionID, e.Err)
}

func (e *PaymentCreationError) Unwrap() error {
	return e.Err
}
