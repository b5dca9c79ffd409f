package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
)

// Handler is implemented once per payment provider. Each implementation
// encapsulates one provider's wire protocol: payment creation, webhook
// signature verification and status vocabulary.
type Handler interface {
	// CreatePayment translates the generic request into the provider's
	// create-payment call and maps the provider response into PaymentResponse.
	// Provider-reported errors surface as *GatewayError, never as a synthetic
	// success.
	CreatePayment(ctx context.Context, req *PaymentRequest, transactionID string) (*PaymentResponse, error)

	// VerifyWebhook recomputes the provider's expected signature over the raw
	// payload and compares it to the supplied one in constant time.
	VerifyWebhook(payload []byte, signature string) bool

	// MapStatus maps the provider's status vocabulary onto the canonical
	// lifecycle states. Unrecognized statuses map to pending, never to a
	// terminal state.
	MapStatus(providerStatus string) model.TransactionStatus

	// Name returns the gateway name the handler serves.
	Name() string
}

// PaymentRequest is the provider-agnostic payment creation request.
type PaymentRequest struct {
	GatewayName string            `json:"gateway_name" validate:"required"`
	Amount      decimal.Decimal   `json:"amount" validate:"required"`
	Currency    string            `json:"currency" validate:"required,len=3"`
	UserID      string            `json:"user_id" validate:"required"`
	SellerID    string            `json:"seller_id,omitempty"`
	JobID       string            `json:"job_id,omitempty"`
	Description string            `json:"description" validate:"required"`
	ReturnURL   string            `json:"return_url,omitempty"`
	CancelURL   string            `json:"cancel_url,omitempty"`
	WebhookURL  string            `json:"webhook_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// MetadataValue returns a metadata entry or the fallback when absent.
func (r *PaymentRequest) MetadataValue(key, fallback string) string {
	if v, ok := r.Metadata[key]; ok && v != "" {
		return v
	}
	return fallback
}

// PaymentResponse is the common shape every handler maps provider responses into.
type PaymentResponse struct {
	TransactionID         string                  `json:"transaction_id"`
	ExternalTransactionID string                  `json:"external_transaction_id,omitempty"`
	PaymentURL            string                  `json:"payment_url,omitempty"`
	QRCodeData            string                  `json:"qr_code_data,omitempty"`
	Status                model.TransactionStatus `json:"status"`
	ExpiresAt             *time.Time              `json:"expires_at,omitempty"`
	GatewayResponse       map[string]interface{}  `json:"gateway_response,omitempty"`
}

// WebhookEvent is an inbound provider callback as handed over by the
// collaborator-owned webhook endpoint.
type WebhookEvent struct {
	GatewayName   string                 `json:"gateway_name"`
	EventType     string                 `json:"event_type"`
	EventID       string                 `json:"event_id"`
	TransactionID string                 `json:"transaction_id,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
	RawPayload    []byte                 `json:"-"`
	Headers       map[string]string      `json:"headers"`
}

// Signature extracts the provider signature from the event headers.
func (e *WebhookEvent) Signature() string {
	if sig, ok := e.Headers["x-signature"]; ok && sig != "" {
		return sig
	}
	return e.Headers["signature"]
}

// GatewayError carries a provider-reported failure.
type GatewayError struct {
	Gateway string `json:"gateway"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *GatewayError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}
