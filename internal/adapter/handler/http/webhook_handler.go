package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/khaledkhbro/marketplace-payments/internal/domain/gateway"
)

// WebhookProcessor applies a verified provider callback. Implemented by
// usecase.PaymentService.
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, event *gateway.WebhookEvent) bool
}

// Header names providers deliver their webhook signature under, normalized
// into the canonical x-signature entry.
var signatureHeaders = []string{
	"X-Signature",
	"Signature",
	"X-Nowpayments-Sig",
	"X-CC-Webhook-Signature",
}

type WebhookHandler struct {
	service WebhookProcessor
	logger  *zap.Logger
}

func NewWebhookHandler(service WebhookProcessor, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		logger:  logger,
	}
}

// HandleWebhook receives a provider callback on /webhooks/:gateway.
//
// The response is always 200 once the request parses: providers retry
// non-2xx deliveries aggressively, and the service records failures on the
// event row where operators can re-drive them.
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	gatewayName := c.Param("gateway")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("Error reading webhook body",
			zap.String("gateway", gatewayName),
			zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Error reading request body"})
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("Webhook body is not valid JSON",
			zap.String("gateway", gatewayName),
			zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid JSON payload"})
	}

	event := &gateway.WebhookEvent{
		GatewayName:   gatewayName,
		EventType:     extractString(payload, "event_type", "type", "message_type", "payment_status", "pay_status", "status"),
		EventID:       extractString(payload, "event_id", "id", "message_id", "payment_id", "mer_txnid", "token"),
		TransactionID: extractString(payload, "transaction_id", "order_id", "order_number", "tran_id", "custom", "merchant_order_id"),
		Payload:       payload,
		RawPayload:    body,
		Headers:       extractHeaders(c.Request().Header),
	}

	// Providers without a native delivery id get a deterministic one, so
	// redeliveries of the same body still dedupe.
	if event.EventID == "" {
		sum := sha256.Sum256(body)
		event.EventID = hex.EncodeToString(sum[:])
	}

	h.logger.Info("Webhook received",
		zap.String("gateway", gatewayName),
		zap.String("event_type", event.EventType),
		zap.String("event_id", event.EventID))

	processed := h.service.ProcessWebhook(c.Request().Context(), event)
	if !processed {
		h.logger.Warn("Webhook not processed",
			zap.String("gateway", gatewayName),
			zap.String("event_id", event.EventID))
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

// extractString returns the first non-empty string among the given payload
// keys. Numeric ids are rendered through their JSON form.
func extractString(payload map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			if raw, err := json.Marshal(v); err == nil {
				return string(raw)
			}
		}
	}
	return ""
}

// extractHeaders lowercases the request headers and collapses the known
// provider signature headers into x-signature.
func extractHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for name, values := range header {
		if len(values) > 0 {
			out[strings.ToLower(name)] = values[0]
		}
	}
	for _, name := range signatureHeaders {
		if v := header.Get(name); v != "" {
			out["x-signature"] = v
			break
		}
	}
	return out
}
