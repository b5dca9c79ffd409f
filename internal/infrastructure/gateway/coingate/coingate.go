package coingate

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khaledkhbro/marketplace-payments/internal/domain/gateway"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
)

// GatewayName is the registry key for this handler.
const GatewayName = "coingate"

// receiveCurrency is the crypto currency orders settle into.
const receiveCurrency = "BTC"

const fallbackExpiry = time.Hour

// Handler implements the CoinGate crypto protocol: token-authenticated order
// creation returning a payment address, webhooks signed with HMAC-SHA256 over
// the raw body.
type Handler struct {
	apiKey    string
	apiSecret string
	apiURL    string
	sandbox   bool
	client    *http.Client
	logger    *zap.Logger
}

// New builds a CoinGate handler from the gateway's credential bundle.
func New(gw *model.PaymentGateway, logger *zap.Logger) *Handler {
	return &Handler{
		apiKey:    gw.Credentials.String("api_key"),
		apiSecret: gw.Credentials.String("api_secret"),
		apiURL:    gw.Credentials.String("api_url"),
		sandbox:   gw.IsSandbox,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
	}
}

func (h *Handler) Name() string {
	return GatewayName
}

type orderResponse struct {
	ID             json.Number `json:"id"`
	Status         string      `json:"status"`
	PaymentURL     string      `json:"payment_url"`
	PaymentAddress string      `json:"payment_address"`
	PayAmount      json.Number `json:"pay_amount"`
	ExpireAt       string      `json:"expire_at"`
	Message        string      `json:"message"`
}

func (h *Handler) CreatePayment(ctx context.Context, req *gateway.PaymentRequest, transactionID string) (*gateway.PaymentResponse, error) {
	body := map[string]interface{}{
		"order_id":         transactionID,
		"price_amount":     req.Amount.InexactFloat64(),
		"price_currency":   req.Currency,
		"receive_currency": receiveCurrency,
		"title":            req.Description,
		"description":      req.Description,
		"callback_url":     req.WebhookURL,
		"cancel_url":       req.CancelURL,
		"success_url":      req.ReturnURL,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    "MARSHAL_ERROR",
			Message: "Failed to prepare request",
			Details: err.Error(),
		}
	}

	endpoint := fmt.Sprintf("%s/v2/orders", h.apiURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    "REQUEST_ERROR",
			Message: "Failed to create request",
			Details: err.Error(),
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+h.apiKey)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		h.logger.Error("CoinGate order request failed", zap.Error(err))
		return nil, &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    "API_ERROR",
			Message: "CoinGate API request failed",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    "RESPONSE_ERROR",
			Message: "Failed to read response",
			Details: err.Error(),
		}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var errResp orderResponse
		json.Unmarshal(respBody, &errResp)

		h.logger.Error("CoinGate order creation rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.String("transaction_id", transactionID))

		return nil, &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message: "CoinGate order creation failed",
			Details: errResp.Message,
		}
	}

	var result orderResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    "PARSE_ERROR",
			Message: "Failed to parse response",
			Details: err.Error(),
		}
	}

	var raw map[string]interface{}
	json.Unmarshal(respBody, &raw)

	// Payment URI for wallet QR scanning: currency:address?amount=..&label=..
	qrCodeData := ""
	if result.PaymentAddress != "" {
		qrCodeData = fmt.Sprintf("bitcoin:%s?amount=%s&label=%s",
			result.PaymentAddress, result.PayAmount.String(), url.QueryEscape(req.Description))
	}

	expiresAt := time.Now().Add(fallbackExpiry)
	if result.ExpireAt != "" {
		if t, err := time.Parse(time.RFC3339, result.ExpireAt); err == nil {
			expiresAt = t
		}
	}

	h.logger.Info("CoinGate order created",
		zap.String("transaction_id", transactionID),
		zap.String("external_transaction_id", result.ID.String()))

	return &gateway.PaymentResponse{
		TransactionID:         transactionID,
		ExternalTransactionID: result.ID.String(),
		PaymentURL:            result.PaymentURL,
		QRCodeData:            qrCodeData,
		Status:                h.MapStatus(result.Status),
		ExpiresAt:             &expiresAt,
		GatewayResponse:       raw,
	}, nil
}

// VerifyWebhook recomputes HMAC-SHA256 over the raw callback body with the API
// secret and compares it constant-time.
func (h *Handler) VerifyWebhook(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.apiSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// MapStatus maps CoinGate's order status vocabulary onto the canonical states.
func (h *Handler) MapStatus(providerStatus string) model.TransactionStatus {
	switch strings.ToLower(providerStatus) {
	case "new", "pending":
		return model.TransactionStatusPending
	case "confirming":
		return model.TransactionStatusProcessing
	case "paid", "confirmed":
		return model.TransactionStatusCompleted
	case "expired", "canceled", "refunded":
		return model.TransactionStatusFailed
	default:
		return model.TransactionStatusPending
	}
}
