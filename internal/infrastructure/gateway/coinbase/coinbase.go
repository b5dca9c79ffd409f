package coinbase

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
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khaledkhbro/marketplace-payments/internal/domain/gateway"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
)

// GatewayName is the registry key for this handler.
const GatewayName = "coinbase_commerce"

const apiVersion = "2018-03-22"

const fallbackExpiry = time.Hour

// Handler implements the Coinbase Commerce protocol: charge creation returning
// a hosted URL plus per-currency payment addresses, webhooks signed with
// HMAC-SHA256 over the raw body.
type Handler struct {
	apiKey        string
	webhookSecret string
	apiURL        string
	sandbox       bool
	client        *http.Client
	logger        *zap.Logger
}

// New builds a Coinbase Commerce handler from the gateway's credential bundle.
func New(gw *model.PaymentGateway, logger *zap.Logger) *Handler {
	return &Handler{
		apiKey:        gw.Credentials.String("api_key"),
		webhookSecret: gw.Credentials.String("webhook_secret"),
		apiURL:        gw.Credentials.String("api_url"),
		sandbox:       gw.IsSandbox,
		client:        &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
	}
}

func (h *Handler) Name() string {
	return GatewayName
}

type charge struct {
	ID        string                       `json:"id"`
	HostedURL string                       `json:"hosted_url"`
	ExpiresAt string                       `json:"expires_at"`
	Addresses map[string]string            `json:"addresses"`
	Pricing   map[string]map[string]string `json:"pricing"`
	Timeline  []struct {
		Status string `json:"status"`
	} `json:"timeline"`
}

func (h *Handler) CreatePayment(ctx context.Context, req *gateway.PaymentRequest, transactionID string) (*gateway.PaymentResponse, error) {
	body := map[string]interface{}{
		"name":        req.Description,
		"description": req.Description,
		"local_price": map[string]string{
			"amount":   req.Amount.String(),
			"currency": req.Currency,
		},
		"pricing_type": "fixed_price",
		"metadata": map[string]string{
			"order_id":    transactionID,
			"customer_id": req.UserID,
		},
		"redirect_url": req.ReturnURL,
		"cancel_url":   req.CancelURL,
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

	endpoint := fmt.Sprintf("%s/charges", h.apiURL)
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
	httpReq.Header.Set("X-CC-Api-Key", h.apiKey)
	httpReq.Header.Set("X-CC-Version", apiVersion)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		h.logger.Error("Coinbase Commerce charge request failed", zap.Error(err))
		return nil, &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    "API_ERROR",
			Message: "Coinbase Commerce API request failed",
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
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)

		h.logger.Error("Coinbase Commerce charge creation rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.String("transaction_id", transactionID))

		return nil, &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message: "Coinbase Commerce charge creation failed",
			Details: errResp.Error.Message,
		}
	}

	var result struct {
		Data charge `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    "PARSE_ERROR",
			Message: "Failed to parse response",
			Details: err.Error(),
		}
	}
	ch := result.Data

	var raw map[string]interface{}
	json.Unmarshal(respBody, &raw)

	// QR payload from the first available payment address, priced in that
	// currency. Keys are sorted so the pick is stable.
	qrCodeData := ""
	currencies := make([]string, 0, len(ch.Addresses))
	for currency := range ch.Addresses {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)
	if len(currencies) > 0 {
		currency := currencies[0]
		amount := ""
		if pricing, ok := ch.Pricing[currency]; ok {
			amount = pricing["amount"]
		}
		qrCodeData = fmt.Sprintf("%s:%s?amount=%s&label=%s",
			strings.ToLower(currency), ch.Addresses[currency], amount, url.QueryEscape(req.Description))
	}

	status := "NEW"
	if len(ch.Timeline) > 0 {
		status = ch.Timeline[len(ch.Timeline)-1].Status
	}

	expiresAt := time.Now().Add(fallbackExpiry)
	if ch.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, ch.ExpiresAt); err == nil {
			expiresAt = t
		}
	}

	h.logger.Info("Coinbase Commerce charge created",
		zap.String("transaction_id", transactionID),
		zap.String("external_transaction_id", ch.ID))

	return &gateway.PaymentResponse{
		TransactionID:         transactionID,
		ExternalTransactionID: ch.ID,
		PaymentURL:            ch.HostedURL,
		QRCodeData:            qrCodeData,
		Status:                h.MapStatus(status),
		ExpiresAt:             &expiresAt,
		GatewayResponse:       raw,
	}, nil
}

// VerifyWebhook recomputes HMAC-SHA256 over the raw webhook body with the
// shared webhook secret and compares it constant-time.
func (h *Handler) VerifyWebhook(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// MapStatus maps Coinbase Commerce's timeline vocabulary onto the canonical
// states.
func (h *Handler) MapStatus(providerStatus string) model.TransactionStatus {
	switch strings.ToUpper(providerStatus) {
	case "NEW":
		return model.TransactionStatusPending
	case "PENDING":
		return model.TransactionStatusProcessing
	case "CONFIRMED", "COMPLETED":
		return model.TransactionStatusCompleted
	case "EXPIRED", "CANCELED", "REFUND_PENDING", "REFUNDED":
		return model.TransactionStatusFailed
	default:
		return model.TransactionStatusPending
	}
}
