package nowpayments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
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
const GatewayName = "nowpayments"

// preferredPayCurrency is chosen when the provider offers it.
const preferredPayCurrency = "btc"

// paymentExpiry is short: crypto quotes drift with blockchain settlement.
const paymentExpiry = time.Hour

// Handler implements the NOWPayments crypto protocol: API-key authenticated
// payment creation (pay currency negotiated against the provider's currency
// list), IPN callbacks signed with HMAC-SHA512 over the raw body.
type Handler struct {
	apiKey    string
	ipnSecret string
	apiURL    string
	sandbox   bool
	client    *http.Client
	logger    *zap.Logger
}

// New builds a NOWPayments handler from the gateway's credential bundle.
func New(gw *model.PaymentGateway, logger *zap.Logger) *Handler {
	return &Handler{
		apiKey:    gw.Credentials.String("api_key"),
		ipnSecret: gw.Credentials.String("ipn_secret"),
		apiURL:    gw.Credentials.String("api_url"),
		sandbox:   gw.IsSandbox,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
	}
}

func (h *Handler) Name() string {
	return GatewayName
}

type paymentResponse struct {
	PaymentID     json.Number `json:"payment_id"`
	PaymentStatus string      `json:"payment_status"`
	PayAddress    string      `json:"pay_address"`
	PayAmount     json.Number `json:"pay_amount"`
	PayCurrency   string      `json:"pay_currency"`
	Message       string      `json:"message"`
}

func (h *Handler) CreatePayment(ctx context.Context, req *gateway.PaymentRequest, transactionID string) (*gateway.PaymentResponse, error) {
	payCurrency, err := h.pickPayCurrency(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"price_amount":      req.Amount.InexactFloat64(),
		"price_currency":    strings.ToLower(req.Currency),
		"pay_currency":      payCurrency,
		"ipn_callback_url":  req.WebhookURL,
		"order_id":          transactionID,
		"order_description": req.Description,
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

	endpoint := fmt.Sprintf("%s/v1/payment", h.apiURL)
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
	httpReq.Header.Set("x-api-key", h.apiKey)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		h.logger.Error("NOWPayments payment request failed", zap.Error(err))
		return nil, &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    "API_ERROR",
			Message: "NOWPayments API request failed",
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
		var errResp paymentResponse
		json.Unmarshal(respBody, &errResp)

		h.logger.Error("NOWPayments payment creation rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.String("transaction_id", transactionID))

		return nil, &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message: "NOWPayments payment creation failed",
			Details: errResp.Message,
		}
	}

	var result paymentResponse
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

	qrCodeData := ""
	if result.PayAddress != "" {
		qrCodeData = fmt.Sprintf("%s:%s?amount=%s&label=%s",
			payCurrency, result.PayAddress, result.PayAmount.String(), url.QueryEscape(req.Description))
	}

	expiresAt := time.Now().Add(paymentExpiry)

	h.logger.Info("NOWPayments payment created",
		zap.String("transaction_id", transactionID),
		zap.String("external_transaction_id", result.PaymentID.String()),
		zap.String("pay_currency", payCurrency))

	return &gateway.PaymentResponse{
		TransactionID:         transactionID,
		ExternalTransactionID: result.PaymentID.String(),
		PaymentURL:            fmt.Sprintf("https://nowpayments.io/payment/?iid=%s", result.PaymentID.String()),
		QRCodeData:            qrCodeData,
		Status:                h.MapStatus(result.PaymentStatus),
		ExpiresAt:             &expiresAt,
		GatewayResponse:       raw,
	}, nil
}

// pickPayCurrency asks the provider for its available currencies and prefers
// bitcoin, falling back to the first offered one.
func (h *Handler) pickPayCurrency(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/currencies", h.apiURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    "REQUEST_ERROR",
			Message: "Failed to create currencies request",
			Details: err.Error(),
		}
	}
	httpReq.Header.Set("x-api-key", h.apiKey)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return "", &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    "API_ERROR",
			Message: "Failed to fetch available currencies",
			Details: err.Error(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message: "Failed to fetch available currencies",
		}
	}

	var currencies struct {
		Currencies []string `json:"currencies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&currencies); err != nil {
		return "", &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    "PARSE_ERROR",
			Message: "Failed to parse currencies response",
			Details: err.Error(),
		}
	}
	if len(currencies.Currencies) == 0 {
		return "", &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    "NO_CURRENCIES",
			Message: "Provider offers no pay currencies",
		}
	}

	for _, c := range currencies.Currencies {
		if c == preferredPayCurrency {
			return c, nil
		}
	}
	return currencies.Currencies[0], nil
}

// VerifyWebhook recomputes HMAC-SHA512 over the raw IPN body with the IPN
// secret and compares it constant-time.
func (h *Handler) VerifyWebhook(payload []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(h.ipnSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// MapStatus maps NOWPayments' payment status vocabulary onto the canonical
// states.
func (h *Handler) MapStatus(providerStatus string) model.TransactionStatus {
	switch strings.ToLower(providerStatus) {
	case "waiting":
		return model.TransactionStatusPending
	case "confirming", "sending":
		return model.TransactionStatusProcessing
	case "finished":
		return model.TransactionStatusCompleted
	case "failed", "refunded", "expired":
		return model.TransactionStatusFailed
	default:
		return model.TransactionStatusPending
	}
}
