package portwallet

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khaledkhbro/marketplace-payments/internal/domain/gateway"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
)

// GatewayName is the registry key for this handler.
const GatewayName = "portwallet"

const paymentExpiry = 24 * time.Hour

// Handler implements the PortWallet card/bank protocol: JSON create-payment
// call authenticated with a bearer secret, MD5 digests over ordered merchant
// fields for signing.
type Handler struct {
	merchantID string
	secretKey  string
	apiURL     string
	sandbox    bool
	client     *http.Client
	logger     *zap.Logger
}

// New builds a PortWallet handler from the gateway's credential bundle.
func New(gw *model.PaymentGateway, logger *zap.Logger) *Handler {
	return &Handler{
		merchantID: gw.Credentials.String("merchant_id"),
		secretKey:  gw.Credentials.String("secret_key"),
		apiURL:     gw.Credentials.String("api_url"),
		sandbox:    gw.IsSandbox,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (h *Handler) Name() string {
	return GatewayName
}

type createResponse struct {
	PaymentID  string `json:"payment_id"`
	PaymentURL string `json:"payment_url"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

func (h *Handler) CreatePayment(ctx context.Context, req *gateway.PaymentRequest, transactionID string) (*gateway.PaymentResponse, error) {
	body := map[string]interface{}{
		"merchant_id":    h.merchantID,
		"amount":         req.Amount.InexactFloat64(),
		"currency":       req.Currency,
		"order_id":       transactionID,
		"description":    req.Description,
		"customer_name":  req.MetadataValue("customer_name", "Customer"),
		"customer_email": req.MetadataValue("customer_email", ""),
		"customer_phone": req.MetadataValue("customer_phone", ""),
		"return_url":     req.ReturnURL,
		"cancel_url":     req.CancelURL,
		"notify_url":     req.WebhookURL,
		"signature":      h.requestSignature(transactionID, req.Amount.String()),
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

	url := fmt.Sprintf("%s/payment/create", h.apiURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    "REQUEST_ERROR",
			Message: "Failed to create request",
			Details: err.Error(),
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+h.secretKey)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		h.logger.Error("PortWallet payment request failed", zap.Error(err))
		return nil, &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    "API_ERROR",
			Message: "PortWallet API request failed",
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

	if resp.StatusCode != http.StatusOK {
		h.logger.Error("PortWallet payment creation rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.String("transaction_id", transactionID))

		var errResp createResponse
		json.Unmarshal(respBody, &errResp)

		return nil, &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message: "PortWallet payment creation failed",
			Details: errResp.Message,
		}
	}

	var result createResponse
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

	expiresAt := time.Now().Add(paymentExpiry)

	h.logger.Info("PortWallet payment created",
		zap.String("transaction_id", transactionID),
		zap.String("external_transaction_id", result.PaymentID))

	return &gateway.PaymentResponse{
		TransactionID:         transactionID,
		ExternalTransactionID: result.PaymentID,
		PaymentURL:            result.PaymentURL,
		Status:                h.MapStatus(result.Status),
		ExpiresAt:             &expiresAt,
		GatewayResponse:       raw,
	}, nil
}

// VerifyWebhook recomputes MD5(merchant_id + order_id + amount + status + secret)
// over the notification payload and compares it constant-time.
func (h *Handler) VerifyWebhook(payload []byte, signature string) bool {
	var fields struct {
		MerchantID string      `json:"merchant_id"`
		OrderID    string      `json:"order_id"`
		Amount     json.Number `json:"amount"`
		Status     string      `json:"status"`
	}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return false
	}

	data := fields.MerchantID + fields.OrderID + fields.Amount.String() + fields.Status + h.secretKey
	sum := md5.Sum([]byte(data))
	expected := hex.EncodeToString(sum[:])

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

func (h *Handler) requestSignature(orderID, amount string) string {
	sum := md5.Sum([]byte(h.merchantID + orderID + amount + h.secretKey))
	return hex.EncodeToString(sum[:])
}

// MapStatus maps PortWallet's status vocabulary onto the canonical states.
func (h *Handler) MapStatus(providerStatus string) model.TransactionStatus {
	switch strings.ToLower(providerStatus) {
	case "pending", "initiated":
		return model.TransactionStatusPending
	case "processing":
		return model.TransactionStatusProcessing
	case "success", "completed":
		return model.TransactionStatusCompleted
	case "failed", "cancelled":
		return model.TransactionStatusFailed
	default:
		return model.TransactionStatusPending
	}
}
