package aamarpay

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
const GatewayName = "aamarpay"

const paymentExpiry = 24 * time.Hour

// Handler implements the AamarPay protocol: a JSON request.php call that
// returns a hosted payment URL, and an IPN signed with an MD5 digest over
// ordered merchant fields.
type Handler struct {
	storeID      string
	signatureKey string
	apiURL       string
	sandbox      bool
	client       *http.Client
	logger       *zap.Logger
}

// New builds an AamarPay handler from the gateway's credential bundle.
func New(gw *model.PaymentGateway, logger *zap.Logger) *Handler {
	return &Handler{
		storeID:      gw.Credentials.String("store_id"),
		signatureKey: gw.Credentials.String("signature_key"),
		apiURL:       gw.Credentials.String("api_url"),
		sandbox:      gw.IsSandbox,
		client:       &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}
}

func (h *Handler) Name() string {
	return GatewayName
}

func (h *Handler) CreatePayment(ctx context.Context, req *gateway.PaymentRequest, transactionID string) (*gateway.PaymentResponse, error) {
	body := map[string]interface{}{
		"store_id":      h.storeID,
		"tran_id":       transactionID,
		"success_url":   req.ReturnURL,
		"fail_url":      req.CancelURL,
		"cancel_url":    req.CancelURL,
		"ipn_url":       req.WebhookURL,
		"amount":        req.Amount.InexactFloat64(),
		"currency":      req.Currency,
		"signature_key": h.signatureKey,
		"desc":          req.Description,
		"cus_name":      req.MetadataValue("customer_name", "Customer"),
		"cus_email":     req.MetadataValue("customer_email", "customer@example.com"),
		"cus_phone":     req.MetadataValue("customer_phone", "01700000000"),
		"cus_add1":      req.MetadataValue("customer_address", "Dhaka"),
		"cus_city":      req.MetadataValue("customer_city", "Dhaka"),
		"cus_country":   req.MetadataValue("customer_country", "Bangladesh"),
		"type":          "json",
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

	url := fmt.Sprintf("%s/request.php", h.apiURL)
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

	resp, err := h.client.Do(httpReq)
	if err != nil {
		h.logger.Error("AamarPay payment request failed", zap.Error(err))
		return nil, &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    "API_ERROR",
			Message: "AamarPay API request failed",
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
		h.logger.Error("AamarPay payment creation rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.String("transaction_id", transactionID))
		return nil, &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message: "AamarPay payment creation failed",
		}
	}

	var result struct {
		Result     string `json:"result"`
		Reason     string `json:"reason"`
		PaymentID  string `json:"payment_id"`
		PaymentURL string `json:"payment_url"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    "PARSE_ERROR",
			Message: "Failed to parse response",
			Details: err.Error(),
		}
	}

	// AamarPay signals failure inside a 200 response.
	if result.Result != "true" {
		h.logger.Error("AamarPay rejected payment",
			zap.String("transaction_id", transactionID),
			zap.String("reason", result.Reason))
		return nil, &gateway.GatewayError{
			Gateway: GatewayName,
			Code:    "REJECTED",
			Message: "AamarPay rejected the payment",
			Details: result.Reason,
		}
	}

	var raw map[string]interface{}
	json.Unmarshal(respBody, &raw)

	expiresAt := time.Now().Add(paymentExpiry)

	h.logger.Info("AamarPay payment created",
		zap.String("transaction_id", transactionID),
		zap.String("external_transaction_id", result.PaymentID))

	return &gateway.PaymentResponse{
		TransactionID:         transactionID,
		ExternalTransactionID: result.PaymentID,
		PaymentURL:            result.PaymentURL,
		Status:                model.TransactionStatusPending,
		ExpiresAt:             &expiresAt,
		GatewayResponse:       raw,
	}, nil
}

// VerifyWebhook recomputes MD5(store_id + pay_status + pay_time + mer_txnid +
// amount + currency + signature_key) over the IPN payload and compares it
// constant-time.
func (h *Handler) VerifyWebhook(payload []byte, signature string) bool {
	var fields struct {
		StoreID   string      `json:"store_id"`
		PayStatus string      `json:"pay_status"`
		PayTime   string      `json:"pay_time"`
		MerTxnID  string      `json:"mer_txnid"`
		Amount    json.Number `json:"amount"`
		Currency  string      `json:"currency"`
	}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return false
	}

	data := fields.StoreID + fields.PayStatus + fields.PayTime + fields.MerTxnID +
		fields.Amount.String() + fields.Currency + h.signatureKey
	sum := md5.Sum([]byte(data))
	expected := hex.EncodeToString(sum[:])

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// MapStatus maps AamarPay's status vocabulary onto the canonical states.
func (h *Handler) MapStatus(providerStatus string) model.TransactionStatus {
	switch strings.ToLower(providerStatus) {
	case "successful", "success":
		return model.TransactionStatusCompleted
	case "pending":
		return model.TransactionStatusPending
	case "processing":
		return model.TransactionStatusProcessing
	case "failed", "cancelled":
		return model.TransactionStatusFailed
	default:
		return model.TransactionStatusPending
	}
}
