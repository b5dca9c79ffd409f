package twocheckout

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khaledkhbro/marketplace-payments/internal/domain/gateway"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
)

// GatewayName is the registry key for this handler.
const GatewayName = "2checkout"

const paymentExpiry = 24 * time.Hour

// Handler implements the 2Checkout hosted-checkout protocol. Payment creation
// is a redirect: the checkout URL is assembled locally from merchant
// parameters, no API call is made. INS notifications are signed with an
// upper-cased MD5 digest over ordered sale fields.
type Handler struct {
	merchantCode string
	secretKey    string
	apiURL       string
	sandbox      bool
	logger       *zap.Logger
}

// New builds a 2Checkout handler from the gateway's credential bundle.
func New(gw *model.PaymentGateway, logger *zap.Logger) *Handler {
	return &Handler{
		merchantCode: gw.Credentials.String("merchant_code"),
		secretKey:    gw.Credentials.String("secret_key"),
		apiURL:       gw.Credentials.String("api_url"),
		sandbox:      gw.IsSandbox,
		logger:       logger,
	}
}

func (h *Handler) Name() string {
	return GatewayName
}

func (h *Handler) CreatePayment(ctx context.Context, req *gateway.PaymentRequest, transactionID string) (*gateway.PaymentResponse, error) {
	demo := "N"
	if h.sandbox {
		demo = "Y"
	}

	params := url.Values{}
	params.Set("sid", h.merchantCode)
	params.Set("mode", "2CO")
	params.Set("li_0_type", "product")
	params.Set("li_0_name", req.Description)
	params.Set("li_0_price", req.Amount.String())
	params.Set("li_0_quantity", "1")
	params.Set("currency_code", req.Currency)
	params.Set("merchant_order_id", transactionID)
	params.Set("return_url", req.ReturnURL)
	params.Set("x_receipt_link_url", req.ReturnURL)
	params.Set("approved_url", req.ReturnURL)
	params.Set("declined_url", req.CancelURL)
	params.Set("pending_url", req.ReturnURL)
	params.Set("demo", demo)

	paymentURL := fmt.Sprintf("%s/checkout/purchase?%s", h.apiURL, params.Encode())
	expiresAt := time.Now().Add(paymentExpiry)

	h.logger.Info("2Checkout checkout URL built",
		zap.String("transaction_id", transactionID))

	return &gateway.PaymentResponse{
		TransactionID:         transactionID,
		ExternalTransactionID: "2co_" + transactionID,
		PaymentURL:            paymentURL,
		Status:                model.TransactionStatusPending,
		ExpiresAt:             &expiresAt,
		GatewayResponse:       map[string]interface{}{"payment_url": paymentURL},
	}, nil
}

// VerifyWebhook recomputes UPPER(MD5(sale_id + vendor_id + invoice_id +
// secret)) over the INS payload and compares it constant-time.
func (h *Handler) VerifyWebhook(payload []byte, signature string) bool {
	var fields struct {
		SaleID    json.Number `json:"sale_id"`
		VendorID  json.Number `json:"vendor_id"`
		InvoiceID json.Number `json:"invoice_id"`
	}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return false
	}

	data := fields.SaleID.String() + fields.VendorID.String() + fields.InvoiceID.String() + h.secretKey
	sum := md5.Sum([]byte(data))
	expected := strings.ToUpper(hex.EncodeToString(sum[:]))

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// MapStatus maps 2Checkout's INS message vocabulary onto the canonical states.
func (h *Handler) MapStatus(providerStatus string) model.TransactionStatus {
	switch strings.ToLower(providerStatus) {
	case "order_created":
		return model.TransactionStatusPending
	case "fraud_review":
		return model.TransactionStatusProcessing
	case "invoice_status_approved":
		return model.TransactionStatusCompleted
	case "refund_issued", "order_cancelled":
		return model.TransactionStatusFailed
	default:
		return model.TransactionStatusPending
	}
}
