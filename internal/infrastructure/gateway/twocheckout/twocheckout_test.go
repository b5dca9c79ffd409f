package twocheckout

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/khaledkhbro/marketplace-payments/internal/domain/gateway"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
)

func testGateway(sandbox bool) *model.PaymentGateway {
	return &model.PaymentGateway{
		Name:      GatewayName,
		Type:      model.GatewayTypeFiat,
		IsEnabled: true,
		IsSandbox: sandbox,
		Credentials: model.JSONB{
			"merchant_code": "vendor-1",
			"secret_key":    "secret-1",
			"api_url":       "https://2checkout.example",
		},
	}
}

func paymentRequest() *gateway.PaymentRequest {
	return &gateway.PaymentRequest{
		GatewayName: GatewayName,
		Amount:      decimal.RequireFromString("199.99"),
		Currency:    "USD",
		UserID:      "user-1",
		Description: "Website redesign package",
		ReturnURL:   "https://marketplace.example/return",
		CancelURL:   "https://marketplace.example/cancel",
	}
}

func TestCreatePayment_BuildsCheckoutURLLocally(t *testing.T) {
	handler := New(testGateway(false), zap.NewNop())

	resp, err := handler.CreatePayment(context.Background(), paymentRequest(), "txn-1")

	require.NoError(t, err)
	assert.Equal(t, "2co_txn-1", resp.ExternalTransactionID)
	assert.Equal(t, model.TransactionStatusPending, resp.Status)

	require.True(t, strings.HasPrefix(resp.PaymentURL, "https://2checkout.example/checkout/purchase?"))
	parsed, err := url.Parse(resp.PaymentURL)
	require.NoError(t, err)
	query := parsed.Query()
	assert.Equal(t, "vendor-1", query.Get("sid"))
	assert.Equal(t, "2CO", query.Get("mode"))
	assert.Equal(t, "199.99", query.Get("li_0_price"))
	assert.Equal(t, "txn-1", query.Get("merchant_order_id"))
	assert.Equal(t, "N", query.Get("demo"))
}

func TestCreatePayment_SandboxSetsDemoFlag(t *testing.T) {
	handler := New(testGateway(true), zap.NewNop())

	resp, err := handler.CreatePayment(context.Background(), paymentRequest(), "txn-1")

	require.NoError(t, err)
	parsed, _ := url.Parse(resp.PaymentURL)
	assert.Equal(t, "Y", parsed.Query().Get("demo"))
}

func TestVerifyWebhook(t *testing.T) {
	handler := New(testGateway(false), zap.NewNop())

	payload := []byte(`{"sale_id":100001,"vendor_id":200002,"invoice_id":300003,"message_type":"INVOICE_STATUS_APPROVED"}`)
	sum := md5.Sum([]byte("100001" + "200002" + "300003" + "secret-1"))
	signature := strings.ToUpper(hex.EncodeToString(sum[:]))

	assert.True(t, handler.VerifyWebhook(payload, signature))

	// INS hashes are upper-cased; a lower-cased digest must not pass.
	assert.False(t, handler.VerifyWebhook(payload, strings.ToLower(signature)))
	assert.False(t, handler.VerifyWebhook(payload, "tampered"))
}

func TestMapStatus(t *testing.T) {
	handler := New(testGateway(false), zap.NewNop())

	assert.Equal(t, model.TransactionStatusPending, handler.MapStatus("ORDER_CREATED"))
	assert.Equal(t, model.TransactionStatusProcessing, handler.MapStatus("FRAUD_REVIEW"))
	assert.Equal(t, model.TransactionStatusCompleted, handler.MapStatus("INVOICE_STATUS_APPROVED"))
	assert.Equal(t, model.TransactionStatusFailed, handler.MapStatus("REFUND_ISSUED"))
	assert.Equal(t, model.TransactionStatusFailed, handler.MapStatus("ORDER_CANCELLED"))
	assert.Equal(t, model.TransactionStatusPending, handler.MapStatus("SOMETHING_NEW"))
}
