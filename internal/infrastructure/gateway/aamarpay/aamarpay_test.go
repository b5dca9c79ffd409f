package aamarpay

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/khaledkhbro/marketplace-payments/internal/domain/gateway"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
)

func testGateway(apiURL string) *model.PaymentGateway {
	return &model.PaymentGateway{
		Name:      GatewayName,
		Type:      model.GatewayTypeFiat,
		IsEnabled: true,
		Credentials: model.JSONB{
			"store_id":      "store-1",
			"signature_key": "sigkey-1",
			"api_url":       apiURL,
		},
	}
}

func paymentRequest() *gateway.PaymentRequest {
	return &gateway.PaymentRequest{
		GatewayName: GatewayName,
		Amount:      decimal.RequireFromString("500.50"),
		Currency:    "BDT",
		UserID:      "user-1",
		Description: "Article writing order",
		ReturnURL:   "https://marketplace.example/return",
		CancelURL:   "https://marketplace.example/cancel",
		WebhookURL:  "https://marketplace.example/webhooks/aamarpay",
	}
}

func TestCreatePayment_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/request.php", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "store-1", body["store_id"])
		assert.Equal(t, "json", body["type"])
		// Unfilled customer fields get the documented defaults.
		assert.Equal(t, "Customer", body["cus_name"])
		assert.Equal(t, "Bangladesh", body["cus_country"])

		json.NewEncoder(w).Encode(map[string]string{
			"result":      "true",
			"payment_id":  "ap_123",
			"payment_url": "https://aamarpay.example/pay/ap_123",
		})
	}))
	defer server.Close()

	handler := New(testGateway(server.URL), zap.NewNop())

	resp, err := handler.CreatePayment(context.Background(), paymentRequest(), "txn-1")

	require.NoError(t, err)
	assert.Equal(t, "ap_123", resp.ExternalTransactionID)
	assert.Equal(t, "https://aamarpay.example/pay/ap_123", resp.PaymentURL)
	assert.Equal(t, model.TransactionStatusPending, resp.Status)
}

func TestCreatePayment_RejectionInsideOKResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// AamarPay reports failure with HTTP 200 and result != "true".
		json.NewEncoder(w).Encode(map[string]string{
			"result": "false",
			"reason": "store is suspended",
		})
	}))
	defer server.Close()

	handler := New(testGateway(server.URL), zap.NewNop())

	_, err := handler.CreatePayment(context.Background(), paymentRequest(), "txn-1")

	var gwErr *gateway.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "REJECTED", gwErr.Code)
	assert.Contains(t, gwErr.Error(), "store is suspended")
}

func TestVerifyWebhook(t *testing.T) {
	handler := New(testGateway("https://api.example"), zap.NewNop())

	payload := []byte(`{"store_id":"store-1","pay_status":"Successful","pay_time":"2025-01-15 10:30:00","mer_txnid":"txn-1","amount":"500.50","currency":"BDT"}`)
	sum := md5.Sum([]byte("store-1" + "Successful" + "2025-01-15 10:30:00" + "txn-1" + "500.50" + "BDT" + "sigkey-1"))
	signature := hex.EncodeToString(sum[:])

	assert.True(t, handler.VerifyWebhook(payload, signature))
	assert.False(t, handler.VerifyWebhook(payload, "tampered"))
}

func TestMapStatus(t *testing.T) {
	handler := New(testGateway("https://api.example"), zap.NewNop())

	assert.Equal(t, model.TransactionStatusCompleted, handler.MapStatus("Successful"))
	assert.Equal(t, model.TransactionStatusCompleted, handler.MapStatus("success"))
	assert.Equal(t, model.TransactionStatusProcessing, handler.MapStatus("processing"))
	assert.Equal(t, model.TransactionStatusFailed, handler.MapStatus("cancelled"))
	assert.Equal(t, model.TransactionStatusPending, handler.MapStatus("anything_else"))
}
