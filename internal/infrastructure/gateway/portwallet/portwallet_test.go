package portwallet

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
			"merchant_id": "merchant-1",
			"secret_key":  "secret-1",
			"api_url":     apiURL,
		},
	}
}

func paymentRequest() *gateway.PaymentRequest {
	return &gateway.PaymentRequest{
		GatewayName: GatewayName,
		Amount:      decimal.NewFromInt(100),
		Currency:    "USD",
		UserID:      "user-1",
		Description: "Logo design milestone",
		ReturnURL:   "https://marketplace.example/return",
		WebhookURL:  "https://marketplace.example/webhooks/portwallet",
	}
}

func TestCreatePayment_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment/create", r.URL.Path)
		assert.Equal(t, "Bearer secret-1", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "merchant-1", body["merchant_id"])
		assert.NotEmpty(t, body["signature"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"payment_id":  "pw_abc",
			"payment_url": "https://portwallet.example/pay/pw_abc",
			"status":      "initiated",
		})
	}))
	defer server.Close()

	handler := New(testGateway(server.URL), zap.NewNop())

	resp, err := handler.CreatePayment(context.Background(), paymentRequest(), "txn-1")

	require.NoError(t, err)
	assert.Equal(t, "pw_abc", resp.ExternalTransactionID)
	assert.Equal(t, "https://portwallet.example/pay/pw_abc", resp.PaymentURL)
	assert.Equal(t, model.TransactionStatusPending, resp.Status)
	require.NotNil(t, resp.ExpiresAt)
}

func TestCreatePayment_APIErrorSurfacesAsGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid merchant"})
	}))
	defer server.Close()

	handler := New(testGateway(server.URL), zap.NewNop())

	_, err := handler.CreatePayment(context.Background(), paymentRequest(), "txn-1")

	var gwErr *gateway.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, GatewayName, gwErr.Gateway)
	assert.Equal(t, "HTTP_400", gwErr.Code)
	assert.Contains(t, gwErr.Error(), "invalid merchant")
}

func TestVerifyWebhook(t *testing.T) {
	handler := New(testGateway("https://api.example"), zap.NewNop())

	payload := []byte(`{"merchant_id":"merchant-1","order_id":"txn-1","amount":100.5,"status":"success"}`)
	sum := md5.Sum([]byte("merchant-1" + "txn-1" + "100.5" + "success" + "secret-1"))
	signature := hex.EncodeToString(sum[:])

	assert.True(t, handler.VerifyWebhook(payload, signature))
	assert.False(t, handler.VerifyWebhook(payload, "tampered"))

	// A modified payload invalidates the original signature.
	altered := []byte(`{"merchant_id":"merchant-1","order_id":"txn-1","amount":999.5,"status":"success"}`)
	assert.False(t, handler.VerifyWebhook(altered, signature))
}

func TestMapStatus(t *testing.T) {
	handler := New(testGateway("https://api.example"), zap.NewNop())

	tests := []struct {
		provider string
		expected model.TransactionStatus
	}{
		{"pending", model.TransactionStatusPending},
		{"initiated", model.TransactionStatusPending},
		{"processing", model.TransactionStatusProcessing},
		{"success", model.TransactionStatusCompleted},
		{"COMPLETED", model.TransactionStatusCompleted},
		{"failed", model.TransactionStatusFailed},
		{"cancelled", model.TransactionStatusFailed},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, handler.MapStatus(tt.provider), tt.provider)
	}

	// Unknown statuses never map to a terminal state.
	assert.Equal(t, model.TransactionStatusPending, handler.MapStatus("weird_new_status"))
}
