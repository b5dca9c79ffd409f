package coingate

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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
		Type:      model.GatewayTypeCrypto,
		IsEnabled: true,
		Credentials: model.JSONB{
			"api_key":    "key-1",
			"api_secret": "secret-1",
			"api_url":    apiURL,
		},
	}
}

func paymentRequest() *gateway.PaymentRequest {
	return &gateway.PaymentRequest{
		GatewayName: GatewayName,
		Amount:      decimal.NewFromInt(50),
		Currency:    "USD",
		UserID:      "user-1",
		Description: "Video editing gig",
		WebhookURL:  "https://marketplace.example/webhooks/coingate",
	}
}

func TestCreatePayment_BuildsBitcoinQRData(t *testing.T) {
	expireAt := time.Now().Add(30 * time.Minute).UTC().Format(time.RFC3339)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/orders", r.URL.Path)
		assert.Equal(t, "Token key-1", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "BTC", body["receive_currency"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":              12345,
			"status":          "new",
			"payment_url":     "https://coingate.example/invoice/12345",
			"payment_address": "bc1qtestaddress",
			"pay_amount":      0.0015,
			"expire_at":       expireAt,
		})
	}))
	defer server.Close()

	handler := New(testGateway(server.URL), zap.NewNop())

	resp, err := handler.CreatePayment(context.Background(), paymentRequest(), "txn-1")

	require.NoError(t, err)
	assert.Equal(t, "12345", resp.ExternalTransactionID)
	assert.Equal(t, model.TransactionStatusPending, resp.Status)
	assert.Equal(t, "bitcoin:bc1qtestaddress?amount=0.0015&label=Video+editing+gig", resp.QRCodeData)

	require.NotNil(t, resp.ExpiresAt)
	parsed, _ := time.Parse(time.RFC3339, expireAt)
	assert.WithinDuration(t, parsed, *resp.ExpiresAt, time.Second)
}

func TestCreatePayment_UnauthorizedSurfacesAsGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid token"})
	}))
	defer server.Close()

	handler := New(testGateway(server.URL), zap.NewNop())

	_, err := handler.CreatePayment(context.Background(), paymentRequest(), "txn-1")

	var gwErr *gateway.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "HTTP_401", gwErr.Code)
}

func TestVerifyWebhook(t *testing.T) {
	handler := New(testGateway("https://api.example"), zap.NewNop())

	payload := []byte(`{"order_id":"txn-1","status":"paid"}`)
	mac := hmac.New(sha256.New, []byte("secret-1"))
	mac.Write(payload)
	signature := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, handler.VerifyWebhook(payload, signature))
	assert.False(t, handler.VerifyWebhook(payload, "tampered"))
	assert.False(t, handler.VerifyWebhook([]byte(`{"order_id":"txn-2","status":"paid"}`), signature))
}

func TestMapStatus(t *testing.T) {
	handler := New(testGateway("https://api.example"), zap.NewNop())

	assert.Equal(t, model.TransactionStatusPending, handler.MapStatus("new"))
	assert.Equal(t, model.TransactionStatusProcessing, handler.MapStatus("confirming"))
	assert.Equal(t, model.TransactionStatusCompleted, handler.MapStatus("paid"))
	assert.Equal(t, model.TransactionStatusFailed, handler.MapStatus("expired"))
	assert.Equal(t, model.TransactionStatusFailed, handler.MapStatus("refunded"))
	assert.Equal(t, model.TransactionStatusPending, handler.MapStatus("some_future_status"))
}
