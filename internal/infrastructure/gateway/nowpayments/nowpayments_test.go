package nowpayments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
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
		Type:      model.GatewayTypeCrypto,
		IsEnabled: true,
		Credentials: model.JSONB{
			"api_key":    "key-1",
			"ipn_secret": "ipn-secret-1",
			"api_url":    apiURL,
		},
	}
}

func paymentRequest() *gateway.PaymentRequest {
	return &gateway.PaymentRequest{
		GatewayName: GatewayName,
		Amount:      decimal.NewFromInt(25),
		Currency:    "USD",
		UserID:      "user-1",
		Description: "SEO audit order",
		WebhookURL:  "https://marketplace.example/webhooks/nowpayments",
	}
}

func providerStub(t *testing.T, currencies []string, payCurrencyWant string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.Header.Get("x-api-key"))

		switch r.URL.Path {
		case "/v1/currencies":
			json.NewEncoder(w).Encode(map[string]interface{}{"currencies": currencies})
		case "/v1/payment":
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, payCurrencyWant, body["pay_currency"])
			assert.Equal(t, "usd", body["price_currency"])

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"payment_id":     987654,
				"payment_status": "waiting",
				"pay_address":    "npaddress123",
				"pay_amount":     0.00042,
				"pay_currency":   payCurrencyWant,
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
}

func TestCreatePayment_PrefersBitcoin(t *testing.T) {
	server := providerStub(t, []string{"eth", "btc", "ltc"}, "btc")
	defer server.Close()

	handler := New(testGateway(server.URL), zap.NewNop())

	resp, err := handler.CreatePayment(context.Background(), paymentRequest(), "txn-1")

	require.NoError(t, err)
	assert.Equal(t, "987654", resp.ExternalTransactionID)
	assert.Equal(t, "https://nowpayments.io/payment/?iid=987654", resp.PaymentURL)
	assert.Equal(t, "btc:npaddress123?amount=0.00042&label=SEO+audit+order", resp.QRCodeData)
	assert.Equal(t, model.TransactionStatusPending, resp.Status)
	require.NotNil(t, resp.ExpiresAt)
}

func TestCreatePayment_FallsBackToFirstCurrency(t *testing.T) {
	server := providerStub(t, []string{"eth", "ltc"}, "eth")
	defer server.Close()

	handler := New(testGateway(server.URL), zap.NewNop())

	resp, err := handler.CreatePayment(context.Background(), paymentRequest(), "txn-1")

	require.NoError(t, err)
	assert.Contains(t, resp.QRCodeData, "eth:")
}

func TestCreatePayment_NoCurrenciesOffered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"currencies": []string{}})
	}))
	defer server.Close()

	handler := New(testGateway(server.URL), zap.NewNop())

	_, err := handler.CreatePayment(context.Background(), paymentRequest(), "txn-1")

	var gwErr *gateway.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "NO_CURRENCIES", gwErr.Code)
}

func TestVerifyWebhook(t *testing.T) {
	handler := New(testGateway("https://api.example"), zap.NewNop())

	payload := []byte(`{"order_id":"txn-1","payment_status":"finished"}`)
	mac := hmac.New(sha512.New, []byte("ipn-secret-1"))
	mac.Write(payload)
	signature := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, handler.VerifyWebhook(payload, signature))
	assert.False(t, handler.VerifyWebhook(payload, "tampered"))
}

func TestMapStatus(t *testing.T) {
	handler := New(testGateway("https://api.example"), zap.NewNop())

	assert.Equal(t, model.TransactionStatusPending, handler.MapStatus("waiting"))
	assert.Equal(t, model.TransactionStatusProcessing, handler.MapStatus("confirming"))
	assert.Equal(t, model.TransactionStatusProcessing, handler.MapStatus("sending"))
	assert.Equal(t, model.TransactionStatusCompleted, handler.MapStatus("finished"))
	assert.Equal(t, model.TransactionStatusFailed, handler.MapStatus("expired"))
	assert.Equal(t, model.TransactionStatusPending, handler.MapStatus("partially_paid"))
}
