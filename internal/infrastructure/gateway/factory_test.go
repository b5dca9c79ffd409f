package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainerrors "github.com/khaledkhbro/marketplace-payments/internal/domain/errors"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
)

func TestFactory_ResolvesAllRegisteredProviders(t *testing.T) {
	factory := NewFactory(zap.NewNop())

	for _, name := range []string{"portwallet", "aamarpay", "coingate", "nowpayments", "2checkout", "coinbase_commerce"} {
		t.Run(name, func(t *testing.T) {
			gw := &model.PaymentGateway{
				Name:        name,
				Credentials: model.JSONB{},
			}

			handler, err := factory.Handler(gw)

			require.NoError(t, err)
			assert.Equal(t, name, handler.Name())
		})
	}
}

func TestFactory_UnknownProviderFails(t *testing.T) {
	factory := NewFactory(zap.NewNop())

	gw := &model.PaymentGateway{Name: "paypal"}

	handler, err := factory.Handler(gw)

	assert.Nil(t, handler)
	assert.ErrorIs(t, err, domainerrors.ErrUnsupportedGateway)
}

func TestFactory_SupportedListsEveryProvider(t *testing.T) {
	factory := NewFactory(zap.NewNop())

	supported := factory.Supported()

	assert.Len(t, supported, 6)
	assert.ElementsMatch(t, []string{"portwallet", "aamarpay", "coingate", "nowpayments", "2checkout", "coinbase_commerce"}, supported)
}
