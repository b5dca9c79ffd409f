package gateway

import (
	"go.uber.org/zap"

	domainerrors "github.com/khaledkhbro/marketplace-payments/internal/domain/errors"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/gateway"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
	"github.com/khaledkhbro/marketplace-payments/internal/infrastructure/gateway/aamarpay"
	"github.com/khaledkhbro/marketplace-payments/internal/infrastructure/gateway/coinbase"
	"github.com/khaledkhbro/marketplace-payments/internal/infrastructure/gateway/coingate"
	"github.com/khaledkhbro/marketplace-payments/internal/infrastructure/gateway/nowpayments"
	"github.com/khaledkhbro/marketplace-payments/internal/infrastructure/gateway/portwallet"
	"github.com/khaledkhbro/marketplace-payments/internal/infrastructure/gateway/twocheckout"
)

// Builder constructs a handler for one provider from its configuration row.
type Builder func(gw *model.PaymentGateway, logger *zap.Logger) gateway.Handler

// Factory resolves gateway names to handler instances. The registry is
// populated at construction and read-only afterwards, so it is safe for
// concurrent use.
type Factory struct {
	builders map[string]Builder
	logger   *zap.Logger
}

// NewFactory creates a factory with every implemented provider registered.
// Providers without a real integration are deliberately absent: resolving them
// fails instead of returning synthetic responses.
func NewFactory(logger *zap.Logger) *Factory {
	f := &Factory{
		builders: make(map[string]Builder),
		logger:   logger,
	}

	f.Register(portwallet.GatewayName, func(gw *model.PaymentGateway, logger *zap.Logger) gateway.Handler {
		return portwallet.New(gw, logger)
	})
	f.Register(aamarpay.GatewayName, func(gw *model.PaymentGateway, logger *zap.Logger) gateway.Handler {
		return aamarpay.New(gw, logger)
	})
	f.Register(coingate.GatewayName, func(gw *model.PaymentGateway, logger *zap.Logger) gateway.Handler {
		return coingate.New(gw, logger)
	})
	f.Register(nowpayments.GatewayName, func(gw *model.PaymentGateway, logger *zap.Logger) gateway.Handler {
		return nowpayments.New(gw, logger)
	})
	f.Register(twocheckout.GatewayName, func(gw *model.PaymentGateway, logger *zap.Logger) gateway.Handler {
		return twocheckout.New(gw, logger)
	})
	f.Register(coinbase.GatewayName, func(gw *model.PaymentGateway, logger *zap.Logger) gateway.Handler {
		return coinbase.New(gw, logger)
	})

	return f
}

// Register adds a builder under a gateway name. Intended for construction time
// and tests; the factory is not synchronized for registration after that.
func (f *Factory) Register(name string, builder Builder) {
	f.builders[name] = builder
}

// Handler builds the handler for the gateway's configured provider, or fails
// with ErrUnsupportedGateway when no implementation is registered.
func (f *Factory) Handler(gw *model.PaymentGateway) (gateway.Handler, error) {
	builder, ok := f.builders[gw.Name]
	if !ok {
		f.logger.Warn("No handler registered for gateway",
			zap.String("gateway", gw.Name))
		return nil, domainerrors.ErrUnsupportedGateway
	}
	return builder(gw, f.logger), nil
}

// Supported returns the registered gateway names.
func (f *Factory) Supported() []string {
	names := make([]string, 0, len(f.builders))
	for name := range f.builders {
		names = append(names, name)
	}
	return names
}
