package http

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
)

// GatewayLister resolves the gateways available to a buyer. Implemented by
// usecase.PaymentService.
type GatewayLister interface {
	GetAvailableGateways(ctx context.Context, countryCode, currency string) []*model.PaymentGateway
}

type GatewayHandler struct {
	service GatewayLister
	logger  *zap.Logger
}

func NewGatewayHandler(service GatewayLister, logger *zap.Logger) *GatewayHandler {
	return &GatewayHandler{
		service: service,
		logger:  logger,
	}
}

// GetGateways lists the enabled gateways matching the optional country and
// currency query filters. Credentials never leave the model's json mapping.
// When an amount is supplied the per-gateway fee is computed for it, so the
// checkout page can show the total before the user commits.
func (h *GatewayHandler) GetGateways(c echo.Context) error {
	country := c.QueryParam("country")
	currency := c.QueryParam("currency")

	gateways := h.service.GetAvailableGateways(c.Request().Context(), country, currency)

	if rawAmount := c.QueryParam("amount"); rawAmount != "" {
		amount, err := decimal.NewFromString(rawAmount)
		if err != nil || !amount.IsPositive() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be a positive decimal"})
		}

		quotes := make([]gatewayQuote, 0, len(gateways))
		for _, gw := range gateways {
			quotes = append(quotes, gatewayQuote{
				PaymentGateway: gw,
				Fee:            gw.Fee(amount),
				Total:          amount.Add(gw.Fee(amount)),
			})
		}
		return c.JSON(http.StatusOK, echo.Map{
			"gateways": quotes,
			"count":    len(quotes),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"gateways": gateways,
		"count":    len(gateways),
	})
}

// gatewayQuote decorates a gateway row with the fee for a concrete amount.
type gatewayQuote struct {
	*model.PaymentGateway
	Fee   decimal.Decimal `json:"fee"`
	Total decimal.Decimal `json:"total"`
}
