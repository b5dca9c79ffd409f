package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainerrors "github.com/khaledkhbro/marketplace-payments/internal/domain/errors"
	"github.com/khaledkhbro/marketplace-payments/internal/usecase"
)

type CurrencyHandler struct {
	service *usecase.CurrencyService
	logger  *zap.Logger
}

func NewCurrencyHandler(service *usecase.CurrencyService, logger *zap.Logger) *CurrencyHandler {
	return &CurrencyHandler{
		service: service,
		logger:  logger,
	}
}

// Convert translates an amount between two stored currencies.
// GET /api/v1/currency/convert?from=USD&to=BDT&amount=10.50
func (h *CurrencyHandler) Convert(c echo.Context) error {
	from := strings.ToUpper(c.QueryParam("from"))
	to := strings.ToUpper(c.QueryParam("to"))
	amountStr := c.QueryParam("amount")

	if from == "" || to == "" || amountStr == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "from, to and amount query parameters are required",
		})
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid amount",
		})
	}

	converted, err := h.service.Convert(c.Request().Context(), amount, from, to)
	if err != nil {
		if errors.Is(err, domainerrors.ErrUnsupportedCurrency) {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{
				"error": "Unsupported currency",
				"code":  "UNSUPPORTED_CURRENCY",
			})
		}
		h.logger.Error("Currency conversion failed",
			zap.String("from", from),
			zap.String("to", to),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Conversion failed",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"from":      from,
		"to":        to,
		"amount":    amount,
		"converted": converted,
	})
}
