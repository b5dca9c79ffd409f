package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainerrors "github.com/khaledkhbro/marketplace-payments/internal/domain/errors"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/gateway"
	"github.com/khaledkhbro/marketplace-payments/internal/middleware/auth"
	"github.com/khaledkhbro/marketplace-payments/internal/usecase"
)

type PaymentHandler struct {
	service *usecase.PaymentService
	logger  *zap.Logger
}

func NewPaymentHandler(service *usecase.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger,
	}
}

// CreatePayment opens an escrow transaction on the requested gateway.
func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err // RequireAuth already returns the JSON error response
	}

	var req gateway.PaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "Invalid request body",
		})
	}

	// The payer identity comes from the token, never the body.
	req.UserID = user.UserID

	if err := c.Validate(&req); err != nil {
		h.logger.Warn("Payment request failed validation",
			zap.String("user_id", user.UserID),
			zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": err.Error(),
		})
	}

	resp, err := h.service.CreatePayment(c.Request().Context(), &req)
	if err != nil {
		return h.mapPaymentError(c, &req, err)
	}

	return c.JSON(http.StatusCreated, resp)
}

// GetPayment returns one transaction. Users can only read their own.
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	id := c.Param("id")

	tx, err := h.service.GetTransaction(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "Transaction not found",
		})
	}

	if tx.UserID != user.UserID {
		// Hide existence from other users.
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "Transaction not found",
		})
	}

	return c.JSON(http.StatusOK, tx)
}

// GetUserPayments lists the authenticated user's recent transactions.
func (h *PaymentHandler) GetUserPayments(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	limit := 20
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": "Invalid limit parameter",
			})
		}
		limit = parsed
	}

	transactions, err := h.service.ListUserTransactions(c.Request().Context(), user.UserID, limit)
	if err != nil {
		h.logger.Error("Failed to list user transactions",
			zap.String("user_id", user.UserID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to get transactions",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

func (h *PaymentHandler) mapPaymentError(c echo.Context, req *gateway.PaymentRequest, err error) error {
	var creationErr *domainerrors.PaymentCreationError
	switch {
	case errors.Is(err, domainerrors.ErrGatewayNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{
			"error": "Payment gateway not found",
			"code":  "GATEWAY_NOT_FOUND",
		})
	case errors.Is(err, domainerrors.ErrGatewayDisabled):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": "Payment gateway is disabled",
			"code":  "GATEWAY_DISABLED",
		})
	case errors.Is(err, domainerrors.ErrUnsupportedGateway):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": "Payment gateway is not supported",
			"code":  "GATEWAY_UNSUPPORTED",
		})
	case errors.Is(err, domainerrors.ErrAmountOutOfRange):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": "Amount outside gateway limits",
			"code":  "AMOUNT_OUT_OF_RANGE",
		})
	case errors.Is(err, domainerrors.ErrUnsupportedCurrency):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": "Currency not supported by this gateway",
			"code":  "UNSUPPORTED_CURRENCY",
		})
	case errors.As(err, &creationErr):
		h.logger.Error("Payment creation failed at provider",
			zap.String("gateway", creationErr.Gateway),
			zap.String("transaction_id", creationErr.TransactionID),
			zap.Error(creationErr.Err))
		return c.JSON(http.StatusBadGateway, echo.Map{
			"error":          "Payment provider rejected the request",
			"code":           "PROVIDER_ERROR",
			"transaction_id": creationErr.TransactionID,
		})
	default:
		h.logger.Error("Payment creation failed",
			zap.String("gateway", req.GatewayName),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to create payment",
		})
	}
}
