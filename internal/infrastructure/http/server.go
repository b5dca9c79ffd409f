package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/khaledkhbro/marketplace-payments/internal/adapter/handler/http"
	"github.com/khaledkhbro/marketplace-payments/internal/config"
	"github.com/khaledkhbro/marketplace-payments/internal/middleware/auth"
	"github.com/khaledkhbro/marketplace-payments/internal/usecase"
	pkgerrors "github.com/khaledkhbro/marketplace-payments/pkg/errors"
)

type Server struct {
	config          *config.Config
	logger          *zap.Logger
	echo            *echo.Echo
	paymentService  *usecase.PaymentService
	currencyService *usecase.CurrencyService
}

// requestValidator adapts go-playground/validator to echo's Validator interface.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func NewServer(cfg *config.Config, logger *zap.Logger, paymentService *usecase.PaymentService, currencyService *usecase.CurrencyService) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &requestValidator{validate: validator.New()}

	// Handlers answer with explicit JSON bodies; this catches everything that
	// escapes them, including coded application errors from lower layers.
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		httpErr := pkgerrors.ToHTTPError(err)
		if httpErr.Code >= http.StatusInternalServerError {
			pkgerrors.LogError(logger, err, "Unhandled request error",
				zap.String("path", c.Request().URL.Path))
		}
		if !c.Response().Committed {
			_ = c.JSON(httpErr.Code, echo.Map{"error": fmt.Sprint(httpErr.Message)})
		}
	}

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.ClientURL},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
	}))

	if cfg.Server.HTTP.ReadTimeout > 0 {
		e.Server.ReadTimeout = cfg.Server.HTTP.ReadTimeout
	}
	if cfg.Server.HTTP.WriteTimeout > 0 {
		e.Server.WriteTimeout = cfg.Server.HTTP.WriteTimeout
	}

	return &Server{
		config:          cfg,
		logger:          logger,
		echo:            e,
		paymentService:  paymentService,
		currencyService: currencyService,
	}
}

func (s *Server) Start() error {
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "payment",
		})
	})

	// Initialize handlers
	gatewayHandler := handlers.NewGatewayHandler(s.paymentService, s.logger)
	paymentHandler := handlers.NewPaymentHandler(s.paymentService, s.logger)
	currencyHandler := handlers.NewCurrencyHandler(s.currencyService, s.logger)
	webhookHandler := handlers.NewWebhookHandler(s.paymentService, s.logger)

	// JWT middleware configuration
	jwtConfig := auth.JWTConfig{
		Secret: s.config.JWT.Secret,
		Logger: s.logger,
		SkipPaths: []string{
			"/health",
			"/webhooks",
			"/api/v1/gateways",
		},
	}

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Public routes (no authentication required)
	// Gateway discovery - public for checkout pages
	v1.GET("/gateways", gatewayHandler.GetGateways)

	// Protected routes (require JWT authentication)
	protected := v1.Group("", auth.JWTMiddleware(jwtConfig))

	protected.POST("/payments", paymentHandler.CreatePayment)
	protected.GET("/payments/:id", paymentHandler.GetPayment)
	protected.GET("/payments", paymentHandler.GetUserPayments)

	protected.GET("/currency/convert", currencyHandler.Convert)

	// Webhook routes (outside API versioning, authenticated by signature)
	s.echo.POST("/webhooks/:gateway", webhookHandler.HandleWebhook)
}
