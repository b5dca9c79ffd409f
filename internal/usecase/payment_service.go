package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainerrors "github.com/khaledkhbro/marketplace-payments/internal/domain/errors"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/gateway"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/model"
	"github.com/khaledkhbro/marketplace-payments/internal/domain/repository"
	"github.com/khaledkhbro/marketplace-payments/internal/infrastructure/messaging"
)

// HandlerResolver resolves a gateway configuration to its provider handler.
type HandlerResolver interface {
	Handler(gw *model.PaymentGateway) (gateway.Handler, error)
}

// PaymentService orchestrates gateway selection, amount validation, escrow
// transaction creation, delegation to the provider handler and webhook-driven
// settlement.
type PaymentService struct {
	gatewayRepo     repository.GatewayRepository
	transactionRepo repository.TransactionRepository
	webhookRepo     repository.WebhookEventRepository
	resolver        HandlerResolver
	publisher       messaging.Publisher
	logger          *zap.Logger

	// escrowAutoRelease is how long held funds wait before an external
	// sweeper may release them without a completion webhook.
	escrowAutoRelease time.Duration
}

// NewPaymentService wires the payment service with its collaborators.
// publisher may be nil; settlement events are then dropped.
func NewPaymentService(
	gatewayRepo repository.GatewayRepository,
	transactionRepo repository.TransactionRepository,
	webhookRepo repository.WebhookEventRepository,
	resolver HandlerResolver,
	publisher messaging.Publisher,
	logger *zap.Logger,
	escrowAutoReleaseDays int,
) *PaymentService {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	if escrowAutoReleaseDays < 1 {
		escrowAutoReleaseDays = 7
	}
	return &PaymentService{
		gatewayRepo:       gatewayRepo,
		transactionRepo:   transactionRepo,
		webhookRepo:       webhookRepo,
		resolver:          resolver,
		publisher:         publisher,
		logger:            logger,
		escrowAutoRelease: time.Duration(escrowAutoReleaseDays) * 24 * time.Hour,
	}
}

// GetAvailableGateways returns the enabled gateways serving the given country
// and currency. Empty filter values and empty supported sets match everything.
// Store errors degrade to an empty list: callers see "no gateways available"
// instead of an error page.
func (s *PaymentService) GetAvailableGateways(ctx context.Context, countryCode, currency string) []*model.PaymentGateway {
	gateways, err := s.gatewayRepo.ListEnabled(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch payment gateways", zap.Error(err))
		return []*model.PaymentGateway{}
	}

	filtered := make([]*model.PaymentGateway, 0, len(gateways))
	for _, gw := range gateways {
		if gw.SupportsCountry(countryCode) && gw.SupportsCurrency(currency) {
			filtered = append(filtered, gw)
		}
	}

	s.logger.Info("Available payment gateways resolved",
		zap.Int("count", len(filtered)),
		zap.String("country", countryCode),
		zap.String("currency", currency))

	return filtered
}

// CreatePayment validates the request, opens the escrow transaction and
// delegates to the provider handler.
//
// The transaction row is created in pending state before the provider is
// contacted, so a local audit record exists even when the external call
// fails. In that case the row stays pending without external references and
// the error wraps the provider's message together with the transaction id.
func (s *PaymentService) CreatePayment(ctx context.Context, req *gateway.PaymentRequest) (*gateway.PaymentResponse, error) {
	gw, err := s.gatewayRepo.GetByName(ctx, req.GatewayName)
	if err != nil {
		return nil, err
	}
	if !gw.IsEnabled {
		return nil, domainerrors.ErrGatewayDisabled
	}

	if req.Amount.LessThan(gw.MinAmount) || req.Amount.GreaterThan(gw.MaxAmount) {
		s.logger.Warn("Payment amount outside gateway limits",
			zap.String("gateway", gw.Name),
			zap.String("amount", req.Amount.String()),
			zap.String("min", gw.MinAmount.String()),
			zap.String("max", gw.MaxAmount.String()))
		return nil, domainerrors.ErrAmountOutOfRange
	}

	if !gw.SupportsCurrency(req.Currency) {
		return nil, domainerrors.ErrUnsupportedCurrency
	}

	handler, err := s.resolver.Handler(gw)
	if err != nil {
		return nil, err
	}

	transactionID := uuid.NewString()
	autoReleaseAt := time.Now().Add(s.escrowAutoRelease)

	tx := &model.Transaction{
		TransactionID: transactionID,
		UserID:        req.UserID,
		GatewayName:   gw.Name,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Description:   req.Description,
		Status:        model.TransactionStatusPending,
		EscrowStatus:  model.EscrowStatusHeld,
		AutoReleaseAt: &autoReleaseAt,
	}
	if req.SellerID != "" {
		tx.SellerID = &req.SellerID
	}
	if req.JobID != "" {
		tx.JobID = &req.JobID
	}

	if err := s.transactionRepo.CreateEscrow(ctx, tx); err != nil {
		return nil, err
	}

	resp, err := handler.CreatePayment(ctx, req, transactionID)
	if err != nil {
		// The pending row is kept: it is the retriable, inspectable trace of
		// this attempt.
		s.logger.Error("Provider payment creation failed",
			zap.String("gateway", gw.Name),
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		return nil, &domainerrors.PaymentCreationError{
			Gateway:       gw.Name,
			TransactionID: transactionID,
			Err:           err,
		}
	}

	details := &repository.ExternalDetails{
		ExternalTransactionID: resp.ExternalTransactionID,
		PaymentURL:            resp.PaymentURL,
		QRCodeData:            resp.QRCodeData,
		Status:                resp.Status,
		GatewayResponse:       model.JSONB(resp.GatewayResponse),
		ExpiresAt:             resp.ExpiresAt,
	}
	if err := s.transactionRepo.UpdateExternalDetails(ctx, transactionID, details); err != nil {
		s.logger.Error("Failed to persist external payment details",
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		return nil, err
	}

	resp.TransactionID = transactionID

	s.logger.Info("Payment created",
		zap.String("gateway", gw.Name),
		zap.String("transaction_id", transactionID),
		zap.String("status", string(resp.Status)))

	return resp, nil
}

// ProcessWebhook verifies and applies one inbound provider callback.
//
// The event is persisted before anything else. Failures are recorded on the
// event row and reported as false instead of errors: providers retry webhook
// delivery on non-2xx responses and the service controls redelivery itself.
func (s *PaymentService) ProcessWebhook(ctx context.Context, event *gateway.WebhookEvent) bool {
	gw, err := s.gatewayRepo.GetByName(ctx, event.GatewayName)
	if err != nil {
		s.logger.Error("Webhook for unknown gateway",
			zap.String("gateway", event.GatewayName),
			zap.Error(err))
		return false
	}

	record := &model.WebhookEvent{
		PaymentGatewayID: gw.ID,
		EventType:        event.EventType,
		EventID:          event.EventID,
		Payload:          model.JSONB(event.Payload),
		Headers:          stringMapToJSONB(event.Headers),
	}
	if event.TransactionID != "" {
		record.TransactionID = &event.TransactionID
	}

	duplicate, err := s.webhookRepo.Save(ctx, record)
	if err != nil {
		s.logger.Error("Failed to persist webhook event",
			zap.String("gateway", gw.Name),
			zap.String("event_id", event.EventID),
			zap.Error(err))
		return false
	}
	if duplicate {
		// Already delivered and handled; applying it again must not move
		// money twice.
		return true
	}

	handler, err := s.resolver.Handler(gw)
	if err != nil {
		s.markFailed(ctx, gw.ID, event.EventID, err)
		return false
	}

	if !handler.VerifyWebhook(event.RawPayload, event.Signature()) {
		s.logger.Warn("Webhook signature verification failed",
			zap.String("gateway", gw.Name),
			zap.String("event_id", event.EventID))
		s.markFailed(ctx, gw.ID, event.EventID, domainerrors.ErrInvalidWebhookSignature)
		return false
	}

	transactionID := event.TransactionID
	if transactionID == "" {
		if orderID, ok := event.Payload["order_id"].(string); ok {
			transactionID = orderID
		}
	}
	if transactionID == "" {
		s.markFailed(ctx, gw.ID, event.EventID, domainerrors.ErrTransactionNotFound)
		return false
	}

	switch classifyEvent(event, handler) {
	case model.TransactionStatusCompleted:
		if err := s.settle(ctx, gw, transactionID, model.TransactionStatusCompleted); err != nil {
			s.markFailed(ctx, gw.ID, event.EventID, err)
			return false
		}
	case model.TransactionStatusFailed:
		if err := s.settle(ctx, gw, transactionID, model.TransactionStatusFailed); err != nil {
			s.markFailed(ctx, gw.ID, event.EventID, err)
			return false
		}
	case model.TransactionStatusPending, model.TransactionStatusProcessing:
		// Intermediate notification; nothing to apply yet.
		s.logger.Info("Webhook acknowledged without state change",
			zap.String("gateway", gw.Name),
			zap.String("event_type", event.EventType))
	default:
		// Never guess on unrecognized event types: leave the transaction
		// untouched and keep the event inspectable.
		s.logger.Warn("Unrecognized webhook event type",
			zap.String("gateway", gw.Name),
			zap.String("event_type", event.EventType))
		s.markFailed(ctx, gw.ID, event.EventID, fmt.Errorf("unrecognized event type: %s", event.EventType))
		return false
	}

	if err := s.webhookRepo.MarkProcessed(ctx, gw.ID, event.EventID); err != nil {
		s.logger.Error("Failed to mark webhook event as processed",
			zap.String("event_id", event.EventID),
			zap.Error(err))
	}

	return true
}

// Substrings that classify an event name into the canonical lifecycle,
// checked in order. Failure markers run first so "refund_confirmed" style
// names never read as success.
var (
	failedMarkers     = []string{"failed", "cancel", "expired", "refund", "declined"}
	completedMarkers  = []string{"completed", "success", "paid", "confirmed", "finished", "approved"}
	inProgressMarkers = []string{"created", "pending", "new", "waiting", "confirming", "sending", "review", "initiated", "processing", "delayed"}
)

// classifyEvent maps a provider callback onto the canonical lifecycle.
//
// When the payload carries a status field the handler's own status table
// decides: substring matching over provider vocabulary like "partially_paid"
// would read as success. The markers only classify event names for providers
// that send no status field. An empty status is returned for names the
// service does not recognize.
func classifyEvent(event *gateway.WebhookEvent, handler gateway.Handler) model.TransactionStatus {
	for _, key := range []string{"status", "pay_status", "payment_status"} {
		if v, ok := event.Payload[key].(string); ok && v != "" {
			return handler.MapStatus(v)
		}
	}

	lowered := strings.ToLower(event.EventType)
	for _, marker := range failedMarkers {
		if strings.Contains(lowered, marker) {
			return model.TransactionStatusFailed
		}
	}
	for _, marker := range completedMarkers {
		if strings.Contains(lowered, marker) {
			return model.TransactionStatusCompleted
		}
	}
	for _, marker := range inProgressMarkers {
		if strings.Contains(lowered, marker) {
			return model.TransactionStatusPending
		}
	}

	return ""
}

// settle applies a terminal transition and, on completion, releases escrow
// and publishes the settlement event. The returned error is the cause the
// event row is marked failed with.
func (s *PaymentService) settle(ctx context.Context, gw *model.PaymentGateway, transactionID string, to model.TransactionStatus) error {
	applied, err := s.transactionRepo.TransitionStatus(ctx, transactionID, to)
	if err != nil {
		s.logger.Error("Failed to transition transaction",
			zap.String("transaction_id", transactionID),
			zap.String("to", string(to)),
			zap.Error(err))
		return err
	}
	if !applied {
		// Already in a terminal state; the conditional update is what makes
		// replays safe. Confirm the row exists so missing transactions are
		// still rejected.
		if _, err := s.transactionRepo.GetByTransactionID(ctx, transactionID); err != nil {
			return err
		}
		return nil
	}

	if to == model.TransactionStatusCompleted {
		if _, err := s.transactionRepo.ReleaseEscrow(ctx, transactionID, "payment_completed"); err != nil {
			s.logger.Error("Failed to release escrow funds",
				zap.String("transaction_id", transactionID),
				zap.Error(err))
		}
	}

	s.publishSettlement(ctx, gw, transactionID, to)
	return nil
}

func (s *PaymentService) publishSettlement(ctx context.Context, gw *model.PaymentGateway, transactionID string, status model.TransactionStatus) {
	tx, err := s.transactionRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return
	}

	channel := messaging.ChannelPaymentFailed
	if status == model.TransactionStatusCompleted {
		channel = messaging.ChannelPaymentCompleted
	}

	event := messaging.PaymentEvent{
		TransactionID: transactionID,
		GatewayName:   gw.Name,
		UserID:        tx.UserID,
		Amount:        tx.Amount.String(),
		Currency:      tx.Currency,
		Status:        string(status),
		OccurredAt:    time.Now(),
	}
	if tx.SellerID != nil {
		event.SellerID = *tx.SellerID
	}

	if err := s.publisher.Publish(ctx, channel, event); err != nil {
		s.logger.Warn("Failed to publish settlement event",
			zap.String("transaction_id", transactionID),
			zap.String("channel", channel),
			zap.Error(err))
	}
}

func (s *PaymentService) markFailed(ctx context.Context, gatewayID int64, eventID string, cause error) {
	if err := s.webhookRepo.MarkFailed(ctx, gatewayID, eventID, cause); err != nil {
		s.logger.Error("Failed to mark webhook event as failed",
			zap.String("event_id", eventID),
			zap.Error(err))
	}
}

// GetTransaction returns one transaction by its identifier.
func (s *PaymentService) GetTransaction(ctx context.Context, transactionID string) (*model.Transaction, error) {
	return s.transactionRepo.GetByTransactionID(ctx, transactionID)
}

// ListUserTransactions returns the user's most recent transactions.
func (s *PaymentService) ListUserTransactions(ctx context.Context, userID string, limit int) ([]*model.Transaction, error) {
	return s.transactionRepo.ListByUser(ctx, userID, limit)
}

func stringMapToJSONB(m map[string]string) model.JSONB {
	if m == nil {
		return nil
	}
	out := make(model.JSONB, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
