package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Publisher announces payment lifecycle events to the rest of the marketplace.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Close() error
}

// Channels the payment service publishes on.
const (
	ChannelPaymentCompleted = "payment.completed"
	ChannelPaymentFailed    = "payment.failed"
)

// PaymentEvent is the message body published on settlement.
type PaymentEvent struct {
	TransactionID string    `json:"transaction_id"`
	GatewayName   string    `json:"gateway_name"`
	UserID        string    `json:"user_id"`
	SellerID      string    `json:"seller_id,omitempty"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type redisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPublisher connects to redis and returns a publisher.
func NewRedisPublisher(addr, password string, db int, logger *zap.Logger) (Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisPublisher{
		client: client,
		logger: logger,
	}, nil
}

func (p *redisPublisher) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		p.logger.Error("Failed to publish message",
			zap.String("channel", channel),
			zap.Error(err))
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return nil
}

func (p *redisPublisher) Close() error {
	return p.client.Close()
}

// NopPublisher discards events. Used when redis is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, channel string, message interface{}) error {
	return nil
}

func (NopPublisher) Close() error {
	return nil
}
