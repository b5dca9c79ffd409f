package model

import (
	"time"
)

// WebhookEvent is the durable record of one inbound provider callback.
//
// Every event is persisted before any processing runs, so failures are
// diagnosable and re-drivable. The unique (payment_gateway_id, event_id) index
// is what turns at-least-once provider delivery into an exactly-once effect.
type WebhookEvent struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentGatewayID   int64      `gorm:"not null;index;uniqueIndex:idx_webhook_gateway_event" json:"payment_gateway_id"`
	EventType          string     `gorm:"not null;size:100;index" json:"event_type"`
	EventID            string     `gorm:"not null;size:255;uniqueIndex:idx_webhook_gateway_event" json:"event_id"`
	TransactionID      *string    `gorm:"size:64;index" json:"transaction_id,omitempty"`
	Payload            JSONB      `gorm:"type:jsonb;not null" json:"payload"`
	Headers            JSONB      `gorm:"type:jsonb" json:"headers"`
	Processed          bool       `gorm:"default:false;index" json:"processed"`
	ProcessedAt        *time.Time `json:"processed_at,omitempty"`
	ErrorMessage       *string    `json:"error_message,omitempty"`
	ProcessingAttempts int        `gorm:"default:0" json:"processing_attempts"`
	CreatedAt          time.Time  `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
