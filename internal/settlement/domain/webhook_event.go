package domain

import (
	"context"
	"time"
)

// WebhookEvent stores gateway webhook deliveries with deduplication metadata
// for idempotent processing. The gateway's own event id is the natural
// idempotency key: redelivered events collide on the unique index and are
// acknowledged without reprocessing.
type WebhookEvent struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	Gateway         string     `json:"gateway" gorm:"not null;index:ux_webhook_events_gateway_event,unique,priority:1"`
	GatewayEventID  string     `json:"gateway_event_id" gorm:"not null;index:ux_webhook_events_gateway_event,unique,priority:2"`
	EventType       string     `json:"event_type" gorm:"not null;index"`
	Payload         string     `json:"payload" gorm:"type:text;not null"`
	Processed       bool       `json:"processed" gorm:"default:false;index"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	ProcessingError string     `json:"processing_error,omitempty" gorm:"type:text"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName specifies the table name
func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// WebhookEventRepository defines the contract for webhook event persistence.
// Insert reports false when the (gateway, event id) pair already exists.
type WebhookEventRepository interface {
	Insert(ctx context.Context, event *WebhookEvent) (bool, error)
	FindByEventID(ctx context.Context, gateway, eventID string) (*WebhookEvent, error)
	MarkProcessed(ctx context.Context, id uint, processingErr string) error
}
