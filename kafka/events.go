package kafka

import "time"

// PaymentCapturedEvent is emitted after funds are captured for an order
type PaymentCapturedEvent struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	PaymentID      uint      `json:"payment_id"`
	OrderID        uint      `json:"order_id"`
	TenantID       uint      `json:"tenant_id"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	Gateway        string    `json:"gateway"`
	TransactionRef string    `json:"transaction_ref"`
	NetAmount      int64     `json:"net_amount"`
	TotalFees      int64     `json:"total_fees"`
	Timestamp      time.Time `json:"timestamp"`
}

// PaymentRefundedEvent is emitted after a refund completes
type PaymentRefundedEvent struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	PaymentID     uint      `json:"payment_id"`
	RefundID      uint      `json:"refund_id"`
	OrderID       uint      `json:"order_id"`
	TenantID      uint      `json:"tenant_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	IsPartial     bool      `json:"is_partial"`
	PaymentStatus string    `json:"payment_status"`
	Timestamp     time.Time `json:"timestamp"`
}

// WebhookReceivedEvent defers gateway webhook processing to the consumer.
// The persisted webhook_events row stays the durable record; this message
// only schedules the apply.
type WebhookReceivedEvent struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	Gateway        string    `json:"gateway"`
	GatewayEventID string    `json:"gateway_event_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// Event types
const (
	EventTypePaymentCaptured = "payment.captured"
	EventTypePaymentRefunded = "payment.refunded"
	EventTypeWebhookReceived = "gateway.webhook.received"
)

// Kafka topics
const (
	TopicPaymentCaptured = "payment-captured"
	TopicPaymentRefunded = "payment-refunded"
	TopicGatewayWebhooks = "gateway-webhooks"
)
