package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/order-settlement/pkg/logger"
)

// Publisher wraps a synchronous Kafka producer
type Publisher struct {
	producer sarama.SyncProducer
	brokers  []string
}

// NewPublisher creates a new Kafka publisher
func NewPublisher(brokers []string) (*Publisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 3
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.MaxMessageBytes = 1000000

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Component("kafka-publisher").Info().
		Strs("brokers", brokers).
		Msg("Kafka publisher initialized")

	return &Publisher{
		producer: producer,
		brokers:  brokers,
	}, nil
}

// publish marshals, traces and sends one event
func (p *Publisher) publish(ctx context.Context, topic, key, eventType, eventID string, payload interface{}) error {
	tracer := otel.Tracer("kafka-publisher")
	ctx, span := tracer.Start(ctx, "kafka.publish."+eventType,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", topic),
			attribute.String("messaging.destination_kind", "topic"),
			attribute.String("event.type", eventType),
			attribute.String("event.id", eventID),
		),
	)
	defer span.End()

	eventBytes, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to marshal event")
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Inject trace context into Kafka headers
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := []sarama.RecordHeader{
		{Key: []byte("event_type"), Value: []byte(eventType)},
		{Key: []byte("event_id"), Value: []byte(eventID)},
	}
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte(k),
			Value: []byte(v),
		})
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(eventBytes),
		Headers: headers,
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to send message")
		logger.Error(ctx).
			Err(err).
			Str("topic", topic).
			Str("event_id", eventID).
			Msg("Failed to publish event")
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	span.SetAttributes(
		attribute.Int("messaging.kafka.partition", int(partition)),
		attribute.Int64("messaging.kafka.offset", offset),
	)
	span.SetStatus(codes.Ok, "Event published")

	logger.Info(ctx).
		Str("event_id", eventID).
		Str("event_type", eventType).
		Str("topic", topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("Event published")

	return nil
}

// PublishPaymentCaptured publishes a payment captured event
func (p *Publisher) PublishPaymentCaptured(ctx context.Context, event PaymentCapturedEvent) error {
	if event.EventID == "" {
		event.EventID = "evt_" + uuid.New().String()
	}
	event.EventType = EventTypePaymentCaptured
	event.Timestamp = time.Now().UTC()

	key := fmt.Sprintf("order_%d", event.OrderID)
	return p.publish(ctx, TopicPaymentCaptured, key, event.EventType, event.EventID, event)
}

// PublishPaymentRefunded publishes a payment refunded event
func (p *Publisher) PublishPaymentRefunded(ctx context.Context, event PaymentRefundedEvent) error {
	if event.EventID == "" {
		event.EventID = "evt_" + uuid.New().String()
	}
	event.EventType = EventTypePaymentRefunded
	event.Timestamp = time.Now().UTC()

	key := fmt.Sprintf("order_%d", event.OrderID)
	return p.publish(ctx, TopicPaymentRefunded, key, event.EventType, event.EventID, event)
}

// PublishWebhookReceived schedules deferred processing of a stored webhook
func (p *Publisher) PublishWebhookReceived(ctx context.Context, event WebhookReceivedEvent) error {
	if event.EventID == "" {
		event.EventID = "evt_" + uuid.New().String()
	}
	event.EventType = EventTypeWebhookReceived
	event.Timestamp = time.Now().UTC()

	// Key by gateway event id so redeliveries land on one partition
	key := fmt.Sprintf("%s_%s", event.Gateway, event.GatewayEventID)
	return p.publish(ctx, TopicGatewayWebhooks, key, event.EventType, event.EventID, event)
}

// Close closes the Kafka producer
func (p *Publisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
