package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tair/order-settlement/internal/settlement/domain"
	"github.com/tair/order-settlement/internal/settlement/gateway"
	"github.com/tair/order-settlement/kafka"
	"github.com/tair/order-settlement/pkg/logger"
)

// WebhookPublisher defers webhook applies to the Kafka consumer. Nil-able:
// without a broker the reconciler applies inline.
type WebhookPublisher interface {
	PublishWebhookReceived(ctx context.Context, event kafka.WebhookReceivedEvent) error
}

// IngestWebhookCommand is one raw gateway delivery
type IngestWebhookCommand struct {
	GatewayType string
	Payload     []byte
	Signature   string
}

// IngestResult reports how a delivery was handled
type IngestResult struct {
	Event     *domain.WebhookEvent
	Duplicate bool
	Deferred  bool
}

// IngestWebhookHandler is the webhook reconciler: it verifies, stores and
// applies gateway events through the same ledger paths synchronous calls
// use. Apply failures are recorded on the event row, never returned to the
// gateway.
type IngestWebhookHandler struct {
	gateways  *gateway.Registry
	events    domain.WebhookEventRepository
	payments  domain.PaymentRepository
	refunds   domain.RefundRepository
	sync      *SyncOrderHandler
	publisher WebhookPublisher
}

// NewIngestWebhookHandler creates a new webhook reconciler
func NewIngestWebhookHandler(
	gateways *gateway.Registry,
	events domain.WebhookEventRepository,
	payments domain.PaymentRepository,
	refunds domain.RefundRepository,
	sync *SyncOrderHandler,
	publisher WebhookPublisher,
) *IngestWebhookHandler {
	return &IngestWebhookHandler{
		gateways:  gateways,
		events:    events,
		payments:  payments,
		refunds:   refunds,
		sync:      sync,
		publisher: publisher,
	}
}

// Handle verifies and stores one delivery, then applies it inline or defers
// it to the consumer
func (h *IngestWebhookHandler) Handle(ctx context.Context, cmd IngestWebhookCommand) (*IngestResult, error) {
	gw, err := h.gateways.Get(cmd.GatewayType)
	if err != nil {
		return nil, domain.NewErrorf(domain.CodeValidation, "unknown gateway type: %s", cmd.GatewayType)
	}

	// Signature first, before any parsing
	if err := gw.VerifyWebhook(cmd.Payload, cmd.Signature); err != nil {
		return nil, domain.NewError(domain.CodeSignatureInvalid, "webhook signature verification failed")
	}

	evt, err := gw.ParseWebhook(cmd.Payload)
	if err != nil {
		return nil, domain.NewErrorf(domain.CodeValidation, "unparseable webhook payload: %v", err)
	}

	row := &domain.WebhookEvent{
		Gateway:        gw.Name(),
		GatewayEventID: evt.EventID,
		EventType:      evt.Type,
		Payload:        string(cmd.Payload),
	}
	inserted, err := h.events.Insert(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("failed to store webhook event: %w", err)
	}
	if !inserted {
		// Duplicate delivery: the idempotency boundary. Acknowledge
		// without reprocessing.
		logger.Info(ctx).
			Str("gateway", gw.Name()).
			Str("gateway_event_id", evt.EventID).
			Msg("Duplicate webhook delivery ignored")
		return &IngestResult{Duplicate: true}, nil
	}

	if h.publisher != nil {
		pubErr := h.publisher.PublishWebhookReceived(ctx, kafka.WebhookReceivedEvent{
			Gateway:        gw.Name(),
			GatewayEventID: evt.EventID,
		})
		if pubErr == nil {
			return &IngestResult{Event: row, Deferred: true}, nil
		}
		logger.Warn(ctx).Err(pubErr).
			Str("gateway_event_id", evt.EventID).
			Msg("Deferred webhook publish failed, applying inline")
	}

	applyErr := h.apply(ctx, gw.Name(), evt)
	h.markProcessed(ctx, row.ID, applyErr)
	return &IngestResult{Event: row}, nil
}

// Apply processes a stored event, used by the Kafka consumer for deferred
// deliveries
func (h *IngestWebhookHandler) Apply(ctx context.Context, gatewayName, gatewayEventID string) error {
	row, err := h.events.FindByEventID(ctx, gatewayName, gatewayEventID)
	if err != nil {
		return fmt.Errorf("stored webhook event %s/%s not found: %w", gatewayName, gatewayEventID, err)
	}
	if row.Processed {
		return nil
	}

	gw, err := h.gateways.Get(gatewayName)
	if err != nil {
		return err
	}
	evt, err := gw.ParseWebhook([]byte(row.Payload))
	if err != nil {
		h.markProcessed(ctx, row.ID, err)
		return nil
	}

	applyErr := h.apply(ctx, gatewayName, evt)
	h.markProcessed(ctx, row.ID, applyErr)
	return nil
}

func (h *IngestWebhookHandler) markProcessed(ctx context.Context, rowID uint, applyErr error) {
	msg := ""
	if applyErr != nil {
		msg = applyErr.Error()
		logger.Warn(ctx).
			Err(applyErr).
			Uint("webhook_event_id", rowID).
			Msg("Webhook event could not be applied")
	}
	if err := h.events.MarkProcessed(ctx, rowID, msg); err != nil {
		logger.Error(ctx).Err(err).
			Uint("webhook_event_id", rowID).
			Msg("Failed to update webhook event row")
	}
}

// webhookOperations maps normalized event types to apply functions. Kept as
// a table so the set stays exhaustive and testable against the enumerated
// event types.
var webhookOperations = map[string]func(*IngestWebhookHandler, context.Context, string, *gateway.Event) error{
	gateway.EventPaymentSucceeded: (*IngestWebhookHandler).applyPaymentSucceeded,
	gateway.EventPaymentFailed:    (*IngestWebhookHandler).applyPaymentFailed,
	gateway.EventRefundSucceeded:  (*IngestWebhookHandler).applyRefundSucceeded,
	gateway.EventDisputeCreated:   (*IngestWebhookHandler).applyDisputeCreated,
}

func (h *IngestWebhookHandler) apply(ctx context.Context, gatewayName string, evt *gateway.Event) error {
	op, ok := webhookOperations[evt.Type]
	if !ok {
		return fmt.Errorf("unmapped webhook event type: %s", evt.Type)
	}
	return op(h, ctx, gatewayName, evt)
}

func (h *IngestWebhookHandler) findPayment(ctx context.Context, gatewayName string, evt *gateway.Event) (*domain.Payment, error) {
	payment, err := h.payments.FindByGatewayRef(ctx, gatewayName, evt.TransactionRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no payment for gateway ref %s", evt.TransactionRef)
		}
		return nil, err
	}
	return payment, nil
}

func (h *IngestWebhookHandler) applyPaymentSucceeded(ctx context.Context, gatewayName string, evt *gateway.Event) error {
	payment, err := h.findPayment(ctx, gatewayName, evt)
	if err != nil {
		return err
	}

	switch payment.Status {
	case domain.PaymentStatusAuthorized:
		amount := evt.Amount
		if amount == 0 {
			amount = payment.Amount
		}
		result, err := h.payments.Capture(ctx, payment.ID, amount, time.Now().UTC())
		if err != nil {
			return err
		}
		if !result.Captured {
			// Someone else (a synchronous capture, usually) got there first
			return nil
		}
		if evt.TransactionRef != "" && result.Payment.GatewayTransactionRef != evt.TransactionRef {
			result.Payment.GatewayTransactionRef = evt.TransactionRef
			if err := h.payments.Update(ctx, result.Payment); err != nil {
				return err
			}
		}
		return h.sync.Handle(ctx, SyncOrderCommand{
			OrderID: payment.OrderID,
			Event:   PaymentEventCaptured,
			Actor:   "webhook:" + gatewayName,
			Reason:  "gateway confirmed capture " + evt.EventID,
		})
	case domain.PaymentStatusPending:
		flipped, err := h.payments.UpdateStatus(ctx, payment.ID, domain.PaymentStatusPending, domain.PaymentStatusPaid)
		if err != nil || !flipped {
			return err
		}
		return h.sync.Handle(ctx, SyncOrderCommand{
			OrderID: payment.OrderID,
			Event:   PaymentEventCaptured,
			Actor:   "webhook:" + gatewayName,
			Reason:  "gateway confirmed payment " + evt.EventID,
		})
	default:
		// Already settled locally, replay is a no-op
		return nil
	}
}

func (h *IngestWebhookHandler) applyPaymentFailed(ctx context.Context, gatewayName string, evt *gateway.Event) error {
	payment, err := h.findPayment(ctx, gatewayName, evt)
	if err != nil {
		return err
	}

	for _, from := range []string{domain.PaymentStatusPending, domain.PaymentStatusAuthorized} {
		if payment.Status != from {
			continue
		}
		flipped, err := h.payments.UpdateStatus(ctx, payment.ID, from, domain.PaymentStatusFailed)
		if err != nil {
			return err
		}
		if !flipped {
			return nil
		}
		return h.sync.Handle(ctx, SyncOrderCommand{
			OrderID: payment.OrderID,
			Event:   PaymentEventFailed,
			Actor:   "webhook:" + gatewayName,
			Reason:  fmt.Sprintf("gateway reported failure (%s)", evt.DeclineCode),
		})
	}
	return nil
}

func (h *IngestWebhookHandler) applyRefundSucceeded(ctx context.Context, gatewayName string, evt *gateway.Event) error {
	if evt.RefundRef != "" {
		// Locally initiated refunds already recorded this ref; the gateway
		// confirmation is then a no-op.
		if _, err := h.refunds.FindByGatewayRef(ctx, evt.RefundRef); err == nil {
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	payment, err := h.findPayment(ctx, gatewayName, evt)
	if err != nil {
		return err
	}

	amount := evt.Amount
	if amount == 0 {
		amount = payment.RemainingBalance()
	}
	if amount <= 0 {
		return nil
	}

	application, err := h.payments.ApplyRefund(ctx, payment.ID, amount)
	if err != nil {
		return err
	}
	if !application.Applied {
		return fmt.Errorf("gateway refund %s of %d rejected by balance guard on payment %d",
			evt.RefundRef, amount, payment.ID)
	}

	updated := application.Payment
	refund := &domain.Refund{
		PaymentID:        payment.ID,
		GatewayRefundRef: evt.RefundRef,
		Amount:           amount,
		Reason:           "gateway-initiated refund",
		Status:           domain.RefundStatusCompleted,
		IsPartial:        updated.Status == domain.PaymentStatusPartiallyRefunded,
	}
	if err := h.refunds.Create(ctx, refund); err != nil {
		return err
	}

	event := PaymentEventPartiallyRefunded
	if updated.Status == domain.PaymentStatusRefunded {
		event = PaymentEventRefunded
	}
	return h.sync.Handle(ctx, SyncOrderCommand{
		OrderID: updated.OrderID,
		Event:   event,
		Actor:   "webhook:" + gatewayName,
		Reason:  "gateway confirmed refund " + evt.EventID,
	})
}

func (h *IngestWebhookHandler) applyDisputeCreated(ctx context.Context, gatewayName string, evt *gateway.Event) error {
	// Disputes are recorded for monitoring but never auto-transition the
	// payment.
	payment, err := h.findPayment(ctx, gatewayName, evt)
	if err != nil {
		return err
	}
	logger.Warn(ctx).
		Uint("payment_id", payment.ID).
		Uint("order_id", payment.OrderID).
		Str("gateway", gatewayName).
		Str("gateway_event_id", evt.EventID).
		Msg("Dispute opened against payment")
	return nil
}
