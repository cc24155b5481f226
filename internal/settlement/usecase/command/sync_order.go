package command

import (
	"context"
	"fmt"

	"github.com/tair/order-settlement/internal/settlement/domain"
	"github.com/tair/order-settlement/pkg/logger"
)

// PaymentEvent names a payment lifecycle transition the order reacts to
type PaymentEvent string

// Payment lifecycle events
const (
	PaymentEventAuthorized        PaymentEvent = "authorized"
	PaymentEventCaptured          PaymentEvent = "captured"
	PaymentEventPartiallyRefunded PaymentEvent = "partially_refunded"
	PaymentEventRefunded          PaymentEvent = "refunded"
	PaymentEventFailed            PaymentEvent = "failed"
)

// SyncOrderCommand advances an order in reaction to a payment event
type SyncOrderCommand struct {
	OrderID uint
	Event   PaymentEvent
	Actor   string
	Reason  string
}

// SyncOrderHandler is the order synchronizer: it maps payment lifecycle
// events onto order field updates and appends the audit history, leaving the
// order untouched on unknown events.
type SyncOrderHandler struct {
	orders domain.OrderRepository
}

// NewSyncOrderHandler creates a new order synchronizer
func NewSyncOrderHandler(orders domain.OrderRepository) *SyncOrderHandler {
	return &SyncOrderHandler{orders: orders}
}

// paymentStatusForEvent maps payment events to the order's payment_status
var paymentStatusForEvent = map[PaymentEvent]string{
	PaymentEventAuthorized:        domain.PaymentStatusAuthorized,
	PaymentEventCaptured:          domain.PaymentStatusPaid,
	PaymentEventPartiallyRefunded: domain.PaymentStatusPartiallyRefunded,
	PaymentEventRefunded:          domain.PaymentStatusRefunded,
	PaymentEventFailed:            domain.PaymentStatusFailed,
}

// Handle executes the sync order command
func (h *SyncOrderHandler) Handle(ctx context.Context, cmd SyncOrderCommand) error {
	paymentStatus, ok := paymentStatusForEvent[cmd.Event]
	if !ok {
		return fmt.Errorf("unknown payment event: %s", cmd.Event)
	}

	order, err := h.orders.FindByIDAny(ctx, cmd.OrderID)
	if err != nil {
		return fmt.Errorf("failed to load order %d: %w", cmd.OrderID, err)
	}

	transition := domain.OrderTransition{}
	if order.PaymentStatus != paymentStatus {
		transition.PaymentStatus = paymentStatus
		transition.History = append(transition.History, domain.OrderStatusHistory{
			Field:      domain.HistoryFieldPaymentStatus,
			FromStatus: order.PaymentStatus,
			ToStatus:   paymentStatus,
			Actor:      cmd.Actor,
			Reason:     cmd.Reason,
		})
	}

	switch cmd.Event {
	case PaymentEventCaptured:
		// A captured payment advances draft/confirmed orders to paid,
		// stepping through confirmed so the audit trail stays contiguous.
		current := order.Status
		if current == domain.OrderStatusDraft {
			transition.History = append(transition.History, domain.OrderStatusHistory{
				Field:      domain.HistoryFieldOrderStatus,
				FromStatus: current,
				ToStatus:   domain.OrderStatusConfirmed,
				Actor:      cmd.Actor,
				Reason:     cmd.Reason,
			})
			current = domain.OrderStatusConfirmed
		}
		if current == domain.OrderStatusConfirmed {
			transition.History = append(transition.History, domain.OrderStatusHistory{
				Field:      domain.HistoryFieldOrderStatus,
				FromStatus: current,
				ToStatus:   domain.OrderStatusPaid,
				Actor:      cmd.Actor,
				Reason:     cmd.Reason,
			})
			transition.OrderStatus = domain.OrderStatusPaid
		}
	case PaymentEventRefunded:
		if domain.CanTransitionOrderStatus(order.Status, domain.OrderStatusRefunded) {
			transition.OrderStatus = domain.OrderStatusRefunded
			transition.History = append(transition.History, domain.OrderStatusHistory{
				Field:      domain.HistoryFieldOrderStatus,
				FromStatus: order.Status,
				ToStatus:   domain.OrderStatusRefunded,
				Actor:      cmd.Actor,
				Reason:     cmd.Reason,
			})
		} else {
			logger.Warn(ctx).
				Uint("order_id", order.ID).
				Str("order_status", order.Status).
				Msg("Refund completed on an order that cannot move to refunded")
		}
	}

	if transition.PaymentStatus == "" && transition.OrderStatus == "" && len(transition.History) == 0 {
		// Replayed event, nothing to change
		return nil
	}

	if err := h.orders.ApplyTransition(ctx, order.ID, transition); err != nil {
		return fmt.Errorf("failed to apply order transition: %w", err)
	}

	logger.Info(ctx).
		Uint("order_id", order.ID).
		Str("payment_event", string(cmd.Event)).
		Str("payment_status", transition.PaymentStatus).
		Str("order_status", transition.OrderStatus).
		Msg("Order synchronized with payment event")

	return nil
}
