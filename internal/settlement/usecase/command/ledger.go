package command

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tair/order-settlement/internal/settlement/domain"
	"github.com/tair/order-settlement/internal/settlement/gateway"
	"github.com/tair/order-settlement/kafka"
)

// EventPublisher is the slice of the Kafka publisher the ledger commands
// use. Nil-able: publishing is best effort and never fails a payment.
type EventPublisher interface {
	PublishPaymentCaptured(ctx context.Context, event kafka.PaymentCapturedEvent) error
	PublishPaymentRefunded(ctx context.Context, event kafka.PaymentRefundedEvent) error
}

// loadPayableOrder fetches a tenant's order and checks it can accept a new
// payment attempt
func loadPayableOrder(ctx context.Context, orders domain.OrderRepository, tenantID, orderID uint) (*domain.Order, error) {
	if orderID == 0 {
		return nil, domain.NewError(domain.CodeValidation, "order_id is required")
	}

	order, err := orders.FindByID(ctx, tenantID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewErrorf(domain.CodeOrderNotFound, "order %d not found", orderID)
		}
		return nil, err
	}

	if order.Status == domain.OrderStatusCancelled || order.Status == domain.OrderStatusRefunded {
		return nil, domain.NewErrorf(domain.CodeOrderNotPayable,
			"order %d is %s", order.ID, order.Status)
	}
	if order.PaymentStatus == domain.PaymentStatusPaid {
		return nil, domain.NewErrorf(domain.CodeOrderNotPayable,
			"order %d is already fully paid", order.ID)
	}
	if order.Total <= 0 {
		return nil, domain.NewErrorf(domain.CodeValidation,
			"order %d has a non-positive total", order.ID)
	}

	return order, nil
}

// gatewayContext bounds the gateway call and detaches it from the caller's
// cancellation: an abandoned HTTP request must not abort a charge mid-flight.
func gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), gateway.CallTimeout)
}

// mapGatewayError converts adapter failures into the API error taxonomy.
// declineCode is the domain code used for a definitive gateway refusal.
func mapGatewayError(err error, declineCode string) error {
	var declined *gateway.DeclinedError
	if errors.As(err, &declined) {
		return domain.NewErrorf(declineCode, "gateway declined: %s", declined.Message).
			WithDetail("gateway_code", declined.Code)
	}

	var unknown *gateway.UnknownOutcomeError
	if errors.As(err, &unknown) {
		return domain.NewError(domain.CodeGatewayOutcomeUnknown,
			"gateway outcome unknown; do not retry, await webhook reconciliation or check payment status").
			WithDetail("operation", unknown.Operation)
	}

	return err
}
