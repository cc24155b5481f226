package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tair/order-settlement/internal/settlement/domain"
	"github.com/tair/order-settlement/internal/settlement/gateway"
	"github.com/tair/order-settlement/kafka"
	"github.com/tair/order-settlement/pkg/logger"
)

// RefundPaymentCommand returns captured funds. Amount 0 refunds the
// remaining unrefunded balance.
type RefundPaymentCommand struct {
	TenantID  uint
	PaymentID uint
	Amount    int64
	Reason    string
	Actor     string
}

// RefundResult carries the refund row and the payment's post-refund state
type RefundResult struct {
	Payment *domain.Payment
	Refund  *domain.Refund
}

// RefundPaymentHandler handles the refund payment command
type RefundPaymentHandler struct {
	payments  domain.PaymentRepository
	refunds   domain.RefundRepository
	gateways  *gateway.Registry
	sync      *SyncOrderHandler
	publisher EventPublisher
}

// NewRefundPaymentHandler creates a new refund payment handler
func NewRefundPaymentHandler(
	payments domain.PaymentRepository,
	refunds domain.RefundRepository,
	gateways *gateway.Registry,
	sync *SyncOrderHandler,
	publisher EventPublisher,
) *RefundPaymentHandler {
	return &RefundPaymentHandler{
		payments:  payments,
		refunds:   refunds,
		gateways:  gateways,
		sync:      sync,
		publisher: publisher,
	}
}

// Handle executes the refund payment command
func (h *RefundPaymentHandler) Handle(ctx context.Context, cmd RefundPaymentCommand) (*RefundResult, error) {
	if cmd.PaymentID == 0 {
		return nil, domain.NewError(domain.CodeValidation, "payment_id is required")
	}

	payment, err := h.payments.FindByID(ctx, cmd.PaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewErrorf(domain.CodePaymentNotFound, "payment %d not found", cmd.PaymentID)
		}
		return nil, err
	}
	if payment.TenantID != cmd.TenantID {
		return nil, domain.NewError(domain.CodeUnauthorized, "payment belongs to another tenant")
	}

	if payment.Status != domain.PaymentStatusPaid && payment.Status != domain.PaymentStatusPartiallyRefunded {
		return nil, domain.NewErrorf(domain.CodeInvalidTransition,
			"payment %d is not refundable in status %s", payment.ID, payment.Status)
	}

	amount := cmd.Amount
	if amount == 0 {
		amount = payment.RemainingBalance()
	}
	if amount <= 0 {
		return nil, domain.NewError(domain.CodeValidation, "refund amount must be positive")
	}
	if amount > payment.RemainingBalance() {
		return nil, domain.NewErrorf(domain.CodeRefundExceedsBalance,
			"refund amount %d exceeds remaining balance %d", amount, payment.RemainingBalance()).
			WithDetail("remaining_balance", payment.RemainingBalance())
	}

	gw, err := h.gateways.Get(payment.Gateway)
	if err != nil {
		return nil, fmt.Errorf("payment %d references unknown gateway %s", payment.ID, payment.Gateway)
	}

	idemKey := gateway.IdempotencyKey(payment.OrderID, "refund", uuid.New().String())
	gwCtx, cancel := gatewayContext(ctx)
	defer cancel()

	gwResult, gwErr := gw.Refund(gwCtx, gateway.RefundRequest{
		TransactionRef: payment.GatewayTransactionRef,
		Amount:         amount,
		Currency:       payment.Currency,
		Reason:         cmd.Reason,
		IdempotencyKey: idemKey,
	})
	if gwErr != nil {
		return nil, mapGatewayError(gwErr, domain.CodeRefundFailed)
	}

	application, err := h.payments.ApplyRefund(ctx, payment.ID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to apply refund: %w", err)
	}
	if !application.Applied {
		// A concurrent refund consumed the balance between our pre-check
		// and the guarded update. The gateway refund already went through,
		// so this needs operator attention, not a silent retry.
		logger.Error(ctx).
			Uint("payment_id", payment.ID).
			Int64("amount", amount).
			Str("gateway_refund_ref", gwResult.RefundRef).
			Msg("Gateway refund succeeded but local balance guard rejected it")
		return nil, domain.NewErrorf(domain.CodeRefundExceedsBalance,
			"refund of %d lost a concurrent race on payment %d", amount, payment.ID)
	}

	updated := application.Payment
	refund := &domain.Refund{
		PaymentID:        payment.ID,
		GatewayRefundRef: gwResult.RefundRef,
		Amount:           amount,
		Reason:           cmd.Reason,
		Status:           domain.RefundStatusCompleted,
		IsPartial:        updated.Status == domain.PaymentStatusPartiallyRefunded,
	}
	if err := h.refunds.Create(ctx, refund); err != nil {
		return nil, fmt.Errorf("failed to create refund record: %w", err)
	}

	event := PaymentEventPartiallyRefunded
	if updated.Status == domain.PaymentStatusRefunded {
		event = PaymentEventRefunded
	}
	if err := h.sync.Handle(ctx, SyncOrderCommand{
		OrderID: updated.OrderID,
		Event:   event,
		Actor:   cmd.Actor,
		Reason:  fmt.Sprintf("refund %d of %d applied to payment %d", refund.ID, amount, payment.ID),
	}); err != nil {
		logger.Error(ctx).Err(err).
			Uint("payment_id", payment.ID).
			Msg("Failed to synchronize order after refund")
	}

	if h.publisher != nil {
		evt := kafka.PaymentRefundedEvent{
			PaymentID:     updated.ID,
			RefundID:      refund.ID,
			OrderID:       updated.OrderID,
			TenantID:      updated.TenantID,
			Amount:        amount,
			Currency:      updated.Currency,
			IsPartial:     refund.IsPartial,
			PaymentStatus: updated.Status,
		}
		if err := h.publisher.PublishPaymentRefunded(ctx, evt); err != nil {
			logger.Error(ctx).Err(err).
				Uint("payment_id", updated.ID).
				Msg("Failed to publish payment refunded event")
		}
	}

	logger.Info(ctx).
		Uint("payment_id", updated.ID).
		Uint("refund_id", refund.ID).
		Int64("amount", amount).
		Str("payment_status", updated.Status).
		Msg("Refund applied")

	return &RefundResult{Payment: updated, Refund: refund}, nil
}
