package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tair/order-settlement/internal/settlement/domain"
	"github.com/tair/order-settlement/internal/settlement/fees"
	"github.com/tair/order-settlement/internal/settlement/gateway"
	"github.com/tair/order-settlement/kafka"
	"github.com/tair/order-settlement/pkg/logger"
)

// CapturePaymentCommand transfers previously authorized funds. PaymentID 0
// targets the order's most recently authorized payment; Amount 0 captures
// the full authorized amount.
type CapturePaymentCommand struct {
	TenantID  uint
	OrderID   uint
	PaymentID uint
	Amount    int64
	Actor     string
}

// CapturePaymentHandler handles the capture payment command
type CapturePaymentHandler struct {
	orders    domain.OrderRepository
	payments  domain.PaymentRepository
	gateways  *gateway.Registry
	fees      *fees.Calculator
	sync      *SyncOrderHandler
	publisher EventPublisher
}

// NewCapturePaymentHandler creates a new capture payment handler
func NewCapturePaymentHandler(
	orders domain.OrderRepository,
	payments domain.PaymentRepository,
	gateways *gateway.Registry,
	calculator *fees.Calculator,
	sync *SyncOrderHandler,
	publisher EventPublisher,
) *CapturePaymentHandler {
	return &CapturePaymentHandler{
		orders:    orders,
		payments:  payments,
		gateways:  gateways,
		fees:      calculator,
		sync:      sync,
		publisher: publisher,
	}
}

func (h *CapturePaymentHandler) resolvePayment(ctx context.Context, cmd CapturePaymentCommand) (*domain.Payment, error) {
	if cmd.PaymentID != 0 {
		payment, err := h.payments.FindByID(ctx, cmd.PaymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, domain.NewErrorf(domain.CodePaymentNotFound, "payment %d not found", cmd.PaymentID)
			}
			return nil, err
		}
		if payment.OrderID != cmd.OrderID || payment.TenantID != cmd.TenantID {
			return nil, domain.NewErrorf(domain.CodePaymentNotFound,
				"payment %d does not belong to order %d", cmd.PaymentID, cmd.OrderID)
		}
		return payment, nil
	}

	payment, err := h.payments.FindLatestAuthorized(ctx, cmd.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewErrorf(domain.CodePaymentNotFound,
				"no authorized payment for order %d", cmd.OrderID)
		}
		return nil, err
	}
	return payment, nil
}

// Handle executes the capture payment command
func (h *CapturePaymentHandler) Handle(ctx context.Context, cmd CapturePaymentCommand) (*domain.Payment, error) {
	if cmd.OrderID == 0 {
		return nil, domain.NewError(domain.CodeValidation, "order_id is required")
	}
	if _, err := h.orders.FindByID(ctx, cmd.TenantID, cmd.OrderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewErrorf(domain.CodeOrderNotFound, "order %d not found", cmd.OrderID)
		}
		return nil, err
	}

	payment, err := h.resolvePayment(ctx, cmd)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case domain.PaymentStatusAuthorized:
		// capturable
	case domain.PaymentStatusPaid, domain.PaymentStatusPartiallyRefunded, domain.PaymentStatusRefunded:
		return nil, domain.NewErrorf(domain.CodeAlreadyCaptured, "payment %d is already captured", payment.ID)
	default:
		return nil, domain.NewErrorf(domain.CodePaymentNotFound,
			"payment %d is not authorized (status %s)", payment.ID, payment.Status)
	}

	now := time.Now().UTC()
	if payment.AuthorizationExpired(now) {
		return nil, domain.NewErrorf(domain.CodeAuthorizationExpired,
			"authorization for payment %d expired at %s", payment.ID,
			payment.AuthorizationExpiresAt.Format(time.RFC3339))
	}

	amount := cmd.Amount
	if amount == 0 {
		amount = payment.Amount
	}
	if amount < 0 || amount > payment.Amount {
		return nil, domain.NewErrorf(domain.CodeValidation,
			"capture amount %d exceeds authorized amount %d", amount, payment.Amount)
	}

	gw, err := h.gateways.Get(payment.Gateway)
	if err != nil {
		return nil, fmt.Errorf("payment %d references unknown gateway %s", payment.ID, payment.Gateway)
	}

	idemKey := gateway.IdempotencyKey(payment.OrderID, "capture", uuid.New().String())
	gwCtx, cancel := gatewayContext(ctx)
	defer cancel()

	result, gwErr := gw.Capture(gwCtx, gateway.CaptureRequest{
		AuthorizationRef: payment.GatewayAuthorizationRef,
		Amount:           amount,
		Currency:         payment.Currency,
		IdempotencyKey:   idemKey,
	})
	if gwErr != nil {
		return nil, mapGatewayError(gwErr, domain.CodeCaptureFailed)
	}

	captureResult, err := h.payments.Capture(ctx, payment.ID, amount, now)
	if err != nil {
		return nil, fmt.Errorf("failed to capture payment: %w", err)
	}
	if !captureResult.Captured {
		// Lost the race: a concurrent capture moved the row out of
		// authorized first.
		return nil, domain.NewErrorf(domain.CodeAlreadyCaptured,
			"payment %d was captured concurrently", payment.ID)
	}

	captured := captureResult.Payment
	captured.GatewayTransactionRef = result.TransactionRef

	// Fees are recomputed against the captured amount, which may be a
	// partial capture of the authorization.
	breakdown, err := h.fees.ForTenant(ctx, payment.TenantID, amount, result.GatewayFee)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate fees: %w", err)
	}
	captured.GatewayFee = breakdown.GatewayFee
	captured.PlatformFee = breakdown.PlatformFee
	captured.PlatformFeePercentage = breakdown.PlatformFeePercentage
	captured.TotalFees = breakdown.TotalFees
	captured.NetAmount = breakdown.NetAmount
	captured.FeeWaived = breakdown.FeeWaived
	captured.FeeWaivedReason = breakdown.FeeWaivedReason

	if err := h.payments.Update(ctx, captured); err != nil {
		return nil, fmt.Errorf("failed to store capture result: %w", err)
	}

	if err := h.sync.Handle(ctx, SyncOrderCommand{
		OrderID: captured.OrderID,
		Event:   PaymentEventCaptured,
		Actor:   cmd.Actor,
		Reason:  fmt.Sprintf("payment %d captured", captured.ID),
	}); err != nil {
		logger.Error(ctx).Err(err).
			Uint("payment_id", captured.ID).
			Msg("Failed to synchronize order after capture")
	}

	if h.publisher != nil {
		event := kafka.PaymentCapturedEvent{
			PaymentID:      captured.ID,
			OrderID:        captured.OrderID,
			TenantID:       captured.TenantID,
			Amount:         captured.Amount,
			Currency:       captured.Currency,
			Gateway:        captured.Gateway,
			TransactionRef: captured.GatewayTransactionRef,
			NetAmount:      captured.NetAmount,
			TotalFees:      captured.TotalFees,
		}
		if err := h.publisher.PublishPaymentCaptured(ctx, event); err != nil {
			// Never fail the capture over a broker problem
			logger.Error(ctx).Err(err).
				Uint("payment_id", captured.ID).
				Msg("Failed to publish payment captured event")
		}
	}

	logger.Info(ctx).
		Uint("payment_id", captured.ID).
		Uint("order_id", captured.OrderID).
		Int64("amount", captured.Amount).
		Int64("net_amount", captured.NetAmount).
		Msg("Payment captured")

	return captured, nil
}
