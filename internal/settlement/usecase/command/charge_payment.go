package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tair/order-settlement/internal/settlement/domain"
	"github.com/tair/order-settlement/internal/settlement/fees"
	"github.com/tair/order-settlement/internal/settlement/gateway"
	"github.com/tair/order-settlement/kafka"
	"github.com/tair/order-settlement/pkg/logger"
)

// ChargePaymentCommand authorizes and captures an order's total in one step
type ChargePaymentCommand struct {
	TenantID      uint
	OrderID       uint
	PaymentMethod string
	GatewayType   string
	Metadata      map[string]string
	Actor         string
}

// ChargePaymentHandler handles the charge payment command
type ChargePaymentHandler struct {
	orders    domain.OrderRepository
	payments  domain.PaymentRepository
	gateways  *gateway.Registry
	fees      *fees.Calculator
	sync      *SyncOrderHandler
	publisher EventPublisher
}

// NewChargePaymentHandler creates a new charge payment handler
func NewChargePaymentHandler(
	orders domain.OrderRepository,
	payments domain.PaymentRepository,
	gateways *gateway.Registry,
	calculator *fees.Calculator,
	sync *SyncOrderHandler,
	publisher EventPublisher,
) *ChargePaymentHandler {
	return &ChargePaymentHandler{
		orders:    orders,
		payments:  payments,
		gateways:  gateways,
		fees:      calculator,
		sync:      sync,
		publisher: publisher,
	}
}

// Handle executes the charge payment command
func (h *ChargePaymentHandler) Handle(ctx context.Context, cmd ChargePaymentCommand) (*domain.Payment, error) {
	if cmd.PaymentMethod == "" {
		return nil, domain.NewError(domain.CodeValidation, "payment_method is required")
	}

	order, err := loadPayableOrder(ctx, h.orders, cmd.TenantID, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	gw, err := h.gateways.Get(cmd.GatewayType)
	if err != nil {
		return nil, domain.NewErrorf(domain.CodeValidation, "unknown gateway type: %s", cmd.GatewayType)
	}

	idemKey := gateway.IdempotencyKey(order.ID, "charge", uuid.New().String())
	gwCtx, cancel := gatewayContext(ctx)
	defer cancel()

	result, gwErr := gw.Charge(gwCtx, gateway.ChargeRequest{
		TenantID:       cmd.TenantID,
		OrderID:        order.ID,
		Amount:         order.Total,
		Currency:       order.Currency,
		PaymentMethod:  cmd.PaymentMethod,
		IdempotencyKey: idemKey,
		Metadata:       cmd.Metadata,
	})
	if gwErr != nil {
		var declined *gateway.DeclinedError
		if errors.As(gwErr, &declined) {
			failed := &domain.Payment{
				OrderID:       order.ID,
				TenantID:      cmd.TenantID,
				Amount:        order.Total,
				Currency:      order.Currency,
				PaymentMethod: cmd.PaymentMethod,
				Status:        domain.PaymentStatusFailed,
				Gateway:       gw.Name(),
				FailureCode:   declined.Code,
			}
			if createErr := h.payments.Create(ctx, failed); createErr != nil {
				logger.Error(ctx).Err(createErr).
					Uint("order_id", order.ID).
					Msg("Failed to record declined charge")
			}
		}
		return nil, mapGatewayError(gwErr, domain.CodeChargeFailed)
	}

	breakdown, err := h.fees.ForTenant(ctx, cmd.TenantID, order.Total, result.GatewayFee)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate fees: %w", err)
	}

	now := time.Now().UTC()
	expires := now.Add(domain.AuthorizationWindow)
	payment := &domain.Payment{
		OrderID:                 order.ID,
		TenantID:                cmd.TenantID,
		Amount:                  order.Total,
		Currency:                order.Currency,
		PaymentMethod:           cmd.PaymentMethod,
		Status:                  domain.PaymentStatusPaid,
		Gateway:                 gw.Name(),
		GatewayTransactionRef:   result.TransactionRef,
		GatewayAuthorizationRef: result.AuthorizationRef,
		GatewayFee:              breakdown.GatewayFee,
		PlatformFee:             breakdown.PlatformFee,
		PlatformFeePercentage:   breakdown.PlatformFeePercentage,
		TotalFees:               breakdown.TotalFees,
		NetAmount:               breakdown.NetAmount,
		FeeWaived:               breakdown.FeeWaived,
		FeeWaivedReason:         breakdown.FeeWaivedReason,
		AuthorizedAt:            &now,
		AuthorizationExpiresAt:  &expires,
		CapturedAt:              &now,
	}

	if err := h.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	if err := h.sync.Handle(ctx, SyncOrderCommand{
		OrderID: order.ID,
		Event:   PaymentEventCaptured,
		Actor:   cmd.Actor,
		Reason:  fmt.Sprintf("payment %d charged via %s", payment.ID, gw.Name()),
	}); err != nil {
		logger.Error(ctx).Err(err).
			Uint("payment_id", payment.ID).
			Msg("Failed to synchronize order after charge")
	}

	if h.publisher != nil {
		event := kafka.PaymentCapturedEvent{
			PaymentID:      payment.ID,
			OrderID:        payment.OrderID,
			TenantID:       payment.TenantID,
			Amount:         payment.Amount,
			Currency:       payment.Currency,
			Gateway:        payment.Gateway,
			TransactionRef: payment.GatewayTransactionRef,
			NetAmount:      payment.NetAmount,
			TotalFees:      payment.TotalFees,
		}
		if err := h.publisher.PublishPaymentCaptured(ctx, event); err != nil {
			logger.Error(ctx).Err(err).
				Uint("payment_id", payment.ID).
				Msg("Failed to publish payment captured event")
		}
	}

	logger.Info(ctx).
		Uint("payment_id", payment.ID).
		Uint("order_id", order.ID).
		Int64("amount", payment.Amount).
		Str("gateway", gw.Name()).
		Msg("Payment charged")

	return payment, nil
}
