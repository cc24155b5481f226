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
	"github.com/tair/order-settlement/pkg/logger"
)

// AuthorizePaymentCommand reserves funds for an order without capturing
type AuthorizePaymentCommand struct {
	TenantID      uint
	OrderID       uint
	PaymentMethod string
	GatewayType   string
	Metadata      map[string]string
	Actor         string
}

// AuthorizePaymentHandler handles the authorize payment command
type AuthorizePaymentHandler struct {
	orders   domain.OrderRepository
	payments domain.PaymentRepository
	gateways *gateway.Registry
	fees     *fees.Calculator
	sync     *SyncOrderHandler
}

// NewAuthorizePaymentHandler creates a new authorize payment handler
func NewAuthorizePaymentHandler(
	orders domain.OrderRepository,
	payments domain.PaymentRepository,
	gateways *gateway.Registry,
	calculator *fees.Calculator,
	sync *SyncOrderHandler,
) *AuthorizePaymentHandler {
	return &AuthorizePaymentHandler{
		orders:   orders,
		payments: payments,
		gateways: gateways,
		fees:     calculator,
		sync:     sync,
	}
}

// Handle executes the authorize payment command
func (h *AuthorizePaymentHandler) Handle(ctx context.Context, cmd AuthorizePaymentCommand) (*domain.Payment, error) {
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

	idemKey := gateway.IdempotencyKey(order.ID, "authorize", uuid.New().String())
	gwCtx, cancel := gatewayContext(ctx)
	defer cancel()

	result, gwErr := gw.Authorize(gwCtx, gateway.AuthorizeRequest{
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
			// Keep the declined attempt as a failed row for the audit trail
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
					Msg("Failed to record declined authorization")
			}
		}
		return nil, mapGatewayError(gwErr, domain.CodeAuthorizationFailed)
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
		Status:                  domain.PaymentStatusAuthorized,
		Gateway:                 gw.Name(),
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
	}

	if err := h.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	if err := h.sync.Handle(ctx, SyncOrderCommand{
		OrderID: order.ID,
		Event:   PaymentEventAuthorized,
		Actor:   cmd.Actor,
		Reason:  fmt.Sprintf("payment %d authorized via %s", payment.ID, gw.Name()),
	}); err != nil {
		logger.Error(ctx).Err(err).
			Uint("payment_id", payment.ID).
			Msg("Failed to synchronize order after authorization")
	}

	logger.Info(ctx).
		Uint("payment_id", payment.ID).
		Uint("order_id", order.ID).
		Int64("amount", payment.Amount).
		Str("gateway", gw.Name()).
		Time("authorization_expires_at", expires).
		Msg("Payment authorized")

	return payment, nil
}
