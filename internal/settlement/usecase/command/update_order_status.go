package command

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tair/order-settlement/internal/settlement/domain"
)

// UpdateOrderStatusCommand is the manual order transition path behind
// PATCH /orders/{orderId}
type UpdateOrderStatusCommand struct {
	TenantID uint
	OrderID  uint
	Status   string // empty means notes-only update
	Notes    string
	HasNotes bool
	Actor    string
	Reason   string
}

// UpdateOrderStatusHandler handles manual order status updates
type UpdateOrderStatusHandler struct {
	orders domain.OrderRepository
}

// NewUpdateOrderStatusHandler creates a new update order status handler
func NewUpdateOrderStatusHandler(orders domain.OrderRepository) *UpdateOrderStatusHandler {
	return &UpdateOrderStatusHandler{orders: orders}
}

// Handle executes the update order status command
func (h *UpdateOrderStatusHandler) Handle(ctx context.Context, cmd UpdateOrderStatusCommand) (*domain.Order, error) {
	if cmd.OrderID == 0 {
		return nil, domain.NewError(domain.CodeValidation, "order_id is required")
	}

	order, err := h.orders.FindByID(ctx, cmd.TenantID, cmd.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewErrorf(domain.CodeOrderNotFound, "order %d not found", cmd.OrderID)
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if cmd.Status != "" {
		if !domain.ValidOrderStatus(cmd.Status) {
			return nil, domain.NewErrorf(domain.CodeValidation, "unknown order status: %s", cmd.Status)
		}
		if !domain.CanTransitionOrderStatus(order.Status, cmd.Status) {
			return nil, domain.NewErrorf(domain.CodeInvalidTransition,
				"cannot transition order from %s to %s", order.Status, cmd.Status).
				WithDetail("from", order.Status).
				WithDetail("to", cmd.Status)
		}

		transition := domain.OrderTransition{
			OrderStatus: cmd.Status,
			History: []domain.OrderStatusHistory{{
				Field:      domain.HistoryFieldOrderStatus,
				FromStatus: order.Status,
				ToStatus:   cmd.Status,
				Actor:      cmd.Actor,
				Reason:     cmd.Reason,
			}},
		}
		if err := h.orders.ApplyTransition(ctx, order.ID, transition); err != nil {
			return nil, fmt.Errorf("failed to apply order transition: %w", err)
		}
		order.Status = cmd.Status
	}

	if cmd.HasNotes {
		if err := h.orders.UpdateNotes(ctx, order.ID, cmd.Notes); err != nil {
			return nil, fmt.Errorf("failed to update order notes: %w", err)
		}
		order.Notes = cmd.Notes
	}

	return order, nil
}
