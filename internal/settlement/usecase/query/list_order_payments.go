package query

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tair/order-settlement/internal/settlement/domain"
)

// ListOrderPaymentsQuery represents the query for an order's payments
type ListOrderPaymentsQuery struct {
	TenantID uint
	OrderID  uint
}

// ListOrderPaymentsHandler handles list order payments query
type ListOrderPaymentsHandler struct {
	orders   domain.OrderRepository
	payments domain.PaymentRepository
}

// NewListOrderPaymentsHandler creates a new list order payments handler
func NewListOrderPaymentsHandler(orders domain.OrderRepository, payments domain.PaymentRepository) *ListOrderPaymentsHandler {
	return &ListOrderPaymentsHandler{orders: orders, payments: payments}
}

// Handle executes the list order payments query
func (h *ListOrderPaymentsHandler) Handle(ctx context.Context, q ListOrderPaymentsQuery) ([]domain.Payment, error) {
	if q.OrderID == 0 {
		return nil, domain.NewError(domain.CodeValidation, "order_id is required")
	}

	if _, err := h.orders.FindByID(ctx, q.TenantID, q.OrderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewErrorf(domain.CodeOrderNotFound, "order %d not found", q.OrderID)
		}
		return nil, err
	}

	return h.payments.FindByOrderID(ctx, q.OrderID)
}
