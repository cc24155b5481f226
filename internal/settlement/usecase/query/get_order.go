package query

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tair/order-settlement/internal/settlement/domain"
)

// GetOrderQuery represents the query to get an order with its audit trail
type GetOrderQuery struct {
	TenantID uint
	OrderID  uint
}

// OrderView is an order with its status history
type OrderView struct {
	Order   *domain.Order               `json:"order"`
	History []domain.OrderStatusHistory `json:"history"`
}

// GetOrderHandler handles get order query
type GetOrderHandler struct {
	orders domain.OrderRepository
}

// NewGetOrderHandler creates a new get order handler
func NewGetOrderHandler(orders domain.OrderRepository) *GetOrderHandler {
	return &GetOrderHandler{orders: orders}
}

// Handle executes the get order query
func (h *GetOrderHandler) Handle(ctx context.Context, q GetOrderQuery) (*OrderView, error) {
	if q.OrderID == 0 {
		return nil, domain.NewError(domain.CodeValidation, "order_id is required")
	}

	order, err := h.orders.FindByID(ctx, q.TenantID, q.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewErrorf(domain.CodeOrderNotFound, "order %d not found", q.OrderID)
		}
		return nil, err
	}

	history, err := h.orders.FindHistory(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	return &OrderView{Order: order, History: history}, nil
}
