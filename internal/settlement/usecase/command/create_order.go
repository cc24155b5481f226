package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tair/order-settlement/internal/settlement/domain"
)

// CreateOrderItem is one line item on a new order
type CreateOrderItem struct {
	ProductRef string
	Name       string
	Quantity   int32
	UnitPrice  int64
}

// CreateOrderCommand creates a draft order at checkout
type CreateOrderCommand struct {
	TenantID        uint
	Subtotal        int64
	Tax             int64
	Shipping        int64
	Discount        int64
	Currency        string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ShippingAddress string
	BillingAddress  string
	Items           []CreateOrderItem
}

// CreateOrderHandler handles create order command
type CreateOrderHandler struct {
	orders domain.OrderRepository
}

// NewCreateOrderHandler creates a new create order handler
func NewCreateOrderHandler(orders domain.OrderRepository) *CreateOrderHandler {
	return &CreateOrderHandler{orders: orders}
}

// Handle executes the create order command
func (h *CreateOrderHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	if cmd.TenantID == 0 {
		return nil, domain.NewError(domain.CodeValidation, "tenant_id is required")
	}
	if cmd.Subtotal < 0 || cmd.Tax < 0 || cmd.Shipping < 0 || cmd.Discount < 0 {
		return nil, domain.NewError(domain.CodeValidation, "monetary fields must be non-negative")
	}
	if len(cmd.Items) == 0 {
		return nil, domain.NewError(domain.CodeValidation, "order requires at least one item")
	}

	var itemsTotal int64
	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		if item.Quantity <= 0 {
			return nil, domain.NewError(domain.CodeValidation, "item quantity must be positive")
		}
		if item.UnitPrice < 0 {
			return nil, domain.NewError(domain.CodeValidation, "item unit price must be non-negative")
		}
		lineTotal := item.UnitPrice * int64(item.Quantity)
		itemsTotal += lineTotal
		items = append(items, domain.OrderItem{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      lineTotal,
		})
	}
	if itemsTotal != cmd.Subtotal {
		return nil, domain.NewErrorf(domain.CodeValidation,
			"subtotal %d does not match item totals %d", cmd.Subtotal, itemsTotal)
	}

	total := cmd.Subtotal + cmd.Tax + cmd.Shipping - cmd.Discount
	if total < 0 {
		return nil, domain.NewError(domain.CodeValidation, "order total must be non-negative")
	}

	currency := cmd.Currency
	if currency == "" {
		currency = "USD"
	}

	order := &domain.Order{
		TenantID:        cmd.TenantID,
		SequenceNumber:  fmt.Sprintf("ORD-%s", uuid.New().String()[:8]),
		Status:          domain.OrderStatusDraft,
		PaymentStatus:   domain.PaymentStatusPending,
		Subtotal:        cmd.Subtotal,
		Tax:             cmd.Tax,
		Shipping:        cmd.Shipping,
		Discount:        cmd.Discount,
		Total:           total,
		Currency:        currency,
		CustomerName:    cmd.CustomerName,
		CustomerEmail:   cmd.CustomerEmail,
		CustomerPhone:   cmd.CustomerPhone,
		ShippingAddress: cmd.ShippingAddress,
		BillingAddress:  cmd.BillingAddress,
		Items:           items,
	}

	if err := h.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	return order, nil
}
