package command

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/tair/order-settlement/internal/settlement/domain"
)

func TestCreateOrder(t *testing.T) {
	orders := new(MockOrderRepository)
	orders.On("Create", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)

	handler := NewCreateOrderHandler(orders)
	order, err := handler.Handle(context.Background(), CreateOrderCommand{
		TenantID:      1,
		Subtotal:      10000,
		Tax:           800,
		Shipping:      500,
		Discount:      300,
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		Items: []CreateOrderItem{
			{ProductRef: "sku-1", Name: "Widget", Quantity: 2, UnitPrice: 2500},
			{ProductRef: "sku-2", Name: "Gadget", Quantity: 1, UnitPrice: 5000},
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDraft, order.Status)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, int64(11000), order.Total)
	assert.Equal(t, "USD", order.Currency)
	assert.True(t, strings.HasPrefix(order.SequenceNumber, "ORD-"))
	assert.Len(t, order.Items, 2)
	assert.Equal(t, int64(5000), order.Items[0].Total)
	orders.AssertExpectations(t)
}

func TestCreateOrderValidation(t *testing.T) {
	item := CreateOrderItem{Name: "Widget", Quantity: 1, UnitPrice: 1000}

	tests := []struct {
		name string
		cmd  CreateOrderCommand
	}{
		{
			name: "missing tenant",
			cmd:  CreateOrderCommand{Subtotal: 1000, Items: []CreateOrderItem{item}},
		},
		{
			name: "negative discount",
			cmd:  CreateOrderCommand{TenantID: 1, Subtotal: 1000, Discount: -1, Items: []CreateOrderItem{item}},
		},
		{
			name: "no items",
			cmd:  CreateOrderCommand{TenantID: 1, Subtotal: 1000},
		},
		{
			name: "zero quantity",
			cmd: CreateOrderCommand{TenantID: 1, Subtotal: 1000, Items: []CreateOrderItem{
				{Name: "Widget", Quantity: 0, UnitPrice: 1000},
			}},
		},
		{
			name: "subtotal does not match items",
			cmd:  CreateOrderCommand{TenantID: 1, Subtotal: 999, Items: []CreateOrderItem{item}},
		},
		{
			name: "discount exceeds total",
			cmd:  CreateOrderCommand{TenantID: 1, Subtotal: 1000, Discount: 2000, Items: []CreateOrderItem{item}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := new(MockOrderRepository)
			handler := NewCreateOrderHandler(orders)

			order, err := handler.Handle(context.Background(), tt.cmd)

			assert.Nil(t, order)
			assert.Equal(t, domain.CodeValidation, domain.ErrorCode(err))
			orders.AssertNotCalled(t, "Create")
		})
	}
}
