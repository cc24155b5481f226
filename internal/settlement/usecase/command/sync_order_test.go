package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/tair/order-settlement/internal/settlement/domain"
)

func TestSyncOrderCapturedStepsDraftToPaid(t *testing.T) {
	orders := new(MockOrderRepository)
	orders.On("FindByIDAny", mock.Anything, uint(10)).Return(&domain.Order{
		ID:            10,
		Status:        domain.OrderStatusDraft,
		PaymentStatus: domain.PaymentStatusPending,
	}, nil)

	var applied domain.OrderTransition
	orders.On("ApplyTransition", mock.Anything, uint(10), mock.AnythingOfType("domain.OrderTransition")).
		Run(func(args mock.Arguments) {
			applied = args.Get(2).(domain.OrderTransition)
		}).
		Return(nil)

	handler := NewSyncOrderHandler(orders)
	err := handler.Handle(context.Background(), SyncOrderCommand{
		OrderID: 10,
		Event:   PaymentEventCaptured,
		Actor:   "tester",
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, applied.OrderStatus)
	assert.Equal(t, domain.PaymentStatusPaid, applied.PaymentStatus)

	// One payment_status row plus two order_status rows: draft -> confirmed -> paid
	assert.Len(t, applied.History, 3)
	assert.Equal(t, domain.HistoryFieldPaymentStatus, applied.History[0].Field)
	assert.Equal(t, domain.OrderStatusDraft, applied.History[1].FromStatus)
	assert.Equal(t, domain.OrderStatusConfirmed, applied.History[1].ToStatus)
	assert.Equal(t, domain.OrderStatusConfirmed, applied.History[2].FromStatus)
	assert.Equal(t, domain.OrderStatusPaid, applied.History[2].ToStatus)
	orders.AssertExpectations(t)
}

func TestSyncOrderCapturedFromConfirmed(t *testing.T) {
	orders := new(MockOrderRepository)
	orders.On("FindByIDAny", mock.Anything, uint(11)).Return(&domain.Order{
		ID:            11,
		Status:        domain.OrderStatusConfirmed,
		PaymentStatus: domain.PaymentStatusAuthorized,
	}, nil)

	var applied domain.OrderTransition
	orders.On("ApplyTransition", mock.Anything, uint(11), mock.AnythingOfType("domain.OrderTransition")).
		Run(func(args mock.Arguments) {
			applied = args.Get(2).(domain.OrderTransition)
		}).
		Return(nil)

	handler := NewSyncOrderHandler(orders)
	err := handler.Handle(context.Background(), SyncOrderCommand{OrderID: 11, Event: PaymentEventCaptured})

	assert.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, applied.OrderStatus)
	assert.Len(t, applied.History, 2)
}

func TestSyncOrderReplayIsNoOp(t *testing.T) {
	orders := new(MockOrderRepository)
	orders.On("FindByIDAny", mock.Anything, uint(12)).Return(&domain.Order{
		ID:            12,
		Status:        domain.OrderStatusPaid,
		PaymentStatus: domain.PaymentStatusPaid,
	}, nil)

	handler := NewSyncOrderHandler(orders)
	err := handler.Handle(context.Background(), SyncOrderCommand{OrderID: 12, Event: PaymentEventCaptured})

	assert.NoError(t, err)
	orders.AssertNotCalled(t, "ApplyTransition", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncOrderRefunded(t *testing.T) {
	orders := new(MockOrderRepository)
	orders.On("FindByIDAny", mock.Anything, uint(13)).Return(&domain.Order{
		ID:            13,
		Status:        domain.OrderStatusDelivered,
		PaymentStatus: domain.PaymentStatusPaid,
	}, nil)

	var applied domain.OrderTransition
	orders.On("ApplyTransition", mock.Anything, uint(13), mock.AnythingOfType("domain.OrderTransition")).
		Run(func(args mock.Arguments) {
			applied = args.Get(2).(domain.OrderTransition)
		}).
		Return(nil)

	handler := NewSyncOrderHandler(orders)
	err := handler.Handle(context.Background(), SyncOrderCommand{OrderID: 13, Event: PaymentEventRefunded})

	assert.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRefunded, applied.OrderStatus)
	assert.Equal(t, domain.PaymentStatusRefunded, applied.PaymentStatus)
}

func TestSyncOrderRefundedOnCancelledOrderKeepsStatus(t *testing.T) {
	orders := new(MockOrderRepository)
	orders.On("FindByIDAny", mock.Anything, uint(14)).Return(&domain.Order{
		ID:            14,
		Status:        domain.OrderStatusCancelled,
		PaymentStatus: domain.PaymentStatusPaid,
	}, nil)

	var applied domain.OrderTransition
	orders.On("ApplyTransition", mock.Anything, uint(14), mock.AnythingOfType("domain.OrderTransition")).
		Run(func(args mock.Arguments) {
			applied = args.Get(2).(domain.OrderTransition)
		}).
		Return(nil)

	handler := NewSyncOrderHandler(orders)
	err := handler.Handle(context.Background(), SyncOrderCommand{OrderID: 14, Event: PaymentEventRefunded})

	// Payment status still tracks the refund; the cancelled order status
	// stays terminal.
	assert.NoError(t, err)
	assert.Empty(t, applied.OrderStatus)
	assert.Equal(t, domain.PaymentStatusRefunded, applied.PaymentStatus)
	assert.Len(t, applied.History, 1)
}

func TestSyncOrderPartialRefundLeavesOrderStatus(t *testing.T) {
	orders := new(MockOrderRepository)
	orders.On("FindByIDAny", mock.Anything, uint(15)).Return(&domain.Order{
		ID:            15,
		Status:        domain.OrderStatusPaid,
		PaymentStatus: domain.PaymentStatusPaid,
	}, nil)

	var applied domain.OrderTransition
	orders.On("ApplyTransition", mock.Anything, uint(15), mock.AnythingOfType("domain.OrderTransition")).
		Run(func(args mock.Arguments) {
			applied = args.Get(2).(domain.OrderTransition)
		}).
		Return(nil)

	handler := NewSyncOrderHandler(orders)
	err := handler.Handle(context.Background(), SyncOrderCommand{OrderID: 15, Event: PaymentEventPartiallyRefunded})

	assert.NoError(t, err)
	assert.Empty(t, applied.OrderStatus)
	assert.Equal(t, domain.PaymentStatusPartiallyRefunded, applied.PaymentStatus)
}

func TestSyncOrderUnknownEvent(t *testing.T) {
	orders := new(MockOrderRepository)
	handler := NewSyncOrderHandler(orders)

	err := handler.Handle(context.Background(), SyncOrderCommand{OrderID: 1, Event: "chargeback"})

	assert.Error(t, err)
	orders.AssertNotCalled(t, "FindByIDAny")
}
