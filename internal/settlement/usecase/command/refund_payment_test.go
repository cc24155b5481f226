package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/tair/order-settlement/internal/settlement/domain"
	"github.com/tair/order-settlement/internal/settlement/gateway"
)

func paidPayment() *domain.Payment {
	return &domain.Payment{
		ID:                    100,
		OrderID:               10,
		TenantID:              1,
		Amount:                10000,
		Currency:              "USD",
		Status:                domain.PaymentStatusPaid,
		Gateway:               "sandbox",
		GatewayTransactionRef: "txn_abc",
	}
}

func newRefundFixture() (*RefundPaymentHandler, *MockOrderRepository, *MockPaymentRepository, *MockRefundRepository) {
	orders := new(MockOrderRepository)
	payments := new(MockPaymentRepository)
	refunds := new(MockRefundRepository)
	registry := gateway.NewRegistry(gateway.NewSandbox("test-secret"))
	handler := NewRefundPaymentHandler(payments, refunds, registry, NewSyncOrderHandler(orders), nil)
	return handler, orders, payments, refunds
}

func TestRefundPaymentPartial(t *testing.T) {
	handler, orders, payments, refunds := newRefundFixture()

	payments.On("FindByID", mock.Anything, uint(100)).Return(paidPayment(), nil)

	updated := paidPayment()
	updated.RefundedAmount = 2500
	updated.Status = domain.PaymentStatusPartiallyRefunded
	payments.On("ApplyRefund", mock.Anything, uint(100), int64(2500)).
		Return(domain.RefundApplication{Applied: true, Payment: updated}, nil)

	var created *domain.Refund
	refunds.On("Create", mock.Anything, mock.AnythingOfType("*domain.Refund")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*domain.Refund)
		}).
		Return(nil)

	orders.On("FindByIDAny", mock.Anything, uint(10)).Return(&domain.Order{
		ID: 10, Status: domain.OrderStatusPaid, PaymentStatus: domain.PaymentStatusPaid,
	}, nil)
	orders.On("ApplyTransition", mock.Anything, uint(10), mock.AnythingOfType("domain.OrderTransition")).Return(nil)

	result, err := handler.Handle(context.Background(), RefundPaymentCommand{
		TenantID: 1, PaymentID: 100, Amount: 2500, Reason: "damaged item", Actor: "tester",
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPartiallyRefunded, result.Payment.Status)
	assert.Equal(t, int64(2500), result.Refund.Amount)
	assert.True(t, created.IsPartial)
	assert.NotEmpty(t, created.GatewayRefundRef)
	assert.Equal(t, "damaged item", created.Reason)
	payments.AssertExpectations(t)
	refunds.AssertExpectations(t)
}

func TestRefundPaymentFullDefaultsToRemainingBalance(t *testing.T) {
	handler, orders, payments, refunds := newRefundFixture()

	partial := paidPayment()
	partial.RefundedAmount = 4000
	partial.Status = domain.PaymentStatusPartiallyRefunded
	payments.On("FindByID", mock.Anything, uint(100)).Return(partial, nil)

	updated := paidPayment()
	updated.RefundedAmount = 10000
	updated.Status = domain.PaymentStatusRefunded
	payments.On("ApplyRefund", mock.Anything, uint(100), int64(6000)).
		Return(domain.RefundApplication{Applied: true, Payment: updated}, nil)

	var created *domain.Refund
	refunds.On("Create", mock.Anything, mock.AnythingOfType("*domain.Refund")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*domain.Refund)
		}).
		Return(nil)

	orders.On("FindByIDAny", mock.Anything, uint(10)).Return(&domain.Order{
		ID: 10, Status: domain.OrderStatusPaid, PaymentStatus: domain.PaymentStatusPartiallyRefunded,
	}, nil)

	var applied domain.OrderTransition
	orders.On("ApplyTransition", mock.Anything, uint(10), mock.AnythingOfType("domain.OrderTransition")).
		Run(func(args mock.Arguments) {
			applied = args.Get(2).(domain.OrderTransition)
		}).
		Return(nil)

	result, err := handler.Handle(context.Background(), RefundPaymentCommand{
		TenantID: 1, PaymentID: 100,
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, result.Payment.Status)
	assert.False(t, created.IsPartial)
	assert.Equal(t, domain.OrderStatusRefunded, applied.OrderStatus)
}

func TestRefundPaymentExceedsBalance(t *testing.T) {
	handler, _, payments, refunds := newRefundFixture()

	partial := paidPayment()
	partial.RefundedAmount = 9000
	partial.Status = domain.PaymentStatusPartiallyRefunded
	payments.On("FindByID", mock.Anything, uint(100)).Return(partial, nil)

	_, err := handler.Handle(context.Background(), RefundPaymentCommand{
		TenantID: 1, PaymentID: 100, Amount: 2000,
	})

	assert.Equal(t, domain.CodeRefundExceedsBalance, domain.ErrorCode(err))
	de, _ := domain.AsError(err)
	assert.Equal(t, int64(1000), de.Details["remaining_balance"])
	payments.AssertNotCalled(t, "ApplyRefund", mock.Anything, mock.Anything, mock.Anything)
	refunds.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRefundPaymentNotRefundable(t *testing.T) {
	handler, _, payments, _ := newRefundFixture()

	pending := paidPayment()
	pending.Status = domain.PaymentStatusAuthorized
	payments.On("FindByID", mock.Anything, uint(100)).Return(pending, nil)

	_, err := handler.Handle(context.Background(), RefundPaymentCommand{
		TenantID: 1, PaymentID: 100, Amount: 500,
	})

	assert.Equal(t, domain.CodeInvalidTransition, domain.ErrorCode(err))
}

func TestRefundPaymentWrongTenant(t *testing.T) {
	handler, _, payments, _ := newRefundFixture()
	payments.On("FindByID", mock.Anything, uint(100)).Return(paidPayment(), nil)

	_, err := handler.Handle(context.Background(), RefundPaymentCommand{
		TenantID: 2, PaymentID: 100, Amount: 500,
	})

	assert.Equal(t, domain.CodeUnauthorized, domain.ErrorCode(err))
}

func TestRefundPaymentNotFound(t *testing.T) {
	handler, _, payments, _ := newRefundFixture()
	payments.On("FindByID", mock.Anything, uint(99)).Return(nil, gorm.ErrRecordNotFound)

	_, err := handler.Handle(context.Background(), RefundPaymentCommand{TenantID: 1, PaymentID: 99, Amount: 1})

	assert.Equal(t, domain.CodePaymentNotFound, domain.ErrorCode(err))
}

func TestRefundPaymentLostBalanceRace(t *testing.T) {
	handler, _, payments, refunds := newRefundFixture()

	payments.On("FindByID", mock.Anything, uint(100)).Return(paidPayment(), nil)
	// The gateway refund succeeds, then a concurrent refund wins the
	// guarded update.
	payments.On("ApplyRefund", mock.Anything, uint(100), int64(2500)).
		Return(domain.RefundApplication{Applied: false}, nil)

	_, err := handler.Handle(context.Background(), RefundPaymentCommand{
		TenantID: 1, PaymentID: 100, Amount: 2500,
	})

	assert.Equal(t, domain.CodeRefundExceedsBalance, domain.ErrorCode(err))
	refunds.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
