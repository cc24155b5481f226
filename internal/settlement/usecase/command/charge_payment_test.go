package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/tair/order-settlement/internal/settlement/domain"
	"github.com/tair/order-settlement/internal/settlement/fees"
	"github.com/tair/order-settlement/internal/settlement/gateway"
)

func newChargeFixture() (*ChargePaymentHandler, *MockOrderRepository, *MockPaymentRepository, *MockFeeTierRepository) {
	orders := new(MockOrderRepository)
	payments := new(MockPaymentRepository)
	tiers := new(MockFeeTierRepository)
	registry := gateway.NewRegistry(gateway.NewSandbox("test-secret"))
	handler := NewChargePaymentHandler(
		orders, payments, registry,
		fees.NewCalculator(tiers),
		NewSyncOrderHandler(orders),
		nil,
	)
	return handler, orders, payments, tiers
}

func TestChargePayment(t *testing.T) {
	handler, orders, payments, tiers := newChargeFixture()

	orders.On("FindByID", mock.Anything, uint(1), uint(10)).Return(payableOrder(), nil)
	tiers.On("FindForTenant", mock.Anything, uint(1)).
		Return(&domain.PlatformFeeTier{Name: domain.TierEnterprise, Percentage: 0.5, WaiveFees: true}, nil)
	payments.On("Create", mock.Anything, mock.AnythingOfType("*domain.Payment")).Return(nil)

	orders.On("FindByIDAny", mock.Anything, uint(10)).Return(payableOrder(), nil)

	var applied domain.OrderTransition
	orders.On("ApplyTransition", mock.Anything, uint(10), mock.AnythingOfType("domain.OrderTransition")).
		Run(func(args mock.Arguments) {
			applied = args.Get(2).(domain.OrderTransition)
		}).
		Return(nil)

	payment, err := handler.Handle(context.Background(), ChargePaymentCommand{
		TenantID:      1,
		OrderID:       10,
		PaymentMethod: "tok_visa",
		GatewayType:   "sandbox",
		Actor:         "tester",
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, payment.Status)
	assert.NotEmpty(t, payment.GatewayTransactionRef)
	assert.NotEmpty(t, payment.GatewayAuthorizationRef)
	assert.NotNil(t, payment.CapturedAt)
	assert.True(t, payment.FeeWaived)
	assert.Equal(t, int64(0), payment.PlatformFee)
	assert.Equal(t, int64(320), payment.TotalFees)
	assert.Equal(t, int64(9680), payment.NetAmount)

	// Charge settles the order in one step
	assert.Equal(t, domain.OrderStatusPaid, applied.OrderStatus)
	assert.Equal(t, domain.PaymentStatusPaid, applied.PaymentStatus)
}

func TestChargePaymentDeclined(t *testing.T) {
	handler, orders, payments, _ := newChargeFixture()
	orders.On("FindByID", mock.Anything, uint(1), uint(10)).Return(payableOrder(), nil)

	var failed *domain.Payment
	payments.On("Create", mock.Anything, mock.AnythingOfType("*domain.Payment")).
		Run(func(args mock.Arguments) {
			failed = args.Get(1).(*domain.Payment)
		}).
		Return(nil)

	_, err := handler.Handle(context.Background(), ChargePaymentCommand{
		TenantID:      1,
		OrderID:       10,
		PaymentMethod: gateway.TokenDeclined,
		GatewayType:   "sandbox",
	})

	assert.Equal(t, domain.CodeChargeFailed, domain.ErrorCode(err))
	assert.Equal(t, domain.PaymentStatusFailed, failed.Status)
	orders.AssertNotCalled(t, "ApplyTransition", mock.Anything, mock.Anything, mock.Anything)
}

func TestChargePaymentUnknownGateway(t *testing.T) {
	handler, orders, _, _ := newChargeFixture()
	orders.On("FindByID", mock.Anything, uint(1), uint(10)).Return(payableOrder(), nil)

	_, err := handler.Handle(context.Background(), ChargePaymentCommand{
		TenantID:      1,
		OrderID:       10,
		PaymentMethod: "tok_visa",
		GatewayType:   "stripe",
	})

	assert.Equal(t, domain.CodeValidation, domain.ErrorCode(err))
}
