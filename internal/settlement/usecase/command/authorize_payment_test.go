package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/tair/order-settlement/internal/settlement/domain"
	"github.com/tair/order-settlement/internal/settlement/fees"
	"github.com/tair/order-settlement/internal/settlement/gateway"
)

func payableOrder() *domain.Order {
	return &domain.Order{
		ID:            10,
		TenantID:      1,
		Status:        domain.OrderStatusConfirmed,
		PaymentStatus: domain.PaymentStatusPending,
		Total:         10000,
		Currency:      "USD",
	}
}

func newAuthorizeFixture() (*AuthorizePaymentHandler, *MockOrderRepository, *MockPaymentRepository, *MockFeeTierRepository) {
	orders := new(MockOrderRepository)
	payments := new(MockPaymentRepository)
	tiers := new(MockFeeTierRepository)
	registry := gateway.NewRegistry(gateway.NewSandbox("test-secret"))
	handler := NewAuthorizePaymentHandler(
		orders, payments, registry,
		fees.NewCalculator(tiers),
		NewSyncOrderHandler(orders),
	)
	return handler, orders, payments, tiers
}

func TestAuthorizePayment(t *testing.T) {
	handler, orders, payments, tiers := newAuthorizeFixture()

	orders.On("FindByID", mock.Anything, uint(1), uint(10)).Return(payableOrder(), nil)
	tiers.On("FindForTenant", mock.Anything, uint(1)).
		Return(&domain.PlatformFeeTier{Name: domain.TierGrowth, Percentage: 1.5}, nil)

	var created *domain.Payment
	payments.On("Create", mock.Anything, mock.AnythingOfType("*domain.Payment")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*domain.Payment)
		}).
		Return(nil)

	orders.On("FindByIDAny", mock.Anything, uint(10)).Return(payableOrder(), nil)
	orders.On("ApplyTransition", mock.Anything, uint(10), mock.AnythingOfType("domain.OrderTransition")).Return(nil)

	payment, err := handler.Handle(context.Background(), AuthorizePaymentCommand{
		TenantID:      1,
		OrderID:       10,
		PaymentMethod: "tok_visa",
		GatewayType:   "sandbox",
		Actor:         "tester",
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusAuthorized, payment.Status)
	assert.Equal(t, int64(10000), payment.Amount)
	assert.NotEmpty(t, payment.GatewayAuthorizationRef)
	assert.Empty(t, payment.GatewayTransactionRef)
	assert.Equal(t, int64(320), payment.GatewayFee)
	assert.Equal(t, int64(150), payment.PlatformFee)
	assert.Equal(t, int64(9530), payment.NetAmount)

	assert.NotNil(t, created.AuthorizationExpiresAt)
	window := created.AuthorizationExpiresAt.Sub(*created.AuthorizedAt)
	assert.Equal(t, domain.AuthorizationWindow, window)
	assert.WithinDuration(t, time.Now().UTC(), *created.AuthorizedAt, time.Minute)
	payments.AssertExpectations(t)
}

func TestAuthorizePaymentDeclinedRecordsFailedAttempt(t *testing.T) {
	handler, orders, payments, _ := newAuthorizeFixture()

	orders.On("FindByID", mock.Anything, uint(1), uint(10)).Return(payableOrder(), nil)

	var failed *domain.Payment
	payments.On("Create", mock.Anything, mock.AnythingOfType("*domain.Payment")).
		Run(func(args mock.Arguments) {
			failed = args.Get(1).(*domain.Payment)
		}).
		Return(nil)

	_, err := handler.Handle(context.Background(), AuthorizePaymentCommand{
		TenantID:      1,
		OrderID:       10,
		PaymentMethod: gateway.TokenDeclined,
		GatewayType:   "sandbox",
	})

	assert.Equal(t, domain.CodeAuthorizationFailed, domain.ErrorCode(err))
	de, _ := domain.AsError(err)
	assert.Equal(t, "card_declined", de.Details["gateway_code"])

	assert.Equal(t, domain.PaymentStatusFailed, failed.Status)
	assert.Equal(t, "card_declined", failed.FailureCode)
	orders.AssertNotCalled(t, "ApplyTransition", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthorizePaymentUnknownOutcome(t *testing.T) {
	handler, orders, payments, _ := newAuthorizeFixture()
	orders.On("FindByID", mock.Anything, uint(1), uint(10)).Return(payableOrder(), nil)

	_, err := handler.Handle(context.Background(), AuthorizePaymentCommand{
		TenantID:      1,
		OrderID:       10,
		PaymentMethod: gateway.TokenTimeout,
		GatewayType:   "sandbox",
	})

	// A timeout is not a decline: no failed row, no retry hint
	assert.Equal(t, domain.CodeGatewayOutcomeUnknown, domain.ErrorCode(err))
	payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthorizePaymentOrderNotPayable(t *testing.T) {
	tests := []struct {
		name  string
		order *domain.Order
		code  string
	}{
		{
			name: "cancelled order",
			order: &domain.Order{
				ID: 10, TenantID: 1, Status: domain.OrderStatusCancelled, Total: 10000,
			},
			code: domain.CodeOrderNotPayable,
		},
		{
			name: "already paid",
			order: &domain.Order{
				ID: 10, TenantID: 1, Status: domain.OrderStatusPaid,
				PaymentStatus: domain.PaymentStatusPaid, Total: 10000,
			},
			code: domain.CodeOrderNotPayable,
		},
		{
			name: "zero total",
			order: &domain.Order{
				ID: 10, TenantID: 1, Status: domain.OrderStatusDraft, Total: 0,
			},
			code: domain.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, orders, _, _ := newAuthorizeFixture()
			orders.On("FindByID", mock.Anything, uint(1), uint(10)).Return(tt.order, nil)

			_, err := handler.Handle(context.Background(), AuthorizePaymentCommand{
				TenantID:      1,
				OrderID:       10,
				PaymentMethod: "tok_visa",
				GatewayType:   "sandbox",
			})

			assert.Equal(t, tt.code, domain.ErrorCode(err))
		})
	}
}

func TestAuthorizePaymentMissingMethod(t *testing.T) {
	handler, _, _, _ := newAuthorizeFixture()

	_, err := handler.Handle(context.Background(), AuthorizePaymentCommand{TenantID: 1, OrderID: 10})

	assert.Equal(t, domain.CodeValidation, domain.ErrorCode(err))
}
