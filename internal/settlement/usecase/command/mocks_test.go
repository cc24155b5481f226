package command

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tair/order-settlement/internal/settlement/domain"
)

// --- Mock Implementations ---

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, tenantID, id uint) (*domain.Order, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByIDAny(ctx context.Context, id uint) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindHistory(ctx context.Context, orderID uint) ([]domain.OrderStatusHistory, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.OrderStatusHistory), args.Error(1)
}

func (m *MockOrderRepository) ApplyTransition(ctx context.Context, orderID uint, transition domain.OrderTransition) error {
	args := m.Called(ctx, orderID, transition)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateNotes(ctx context.Context, orderID uint, notes string) error {
	args := m.Called(ctx, orderID, notes)
	return args.Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uint) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByOrderID(ctx context.Context, orderID uint) ([]domain.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindLatestAuthorized(ctx context.Context, orderID uint) (*domain.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByGatewayRef(ctx context.Context, gateway, transactionRef string) (*domain.Payment, error) {
	args := m.Called(ctx, gateway, transactionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) Capture(ctx context.Context, id uint, amount int64, capturedAt time.Time) (domain.CaptureResult, error) {
	args := m.Called(ctx, id, amount, capturedAt)
	return args.Get(0).(domain.CaptureResult), args.Error(1)
}

func (m *MockPaymentRepository) ApplyRefund(ctx context.Context, id uint, amount int64) (domain.RefundApplication, error) {
	args := m.Called(ctx, id, amount)
	return args.Get(0).(domain.RefundApplication), args.Error(1)
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, id uint, fromStatus, toStatus string) (bool, error) {
	args := m.Called(ctx, id, fromStatus, toStatus)
	return args.Bool(0), args.Error(1)
}

type MockRefundRepository struct {
	mock.Mock
}

func (m *MockRefundRepository) Create(ctx context.Context, refund *domain.Refund) error {
	args := m.Called(ctx, refund)
	return args.Error(0)
}

func (m *MockRefundRepository) FindByPaymentID(ctx context.Context, paymentID uint) ([]domain.Refund, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Refund), args.Error(1)
}

func (m *MockRefundRepository) FindByGatewayRef(ctx context.Context, gatewayRefundRef string) (*domain.Refund, error) {
	args := m.Called(ctx, gatewayRefundRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Refund), args.Error(1)
}

type MockWebhookEventRepository struct {
	mock.Mock
}

func (m *MockWebhookEventRepository) Insert(ctx context.Context, event *domain.WebhookEvent) (bool, error) {
	args := m.Called(ctx, event)
	return args.Bool(0), args.Error(1)
}

func (m *MockWebhookEventRepository) FindByEventID(ctx context.Context, gateway, eventID string) (*domain.WebhookEvent, error) {
	args := m.Called(ctx, gateway, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WebhookEvent), args.Error(1)
}

func (m *MockWebhookEventRepository) MarkProcessed(ctx context.Context, id uint, processingErr string) error {
	args := m.Called(ctx, id, processingErr)
	return args.Error(0)
}

type MockFeeTierRepository struct {
	mock.Mock
}

func (m *MockFeeTierRepository) FindForTenant(ctx context.Context, tenantID uint) (*domain.PlatformFeeTier, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PlatformFeeTier), args.Error(1)
}

func (m *MockFeeTierRepository) FindByName(ctx context.Context, name string) (*domain.PlatformFeeTier, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PlatformFeeTier), args.Error(1)
}
