package command

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/tair/order-settlement/internal/settlement/domain"
	"github.com/tair/order-settlement/internal/settlement/gateway"
	"github.com/tair/order-settlement/kafka"
)

type MockWebhookPublisher struct {
	mock.Mock
}

func (m *MockWebhookPublisher) PublishWebhookReceived(ctx context.Context, event kafka.WebhookReceivedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type webhookFixture struct {
	handler  *IngestWebhookHandler
	sandbox  *gateway.Sandbox
	orders   *MockOrderRepository
	events   *MockWebhookEventRepository
	payments *MockPaymentRepository
	refunds  *MockRefundRepository
}

func newWebhookFixture(publisher WebhookPublisher) *webhookFixture {
	f := &webhookFixture{
		sandbox:  gateway.NewSandbox("test-secret"),
		orders:   new(MockOrderRepository),
		events:   new(MockWebhookEventRepository),
		payments: new(MockPaymentRepository),
		refunds:  new(MockRefundRepository),
	}
	f.handler = NewIngestWebhookHandler(
		gateway.NewRegistry(f.sandbox),
		f.events, f.payments, f.refunds,
		NewSyncOrderHandler(f.orders),
		publisher,
	)
	return f
}

func (f *webhookFixture) signedDelivery(t *testing.T, body map[string]interface{}) IngestWebhookCommand {
	t.Helper()
	payload, err := json.Marshal(body)
	assert.NoError(t, err)
	return IngestWebhookCommand{
		GatewayType: "sandbox",
		Payload:     payload,
		Signature:   f.sandbox.Sign(payload),
	}
}

func (f *webhookFixture) expectInsert(rowID uint) {
	f.events.On("Insert", mock.Anything, mock.AnythingOfType("*domain.WebhookEvent")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.WebhookEvent).ID = rowID
		}).
		Return(true, nil)
}

func TestIngestWebhookRejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(nil)

	_, err := f.handler.Handle(context.Background(), IngestWebhookCommand{
		GatewayType: "sandbox",
		Payload:     []byte(`{"id":"evt_1","type":"payment.succeeded"}`),
		Signature:   "deadbeef",
	})

	assert.Equal(t, domain.CodeSignatureInvalid, domain.ErrorCode(err))
	f.events.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestIngestWebhookUnknownGateway(t *testing.T) {
	f := newWebhookFixture(nil)

	_, err := f.handler.Handle(context.Background(), IngestWebhookCommand{
		GatewayType: "stripe",
		Payload:     []byte(`{}`),
	})

	assert.Equal(t, domain.CodeValidation, domain.ErrorCode(err))
}

func TestIngestWebhookDuplicateDelivery(t *testing.T) {
	f := newWebhookFixture(nil)
	f.events.On("Insert", mock.Anything, mock.AnythingOfType("*domain.WebhookEvent")).Return(false, nil)

	result, err := f.handler.Handle(context.Background(), f.signedDelivery(t, map[string]interface{}{
		"id":   "evt_dup",
		"type": "payment.succeeded",
	}))

	assert.NoError(t, err)
	assert.True(t, result.Duplicate)
	f.payments.AssertNotCalled(t, "FindByGatewayRef", mock.Anything, mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestWebhookPaymentSucceededCapturesAuthorized(t *testing.T) {
	f := newWebhookFixture(nil)
	f.expectInsert(55)

	payment := authorizedPayment()
	f.payments.On("FindByGatewayRef", mock.Anything, "sandbox", "txn_abc").Return(payment, nil)

	captured := authorizedPayment()
	captured.Status = domain.PaymentStatusPaid
	captured.GatewayTransactionRef = "txn_abc"
	f.payments.On("Capture", mock.Anything, uint(100), int64(10000), mock.AnythingOfType("time.Time")).
		Return(domain.CaptureResult{Captured: true, Payment: captured}, nil)

	f.orders.On("FindByIDAny", mock.Anything, uint(10)).Return(&domain.Order{
		ID: 10, Status: domain.OrderStatusConfirmed, PaymentStatus: domain.PaymentStatusAuthorized,
	}, nil)
	f.orders.On("ApplyTransition", mock.Anything, uint(10), mock.AnythingOfType("domain.OrderTransition")).Return(nil)

	f.events.On("MarkProcessed", mock.Anything, uint(55), "").Return(nil)

	result, err := f.handler.Handle(context.Background(), f.signedDelivery(t, map[string]interface{}{
		"id":              "evt_1",
		"type":            "payment.succeeded",
		"transaction_ref": "txn_abc",
		"amount":          10000,
	}))

	assert.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.False(t, result.Deferred)
	f.payments.AssertExpectations(t)
	f.events.AssertExpectations(t)
	f.orders.AssertExpectations(t)
}

func TestIngestWebhookPaymentSucceededReplayOnSettledPayment(t *testing.T) {
	f := newWebhookFixture(nil)
	f.expectInsert(56)

	paid := authorizedPayment()
	paid.Status = domain.PaymentStatusPaid
	f.payments.On("FindByGatewayRef", mock.Anything, "sandbox", "txn_abc").Return(paid, nil)
	f.events.On("MarkProcessed", mock.Anything, uint(56), "").Return(nil)

	_, err := f.handler.Handle(context.Background(), f.signedDelivery(t, map[string]interface{}{
		"id":              "evt_2",
		"type":            "payment.succeeded",
		"transaction_ref": "txn_abc",
	}))

	assert.NoError(t, err)
	f.payments.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.events.AssertExpectations(t)
}

func TestIngestWebhookPaymentFailedFlipsPending(t *testing.T) {
	f := newWebhookFixture(nil)
	f.expectInsert(57)

	pending := authorizedPayment()
	pending.Status = domain.PaymentStatusPending
	f.payments.On("FindByGatewayRef", mock.Anything, "sandbox", "txn_abc").Return(pending, nil)
	f.payments.On("UpdateStatus", mock.Anything, uint(100), domain.PaymentStatusPending, domain.PaymentStatusFailed).
		Return(true, nil)

	f.orders.On("FindByIDAny", mock.Anything, uint(10)).Return(&domain.Order{
		ID: 10, Status: domain.OrderStatusDraft, PaymentStatus: domain.PaymentStatusPending,
	}, nil)
	f.orders.On("ApplyTransition", mock.Anything, uint(10), mock.AnythingOfType("domain.OrderTransition")).Return(nil)

	f.events.On("MarkProcessed", mock.Anything, uint(57), "").Return(nil)

	_, err := f.handler.Handle(context.Background(), f.signedDelivery(t, map[string]interface{}{
		"id":              "evt_3",
		"type":            "payment.failed",
		"transaction_ref": "txn_abc",
		"decline_code":    "insufficient_funds",
	}))

	assert.NoError(t, err)
	f.payments.AssertExpectations(t)
}

func TestIngestWebhookRefundSucceededSkipsKnownRefund(t *testing.T) {
	f := newWebhookFixture(nil)
	f.expectInsert(58)

	f.refunds.On("FindByGatewayRef", mock.Anything, "re_known").Return(&domain.Refund{ID: 7}, nil)
	f.events.On("MarkProcessed", mock.Anything, uint(58), "").Return(nil)

	_, err := f.handler.Handle(context.Background(), f.signedDelivery(t, map[string]interface{}{
		"id":         "evt_4",
		"type":       "refund.succeeded",
		"refund_ref": "re_known",
	}))

	assert.NoError(t, err)
	f.payments.AssertNotCalled(t, "ApplyRefund", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestWebhookRefundSucceededGatewayInitiated(t *testing.T) {
	f := newWebhookFixture(nil)
	f.expectInsert(59)

	f.refunds.On("FindByGatewayRef", mock.Anything, "re_new").Return(nil, gorm.ErrRecordNotFound)

	paid := authorizedPayment()
	paid.Status = domain.PaymentStatusPaid
	f.payments.On("FindByGatewayRef", mock.Anything, "sandbox", "txn_abc").Return(paid, nil)

	updated := authorizedPayment()
	updated.Status = domain.PaymentStatusPartiallyRefunded
	updated.RefundedAmount = 2000
	f.payments.On("ApplyRefund", mock.Anything, uint(100), int64(2000)).
		Return(domain.RefundApplication{Applied: true, Payment: updated}, nil)

	var created *domain.Refund
	f.refunds.On("Create", mock.Anything, mock.AnythingOfType("*domain.Refund")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*domain.Refund)
		}).
		Return(nil)

	f.orders.On("FindByIDAny", mock.Anything, uint(10)).Return(&domain.Order{
		ID: 10, Status: domain.OrderStatusPaid, PaymentStatus: domain.PaymentStatusPaid,
	}, nil)
	f.orders.On("ApplyTransition", mock.Anything, uint(10), mock.AnythingOfType("domain.OrderTransition")).Return(nil)

	f.events.On("MarkProcessed", mock.Anything, uint(59), "").Return(nil)

	_, err := f.handler.Handle(context.Background(), f.signedDelivery(t, map[string]interface{}{
		"id":              "evt_5",
		"type":            "refund.succeeded",
		"transaction_ref": "txn_abc",
		"refund_ref":      "re_new",
		"amount":          2000,
	}))

	assert.NoError(t, err)
	assert.Equal(t, "re_new", created.GatewayRefundRef)
	assert.True(t, created.IsPartial)
	f.payments.AssertExpectations(t)
}

func TestIngestWebhookUnmappedEventTypeRecordsError(t *testing.T) {
	f := newWebhookFixture(nil)
	f.expectInsert(60)

	f.events.On("MarkProcessed", mock.Anything, uint(60), mock.MatchedBy(func(msg string) bool {
		return msg != ""
	})).Return(nil)

	result, err := f.handler.Handle(context.Background(), f.signedDelivery(t, map[string]interface{}{
		"id":   "evt_6",
		"type": "invoice.created",
	}))

	// Apply failures never bounce back to the gateway
	assert.NoError(t, err)
	assert.False(t, result.Duplicate)
	f.events.AssertExpectations(t)
}

func TestIngestWebhookDefersToPublisher(t *testing.T) {
	publisher := new(MockWebhookPublisher)
	f := newWebhookFixture(publisher)
	f.expectInsert(61)

	publisher.On("PublishWebhookReceived", mock.Anything, kafka.WebhookReceivedEvent{
		Gateway:        "sandbox",
		GatewayEventID: "evt_7",
	}).Return(nil)

	result, err := f.handler.Handle(context.Background(), f.signedDelivery(t, map[string]interface{}{
		"id":              "evt_7",
		"type":            "payment.succeeded",
		"transaction_ref": "txn_abc",
	}))

	assert.NoError(t, err)
	assert.True(t, result.Deferred)
	f.payments.AssertNotCalled(t, "FindByGatewayRef", mock.Anything, mock.Anything, mock.Anything)
	publisher.AssertExpectations(t)
}

func TestIngestWebhookAppliesInlineWhenPublishFails(t *testing.T) {
	publisher := new(MockWebhookPublisher)
	f := newWebhookFixture(publisher)
	f.expectInsert(62)

	publisher.On("PublishWebhookReceived", mock.Anything, mock.AnythingOfType("kafka.WebhookReceivedEvent")).
		Return(errors.New("broker down"))

	paid := authorizedPayment()
	paid.Status = domain.PaymentStatusPaid
	f.payments.On("FindByGatewayRef", mock.Anything, "sandbox", "txn_abc").Return(paid, nil)
	f.events.On("MarkProcessed", mock.Anything, uint(62), "").Return(nil)

	result, err := f.handler.Handle(context.Background(), f.signedDelivery(t, map[string]interface{}{
		"id":              "evt_8",
		"type":            "payment.succeeded",
		"transaction_ref": "txn_abc",
	}))

	assert.NoError(t, err)
	assert.False(t, result.Deferred)
	f.events.AssertExpectations(t)
}

func TestApplyStoredEvent(t *testing.T) {
	f := newWebhookFixture(nil)

	payload, _ := json.Marshal(map[string]interface{}{
		"id":              "evt_9",
		"type":            "payment.succeeded",
		"transaction_ref": "txn_abc",
	})
	f.events.On("FindByEventID", mock.Anything, "sandbox", "evt_9").Return(&domain.WebhookEvent{
		ID:             63,
		Gateway:        "sandbox",
		GatewayEventID: "evt_9",
		EventType:      "payment.succeeded",
		Payload:        string(payload),
	}, nil)

	paid := authorizedPayment()
	paid.Status = domain.PaymentStatusPaid
	f.payments.On("FindByGatewayRef", mock.Anything, "sandbox", "txn_abc").Return(paid, nil)
	f.events.On("MarkProcessed", mock.Anything, uint(63), "").Return(nil)

	err := f.handler.Apply(context.Background(), "sandbox", "evt_9")

	assert.NoError(t, err)
	f.events.AssertExpectations(t)
}

func TestApplyStoredEventAlreadyProcessed(t *testing.T) {
	f := newWebhookFixture(nil)

	f.events.On("FindByEventID", mock.Anything, "sandbox", "evt_10").Return(&domain.WebhookEvent{
		ID:        64,
		Processed: true,
	}, nil)

	err := f.handler.Apply(context.Background(), "sandbox", "evt_10")

	assert.NoError(t, err)
	f.events.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}
