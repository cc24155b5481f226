package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSandboxAuthorize(t *testing.T) {
	sb := NewSandbox("secret")

	result, err := sb.Authorize(context.Background(), AuthorizeRequest{
		TenantID:      1,
		OrderID:       10,
		Amount:        10000,
		Currency:      "USD",
		PaymentMethod: "tok_visa",
	})

	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.AuthorizationRef, "auth_"))
	assert.Empty(t, result.TransactionRef)
	// 2.9% + 30
	assert.Equal(t, int64(320), result.GatewayFee)
}

func TestSandboxAuthorizeDeclined(t *testing.T) {
	sb := NewSandbox("secret")

	result, err := sb.Authorize(context.Background(), AuthorizeRequest{
		Amount:        5000,
		PaymentMethod: TokenDeclined,
	})

	assert.Nil(t, result)
	var declined *DeclinedError
	assert.ErrorAs(t, err, &declined)
	assert.Equal(t, "authorize", declined.Operation)
	assert.Equal(t, "card_declined", declined.Code)
}

func TestSandboxAuthorizeTimeout(t *testing.T) {
	sb := NewSandbox("secret")

	_, err := sb.Authorize(context.Background(), AuthorizeRequest{
		Amount:        5000,
		PaymentMethod: TokenTimeout,
	})

	var unknown *UnknownOutcomeError
	assert.ErrorAs(t, err, &unknown)
	assert.Equal(t, "authorize", unknown.Operation)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSandboxCapture(t *testing.T) {
	sb := NewSandbox("secret")

	result, err := sb.Capture(context.Background(), CaptureRequest{
		AuthorizationRef: "auth_abc",
		Amount:           10000,
	})

	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.TransactionRef, "txn_"))
	assert.Equal(t, "auth_abc", result.AuthorizationRef)
	assert.Equal(t, int64(320), result.GatewayFee)
}

func TestSandboxCaptureWithoutAuthorization(t *testing.T) {
	sb := NewSandbox("secret")

	_, err := sb.Capture(context.Background(), CaptureRequest{Amount: 10000})

	var declined *DeclinedError
	assert.ErrorAs(t, err, &declined)
	assert.Equal(t, "authorization_not_found", declined.Code)
}

func TestSandboxCharge(t *testing.T) {
	sb := NewSandbox("secret")

	result, err := sb.Charge(context.Background(), ChargeRequest{
		Amount:        1000,
		PaymentMethod: "tok_visa",
	})

	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.TransactionRef, "txn_"))
	assert.True(t, strings.HasPrefix(result.AuthorizationRef, "auth_"))
	assert.Equal(t, int64(59), result.GatewayFee)
}

func TestSandboxRefundWithoutTransaction(t *testing.T) {
	sb := NewSandbox("secret")

	_, err := sb.Refund(context.Background(), RefundRequest{Amount: 500})

	var declined *DeclinedError
	assert.ErrorAs(t, err, &declined)
	assert.Equal(t, "transaction_not_found", declined.Code)
}

func TestSandboxRefund(t *testing.T) {
	sb := NewSandbox("secret")

	result, err := sb.Refund(context.Background(), RefundRequest{
		TransactionRef: "txn_abc",
		Amount:         500,
	})

	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.RefundRef, "re_"))
}

func TestSandboxWebhookSignature(t *testing.T) {
	sb := NewSandbox("secret")
	payload := []byte(`{"id":"evt_1","type":"payment.succeeded"}`)

	sig := sb.Sign(payload)
	assert.NoError(t, sb.VerifyWebhook(payload, sig))

	// Tampered payload fails
	assert.ErrorIs(t, sb.VerifyWebhook([]byte(`{"id":"evt_2"}`), sig), ErrSignatureInvalid)

	// Wrong secret fails
	other := NewSandbox("other-secret")
	assert.ErrorIs(t, other.VerifyWebhook(payload, sig), ErrSignatureInvalid)

	// Non-hex signature fails without panicking
	assert.ErrorIs(t, sb.VerifyWebhook(payload, "not-hex"), ErrSignatureInvalid)
}

func TestSandboxParseWebhook(t *testing.T) {
	sb := NewSandbox("secret")
	payload, _ := json.Marshal(map[string]interface{}{
		"id":              "evt_1",
		"type":            "payment.succeeded",
		"transaction_ref": "txn_abc",
		"amount":          10000,
		"created_at":      1700000000,
	})

	evt, err := sb.ParseWebhook(payload)

	assert.NoError(t, err)
	assert.Equal(t, "evt_1", evt.EventID)
	assert.Equal(t, EventPaymentSucceeded, evt.Type)
	assert.Equal(t, "txn_abc", evt.TransactionRef)
	assert.Equal(t, int64(10000), evt.Amount)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), evt.OccurredAt)
}

func TestSandboxParseWebhookRejectsIncomplete(t *testing.T) {
	sb := NewSandbox("secret")

	_, err := sb.ParseWebhook([]byte(`{"type":"payment.succeeded"}`))
	assert.Error(t, err)

	_, err = sb.ParseWebhook([]byte(`{"id":"evt_1"}`))
	assert.Error(t, err)

	_, err = sb.ParseWebhook([]byte(`not json`))
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	sb := NewSandbox("secret")
	registry := NewRegistry(sb)

	gw, err := registry.Get("sandbox")
	assert.NoError(t, err)
	assert.Equal(t, "sandbox", gw.Name())

	_, err = registry.Get("stripe")
	assert.Error(t, err)

	assert.Equal(t, []string{"sandbox"}, registry.Names())
}

func TestClassifyTransportError(t *testing.T) {
	assert.NoError(t, ClassifyTransportError("capture", nil))

	err := ClassifyTransportError("capture", context.DeadlineExceeded)
	var unknown *UnknownOutcomeError
	assert.ErrorAs(t, err, &unknown)
	assert.Equal(t, "capture", unknown.Operation)

	err = ClassifyTransportError("refund", context.Canceled)
	assert.ErrorAs(t, err, &unknown)

	plain := assert.AnError
	assert.Equal(t, plain, ClassifyTransportError("charge", plain))
}

func TestIdempotencyKey(t *testing.T) {
	assert.Equal(t, "ord-42:capture:attempt-1", IdempotencyKey(42, "capture", "attempt-1"))
}
