package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// CallTimeout bounds every outbound gateway call. A deadline hit is an
// unknown outcome, not a failure: the money may have moved.
const CallTimeout = 15 * time.Second

// AuthorizeRequest reserves funds on a tokenized payment method
type AuthorizeRequest struct {
	TenantID       uint
	OrderID        uint
	Amount         int64
	Currency       string
	PaymentMethod  string // tokenized reference supplied by the caller
	IdempotencyKey string
	Metadata       map[string]string
}

// CaptureRequest transfers previously authorized funds
type CaptureRequest struct {
	AuthorizationRef string
	Amount           int64
	Currency         string
	IdempotencyKey   string
}

// ChargeRequest authorizes and captures in one step
type ChargeRequest struct {
	TenantID       uint
	OrderID        uint
	Amount         int64
	Currency       string
	PaymentMethod  string
	IdempotencyKey string
	Metadata       map[string]string
}

// RefundRequest returns captured funds
type RefundRequest struct {
	TransactionRef string
	Amount         int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

// Result is a successful authorize/capture/charge outcome
type Result struct {
	TransactionRef   string
	AuthorizationRef string
	GatewayFee       int64 // processor's transaction fee in minor units
}

// RefundResult is a successful refund outcome
type RefundResult struct {
	RefundRef string
}

// Webhook event types every adapter normalizes its notifications into
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventRefundSucceeded  = "refund.succeeded"
	EventDisputeCreated   = "dispute.created"
)

// Event is a verified, parsed gateway notification
type Event struct {
	EventID        string
	Type           string
	TransactionRef string
	RefundRef      string
	Amount         int64
	DeclineCode    string
	OccurredAt     time.Time
}

// DeclinedError is a definitive gateway refusal carrying the gateway's own
// decline code
type DeclinedError struct {
	Operation string
	Code      string
	Message   string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("gateway declined %s (%s): %s", e.Operation, e.Code, e.Message)
}

// UnknownOutcomeError wraps a transport-level failure (network, timeout)
// where the gateway-side result cannot be known. Callers must not replay the
// operation; reconciliation happens via webhook.
type UnknownOutcomeError struct {
	Operation string
	Err       error
}

func (e *UnknownOutcomeError) Error() string {
	return fmt.Sprintf("gateway %s outcome unknown: %v", e.Operation, e.Err)
}

func (e *UnknownOutcomeError) Unwrap() error {
	return e.Err
}

// ErrSignatureInvalid is returned by VerifyWebhook on a bad signature
var ErrSignatureInvalid = errors.New("webhook signature verification failed")

// Gateway is the capability set the settlement engine requires from a
// payment processor adapter. Implementations live outside the engine; the
// sandbox adapter in this package exists for development and tests.
type Gateway interface {
	Name() string
	Authorize(ctx context.Context, req AuthorizeRequest) (*Result, error)
	Capture(ctx context.Context, req CaptureRequest) (*Result, error)
	Charge(ctx context.Context, req ChargeRequest) (*Result, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	VerifyWebhook(payload []byte, signature string) error
	ParseWebhook(payload []byte) (*Event, error)
}

// Registry holds the configured gateway adapters keyed by gateway type
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry creates a registry from the given adapters
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway)}
	for _, gw := range gateways {
		r.gateways[gw.Name()] = gw
	}
	return r
}

// Get returns the adapter for a gateway type
func (r *Registry) Get(name string) (Gateway, error) {
	gw, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("unknown gateway type: %s", name)
	}
	return gw, nil
}

// Names lists the registered gateway types
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClassifyTransportError converts context/transport failures into an
// UnknownOutcomeError so callers cannot mistake a timeout for a decline
func ClassifyTransportError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &UnknownOutcomeError{Operation: operation, Err: err}
	}
	return err
}

// IdempotencyKey derives a gateway idempotency token from the logical
// operation so gateway-side retries are safe
func IdempotencyKey(orderID uint, operation, attempt string) string {
	return fmt.Sprintf("ord-%d:%s:%s", orderID, operation, attempt)
}
