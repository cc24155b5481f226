package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tair/order-settlement/pkg/logger"
)

// Magic payment-method tokens the sandbox recognizes
const (
	TokenDeclined = "tok_sandbox_declined"
	TokenTimeout  = "tok_sandbox_timeout"
)

// Sandbox is an in-process gateway adapter for development and tests. It
// approves everything except the magic decline/timeout tokens, charges a
// 2.9% + 30 processor fee, and signs webhooks with HMAC-SHA256.
type Sandbox struct {
	name   string
	secret []byte
}

// NewSandbox creates a sandbox gateway with the given webhook secret
func NewSandbox(secret string) *Sandbox {
	return &Sandbox{name: "sandbox", secret: []byte(secret)}
}

// Name returns the gateway type identifier
func (s *Sandbox) Name() string {
	return s.name
}

func (s *Sandbox) fee(amount int64) int64 {
	return amount*290/10000 + 30
}

func (s *Sandbox) simulate(ctx context.Context, operation, paymentMethod string) error {
	switch paymentMethod {
	case TokenDeclined:
		return &DeclinedError{
			Operation: operation,
			Code:      "card_declined",
			Message:   "sandbox card declined",
		}
	case TokenTimeout:
		return &UnknownOutcomeError{
			Operation: operation,
			Err:       context.DeadlineExceeded,
		}
	}
	if err := ctx.Err(); err != nil {
		return ClassifyTransportError(operation, err)
	}
	return nil
}

// Authorize reserves funds
func (s *Sandbox) Authorize(ctx context.Context, req AuthorizeRequest) (*Result, error) {
	if err := s.simulate(ctx, "authorize", req.PaymentMethod); err != nil {
		return nil, err
	}
	logger.Debug(ctx).
		Uint("order_id", req.OrderID).
		Int64("amount", req.Amount).
		Str("idempotency_key", req.IdempotencyKey).
		Msg("Sandbox authorization approved")
	return &Result{
		AuthorizationRef: "auth_" + uuid.New().String(),
		GatewayFee:       s.fee(req.Amount),
	}, nil
}

// Capture transfers authorized funds
func (s *Sandbox) Capture(ctx context.Context, req CaptureRequest) (*Result, error) {
	if req.AuthorizationRef == "" {
		return nil, &DeclinedError{
			Operation: "capture",
			Code:      "authorization_not_found",
			Message:   "no authorization to capture",
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, ClassifyTransportError("capture", err)
	}
	return &Result{
		TransactionRef:   "txn_" + uuid.New().String(),
		AuthorizationRef: req.AuthorizationRef,
		GatewayFee:       s.fee(req.Amount),
	}, nil
}

// Charge authorizes and captures in one step
func (s *Sandbox) Charge(ctx context.Context, req ChargeRequest) (*Result, error) {
	if err := s.simulate(ctx, "charge", req.PaymentMethod); err != nil {
		return nil, err
	}
	return &Result{
		TransactionRef:   "txn_" + uuid.New().String(),
		AuthorizationRef: "auth_" + uuid.New().String(),
		GatewayFee:       s.fee(req.Amount),
	}, nil
}

// Refund returns captured funds
func (s *Sandbox) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if req.TransactionRef == "" {
		return nil, &DeclinedError{
			Operation: "refund",
			Code:      "transaction_not_found",
			Message:   "no transaction to refund",
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, ClassifyTransportError("refund", err)
	}
	return &RefundResult{RefundRef: "re_" + uuid.New().String()}, nil
}

// Sign computes the webhook signature the sandbox would attach to payload.
// Exposed so tests and local tooling can fabricate deliveries.
func (s *Sandbox) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook checks the HMAC-SHA256 signature before any parsing
func (s *Sandbox) VerifyWebhook(payload []byte, signature string) error {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return ErrSignatureInvalid
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), expected) {
		return ErrSignatureInvalid
	}
	return nil
}

// sandboxWebhookPayload is the sandbox's wire format for notifications
type sandboxWebhookPayload struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	TransactionRef string `json:"transaction_ref"`
	RefundRef      string `json:"refund_ref,omitempty"`
	Amount         int64  `json:"amount"`
	DeclineCode    string `json:"decline_code,omitempty"`
	CreatedAt      int64  `json:"created_at"`
}

// ParseWebhook decodes a verified sandbox notification
func (s *Sandbox) ParseWebhook(payload []byte) (*Event, error) {
	var p sandboxWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to parse sandbox webhook: %w", err)
	}
	if p.ID == "" || p.Type == "" {
		return nil, fmt.Errorf("sandbox webhook missing id or type")
	}
	return &Event{
		EventID:        p.ID,
		Type:           p.Type,
		TransactionRef: p.TransactionRef,
		RefundRef:      p.RefundRef,
		Amount:         p.Amount,
		DeclineCode:    p.DeclineCode,
		OccurredAt:     time.Unix(p.CreatedAt, 0).UTC(),
	}, nil
}
