package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// AuthorizationWindow is how long an authorization stays capturable.
const AuthorizationWindow = 7 * 24 * time.Hour

// Payment represents one attempt to move money against an order. An order
// may carry several rows (a failed attempt followed by a retry); capture
// without an explicit id targets the most recently authorized one.
type Payment struct {
	ID                      uint           `json:"id" gorm:"primaryKey"`
	OrderID                 uint           `json:"order_id" gorm:"not null;index"`
	TenantID                uint           `json:"tenant_id" gorm:"not null;index"`
	Amount                  int64          `json:"amount" gorm:"not null"`
	RefundedAmount          int64          `json:"refunded_amount" gorm:"not null;default:0"`
	Currency                string         `json:"currency" gorm:"default:'USD'"`
	PaymentMethod           string         `json:"payment_method"`
	Status                  string         `json:"status" gorm:"default:'pending';index"`
	Gateway                 string         `json:"gateway" gorm:"not null"`
	GatewayTransactionRef   string         `json:"gateway_transaction_ref" gorm:"index"`
	GatewayAuthorizationRef string         `json:"gateway_authorization_ref"`
	GatewayFee              int64          `json:"gateway_fee"`
	PlatformFee             int64          `json:"platform_fee"`
	PlatformFeePercentage   float64        `json:"platform_fee_percentage"`
	TotalFees               int64          `json:"total_fees"`
	NetAmount               int64          `json:"net_amount"`
	FeeWaived               bool           `json:"fee_waived"`
	FeeWaivedReason         string         `json:"fee_waived_reason,omitempty"`
	FailureCode             string         `json:"failure_code,omitempty"`
	AuthorizedAt            *time.Time     `json:"authorized_at,omitempty"`
	AuthorizationExpiresAt  *time.Time     `json:"authorization_expires_at,omitempty"`
	CapturedAt              *time.Time     `json:"captured_at,omitempty"`
	CreatedAt               time.Time      `json:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"`
	DeletedAt               gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name
func (Payment) TableName() string {
	return "payments"
}

// RemainingBalance is the unrefunded portion of a captured payment
func (p *Payment) RemainingBalance() int64 {
	return p.Amount - p.RefundedAmount
}

// AuthorizationExpired reports whether the capture window has closed
func (p *Payment) AuthorizationExpired(now time.Time) bool {
	return p.AuthorizationExpiresAt != nil && now.After(*p.AuthorizationExpiresAt)
}

// Payment statuses
const (
	PaymentStatusPending           = "pending"
	PaymentStatusAuthorized        = "authorized"
	PaymentStatusPaid              = "paid"
	PaymentStatusPartiallyRefunded = "partially_refunded"
	PaymentStatusRefunded          = "refunded"
	PaymentStatusFailed            = "failed"
	PaymentStatusCancelled         = "cancelled"
)

// Refund is an amount returned against a captured payment, immutable once
// the gateway confirms completion.
type Refund struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	PaymentID        uint      `json:"payment_id" gorm:"not null;index"`
	GatewayRefundRef string    `json:"gateway_refund_ref"`
	Amount           int64     `json:"amount" gorm:"not null"`
	Reason           string    `json:"reason"`
	Status           string    `json:"status" gorm:"default:'completed'"`
	IsPartial        bool      `json:"is_partial"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (Refund) TableName() string {
	return "refunds"
}

// Refund statuses
const (
	RefundStatusPending   = "pending"
	RefundStatusCompleted = "completed"
	RefundStatusFailed    = "failed"
)

// CaptureResult is the outcome of the conditional capture update
type CaptureResult struct {
	Captured bool
	Payment  *Payment
}

// RefundApplication is the outcome of the conditional refund accumulation
type RefundApplication struct {
	Applied bool
	Payment *Payment // reloaded row when applied
}

// PaymentRepository defines the contract for payment data access. Capture
// and ApplyRefund are conditional updates: they must report a lost race via
// the returned flag, never as a silent no-op.
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	FindByID(ctx context.Context, id uint) (*Payment, error)
	FindByOrderID(ctx context.Context, orderID uint) ([]Payment, error)
	FindLatestAuthorized(ctx context.Context, orderID uint) (*Payment, error)
	FindByGatewayRef(ctx context.Context, gateway, transactionRef string) (*Payment, error)
	Update(ctx context.Context, payment *Payment) error
	Capture(ctx context.Context, id uint, amount int64, capturedAt time.Time) (CaptureResult, error)
	ApplyRefund(ctx context.Context, id uint, amount int64) (RefundApplication, error)
	UpdateStatus(ctx context.Context, id uint, fromStatus, toStatus string) (bool, error)
}

// RefundRepository defines the contract for refund data access
type RefundRepository interface {
	Create(ctx context.Context, refund *Refund) error
	FindByPaymentID(ctx context.Context, paymentID uint) ([]Refund, error)
	FindByGatewayRef(ctx context.Context, gatewayRefundRef string) (*Refund, error)
}
