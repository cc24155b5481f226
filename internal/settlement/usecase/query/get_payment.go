package query

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tair/order-settlement/internal/settlement/domain"
)

// GetPaymentQuery represents the query to get a payment with its refunds
type GetPaymentQuery struct {
	TenantID  uint
	PaymentID uint
}

// PaymentView is a payment with its refund rows
type PaymentView struct {
	Payment *domain.Payment `json:"payment"`
	Refunds []domain.Refund `json:"refunds"`
}

// GetPaymentHandler handles get payment query
type GetPaymentHandler struct {
	payments domain.PaymentRepository
	refunds  domain.RefundRepository
}

// NewGetPaymentHandler creates a new get payment handler
func NewGetPaymentHandler(payments domain.PaymentRepository, refunds domain.RefundRepository) *GetPaymentHandler {
	return &GetPaymentHandler{payments: payments, refunds: refunds}
}

// Handle executes the get payment query
func (h *GetPaymentHandler) Handle(ctx context.Context, q GetPaymentQuery) (*PaymentView, error) {
	if q.PaymentID == 0 {
		return nil, domain.NewError(domain.CodeValidation, "payment_id is required")
	}

	payment, err := h.payments.FindByID(ctx, q.PaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewErrorf(domain.CodePaymentNotFound, "payment %d not found", q.PaymentID)
		}
		return nil, err
	}
	if payment.TenantID != q.TenantID {
		return nil, domain.NewError(domain.CodeUnauthorized, "payment belongs to another tenant")
	}

	refunds, err := h.refunds.FindByPaymentID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}

	return &PaymentView{Payment: payment, Refunds: refunds}, nil
}
