package repository

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tair/order-settlement/internal/settlement/domain"
)

var tracer = otel.Tracer("settlement-repository")

// PaymentRepositoryWithTracing wraps the payment repository with spans
// around every data access, the capture/refund guards included.
type PaymentRepositoryWithTracing struct {
	inner domain.PaymentRepository
}

// NewPaymentRepositoryWithTracing creates a traced payment repository
func NewPaymentRepositoryWithTracing(db *gorm.DB) *PaymentRepositoryWithTracing {
	return &PaymentRepositoryWithTracing{inner: NewGormPaymentRepository(db)}
}

func (r *PaymentRepositoryWithTracing) Create(ctx context.Context, payment *domain.Payment) error {
	ctx, span := tracer.Start(ctx, "repository.payment.Create",
		trace.WithAttributes(
			attribute.Int64("order.id", int64(payment.OrderID)),
			attribute.Int64("payment.amount", payment.Amount),
			attribute.String("payment.status", payment.Status),
		),
	)
	defer span.End()

	err := r.inner.Create(ctx, payment)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(attribute.Int64("payment.id", int64(payment.ID)))
	return nil
}

func (r *PaymentRepositoryWithTracing) Update(ctx context.Context, payment *domain.Payment) error {
	ctx, span := tracer.Start(ctx, "repository.payment.Update",
		trace.WithAttributes(attribute.Int64("payment.id", int64(payment.ID))),
	)
	defer span.End()

	err := r.inner.Update(ctx, payment)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (r *PaymentRepositoryWithTracing) FindByID(ctx context.Context, id uint) (*domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "repository.payment.FindByID",
		trace.WithAttributes(attribute.Int64("payment.id", int64(id))),
	)
	defer span.End()

	payment, err := r.inner.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return payment, nil
}

func (r *PaymentRepositoryWithTracing) FindByOrderID(ctx context.Context, orderID uint) ([]domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "repository.payment.FindByOrderID",
		trace.WithAttributes(attribute.Int64("order.id", int64(orderID))),
	)
	defer span.End()

	payments, err := r.inner.FindByOrderID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(payments)))
	return payments, nil
}

func (r *PaymentRepositoryWithTracing) FindLatestAuthorized(ctx context.Context, orderID uint) (*domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "repository.payment.FindLatestAuthorized",
		trace.WithAttributes(attribute.Int64("order.id", int64(orderID))),
	)
	defer span.End()

	payment, err := r.inner.FindLatestAuthorized(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return payment, nil
}

func (r *PaymentRepositoryWithTracing) FindByGatewayRef(ctx context.Context, gateway, transactionRef string) (*domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "repository.payment.FindByGatewayRef",
		trace.WithAttributes(
			attribute.String("gateway.name", gateway),
			attribute.String("gateway.transaction_ref", transactionRef),
		),
	)
	defer span.End()

	payment, err := r.inner.FindByGatewayRef(ctx, gateway, transactionRef)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return payment, nil
}

func (r *PaymentRepositoryWithTracing) Capture(ctx context.Context, id uint, amount int64, capturedAt time.Time) (domain.CaptureResult, error) {
	ctx, span := tracer.Start(ctx, "repository.payment.Capture",
		trace.WithAttributes(
			attribute.Int64("payment.id", int64(id)),
			attribute.Int64("payment.amount", amount),
		),
	)
	defer span.End()

	result, err := r.inner.Capture(ctx, id, amount, capturedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	span.SetAttributes(attribute.Bool("payment.captured", result.Captured))
	return result, nil
}

func (r *PaymentRepositoryWithTracing) ApplyRefund(ctx context.Context, id uint, amount int64) (domain.RefundApplication, error) {
	ctx, span := tracer.Start(ctx, "repository.payment.ApplyRefund",
		trace.WithAttributes(
			attribute.Int64("payment.id", int64(id)),
			attribute.Int64("refund.amount", amount),
		),
	)
	defer span.End()

	result, err := r.inner.ApplyRefund(ctx, id, amount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	span.SetAttributes(attribute.Bool("refund.applied", result.Applied))
	return result, nil
}

func (r *PaymentRepositoryWithTracing) UpdateStatus(ctx context.Context, id uint, fromStatus, toStatus string) (bool, error) {
	ctx, span := tracer.Start(ctx, "repository.payment.UpdateStatus",
		trace.WithAttributes(
			attribute.Int64("payment.id", int64(id)),
			attribute.String("payment.from_status", fromStatus),
			attribute.String("payment.to_status", toStatus),
		),
	)
	defer span.End()

	updated, err := r.inner.UpdateStatus(ctx, id, fromStatus, toStatus)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	span.SetAttributes(attribute.Bool("payment.updated", updated))
	return updated, nil
}
