package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tair/order-settlement/internal/settlement/domain"
)

// AutoMigrate creates or updates the settlement schema
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Order{},
		&domain.OrderItem{},
		&domain.OrderStatusHistory{},
		&domain.Payment{},
		&domain.Refund{},
		&domain.PlatformFeeTier{},
		&domain.TenantTierAssignment{},
		&domain.WebhookEvent{},
	)
}

// SeedDefaultTiers inserts the built-in fee tier catalog when missing
func SeedDefaultTiers(db *gorm.DB) error {
	tiers := []domain.PlatformFeeTier{
		{Name: domain.TierStarter, Percentage: 2.0, FixedFee: 0, Active: true},
		{Name: domain.TierGrowth, Percentage: 1.5, FixedFee: 0, Active: true},
		{Name: domain.TierEnterprise, Percentage: 0, WaiveFees: true, Active: true},
	}
	for _, tier := range tiers {
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&tier).Error
		if err != nil {
			return fmt.Errorf("failed to seed fee tier %s: %w", tier.Name, err)
		}
	}
	return nil
}

// GormOrderRepository persists orders, items and status history
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new order repository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *GormOrderRepository) FindByID(ctx context.Context, tenantID, id uint) (*domain.Order, error) {
	var order domain.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ?", tenantID).
		First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormOrderRepository) FindByIDAny(ctx context.Context, id uint) (*domain.Order, error) {
	var order domain.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormOrderRepository) FindHistory(ctx context.Context, orderID uint) ([]domain.OrderStatusHistory, error) {
	var history []domain.OrderStatusHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&history).Error
	return history, err
}

// ApplyTransition updates order statuses and appends the audit rows in one
// transaction
func (r *GormOrderRepository) ApplyTransition(ctx context.Context, orderID uint, transition domain.OrderTransition) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{}
		if transition.OrderStatus != "" {
			updates["status"] = transition.OrderStatus
		}
		if transition.PaymentStatus != "" {
			updates["payment_status"] = transition.PaymentStatus
		}
		if len(updates) > 0 {
			err := tx.Model(&domain.Order{}).
				Where("id = ?", orderID).
				Updates(updates).Error
			if err != nil {
				return err
			}
		}
		for i := range transition.History {
			transition.History[i].OrderID = orderID
			if err := tx.Create(&transition.History[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormOrderRepository) UpdateNotes(ctx context.Context, orderID uint, notes string) error {
	return r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ?", orderID).
		Update("notes", notes).Error
}

// GormPaymentRepository persists payments. The capture and refund paths use
// conditional updates so concurrent callers lose the race visibly instead of
// silently double-applying.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new payment repository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *GormPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *GormPaymentRepository) FindByID(ctx context.Context, id uint) (*domain.Payment, error) {
	var payment domain.Payment
	err := r.db.WithContext(ctx).First(&payment, id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *GormPaymentRepository) FindByOrderID(ctx context.Context, orderID uint) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

// FindLatestAuthorized resolves the implicit capture target: latest by
// authorized_at, ties broken by highest id
func (r *GormPaymentRepository) FindLatestAuthorized(ctx context.Context, orderID uint) (*domain.Payment, error) {
	var payment domain.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, domain.PaymentStatusAuthorized).
		Order("authorized_at DESC, id DESC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *GormPaymentRepository) FindByGatewayRef(ctx context.Context, gateway, transactionRef string) (*domain.Payment, error) {
	var payment domain.Payment
	err := r.db.WithContext(ctx).
		Where("gateway = ? AND (gateway_transaction_ref = ? OR gateway_authorization_ref = ?)",
			gateway, transactionRef, transactionRef).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Capture performs the authorized -> paid transition as a single conditional
// update. A zero-row update means another caller captured first.
func (r *GormPaymentRepository) Capture(ctx context.Context, id uint, amount int64, capturedAt time.Time) (domain.CaptureResult, error) {
	res := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ? AND status = ?", id, domain.PaymentStatusAuthorized).
		Updates(map[string]interface{}{
			"status":      domain.PaymentStatusPaid,
			"amount":      amount,
			"captured_at": capturedAt,
		})
	if res.Error != nil {
		return domain.CaptureResult{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.CaptureResult{Captured: false}, nil
	}

	payment, err := r.FindByID(ctx, id)
	if err != nil {
		return domain.CaptureResult{}, err
	}
	return domain.CaptureResult{Captured: true, Payment: payment}, nil
}

// ApplyRefund accumulates the refunded amount and recomputes the status in a
// single guarded update, so two concurrent partial refunds can never exceed
// the captured amount together.
func (r *GormPaymentRepository) ApplyRefund(ctx context.Context, id uint, amount int64) (domain.RefundApplication, error) {
	capturedStatuses := []string{domain.PaymentStatusPaid, domain.PaymentStatusPartiallyRefunded}
	res := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ? AND status IN ? AND refunded_amount + ? <= amount", id, capturedStatuses, amount).
		Updates(map[string]interface{}{
			"refunded_amount": gorm.Expr("refunded_amount + ?", amount),
			"status": gorm.Expr(
				"CASE WHEN refunded_amount + ? >= amount THEN ? ELSE ? END",
				amount, domain.PaymentStatusRefunded, domain.PaymentStatusPartiallyRefunded,
			),
		})
	if res.Error != nil {
		return domain.RefundApplication{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.RefundApplication{Applied: false}, nil
	}

	payment, err := r.FindByID(ctx, id)
	if err != nil {
		return domain.RefundApplication{}, err
	}
	return domain.RefundApplication{Applied: true, Payment: payment}, nil
}

// UpdateStatus flips status conditionally on the expected current value
func (r *GormPaymentRepository) UpdateStatus(ctx context.Context, id uint, fromStatus, toStatus string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Update("status", toStatus)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GormRefundRepository persists refund rows
type GormRefundRepository struct {
	db *gorm.DB
}

// NewGormRefundRepository creates a new refund repository
func NewGormRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

func (r *GormRefundRepository) Create(ctx context.Context, refund *domain.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

func (r *GormRefundRepository) FindByGatewayRef(ctx context.Context, gatewayRefundRef string) (*domain.Refund, error) {
	var refund domain.Refund
	err := r.db.WithContext(ctx).
		Where("gateway_refund_ref = ?", gatewayRefundRef).
		First(&refund).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *GormRefundRepository) FindByPaymentID(ctx context.Context, paymentID uint) ([]domain.Refund, error) {
	var refunds []domain.Refund
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("id ASC").
		Find(&refunds).Error
	return refunds, err
}

// GormWebhookEventRepository persists webhook deliveries. The unique index
// on (gateway, gateway_event_id) is the concurrency primitive: concurrent
// deliveries of one event produce exactly one insert.
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new webhook event repository
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// Insert stores the event, reporting false on a duplicate delivery
func (r *GormWebhookEventRepository) Insert(ctx context.Context, event *domain.WebhookEvent) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gateway"}, {Name: "gateway_event_id"}},
		DoNothing: true,
	}).Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormWebhookEventRepository) FindByEventID(ctx context.Context, gateway, eventID string) (*domain.WebhookEvent, error) {
	var event domain.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("gateway = ? AND gateway_event_id = ?", gateway, eventID).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// MarkProcessed records the apply outcome; an empty processingErr marks the
// event processed
func (r *GormWebhookEventRepository) MarkProcessed(ctx context.Context, id uint, processingErr string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"processed":        processingErr == "",
		"processed_at":     &now,
		"processing_error": processingErr,
	}
	return r.db.WithContext(ctx).Model(&domain.WebhookEvent{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// GormFeeTierRepository reads the fee tier catalog
type GormFeeTierRepository struct {
	db *gorm.DB
}

// NewGormFeeTierRepository creates a new fee tier repository
func NewGormFeeTierRepository(db *gorm.DB) *GormFeeTierRepository {
	return &GormFeeTierRepository{db: db}
}

func (r *GormFeeTierRepository) FindForTenant(ctx context.Context, tenantID uint) (*domain.PlatformFeeTier, error) {
	var assignment domain.TenantTierAssignment
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return r.FindByName(ctx, assignment.TierName)
}

func (r *GormFeeTierRepository) FindByName(ctx context.Context, name string) (*domain.PlatformFeeTier, error) {
	var tier domain.PlatformFeeTier
	err := r.db.WithContext(ctx).
		Where("name = ? AND active = ?", name, true).
		First(&tier).Error
	if err != nil {
		return nil, err
	}
	return &tier, nil
}
