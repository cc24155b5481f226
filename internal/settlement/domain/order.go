package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Order represents a tenant-scoped commercial order
type Order struct {
	ID                uint           `json:"id" gorm:"primaryKey"`
	TenantID          uint           `json:"tenant_id" gorm:"not null;index"`
	SequenceNumber    string         `json:"sequence_number" gorm:"not null;uniqueIndex"`
	Status            string         `json:"status" gorm:"default:'draft';index"`
	PaymentStatus     string         `json:"payment_status" gorm:"default:'pending'"`
	FulfillmentStatus string         `json:"fulfillment_status" gorm:"default:'unfulfilled'"`
	Subtotal          int64          `json:"subtotal" gorm:"not null"`
	Tax               int64          `json:"tax"`
	Shipping          int64          `json:"shipping"`
	Discount          int64          `json:"discount"`
	Total             int64          `json:"total" gorm:"not null"`
	Currency          string         `json:"currency" gorm:"default:'USD'"`
	CustomerName      string         `json:"customer_name"`
	CustomerEmail     string         `json:"customer_email"`
	CustomerPhone     string         `json:"customer_phone"`
	ShippingAddress   string         `json:"shipping_address" gorm:"type:text"`
	BillingAddress    string         `json:"billing_address" gorm:"type:text"`
	Notes             string         `json:"notes" gorm:"type:text"`
	Items             []OrderItem    `json:"items,omitempty" gorm:"foreignKey:OrderID"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name
func (Order) TableName() string {
	return "orders"
}

// OrderItem is a line item on an order, immutable once the order leaves draft
type OrderItem struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	OrderID    uint      `json:"order_id" gorm:"not null;index"`
	ProductRef string    `json:"product_ref"`
	Name       string    `json:"name" gorm:"not null"`
	Quantity   int32     `json:"quantity" gorm:"not null"`
	UnitPrice  int64     `json:"unit_price" gorm:"not null"`
	Total      int64     `json:"total" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name
func (OrderItem) TableName() string {
	return "order_items"
}

// OrderStatusHistory is one append-only audit row per status transition
type OrderStatusHistory struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	OrderID    uint      `json:"order_id" gorm:"not null;index"`
	Field      string    `json:"field" gorm:"not null"` // order_status or payment_status
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status" gorm:"not null"`
	Actor      string    `json:"actor"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name
func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}

// Order statuses
const (
	OrderStatusDraft      = "draft"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusPaid       = "paid"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// History field names
const (
	HistoryFieldOrderStatus   = "order_status"
	HistoryFieldPaymentStatus = "payment_status"
)

// orderStatusTransitions is the allowed order status lattice. Cancelled is
// reachable from every non-terminal state; refunded from paid or later.
var orderStatusTransitions = map[string][]string{
	OrderStatusDraft:      {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusRefunded, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusRefunded, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusRefunded, OrderStatusCancelled},
	OrderStatusDelivered:  {OrderStatusRefunded},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

// CanTransitionOrderStatus reports whether from -> to is a legal order
// status transition
func CanTransitionOrderStatus(from, to string) bool {
	for _, next := range orderStatusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidOrderStatus reports whether s names a known order status
func ValidOrderStatus(s string) bool {
	_, ok := orderStatusTransitions[s]
	return ok
}

// IsTerminalOrderStatus reports whether no further transitions are allowed
func IsTerminalOrderStatus(s string) bool {
	return len(orderStatusTransitions[s]) == 0
}

// OrderTransition carries the field updates and audit row applied atomically
// when an order advances
type OrderTransition struct {
	OrderStatus   string // empty when order_status is untouched
	PaymentStatus string // empty when payment_status is untouched
	History       []OrderStatusHistory
}

// OrderRepository defines the contract for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, tenantID, id uint) (*Order, error)
	FindByIDAny(ctx context.Context, id uint) (*Order, error)
	FindHistory(ctx context.Context, orderID uint) ([]OrderStatusHistory, error)
	ApplyTransition(ctx context.Context, orderID uint, transition OrderTransition) error
	UpdateNotes(ctx context.Context, orderID uint, notes string) error
}
