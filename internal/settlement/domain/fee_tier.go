package domain

import (
	"context"
	"time"
)

// PlatformFeeTier is a catalog entry describing the platform commission for
// a subscription level. Read-only to the settlement engine.
type PlatformFeeTier struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Name           string    `json:"name" gorm:"not null;uniqueIndex"`
	Percentage     float64   `json:"percentage" gorm:"not null"`
	FixedFee       int64     `json:"fixed_fee"`
	MinTransaction int64     `json:"min_transaction"`
	MaxTransaction int64     `json:"max_transaction"` // 0 means unbounded
	WaiveFees      bool      `json:"waive_fees"`
	Active         bool      `json:"active" gorm:"default:true"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (PlatformFeeTier) TableName() string {
	return "platform_fee_tiers"
}

// Well-known tier names
const (
	TierStarter    = "starter"
	TierGrowth     = "growth"
	TierEnterprise = "enterprise"
)

// TenantTierAssignment maps a tenant to its fee tier. Tenants without a row
// fall back to the starter tier.
type TenantTierAssignment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	TenantID  uint      `json:"tenant_id" gorm:"not null;uniqueIndex"`
	TierName  string    `json:"tier_name" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (TenantTierAssignment) TableName() string {
	return "tenant_tier_assignments"
}

// FeeTierRepository resolves fee tiers for tenants
type FeeTierRepository interface {
	FindForTenant(ctx context.Context, tenantID uint) (*PlatformFeeTier, error)
	FindByName(ctx context.Context, name string) (*PlatformFeeTier, error)
}
