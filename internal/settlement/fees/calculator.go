package fees

import (
	"context"
	"fmt"
	"math"

	"github.com/tair/order-settlement/internal/settlement/domain"
	"github.com/tair/order-settlement/pkg/logger"
)

// Breakdown is the fee split stored alongside every payment
type Breakdown struct {
	PlatformFee           int64   `json:"platform_fee"`
	PlatformFeePercentage float64 `json:"platform_fee_percentage"`
	GatewayFee            int64   `json:"gateway_fee"`
	TotalFees             int64   `json:"total_fees"`
	NetAmount             int64   `json:"net_amount"`
	FeeWaived             bool    `json:"fee_waived"`
	FeeWaivedReason       string  `json:"fee_waived_reason,omitempty"`
}

// defaultTier applies when a tenant has no assignment
var defaultTier = domain.PlatformFeeTier{
	Name:       domain.TierStarter,
	Percentage: 2.0,
}

// Calculate computes the fee breakdown for an amount under a tier. Pure and
// deterministic: no I/O, no clock.
func Calculate(amount, gatewayFee int64, tier *domain.PlatformFeeTier) Breakdown {
	if tier == nil {
		tier = &defaultTier
	}

	if tier.WaiveFees {
		net := amount - gatewayFee
		if net < 0 {
			net = 0
		}
		return Breakdown{
			GatewayFee:      gatewayFee,
			TotalFees:       gatewayFee,
			NetAmount:       net,
			FeeWaived:       true,
			FeeWaivedReason: fmt.Sprintf("platform fee waived for %s tier", tier.Name),
		}
	}

	platformFee := int64(math.Round(float64(amount)*tier.Percentage/100)) + tier.FixedFee
	if platformFee < tier.MinTransaction {
		platformFee = tier.MinTransaction
	}
	if tier.MaxTransaction > 0 && platformFee > tier.MaxTransaction {
		platformFee = tier.MaxTransaction
	}

	totalFees := gatewayFee + platformFee
	netAmount := amount - totalFees
	if netAmount < 0 {
		netAmount = 0
	}

	return Breakdown{
		PlatformFee:           platformFee,
		PlatformFeePercentage: tier.Percentage,
		GatewayFee:            gatewayFee,
		TotalFees:             totalFees,
		NetAmount:             netAmount,
	}
}

// Calculator resolves a tenant's tier and computes its fee breakdown
type Calculator struct {
	tiers domain.FeeTierRepository
}

// NewCalculator creates a fee calculator backed by the tier catalog
func NewCalculator(tiers domain.FeeTierRepository) *Calculator {
	return &Calculator{tiers: tiers}
}

// ForTenant computes the breakdown under the tenant's assigned tier, falling
// back to the starter tier when the tenant has no assignment
func (c *Calculator) ForTenant(ctx context.Context, tenantID uint, amount, gatewayFee int64) (Breakdown, error) {
	tier, err := c.tiers.FindForTenant(ctx, tenantID)
	if err != nil {
		logger.Warn(ctx).
			Err(err).
			Uint("tenant_id", tenantID).
			Str("fallback_tier", defaultTier.Name).
			Msg("No fee tier assignment, using default")
		tier = &defaultTier
	}

	breakdown := Calculate(amount, gatewayFee, tier)
	if !breakdown.FeeWaived && amount > 0 && breakdown.NetAmount == 0 && breakdown.TotalFees >= amount {
		// A zero net on a non-trivial amount means the tier is misconfigured.
		logger.Warn(ctx).
			Uint("tenant_id", tenantID).
			Str("tier", tier.Name).
			Int64("amount", amount).
			Int64("total_fees", breakdown.TotalFees).
			Msg("Fees meet or exceed transaction amount")
	}
	return breakdown, nil
}
