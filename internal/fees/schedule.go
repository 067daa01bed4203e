package fees

import (
	"github.com/noah-isme/checkout-engine/internal/money"
)

// Schedule carries the platform and processor fee components for a purchase.
// Per-seller overrides are expressed per thousand, matching how custom rates
// are negotiated.
type Schedule struct {
	// Platform default: percentage in basis points plus a fixed component.
	BaseBps        int64
	BaseFixedCents money.Money
	// Payment processor pass-through, always added.
	ProcessorBps        int64
	ProcessorFixedCents money.Money
	// CustomFeePerThousand replaces the platform percentage when set.
	CustomFeePerThousand *int64
	// DiscoverFeePerThousand overrides the discover flat rate when set.
	DiscoverFeePerThousand *int64
	// DiscoverBps is the flat percentage charged on discover traffic.
	DiscoverBps int64
	// SellerOptedIntoDiscover gates discover pricing entirely.
	SellerOptedIntoDiscover bool
}

// Result is the computed fee with its attribution flags.
type Result struct {
	FeeCents              money.Money
	WasDiscoverFeeCharged bool
}

// Compute derives the platform fee for a price. Discover traffic replaces the
// platform component with the flat discover percentage unless the seller has a
// custom fee or an explicit discover per-thousand override; the processor
// pass-through is always added on top.
func Compute(price money.Money, s Schedule, recommendedByDiscover bool) Result {
	if price <= 0 {
		return Result{}
	}

	var platform money.Money
	var discoverCharged bool
	switch {
	case s.CustomFeePerThousand != nil:
		platform = money.RoundHalfUpPerMille(price, *s.CustomFeePerThousand) + s.BaseFixedCents
	case recommendedByDiscover && s.SellerOptedIntoDiscover && s.DiscoverFeePerThousand == nil:
		platform = money.RoundHalfUpBps(price, s.DiscoverBps)
		discoverCharged = true
	case recommendedByDiscover && s.DiscoverFeePerThousand != nil:
		platform = money.RoundHalfUpPerMille(price, *s.DiscoverFeePerThousand)
	default:
		platform = money.RoundHalfUpBps(price, s.BaseBps) + s.BaseFixedCents
	}

	processor := money.RoundHalfUpBps(price, s.ProcessorBps) + s.ProcessorFixedCents
	return Result{FeeCents: platform + processor, WasDiscoverFeeCharged: discoverCharged}
}
