package ppp

import (
	"errors"
	"strings"

	"github.com/noah-isme/checkout-engine/internal/money"
)

// ErrCardCountryMismatch is returned when the payment card country disagrees
// with the IP-detected country and the seller requires verification.
var ErrCardCountryMismatch = errors.New("ppp: card country does not match detected country")

// Registry maps ISO country codes to purchasing-power-parity factors in basis
// points. A factor of 4900 means local prices sit at 49% of the base price.
// It is an immutable per-invocation input.
type Registry struct {
	factors map[string]int64
}

// NewRegistry builds a registry from country -> factor (bps). Factors outside
// (0, 10000] are dropped.
func NewRegistry(factors map[string]int64) *Registry {
	clean := make(map[string]int64, len(factors))
	for country, f := range factors {
		if f <= 0 || f > 10000 {
			continue
		}
		clean[strings.ToUpper(strings.TrimSpace(country))] = f
	}
	return &Registry{factors: clean}
}

// FactorBps returns the factor for the country, if one exists.
func (r *Registry) FactorBps(country string) (int64, bool) {
	if r == nil {
		return 0, false
	}
	f, ok := r.factors[strings.ToUpper(strings.TrimSpace(country))]
	return f, ok
}

// SellerSettings carries the seller-level PPP switches.
type SellerSettings struct {
	Disabled             bool
	LimitPercentage      *int
	VerificationDisabled bool
}

// VerifyCountry enforces the card-vs-IP country check. Sellers may disable the
// verification; a mismatch is then accepted.
func VerifyCountry(cardCountry, ipCountry string, s SellerSettings) error {
	if s.VerificationDisabled {
		return nil
	}
	card := strings.ToUpper(strings.TrimSpace(cardCountry))
	ip := strings.ToUpper(strings.TrimSpace(ipCountry))
	if card == "" || ip == "" {
		return nil
	}
	if card != ip {
		return ErrCardCountryMismatch
	}
	return nil
}

// Discount computes the PPP discount for a line total: round-half-up of the
// complement of the factor, capped by the seller's limit percentage, with the
// resulting price floored at the currency minimum.
func Discount(lineTotal money.Money, factorBps int64, s SellerSettings, minPrice money.Money) money.Money {
	if lineTotal <= 0 || s.Disabled || factorBps <= 0 || factorBps >= 10000 {
		return 0
	}
	d := money.RoundHalfUpBps(lineTotal, 10000-factorBps)
	if s.LimitPercentage != nil && *s.LimitPercentage > 0 {
		cap := money.RoundHalfUpBps(lineTotal, int64(*s.LimitPercentage)*100)
		if d > cap {
			d = cap
		}
	}
	if lineTotal-d < minPrice {
		d = lineTotal - minPrice
		if d < 0 {
			d = 0
		}
	}
	return d
}

// DisplayPercent returns the whole-number "% off" figure shown to buyers for a
// factor, e.g. 4900 bps -> 51.
func DisplayPercent(factorBps int64) int {
	if factorBps <= 0 || factorBps >= 10000 {
		return 0
	}
	return int((10000 - factorBps + 50) / 100)
}
