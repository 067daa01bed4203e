package tax

import (
	"strings"

	"github.com/noah-isme/checkout-engine/internal/money"
)

// Responsibility states who remits the collected tax.
type Responsibility int

const (
	// PlatformCollected tax is added to the buyer's total and remitted by the
	// platform.
	PlatformCollected Responsibility = iota
	// SellerResponsible tax is reported for bookkeeping but never charged to
	// the buyer by the platform.
	SellerResponsible
)

func (r Responsibility) String() string {
	if r == SellerResponsible {
		return "seller_responsible"
	}
	return "platform_collected"
}

// Rate is one jurisdiction row of the tax table. State and Zip narrow the
// jurisdiction; empty means any.
type Rate struct {
	Country            string
	State              string
	Zip                string
	CombinedRateBps    int64
	Responsibility     Responsibility
	IsEpublicationRate bool
	TaxesPhysicalGoods bool
	// FromYear/ToYear bound applicability; zero means unbounded.
	FromYear int
	ToYear   int
}

func (r Rate) appliesTo(q Query) bool {
	if !strings.EqualFold(r.Country, q.Country) {
		return false
	}
	if q.Year != 0 {
		if r.FromYear != 0 && q.Year < r.FromYear {
			return false
		}
		if r.ToYear != 0 && q.Year > r.ToYear {
			return false
		}
	}
	if r.Zip != "" && !strings.EqualFold(r.Zip, q.Zip) {
		return false
	}
	if r.State != "" && !strings.EqualFold(r.State, q.State) {
		return false
	}
	return true
}

// specificity orders matches: zip beats state beats country.
func (r Rate) specificity() int {
	switch {
	case r.Zip != "":
		return 3
	case r.State != "":
		return 2
	default:
		return 1
	}
}

// Query describes the purchase facets rate resolution depends on.
type Query struct {
	Country      string
	State        string
	Zip          string
	Year         int
	Epublication bool
	PhysicalGood bool
}

// Registry holds the jurisdiction table plus the per-country enablement
// switches. Both are immutable per-invocation inputs; tax is never collected
// for a country that is not explicitly enabled, regardless of matching rows.
type Registry struct {
	rates   []Rate
	enabled map[string]bool
}

// NewRegistry builds a registry from the rate table and the set of countries
// tax collection is enabled for.
func NewRegistry(rates []Rate, enabledCountries []string) *Registry {
	enabled := make(map[string]bool, len(enabledCountries))
	for _, c := range enabledCountries {
		enabled[strings.ToUpper(strings.TrimSpace(c))] = true
	}
	return &Registry{rates: rates, enabled: enabled}
}

// Enabled reports whether tax collection is switched on for the country.
func (reg *Registry) Enabled(country string) bool {
	if reg == nil {
		return false
	}
	return reg.enabled[strings.ToUpper(strings.TrimSpace(country))]
}

// Resolve picks the applicable rate for the query, zip-level first, then
// state, then country. Epublication purchases substitute the jurisdiction's
// reduced rate when one exists at the winning level. Physical goods are taxed
// only where the jurisdiction explicitly taxes them.
func (reg *Registry) Resolve(q Query) (Rate, bool) {
	if reg == nil || !reg.Enabled(q.Country) {
		return Rate{}, false
	}

	var best Rate
	bestScore := 0
	for _, r := range reg.rates {
		if !r.appliesTo(q) {
			continue
		}
		if q.PhysicalGood && !r.TaxesPhysicalGoods {
			continue
		}
		score := r.specificity() * 2
		// Within a jurisdiction level the epublication rate wins for
		// epublications and loses otherwise.
		if r.IsEpublicationRate {
			if !q.Epublication {
				continue
			}
			score++
		}
		if score > bestScore {
			best = r
			bestScore = score
		}
	}
	if bestScore == 0 {
		return Rate{}, false
	}
	return best, true
}

// Calculation is the per-item tax outcome.
type Calculation struct {
	RateBps int64
	// TaxCents is added to the buyer's charged total.
	TaxCents money.Money
	// GumroadTaxCents is the computed tax regardless of responsibility; for
	// seller-responsible jurisdictions it is reported for remittance
	// bookkeeping but not charged.
	GumroadTaxCents   money.Money
	WasTaxable        bool
	SellerResponsible bool
	ExemptionApplied  bool
	ExemptionID       string
}

// Calculate derives the charge-path tax amounts from the taxable base.
func Calculate(taxableBase money.Money, rate Rate, exempt bool, exemptionID string) Calculation {
	if exempt {
		return Calculation{ExemptionApplied: true, ExemptionID: exemptionID}
	}
	gumroadTax := money.RoundHalfUpBps(taxableBase, rate.CombinedRateBps)
	calc := Calculation{
		RateBps:         rate.CombinedRateBps,
		GumroadTaxCents: gumroadTax,
		WasTaxable:      gumroadTax > 0,
	}
	if rate.Responsibility == SellerResponsible {
		calc.SellerResponsible = true
		return calc
	}
	calc.TaxCents = gumroadTax
	return calc
}
