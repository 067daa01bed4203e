package installments

import (
	"errors"

	"github.com/noah-isme/checkout-engine/internal/money"
)

// ErrInvalidPlan is returned for plans with fewer than two installments.
var ErrInvalidPlan = errors.New("installments: plan needs at least two installments")

// Recurrence is the cadence between installment charges. Installment plans are
// one purchase split into fixed charges, distinct from subscription renewals.
type Recurrence string

const (
	Monthly   Recurrence = "monthly"
	Quarterly Recurrence = "quarterly"
	Yearly    Recurrence = "yearly"
)

// Plan describes how a single purchase price is split.
type Plan struct {
	NumberOfInstallments int
	Recurrence           Recurrence
}

// Split divides total into n exact-sum parts: the first part absorbs the
// remainder of the truncating division, the rest are equal.
func Split(total money.Money, n int) []money.Money {
	if n <= 0 {
		return nil
	}
	base := total / money.Money(n)
	remainder := total - base*money.Money(n)
	parts := make([]money.Money, n)
	parts[0] = base + remainder
	for i := 1; i < n; i++ {
		parts[i] = base
	}
	return parts
}

// Charge is one booked installment.
type Charge struct {
	PrincipalCents money.Money `json:"principalCents"`
	TipCents       money.Money `json:"tipCents"`
	TaxCents       money.Money `json:"taxCents"`
	TotalCents     money.Money `json:"totalCents"`
}

// Schedule is the full installment breakdown for a purchase.
type Schedule struct {
	Recurrence Recurrence `json:"recurrence"`
	Charges    []Charge   `json:"charges"`
	// PreviewFirstPaymentCents is the "Payment today" figure shown before
	// purchase: first principal plus tip plus the entire tax. The booked
	// first charge carries only its own proportional tax; the display
	// discrepancy is intentional.
	PreviewFirstPaymentCents money.Money `json:"previewFirstPaymentCents"`
}

// Build derives a schedule for the discounted principal. Tax is computed
// per-charge on that charge's own principal via taxFn. Tip, when present, is
// charged in full on the first installment.
func Build(principal money.Money, plan Plan, tip money.Money, taxFn func(principal money.Money) money.Money) (Schedule, error) {
	if plan.NumberOfInstallments < 2 {
		return Schedule{}, ErrInvalidPlan
	}
	if taxFn == nil {
		taxFn = func(money.Money) money.Money { return 0 }
	}
	parts := Split(principal, plan.NumberOfInstallments)
	schedule := Schedule{Recurrence: plan.Recurrence, Charges: make([]Charge, len(parts))}

	var totalTax money.Money
	for i, p := range parts {
		tax := taxFn(p)
		totalTax += tax
		c := Charge{PrincipalCents: p, TaxCents: tax}
		if i == 0 {
			c.TipCents = tip
		}
		c.TotalCents = c.PrincipalCents + c.TipCents + c.TaxCents
		schedule.Charges[i] = c
	}
	schedule.PreviewFirstPaymentCents = parts[0] + tip + totalTax
	return schedule, nil
}

// Total sums the booked charges.
func (s Schedule) Total() money.Money {
	var total money.Money
	for _, c := range s.Charges {
		total += c.TotalCents
	}
	return total
}
