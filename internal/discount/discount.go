package discount

import (
	"github.com/noah-isme/checkout-engine/internal/money"
)

// Source identifies which mechanism produced a line item's discount. Exactly
// one source applies per line; discounts never stack.
type Source string

const (
	SourceNone      Source = "none"
	SourceOfferCode Source = "offer_code"
	SourcePPP       Source = "ppp"
)

// Candidate is one competing discount for a line item.
type Candidate struct {
	Source Source
	Cents  money.Money
}

// Choose picks between the offer-code and PPP candidates for a single line.
// The larger discount wins; on a tie the offer code wins. A zero-cents result
// collapses to SourceNone.
func Choose(offerCents, pppCents money.Money) Candidate {
	if offerCents <= 0 && pppCents <= 0 {
		return Candidate{Source: SourceNone}
	}
	if offerCents >= pppCents {
		return Candidate{Source: SourceOfferCode, Cents: offerCents}
	}
	return Candidate{Source: SourcePPP, Cents: pppCents}
}

// Line is one cart line's competing discounts: what the attached offer code
// would yield (zero when the code does not cover the line) and what PPP would
// yield.
type Line struct {
	CodeEligible bool
	OfferCents   money.Money
	PPPCents     money.Money
}

// Outcome is the arbitration result for the whole cart.
type Outcome struct {
	// PerLine holds the chosen candidate for each input line, same order.
	PerLine []Candidate
	// CodeRejected reports that the code lost to PPP on every eligible line
	// and must be surfaced as an error; PPP applies instead.
	CodeRejected bool
	// CodeApplied reports the code produced the discount on at least one line.
	CodeApplied bool
}

// Arbitrate applies the cart-wide precedence rule: a code wins a line when its
// discount is at least the line's PPP discount. If it loses every eligible
// line it is rejected outright. If it wins some lines only, it applies to
// those and PPP applies independently to the rest.
func Arbitrate(lines []Line) Outcome {
	out := Outcome{PerLine: make([]Candidate, len(lines))}

	eligible := 0
	losses := 0
	for _, l := range lines {
		if !l.CodeEligible {
			continue
		}
		eligible++
		if l.OfferCents < l.PPPCents {
			losses++
		}
	}
	rejected := eligible > 0 && losses == eligible

	for i, l := range lines {
		if l.CodeEligible && !rejected {
			out.PerLine[i] = Choose(l.OfferCents, l.PPPCents)
		} else if l.PPPCents > 0 {
			out.PerLine[i] = Candidate{Source: SourcePPP, Cents: l.PPPCents}
		} else {
			out.PerLine[i] = Candidate{Source: SourceNone}
		}
		if out.PerLine[i].Source == SourceOfferCode {
			out.CodeApplied = true
		}
	}
	out.CodeRejected = rejected
	return out
}
