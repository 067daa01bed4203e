package fees

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/checkout-engine/internal/money"
)

// Attribution is an affiliate or collaborator entitled to a share of a sale.
type Attribution struct {
	AffiliateID  uuid.UUID
	BasisPoints  int64
	Collaborator bool
	// ProductIDs the attribution covers; empty means every seller product.
	ProductIDs []uuid.UUID
}

// EligibleFor reports whether the attribution covers the product.
func (a Attribution) EligibleFor(productID uuid.UUID) bool {
	if len(a.ProductIDs) == 0 {
		return true
	}
	for _, id := range a.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// Cookie is one affiliate-referral cookie present on the buyer.
type Cookie struct {
	AffiliateID uuid.UUID
	SetAt       time.Time
	ExpiresAt   time.Time
}

func (c Cookie) alive(now time.Time) bool {
	return c.ExpiresAt.IsZero() || now.Before(c.ExpiresAt)
}

// ResolveAttribution picks who gets credit for the product. A collaborator,
// when present, supersedes any direct or cookie-tracked affiliate. Otherwise
// the most recently set cookie that is alive and eligible wins; stale or
// ineligible cookies are skipped, not deleted.
func ResolveAttribution(productID uuid.UUID, collaborator *Attribution, cookies []Cookie, registry map[uuid.UUID]Attribution, now time.Time) *Attribution {
	if collaborator != nil && collaborator.EligibleFor(productID) {
		return collaborator
	}
	var winner *Attribution
	var winnerSetAt time.Time
	for _, c := range cookies {
		if !c.alive(now) {
			continue
		}
		attr, ok := registry[c.AffiliateID]
		if !ok || !attr.EligibleFor(productID) {
			continue
		}
		if winner == nil || c.SetAt.After(winnerSetAt) {
			a := attr
			winner = &a
			winnerSetAt = c.SetAt
		}
	}
	return winner
}

// Credit computes the attribution's share of the sale. Collaborators
// additionally absorb half of the platform fee.
func Credit(price money.Money, a Attribution, fee money.Money) money.Money {
	credit := money.RoundHalfUpBps(price, a.BasisPoints)
	if a.Collaborator {
		credit -= money.HalfHalfUp(fee)
	}
	if credit < 0 {
		return 0
	}
	return credit
}
