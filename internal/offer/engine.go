package offer

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/checkout-engine/internal/money"
)

var (
	// ErrInvalidCode is returned when the code does not exist for the seller.
	ErrInvalidCode = errors.New("offer: invalid code")
	// ErrInactive is returned outside the code's validity window or when the
	// code has been soft-deleted.
	ErrInactive = errors.New("offer: code expired or inactive")
	// ErrSoldOut indicates the code has exhausted its purchase quota.
	ErrSoldOut = errors.New("offer: code sold out")
	// ErrMinimumQuantityUnmet indicates the line quantity is below the code's
	// minimum quantity requirement.
	ErrMinimumQuantityUnmet = errors.New("offer: minimum quantity not met")
	// ErrMinimumAmountUnmet indicates the cart-wide eligible subtotal is below
	// the code's activation threshold. The code stays attached but inert.
	ErrMinimumAmountUnmet = errors.New("offer: minimum amount not met")
)

type amountKind int

const (
	amountFixed amountKind = iota
	amountPercentage
)

// Amount is the discount value of a code: either a fixed number of cents or a
// percentage in basis points. Exactly one is ever set.
type Amount struct {
	kind  amountKind
	cents money.Money
	bps   int64
}

// Fixed builds a fixed-cents discount amount.
func Fixed(cents money.Money) Amount {
	if cents < 0 {
		cents = 0
	}
	return Amount{kind: amountFixed, cents: cents}
}

// Percentage builds a percentage discount amount expressed in basis points.
func Percentage(bps int64) Amount {
	if bps < 0 {
		bps = 0
	}
	if bps > 10000 {
		bps = 10000
	}
	return Amount{kind: amountPercentage, bps: bps}
}

// IsPercentage reports whether the amount is percentage based.
func (a Amount) IsPercentage() bool { return a.kind == amountPercentage }

// DiscountFor computes the discount the amount yields on a line total, never
// exceeding it. Percentage discounts round an exact half cent to even, which
// is what the published price examples expect on both sides of the boundary.
func (a Amount) DiscountFor(lineTotal money.Money) money.Money {
	if lineTotal <= 0 {
		return 0
	}
	var d money.Money
	switch a.kind {
	case amountPercentage:
		d = money.RoundHalfEvenBps(lineTotal, a.bps)
	default:
		d = a.cents
	}
	return money.Clamp(d, 0, lineTotal)
}

// Code captures the runtime constraints of an offer code.
type Code struct {
	ID                      uuid.UUID
	SellerID                uuid.UUID
	Code                    string
	Amount                  Amount
	Universal               bool
	ProductIDs              []uuid.UUID
	MinimumAmountCents      *money.Money
	MinimumQuantity         *int
	DurationInBillingCycles *int
	ValidAt                 *time.Time
	ExpiresAt               *time.Time
	MaxPurchaseCount        *int
	PurchaseCount           int
	Deleted                 bool
}

// AppliesTo reports whether the code covers the given product: explicit
// membership, or any product of the seller when the code is universal.
func (c Code) AppliesTo(productID, sellerID uuid.UUID) bool {
	if c.Universal {
		return c.SellerID == sellerID
	}
	for _, id := range c.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// Validate runs the liveness checks for a single line: soft-delete, validity
// window, purchase quota and minimum quantity. The cart-wide minimum amount is
// checked separately because it needs the whole cart.
func (c Code) Validate(now time.Time, quantity int) error {
	if c.Deleted {
		return ErrInactive
	}
	if c.ValidAt != nil && now.Before(*c.ValidAt) {
		return ErrInactive
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return ErrInactive
	}
	if c.MaxPurchaseCount != nil && c.PurchaseCount >= *c.MaxPurchaseCount {
		return ErrSoldOut
	}
	if c.MinimumQuantity != nil && quantity < *c.MinimumQuantity {
		return ErrMinimumQuantityUnmet
	}
	return nil
}

// Line is the cart view the offer engine needs: product identity and the
// pre-discount line total.
type Line struct {
	ProductID      uuid.UUID
	SellerID       uuid.UUID
	Quantity       int
	LineTotalCents money.Money
}

// EligibleSubtotal sums the pre-discount totals of all lines the code covers.
// This is the cart-wide figure the minimum-amount threshold is checked
// against, re-derived from the snapshot on every evaluation.
func EligibleSubtotal(lines []Line, c Code) money.Money {
	var total money.Money
	for _, l := range lines {
		if l.LineTotalCents <= 0 {
			continue
		}
		if c.AppliesTo(l.ProductID, l.SellerID) {
			total += l.LineTotalCents
		}
	}
	return total
}

// CheckMinimumAmount verifies the cart-wide activation threshold.
func (c Code) CheckMinimumAmount(eligibleSubtotal money.Money) error {
	if c.MinimumAmountCents != nil && eligibleSubtotal < *c.MinimumAmountCents {
		return ErrMinimumAmountUnmet
	}
	return nil
}
