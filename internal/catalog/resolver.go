package catalog

import (
	"errors"

	"github.com/google/uuid"

	"github.com/noah-isme/checkout-engine/internal/money"
)

var (
	// ErrPwywBelowMinimum is returned when a pay-what-you-want price sits
	// below the product's list price floor.
	ErrPwywBelowMinimum = errors.New("catalog: pay-what-you-want price below minimum")
	// ErrUnknownVariant is returned when a selected variant does not belong
	// to the product, which indicates the catalog changed under the cart.
	ErrUnknownVariant = errors.New("catalog: selected variant not found")
	// ErrInvalidQuantity is returned for non-positive quantities.
	ErrInvalidQuantity = errors.New("catalog: quantity must be at least 1")
	// ErrRentalUnavailable is returned when a rental purchase is requested
	// for a product without a rental price.
	ErrRentalUnavailable = errors.New("catalog: product is not rentable")
)

// Selection captures a single cart line before pricing: the product snapshot,
// chosen options and an optional buyer-entered price.
type Selection struct {
	Product          Product
	VariantIDs       []uuid.UUID
	Quantity         int
	CustomPriceCents *money.Money
	Rental           bool
}

// LinePrice is the output of base price resolution.
type LinePrice struct {
	UnitPriceCents money.Money
	LineTotalCents money.Money
	// ListPriceCents is the pre-PWYW floor (base price plus variant diffs),
	// kept for validation and display.
	ListPriceCents money.Money
}

// ResolveLine computes the unit price for the selection. Bundles use their own
// flat price, rentals substitute the rental price component, and PWYW lets the
// buyer raise (never lower) the price above the list sum.
func ResolveLine(sel Selection) (LinePrice, error) {
	if sel.Quantity < 1 {
		return LinePrice{}, ErrInvalidQuantity
	}
	base := sel.Product.PriceCents
	if sel.Rental {
		if sel.Product.RentalPriceCents == nil {
			return LinePrice{}, ErrRentalUnavailable
		}
		base = *sel.Product.RentalPriceCents
	}

	list := base
	if !sel.Product.IsBundle {
		for _, id := range sel.VariantIDs {
			v, ok := sel.Product.Variant(id)
			if !ok {
				return LinePrice{}, ErrUnknownVariant
			}
			list += v.PriceDiffCents
		}
	}
	if list < 0 {
		list = 0
	}

	unit := list
	if sel.Product.PayWhatYouWant && sel.CustomPriceCents != nil {
		if *sel.CustomPriceCents < list {
			return LinePrice{}, ErrPwywBelowMinimum
		}
		unit = *sel.CustomPriceCents
	}

	return LinePrice{
		UnitPriceCents: unit,
		LineTotalCents: unit * money.Money(sel.Quantity),
		ListPriceCents: list,
	}, nil
}
