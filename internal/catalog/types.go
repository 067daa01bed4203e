package catalog

import (
	"github.com/google/uuid"

	"github.com/noah-isme/checkout-engine/internal/money"
)

// Variant is a purchasable option of a product carrying a price difference
// relative to the product base price.
type Variant struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	PriceDiffCents money.Money `json:"priceDiffCents"`
}

// Product is the catalog snapshot the pricing engine operates on. It is an
// immutable input; the engine never mutates or persists it.
type Product struct {
	ID               uuid.UUID    `json:"id"`
	SellerID         uuid.UUID    `json:"sellerId"`
	Name             string       `json:"name"`
	Currency         string       `json:"currency"`
	PriceCents       money.Money  `json:"priceCents"`
	RentalPriceCents *money.Money `json:"rentalPriceCents,omitempty"`
	Variants         []Variant    `json:"variants,omitempty"`
	PayWhatYouWant   bool         `json:"payWhatYouWant"`
	IsBundle         bool         `json:"isBundle"`
	IsEpublication   bool         `json:"isEpublication"`
	IsPhysical       bool         `json:"isPhysical"`
	PPPDisabled      bool         `json:"pppDisabled"`
	// BundleProductIDs associate bundle content for delivery. Component
	// products never contribute to the bundle price.
	BundleProductIDs []uuid.UUID `json:"bundleProductIds,omitempty"`
}

// Variant returns the variant with the given id, if present.
func (p Product) Variant(id uuid.UUID) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}
