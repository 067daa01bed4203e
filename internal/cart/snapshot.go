package cart

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/checkout-engine/internal/fees"
	"github.com/noah-isme/checkout-engine/internal/installments"
	"github.com/noah-isme/checkout-engine/internal/money"
)

var (
	// ErrEmptyCart is returned for snapshots without line items.
	ErrEmptyCart = errors.New("cart: no line items")
	// ErrQuantityUnavailable is returned for non-positive quantities.
	ErrQuantityUnavailable = errors.New("cart: invalid quantity")
	// ErrNegativeTip is returned for negative tips.
	ErrNegativeTip = errors.New("cart: tip must not be negative")
)

// Line is one cart entry as posted by the storefront. Prices are resolved
// from the catalog snapshot, never trusted from the client.
type Line struct {
	ProductID        uuid.UUID    `json:"productId"`
	VariantIDs       []uuid.UUID  `json:"variantIds,omitempty"`
	Quantity         int          `json:"quantity"`
	CustomPriceCents *money.Money `json:"customPriceCents,omitempty"`
	Rental           bool         `json:"rental,omitempty"`
}

// Buyer carries the buyer-side pricing context: the three country signals,
// the tax jurisdiction facets and an optional exemption id.
type Buyer struct {
	ElectedCountry string `json:"electedCountry,omitempty"`
	IPCountry      string `json:"ipCountry,omitempty"`
	CardCountry    string `json:"cardCountry,omitempty"`
	IPAddress      string `json:"ipAddress,omitempty"`
	State          string `json:"state,omitempty"`
	Zip            string `json:"zip,omitempty"`
	TaxID          string `json:"taxId,omitempty"`
}

// Snapshot is the immutable cart state one pricing pass evaluates. Cart-wide
// figures (minimum-amount code activation) are re-derived from the snapshot
// on every evaluation, never accumulated incrementally.
type Snapshot struct {
	PurchaseID            uuid.UUID          `json:"purchaseId"`
	SellerID              uuid.UUID          `json:"sellerId"`
	Currency              string             `json:"currency"`
	Lines                 []Line             `json:"lines"`
	OfferCode             *string            `json:"offerCode,omitempty"`
	TipCents              money.Money        `json:"tipCents,omitempty"`
	Plan                  *installments.Plan `json:"plan,omitempty"`
	Buyer                 Buyer              `json:"buyer"`
	RecommendedByDiscover bool               `json:"recommendedByDiscover,omitempty"`
	AffiliateCookies      []fees.Cookie      `json:"affiliateCookies,omitempty"`
}

// Validate runs shape checks that do not need any registry.
func (s Snapshot) Validate() error {
	if len(s.Lines) == 0 {
		return ErrEmptyCart
	}
	for _, l := range s.Lines {
		if l.Quantity < 1 {
			return ErrQuantityUnavailable
		}
	}
	if s.TipCents < 0 {
		return ErrNegativeTip
	}
	return nil
}

// Code returns the trimmed attached offer code, if any.
func (s Snapshot) Code() string {
	if s.OfferCode == nil {
		return ""
	}
	return strings.TrimSpace(*s.OfferCode)
}
