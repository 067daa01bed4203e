package quote

import (
	"github.com/google/uuid"

	"github.com/noah-isme/checkout-engine/internal/discount"
	"github.com/noah-isme/checkout-engine/internal/installments"
	"github.com/noah-isme/checkout-engine/internal/money"
)

// ItemBreakdown is the per-line slice of a Quote.
type ItemBreakdown struct {
	ProductID      uuid.UUID       `json:"productId"`
	Quantity       int             `json:"quantity"`
	UnitPriceCents money.Money     `json:"unitPriceCents"`
	SubtotalCents  money.Money     `json:"subtotalCents"`
	DiscountCents  money.Money     `json:"discountCents"`
	DiscountSource discount.Source `json:"discountSource"`
	// PPPDisplayPercent is the "% off" figure shown when PPP applied.
	PPPDisplayPercent int `json:"pppDisplayPercent,omitempty"`
	TaxableCents      money.Money `json:"taxableCents"`
	TaxCents          money.Money `json:"taxCents"`
	GumroadTaxCents   money.Money `json:"gumroadTaxCents"`
	TaxRateBps        int64       `json:"taxRateBps"`
	TotalCents        money.Money `json:"totalCents"`
}

// Quote is the authoritative, immutable charge breakdown for one cart
// snapshot. Pricing the same unmutated snapshot twice yields a byte-identical
// Quote.
type Quote struct {
	PurchaseID         uuid.UUID       `json:"purchaseId"`
	Currency           string          `json:"currency"`
	Items              []ItemBreakdown `json:"items"`
	OfferCode          *string         `json:"offerCode,omitempty"`
	CodeRejectedReason string          `json:"codeRejectedReason,omitempty"`

	SubtotalCents        money.Money `json:"subtotalCents"`
	DiscountCents        money.Money `json:"discountCents"`
	TaxCents             money.Money `json:"taxCents"`
	GumroadTaxCents      money.Money `json:"gumroadTaxCents"`
	TipCents             money.Money `json:"tipCents"`
	FeeCents             money.Money `json:"feeCents"`
	AffiliateCreditCents money.Money `json:"affiliateCreditCents"`
	TotalCents           money.Money `json:"totalCents"`

	WasPurchaseTaxable    bool   `json:"wasPurchaseTaxable"`
	WasDiscoverFeeCharged bool   `json:"wasDiscoverFeeCharged"`
	TaxExemptionID        string `json:"taxExemptionId,omitempty"`

	Installments *installments.Schedule `json:"installments,omitempty"`
}
