package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-engine/internal/cart"
	"github.com/noah-isme/checkout-engine/internal/catalog"
	"github.com/noah-isme/checkout-engine/internal/discount"
	"github.com/noah-isme/checkout-engine/internal/fees"
	"github.com/noah-isme/checkout-engine/internal/geo"
	"github.com/noah-isme/checkout-engine/internal/installments"
	"github.com/noah-isme/checkout-engine/internal/money"
	"github.com/noah-isme/checkout-engine/internal/offer"
	"github.com/noah-isme/checkout-engine/internal/ppp"
	"github.com/noah-isme/checkout-engine/internal/quote"
	"github.com/noah-isme/checkout-engine/internal/tax"
)

// Reasons a still-priced quote carries when its offer code could not apply.
// The quote stays valid; the code is dropped and the reason surfaced.
const (
	ReasonInvalidCode           = "INVALID_CODE"
	ReasonExpiredOrInactiveCode = "EXPIRED_OR_INACTIVE_CODE"
	ReasonSoldOutCode           = "SOLD_OUT_CODE"
	ReasonUnmetMinimumQuantity  = "UNMET_MINIMUM_QUANTITY"
	ReasonUnmetMinimumAmount    = "UNMET_MINIMUM_AMOUNT"
	ReasonLostToPPP             = "OFFER_CODE_LOST_TO_PPP"
)

// ErrUnknownProduct is returned when a cart line references a product the
// catalog no longer has.
var ErrUnknownProduct = errors.New("checkout: unknown product")

// Engine prices a cart snapshot into a Quote. It is a pure computation over
// its inputs: safe to invoke repeatedly and concurrently on the same
// snapshot, and pricing an unmutated snapshot twice yields an identical
// quote.
type Engine struct {
	Catalog    CatalogSource
	Offers     OfferSource
	Sellers    SellerSource
	Affiliates AffiliateSource
	PPP        *ppp.Registry
	Tax        *tax.Registry
	Exemptions *tax.ExemptionChecker
	Geo        geo.Resolver
	Logger     *zerolog.Logger
	Now        func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

type resolvedLine struct {
	product catalog.Product
	price   catalog.LinePrice
	qty     int
}

// Price evaluates the snapshot into an authoritative charge breakdown.
// Business-rule rejections that invalidate the purchase (location mismatch,
// PPP card mismatch, rejected tax id, PWYW below floor) come back as typed
// errors; offer-code failures are soft and land in the quote's rejection
// reason instead.
func (e *Engine) Price(ctx context.Context, snap cart.Snapshot) (quote.Quote, error) {
	if err := snap.Validate(); err != nil {
		return quote.Quote{}, err
	}

	ipCountry := e.detectIPCountry(ctx, snap.Buyer)
	if err := tax.ValidateLocation(tax.Signals{
		Elected: snap.Buyer.ElectedCountry,
		IP:      ipCountry,
		Card:    snap.Buyer.CardCountry,
	}); err != nil {
		return quote.Quote{}, err
	}

	lines, currency, err := e.resolveLines(ctx, snap)
	if err != nil {
		return quote.Quote{}, err
	}

	profile, err := e.Sellers.Profile(ctx, snap.SellerID)
	if err != nil {
		return quote.Quote{}, fmt.Errorf("seller profile: %w", err)
	}

	code, codeReason, err := e.lookupCode(ctx, snap, lines)
	if err != nil {
		return quote.Quote{}, err
	}

	arb, pppFactor, err := e.arbitrate(snap, lines, code, profile, ipCountry, currency)
	if err != nil {
		return quote.Quote{}, err
	}
	if arb.CodeRejected {
		code = nil
		codeReason = ReasonLostToPPP
	}

	exemption, err := e.checkExemption(ctx, snap.Buyer)
	if err != nil {
		return quote.Quote{}, err
	}

	q := quote.Quote{
		PurchaseID:         snap.PurchaseID,
		Currency:           currency,
		CodeRejectedReason: codeReason,
		TipCents:           snap.TipCents,
	}
	if code != nil && arb.CodeApplied {
		c := code.Code
		q.OfferCode = &c
	}

	taxCountry := snap.Buyer.ElectedCountry
	if taxCountry == "" {
		taxCountry = ipCountry
	}
	year := e.now().Year()

	var discountedSubtotal money.Money
	q.Items = make([]quote.ItemBreakdown, len(lines))
	for i, l := range lines {
		chosen := arb.PerLine[i]
		item := quote.ItemBreakdown{
			ProductID:      l.product.ID,
			Quantity:       l.qty,
			UnitPriceCents: l.price.UnitPriceCents,
			SubtotalCents:  l.price.LineTotalCents,
			DiscountCents:  chosen.Cents,
			DiscountSource: chosen.Source,
		}
		if chosen.Source == discount.SourcePPP {
			item.PPPDisplayPercent = ppp.DisplayPercent(pppFactor)
		}
		item.TaxableCents = item.SubtotalCents - item.DiscountCents

		calc := e.taxLine(item.TaxableCents, tax.Query{
			Country:      taxCountry,
			State:        snap.Buyer.State,
			Zip:          snap.Buyer.Zip,
			Year:         year,
			Epublication: l.product.IsEpublication,
			PhysicalGood: l.product.IsPhysical,
		}, exemption)
		item.TaxCents = calc.TaxCents
		item.GumroadTaxCents = calc.GumroadTaxCents
		item.TaxRateBps = calc.RateBps
		item.TotalCents = item.TaxableCents + item.TaxCents

		if calc.WasTaxable {
			q.WasPurchaseTaxable = true
		}
		if calc.ExemptionApplied {
			q.TaxExemptionID = calc.ExemptionID
		}

		q.SubtotalCents += item.SubtotalCents
		q.DiscountCents += item.DiscountCents
		q.TaxCents += item.TaxCents
		q.GumroadTaxCents += item.GumroadTaxCents
		discountedSubtotal += item.TaxableCents
		q.Items[i] = item
	}

	feeRes := fees.Compute(discountedSubtotal+snap.TipCents, profile.Fees, snap.RecommendedByDiscover)
	q.FeeCents = feeRes.FeeCents
	q.WasDiscoverFeeCharged = feeRes.WasDiscoverFeeCharged

	credit, err := e.affiliateCredit(ctx, snap, q.Items, discountedSubtotal, feeRes.FeeCents)
	if err != nil {
		return quote.Quote{}, err
	}
	q.AffiliateCreditCents = credit

	q.TotalCents = discountedSubtotal + q.TaxCents + snap.TipCents

	if snap.Plan != nil {
		schedule, err := installments.Build(discountedSubtotal, *snap.Plan, snap.TipCents, proportionalTax(discountedSubtotal, q.TaxCents))
		if err != nil {
			return quote.Quote{}, err
		}
		q.Installments = &schedule
	}
	return q, nil
}

// detectIPCountry prefers the signal already on the snapshot; otherwise it
// asks the geolocation resolver. Resolution failures degrade to no signal.
func (e *Engine) detectIPCountry(ctx context.Context, b cart.Buyer) string {
	if b.IPCountry != "" {
		return b.IPCountry
	}
	if b.IPAddress == "" || e.Geo == nil {
		return ""
	}
	country, err := e.Geo.CountryForIP(ctx, b.IPAddress)
	if err != nil {
		if e.Logger != nil {
			e.Logger.Debug().Err(err).Msg("ip geolocation unavailable")
		}
		return ""
	}
	return country
}

func (e *Engine) resolveLines(ctx context.Context, snap cart.Snapshot) ([]resolvedLine, string, error) {
	lines := make([]resolvedLine, 0, len(snap.Lines))
	currency := snap.Currency
	for _, l := range snap.Lines {
		product, err := e.Catalog.Product(ctx, l.ProductID)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %s", ErrUnknownProduct, l.ProductID)
		}
		price, err := catalog.ResolveLine(catalog.Selection{
			Product:          product,
			VariantIDs:       l.VariantIDs,
			Quantity:         l.Quantity,
			CustomPriceCents: l.CustomPriceCents,
			Rental:           l.Rental,
		})
		if err != nil {
			return nil, "", err
		}
		if currency == "" {
			currency = product.Currency
		}
		lines = append(lines, resolvedLine{product: product, price: price, qty: l.Quantity})
	}
	return lines, currency, nil
}

// lookupCode finds and liveness-checks the attached code. A missing, expired
// or exhausted code does not fail pricing; it comes back as a nil code with a
// rejection reason.
func (e *Engine) lookupCode(ctx context.Context, snap cart.Snapshot, lines []resolvedLine) (*offer.Code, string, error) {
	raw := snap.Code()
	if raw == "" {
		return nil, "", nil
	}
	code, err := e.Offers.Find(ctx, snap.SellerID, raw)
	if err != nil {
		if errors.Is(err, offer.ErrInvalidCode) {
			return nil, ReasonInvalidCode, nil
		}
		return nil, "", fmt.Errorf("offer lookup: %w", err)
	}

	now := e.now()
	covered := 0
	quantityFailures := 0
	offerLines := make([]offer.Line, 0, len(lines))
	for _, l := range lines {
		offerLines = append(offerLines, offer.Line{
			ProductID:      l.product.ID,
			SellerID:       l.product.SellerID,
			Quantity:       l.qty,
			LineTotalCents: l.price.LineTotalCents,
		})
		if !code.AppliesTo(l.product.ID, l.product.SellerID) {
			continue
		}
		covered++
		switch err := code.Validate(now, l.qty); {
		case errors.Is(err, offer.ErrInactive):
			return nil, ReasonExpiredOrInactiveCode, nil
		case errors.Is(err, offer.ErrSoldOut):
			return nil, ReasonSoldOutCode, nil
		case errors.Is(err, offer.ErrMinimumQuantityUnmet):
			quantityFailures++
		}
	}
	if covered == 0 {
		return nil, ReasonInvalidCode, nil
	}
	if quantityFailures == covered {
		return nil, ReasonUnmetMinimumQuantity, nil
	}
	if err := code.CheckMinimumAmount(offer.EligibleSubtotal(offerLines, code)); err != nil {
		return nil, ReasonUnmetMinimumAmount, nil
	}
	return &code, "", nil
}

// arbitrate computes per-line offer and PPP candidates and lets the cart-wide
// precedence rule pick winners. The card-country check runs only when PPP
// would actually discount something.
func (e *Engine) arbitrate(snap cart.Snapshot, lines []resolvedLine, code *offer.Code, profile SellerProfile, ipCountry, currency string) (discount.Outcome, int64, error) {
	factor, haveFactor := e.PPP.FactorBps(ipCountry)
	minPrice := money.MinPrice(currency)
	now := e.now()

	candidates := make([]discount.Line, len(lines))
	anyPPP := false
	for i, l := range lines {
		var c discount.Line
		if code != nil && code.AppliesTo(l.product.ID, l.product.SellerID) && code.Validate(now, l.qty) == nil {
			c.CodeEligible = true
			c.OfferCents = code.Amount.DiscountFor(l.price.LineTotalCents)
		}
		if haveFactor && !l.product.PPPDisabled {
			c.PPPCents = ppp.Discount(l.price.LineTotalCents, factor, profile.PPP, minPrice)
		}
		if c.PPPCents > 0 {
			anyPPP = true
		}
		candidates[i] = c
	}

	if anyPPP {
		if err := ppp.VerifyCountry(snap.Buyer.CardCountry, ipCountry, profile.PPP); err != nil {
			return discount.Outcome{}, 0, err
		}
	}
	return discount.Arbitrate(candidates), factor, nil
}

func (e *Engine) checkExemption(ctx context.Context, b cart.Buyer) (tax.Exemption, error) {
	if b.TaxID == "" || e.Exemptions == nil {
		return tax.Exemption{}, nil
	}
	country := b.ElectedCountry
	if country == "" {
		country = b.IPCountry
	}
	return e.Exemptions.Check(ctx, country, b.TaxID)
}

func (e *Engine) taxLine(taxable money.Money, q tax.Query, ex tax.Exemption) tax.Calculation {
	rate, ok := e.Tax.Resolve(q)
	if !ok {
		return tax.Calculation{}
	}
	return tax.Calculate(taxable, rate, ex.Verified, ex.TaxID)
}

// affiliateCredit sums per-line attribution credit. Each line's share of the
// platform fee is proportional to its discounted total, which is what a
// collaborator absorbs half of.
func (e *Engine) affiliateCredit(ctx context.Context, snap cart.Snapshot, items []quote.ItemBreakdown, discountedSubtotal, fee money.Money) (money.Money, error) {
	if e.Affiliates == nil {
		return 0, nil
	}
	registry, err := e.Affiliates.Attributions(ctx, snap.SellerID)
	if err != nil {
		return 0, fmt.Errorf("affiliate registry: %w", err)
	}
	if len(registry) == 0 && len(snap.AffiliateCookies) == 0 {
		// Collaborators can still apply without cookies or registry entries.
		registry = map[uuid.UUID]fees.Attribution{}
	}
	now := e.now()
	var total money.Money
	for _, item := range items {
		collaborator, err := e.Affiliates.Collaborator(ctx, item.ProductID)
		if err != nil {
			return 0, fmt.Errorf("collaborator lookup: %w", err)
		}
		attr := fees.ResolveAttribution(item.ProductID, collaborator, snap.AffiliateCookies, registry, now)
		if attr == nil {
			continue
		}
		lineFee := proportionalShare(fee, item.TaxableCents, discountedSubtotal)
		total += fees.Credit(item.TaxableCents, *attr, lineFee)
	}
	return total, nil
}

// proportionalShare splits whole by part/total, rounding half up.
func proportionalShare(whole, part, total money.Money) money.Money {
	if whole <= 0 || part <= 0 || total <= 0 {
		return 0
	}
	return (whole*part + total/2) / total
}

// proportionalTax spreads the quote's charged tax over installment principals
// so per-charge tax sums back to the quoted tax.
func proportionalTax(principal, taxTotal money.Money) func(money.Money) money.Money {
	var allocated, seen money.Money
	return func(p money.Money) money.Money {
		if principal <= 0 || taxTotal <= 0 {
			return 0
		}
		seen += p
		// Cumulative allocation keeps the parts summing exactly to taxTotal.
		cum := (taxTotal*seen + principal/2) / principal
		if cum > taxTotal {
			cum = taxTotal
		}
		share := cum - allocated
		allocated = cum
		return share
	}
}
