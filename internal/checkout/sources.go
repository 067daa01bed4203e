package checkout

import (
	"context"

	"github.com/google/uuid"

	"github.com/noah-isme/checkout-engine/internal/catalog"
	"github.com/noah-isme/checkout-engine/internal/fees"
	"github.com/noah-isme/checkout-engine/internal/offer"
	"github.com/noah-isme/checkout-engine/internal/ppp"
)

// CatalogSource resolves product snapshots for pricing.
type CatalogSource interface {
	Product(ctx context.Context, id uuid.UUID) (catalog.Product, error)
}

// OfferSource looks up an offer code for a seller. A code that does not exist
// is reported as offer.ErrInvalidCode.
type OfferSource interface {
	Find(ctx context.Context, sellerID uuid.UUID, code string) (offer.Code, error)
}

// SellerProfile carries the seller-level switches pricing depends on.
type SellerProfile struct {
	PPP  ppp.SellerSettings
	Fees fees.Schedule
}

// SellerSource resolves seller profiles.
type SellerSource interface {
	Profile(ctx context.Context, sellerID uuid.UUID) (SellerProfile, error)
}

// AffiliateSource resolves who may earn credit on a seller's sales.
type AffiliateSource interface {
	Attributions(ctx context.Context, sellerID uuid.UUID) (map[uuid.UUID]fees.Attribution, error)
	Collaborator(ctx context.Context, productID uuid.UUID) (*fees.Attribution, error)
}
