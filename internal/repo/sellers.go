package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/checkout-engine/internal/checkout"
	"github.com/noah-isme/checkout-engine/internal/fees"
	"github.com/noah-isme/checkout-engine/internal/ppp"
)

// Sellers loads the per-seller pricing switches: PPP behaviour and the fee
// schedule. Platform defaults fill columns the seller has not overridden.
type Sellers struct {
	Pool     *pgxpool.Pool
	Defaults fees.Schedule
}

// Profile returns the seller's pricing profile.
func (r Sellers) Profile(ctx context.Context, sellerID uuid.UUID) (checkout.SellerProfile, error) {
	p := checkout.SellerProfile{Fees: r.Defaults}
	var (
		settings ppp.SellerSettings
		custom   *int64
		discover *int64
		optedIn  bool
	)
	err := r.Pool.QueryRow(ctx, `
		SELECT ppp_disabled, ppp_limit_percentage, ppp_verification_disabled,
		       custom_fee_per_thousand, discover_fee_per_thousand, discover_opted_in
		FROM sellers
		WHERE id = $1`, sellerID,
	).Scan(&settings.Disabled, &settings.LimitPercentage, &settings.VerificationDisabled,
		&custom, &discover, &optedIn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return checkout.SellerProfile{}, ErrNotFound
		}
		return checkout.SellerProfile{}, fmt.Errorf("load seller: %w", err)
	}
	p.PPP = settings
	p.Fees.CustomFeePerThousand = custom
	p.Fees.DiscoverFeePerThousand = discover
	p.Fees.SellerOptedIntoDiscover = optedIn
	return p, nil
}
