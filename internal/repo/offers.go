package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/checkout-engine/internal/money"
	"github.com/noah-isme/checkout-engine/internal/offer"
)

// Offers loads offer codes for the discount resolver.
type Offers struct {
	Pool *pgxpool.Pool
}

// Find returns the seller's code by its case-insensitive name. A missing or
// soft-deleted code is offer.ErrInvalidCode.
func (r Offers) Find(ctx context.Context, sellerID uuid.UUID, code string) (offer.Code, error) {
	var (
		c          offer.Code
		amountCent *money.Money
		amountBps  *int64
	)
	err := r.Pool.QueryRow(ctx, `
		SELECT id, seller_id, code, amount_cents, amount_percentage_bps, universal,
		       minimum_amount_cents, minimum_quantity, duration_in_billing_cycles,
		       valid_at, expires_at, max_purchase_count, purchase_count
		FROM offer_codes
		WHERE seller_id = $1 AND lower(code) = lower($2) AND deleted_at IS NULL`,
		sellerID, strings.TrimSpace(code),
	).Scan(&c.ID, &c.SellerID, &c.Code, &amountCent, &amountBps, &c.Universal,
		&c.MinimumAmountCents, &c.MinimumQuantity, &c.DurationInBillingCycles,
		&c.ValidAt, &c.ExpiresAt, &c.MaxPurchaseCount, &c.PurchaseCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return offer.Code{}, offer.ErrInvalidCode
		}
		return offer.Code{}, fmt.Errorf("load offer code: %w", err)
	}
	switch {
	case amountBps != nil:
		c.Amount = offer.Percentage(*amountBps)
	case amountCent != nil:
		c.Amount = offer.Fixed(*amountCent)
	default:
		return offer.Code{}, fmt.Errorf("offer code %s has no amount", c.ID)
	}
	if !c.Universal {
		if c.ProductIDs, err = r.products(ctx, c.ID); err != nil {
			return offer.Code{}, err
		}
	}
	return c, nil
}

func (r Offers) products(ctx context.Context, codeID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT product_id FROM offer_code_products WHERE offer_code_id = $1 ORDER BY product_id`, codeID)
	if err != nil {
		return nil, fmt.Errorf("load offer code products: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
