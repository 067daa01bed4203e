package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/checkout-engine/internal/fees"
)

// Affiliates loads attribution candidates: a seller's direct affiliates and
// per-product collaborators.
type Affiliates struct {
	Pool *pgxpool.Pool
}

// Attributions returns every live affiliate of the seller keyed by id.
func (r Affiliates) Attributions(ctx context.Context, sellerID uuid.UUID) (map[uuid.UUID]fees.Attribution, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT a.id, a.basis_points,
		       COALESCE(array_agg(ap.product_id) FILTER (WHERE ap.product_id IS NOT NULL), '{}')
		FROM affiliates a
		LEFT JOIN affiliate_products ap ON ap.affiliate_id = a.id
		WHERE a.seller_id = $1 AND a.deleted_at IS NULL
		GROUP BY a.id, a.basis_points`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("load affiliates: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]fees.Attribution)
	for rows.Next() {
		var a fees.Attribution
		if err := rows.Scan(&a.AffiliateID, &a.BasisPoints, &a.ProductIDs); err != nil {
			return nil, err
		}
		out[a.AffiliateID] = a
	}
	return out, rows.Err()
}

// Collaborator returns the product's collaborator, if one exists.
func (r Affiliates) Collaborator(ctx context.Context, productID uuid.UUID) (*fees.Attribution, error) {
	var a fees.Attribution
	err := r.Pool.QueryRow(ctx, `
		SELECT c.affiliate_id, c.basis_points
		FROM collaborators c
		WHERE c.product_id = $1 AND c.deleted_at IS NULL`, productID,
	).Scan(&a.AffiliateID, &a.BasisPoints)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load collaborator: %w", err)
	}
	a.Collaborator = true
	a.ProductIDs = []uuid.UUID{productID}
	return &a, nil
}
