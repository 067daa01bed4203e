package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/checkout-engine/internal/catalog"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("repo: not found")

// Products loads product snapshots, fronted by the catalog cache when one is
// configured.
type Products struct {
	Pool  *pgxpool.Pool
	Cache *catalog.Cache
}

// Product returns the full pricing snapshot for a product.
func (r Products) Product(ctx context.Context, id uuid.UUID) (catalog.Product, error) {
	if cached, ok, err := r.Cache.GetProduct(ctx, id); err == nil && ok {
		return cached, nil
	}

	var p catalog.Product
	err := r.Pool.QueryRow(ctx, `
		SELECT id, seller_id, name, currency, price_cents, rental_price_cents,
		       pay_what_you_want, is_bundle, is_epublication, is_physical, ppp_disabled
		FROM products
		WHERE id = $1 AND deleted_at IS NULL`, id,
	).Scan(&p.ID, &p.SellerID, &p.Name, &p.Currency, &p.PriceCents, &p.RentalPriceCents,
		&p.PayWhatYouWant, &p.IsBundle, &p.IsEpublication, &p.IsPhysical, &p.PPPDisabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Product{}, ErrNotFound
		}
		return catalog.Product{}, fmt.Errorf("load product: %w", err)
	}

	if p.Variants, err = r.variants(ctx, id); err != nil {
		return catalog.Product{}, err
	}
	if p.IsBundle {
		if p.BundleProductIDs, err = r.bundleContents(ctx, id); err != nil {
			return catalog.Product{}, err
		}
	}

	_ = r.Cache.SetProduct(ctx, p)
	return p, nil
}

func (r Products) variants(ctx context.Context, productID uuid.UUID) ([]catalog.Variant, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id, name, price_diff_cents
		FROM product_variants
		WHERE product_id = $1
		ORDER BY position, id`, productID)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	defer rows.Close()

	var out []catalog.Variant
	for rows.Next() {
		var v catalog.Variant
		if err := rows.Scan(&v.ID, &v.Name, &v.PriceDiffCents); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r Products) bundleContents(ctx context.Context, bundleID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT product_id
		FROM bundle_products
		WHERE bundle_id = $1
		ORDER BY position, product_id`, bundleID)
	if err != nil {
		return nil, fmt.Errorf("load bundle contents: %w", err)
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
