package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/checkout-engine/internal/tax"
)

// TaxTables loads the jurisdiction rate table and the per-country enablement
// switches. Both are loaded at startup and refreshed out of band; pricing
// itself only ever sees immutable registries.
type TaxTables struct {
	Pool *pgxpool.Pool
}

// Load returns the full rate table plus the enabled-country list.
func (r TaxTables) Load(ctx context.Context) ([]tax.Rate, []string, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT country, COALESCE(state, ''), COALESCE(zip, ''), combined_rate_bps,
		       seller_responsible, is_epublication_rate, taxes_physical_goods,
		       COALESCE(from_year, 0), COALESCE(to_year, 0)
		FROM tax_rates`)
	if err != nil {
		return nil, nil, fmt.Errorf("load tax rates: %w", err)
	}
	defer rows.Close()

	var rates []tax.Rate
	for rows.Next() {
		var (
			rate              tax.Rate
			sellerResponsible bool
		)
		if err := rows.Scan(&rate.Country, &rate.State, &rate.Zip, &rate.CombinedRateBps,
			&sellerResponsible, &rate.IsEpublicationRate, &rate.TaxesPhysicalGoods,
			&rate.FromYear, &rate.ToYear); err != nil {
			return nil, nil, err
		}
		if sellerResponsible {
			rate.Responsibility = tax.SellerResponsible
		}
		rates = append(rates, rate)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	enabled, err := r.enabledCountries(ctx)
	if err != nil {
		return nil, nil, err
	}
	return rates, enabled, nil
}

func (r TaxTables) enabledCountries(ctx context.Context) ([]string, error) {
	rows, err := r.Pool.Query(ctx, `SELECT country FROM tax_enabled_countries WHERE enabled`)
	if err != nil {
		return nil, fmt.Errorf("load enabled countries: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
