package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PPPFactors loads the country purchasing-power factors (basis points).
type PPPFactors struct {
	Pool *pgxpool.Pool
}

// Load returns country -> factor for registry construction at startup.
func (r PPPFactors) Load(ctx context.Context) (map[string]int64, error) {
	rows, err := r.Pool.Query(ctx, `SELECT country, factor_bps FROM ppp_factors`)
	if err != nil {
		return nil, fmt.Errorf("load ppp factors: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			country string
			factor  int64
		)
		if err := rows.Scan(&country, &factor); err != nil {
			return nil, err
		}
		out[country] = factor
	}
	return out, rows.Err()
}
