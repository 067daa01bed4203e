package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/checkout-engine/internal/cache"
	"github.com/noah-isme/checkout-engine/internal/resilience"
)

// Resolver maps a client IP to an ISO country code.
type Resolver interface {
	CountryForIP(ctx context.Context, ip string) (string, error)
}

// Static is a fixture resolver keyed by IP.
type Static map[string]string

// CountryForIP implements Resolver.
func (s Static) CountryForIP(_ context.Context, ip string) (string, error) {
	country, ok := s[strings.TrimSpace(ip)]
	if !ok {
		return "", fmt.Errorf("geo: unknown ip %s", ip)
	}
	return country, nil
}

// HTTPResolver queries an external geolocation service.
type HTTPResolver struct {
	BaseURL string
	HTTP    *resilience.HTTPClient
}

type lookupResponse struct {
	CountryCode string `json:"countryCode"`
}

// CountryForIP implements Resolver.
func (r *HTTPResolver) CountryForIP(ctx context.Context, ip string) (string, error) {
	if r == nil || r.HTTP == nil {
		return "", fmt.Errorf("geo: http resolver not configured")
	}
	endpoint := fmt.Sprintf("%s/v1/lookup?ip=%s", r.BaseURL, url.QueryEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.HTTP.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geo: lookup returned %s", resp.Status)
	}
	var out lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return strings.ToUpper(strings.TrimSpace(out.CountryCode)), nil
}

// Cached wraps a resolver with a Redis cache; IP-to-country mappings change
// rarely and the lookup sits on the checkout path.
type Cached struct {
	R    *redis.Client
	TTL  time.Duration
	Next Resolver
}

// CountryForIP implements Resolver.
func (c Cached) CountryForIP(ctx context.Context, ip string) (string, error) {
	key := cache.KeyGeoCountry(ip)
	if c.R != nil {
		if country, err := c.R.Get(ctx, key).Result(); err == nil && country != "" {
			return country, nil
		}
	}
	country, err := c.Next.CountryForIP(ctx, ip)
	if err != nil {
		return "", err
	}
	if c.R != nil && c.TTL > 0 {
		_ = c.R.Set(ctx, key, country, c.TTL).Err()
	}
	return country, nil
}
