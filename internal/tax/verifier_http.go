package tax

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/noah-isme/checkout-engine/internal/resilience"
)

// HTTPVerifier talks to an external tax-id verification gateway over HTTP.
// The gateway fronts the per-jurisdiction registries (VIES, ABR, ...).
type HTTPVerifier struct {
	BaseURL string
	HTTP    *resilience.HTTPClient
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

// Verify implements Verifier.
func (v *HTTPVerifier) Verify(ctx context.Context, country, taxID string) (bool, error) {
	if v == nil || v.HTTP == nil {
		return false, fmt.Errorf("tax: http verifier not configured")
	}
	endpoint := fmt.Sprintf("%s/v1/tax-ids/verify?country=%s&id=%s",
		v.BaseURL, url.QueryEscape(country), url.QueryEscape(taxID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	resp, err := v.HTTP.Do(ctx, req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("tax: verification gateway returned %s", resp.Status)
	}
	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.Valid, nil
}
