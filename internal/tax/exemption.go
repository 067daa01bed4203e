package tax

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-engine/internal/cache"
	"github.com/noah-isme/checkout-engine/internal/obs"
)

// ErrInvalidTaxID is returned when a supplied exemption id is malformed or
// rejected by the jurisdiction's registry.
var ErrInvalidTaxID = errors.New("tax: invalid tax id")

// Verifier checks an exemption id against an external registry (VIES, ABR and
// friends). Implementations must honour the context deadline.
type Verifier interface {
	Verify(ctx context.Context, country, taxID string) (bool, error)
}

// idPatterns gates ids by shape before any network call. Countries without an
// entry fall back to a permissive alphanumeric check.
var idPatterns = map[string]*regexp.Regexp{
	"AU": regexp.MustCompile(`^\d{11}$`),                      // ABN
	"GB": regexp.MustCompile(`^GB?\d{9}(\d{3})?$`),            // UK VAT
	"CA": regexp.MustCompile(`^\d{9}(RT\d{4})?$`),             // GST/HST
	"IN": regexp.MustCompile(`^[0-9]{2}[A-Z0-9]{13}$`),        // GSTIN
	"SG": regexp.MustCompile(`^[A-Z0-9]{9,10}[A-Z]$`),         // GST reg
	"JP": regexp.MustCompile(`^T?\d{13}$`),                    // corporate number
	"NZ": regexp.MustCompile(`^\d{8,9}$`),                     // IRD/GST
	"NO": regexp.MustCompile(`^\d{9}(MVA)?$`),                 // org number
	"CH": regexp.MustCompile(`^CHE\d{9}(MWST|TVA|IVA)?$`),     // UID
	"MX": regexp.MustCompile(`^[A-Z&Ñ]{3,4}\d{6}[A-Z0-9]{3}$`), // RFC
	"BR": regexp.MustCompile(`^\d{11}$|^\d{14}$`),             // CPF/CNPJ
	"KR": regexp.MustCompile(`^\d{10}$`),                      // BRN
}

var euVATPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{2,12}$`)
var genericIDPattern = regexp.MustCompile(`^[A-Z0-9-]{4,20}$`)

// FormatValid reports whether the id shape is plausible for the jurisdiction.
func FormatValid(country, taxID string) bool {
	id := NormalizeTaxID(taxID)
	if id == "" {
		return false
	}
	c := strings.ToUpper(strings.TrimSpace(country))
	if p, ok := idPatterns[c]; ok {
		return p.MatchString(id)
	}
	if IsEU(c) {
		return euVATPattern.MatchString(id)
	}
	return genericIDPattern.MatchString(id)
}

// NormalizeTaxID strips spacing and dots and uppercases the id.
func NormalizeTaxID(taxID string) string {
	return strings.ToUpper(strings.NewReplacer(" ", "", ".", "", "\t", "").Replace(strings.TrimSpace(taxID)))
}

// Exemption is the outcome of an exemption id check. The normalized id is kept
// so the invoice renderer can print it.
type Exemption struct {
	Verified bool
	TaxID    string
}

// ExemptionChecker validates exemption ids fail-closed: any failure to reach
// the external registry leaves the purchase taxed rather than untaxed.
type ExemptionChecker struct {
	Verifier Verifier
	// Cache short-circuits repeat verifications of the same id. Optional.
	Cache    *redis.Client
	CacheTTL time.Duration
	// Timeout bounds a single verification attempt.
	Timeout time.Duration
	Logger  *zerolog.Logger
}


// Check validates the supplied id. A malformed or registry-rejected id is
// ErrInvalidTaxID. A registry outage is not an error: the id is treated as
// unverified and the purchase proceeds taxed, after one retry.
func (c *ExemptionChecker) Check(ctx context.Context, country, taxID string) (Exemption, error) {
	id := NormalizeTaxID(taxID)
	if id == "" {
		return Exemption{}, nil
	}
	if !FormatValid(country, id) {
		recordVerification("malformed")
		return Exemption{}, ErrInvalidTaxID
	}
	if c.Cache != nil {
		if ok, err := c.Cache.Get(ctx, cache.KeyTaxIDVerified(country, id)).Result(); err == nil && ok == "1" {
			recordVerification("cache_hit")
			return Exemption{Verified: true, TaxID: id}, nil
		}
	}
	if c.Verifier == nil {
		// No registry configured: shape check is the best available signal.
		return Exemption{Verified: true, TaxID: id}, nil
	}

	valid, err := c.verifyOnce(ctx, country, id)
	if err != nil {
		// One retry with a fresh short deadline, then fail closed.
		valid, err = c.verifyOnce(ctx, country, id)
	}
	if err != nil {
		if c.Logger != nil {
			c.Logger.Warn().Err(err).Str("country", country).Msg("tax id verification unavailable, proceeding taxed")
		}
		recordVerification("unavailable")
		return Exemption{Verified: false, TaxID: id}, nil
	}
	if !valid {
		recordVerification("rejected")
		return Exemption{}, ErrInvalidTaxID
	}
	if c.Cache != nil && c.CacheTTL > 0 {
		_ = c.Cache.Set(ctx, cache.KeyTaxIDVerified(country, id), "1", c.CacheTTL).Err()
	}
	recordVerification("verified")
	return Exemption{Verified: true, TaxID: id}, nil
}

func recordVerification(result string) {
	if obs.TaxIDVerificationTotal != nil {
		obs.TaxIDVerificationTotal.WithLabelValues(result).Inc()
	}
}

func (c *ExemptionChecker) verifyOnce(ctx context.Context, country, id string) (bool, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Verifier.Verify(callCtx, country, id)
}

// StaticVerifier is a fixture verifier keyed by normalized id.
type StaticVerifier map[string]bool

// Verify implements Verifier.
func (s StaticVerifier) Verify(_ context.Context, _ string, taxID string) (bool, error) {
	valid, ok := s[NormalizeTaxID(taxID)]
	if !ok {
		return false, nil
	}
	return valid, nil
}
