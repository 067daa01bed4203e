package tax

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestFormatValid(t *testing.T) {
	cases := []struct {
		country string
		id      string
		want    bool
	}{
		{"AU", "51 824 753 556", true},
		{"AU", "1234", false},
		{"GB", "GB123456789", true},
		{"DE", "DE811907980", true},
		{"DE", "!!", false},
		{"JP", "T1234567890123", true},
		{"ZZ", "ABC-1234", true},
		{"US", "", false},
	}
	for _, tc := range cases {
		if got := FormatValid(tc.country, tc.id); got != tc.want {
			t.Fatalf("FormatValid(%s, %q) = %v, want %v", tc.country, tc.id, got, tc.want)
		}
	}
}

type failingVerifier struct{ calls int }

func (f *failingVerifier) Verify(context.Context, string, string) (bool, error) {
	f.calls++
	return false, errors.New("registry unreachable")
}

func TestCheckValidID(t *testing.T) {
	checker := &ExemptionChecker{Verifier: StaticVerifier{"51824753556": true}}
	ex, err := checker.Check(context.Background(), "AU", "51 824 753 556")
	require.NoError(t, err)
	require.True(t, ex.Verified)
	require.Equal(t, "51824753556", ex.TaxID)
}

func TestCheckRejectedID(t *testing.T) {
	checker := &ExemptionChecker{Verifier: StaticVerifier{}}
	_, err := checker.Check(context.Background(), "AU", "51824753556")
	require.ErrorIs(t, err, ErrInvalidTaxID)
}

func TestCheckMalformedID(t *testing.T) {
	checker := &ExemptionChecker{Verifier: StaticVerifier{}}
	_, err := checker.Check(context.Background(), "AU", "nope")
	require.ErrorIs(t, err, ErrInvalidTaxID)
}

func TestCheckFailsClosedOnOutage(t *testing.T) {
	verifier := &failingVerifier{}
	checker := &ExemptionChecker{Verifier: verifier, Timeout: 50 * time.Millisecond}
	ex, err := checker.Check(context.Background(), "AU", "51824753556")
	require.NoError(t, err, "an outage must not fail the checkout")
	require.False(t, ex.Verified, "an outage must leave the purchase taxed")
	require.Equal(t, 2, verifier.calls, "expected exactly one retry")
}

func TestCheckUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	checker := &ExemptionChecker{
		Verifier: StaticVerifier{"51824753556": true},
		Cache:    client,
		CacheTTL: time.Minute,
	}
	ctx := context.Background()
	_, err := checker.Check(ctx, "AU", "51824753556")
	require.NoError(t, err)

	// Swap in an outage verifier; the cached verification must still hold.
	checker.Verifier = &failingVerifier{}
	ex, err := checker.Check(ctx, "AU", "51824753556")
	require.NoError(t, err)
	require.True(t, ex.Verified)
}
