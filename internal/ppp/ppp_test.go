package ppp

import (
	"errors"
	"testing"
)

func TestDiscountFactor(t *testing.T) {
	// factor 0.49 on $9.99: 999 * 0.51 = 509.49 -> 509 off, price $4.90.
	d := Discount(999, 4900, SellerSettings{}, 99)
	if d != 509 {
		t.Fatalf("expected discount 509, got %d", d)
	}
	if 999-d != 490 {
		t.Fatalf("expected discounted price 490, got %d", 999-d)
	}
}

func TestDiscountFloorsAtMinimumPrice(t *testing.T) {
	// $1.00 at factor 0.49 would be $0.49; it floors up to $0.99.
	d := Discount(100, 4900, SellerSettings{}, 99)
	if d != 1 {
		t.Fatalf("expected discount 1, got %d", d)
	}
}

func TestDiscountSellerCap(t *testing.T) {
	limit := 20
	d := Discount(10000, 4900, SellerSettings{LimitPercentage: &limit}, 99)
	if d != 2000 {
		t.Fatalf("expected cap at 20%% (2000), got %d", d)
	}
}

func TestDiscountDisabled(t *testing.T) {
	if d := Discount(10000, 4900, SellerSettings{Disabled: true}, 99); d != 0 {
		t.Fatalf("disabled seller must yield no ppp discount, got %d", d)
	}
}

func TestVerifyCountry(t *testing.T) {
	if err := VerifyCountry("BR", "BR", SellerSettings{}); err != nil {
		t.Fatalf("matching countries should pass, got %v", err)
	}
	if err := VerifyCountry("US", "BR", SellerSettings{}); !errors.Is(err, ErrCardCountryMismatch) {
		t.Fatalf("expected ErrCardCountryMismatch, got %v", err)
	}
	if err := VerifyCountry("US", "BR", SellerSettings{VerificationDisabled: true}); err != nil {
		t.Fatalf("disabled verification should pass, got %v", err)
	}
}

func TestDisplayPercent(t *testing.T) {
	if got := DisplayPercent(4900); got != 51 {
		t.Fatalf("factor 0.49 should display as 51%% off, got %d", got)
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(map[string]int64{"br": 4900, "IN": 3500, "XX": 0})
	if f, ok := r.FactorBps("BR"); !ok || f != 4900 {
		t.Fatalf("expected 4900 for BR, got %d %v", f, ok)
	}
	if _, ok := r.FactorBps("XX"); ok {
		t.Fatal("zero factor must be dropped")
	}
}
