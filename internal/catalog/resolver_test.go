package catalog

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/noah-isme/checkout-engine/internal/money"
)

func TestResolveLineVariantDiffs(t *testing.T) {
	v1 := Variant{ID: uuid.New(), PriceDiffCents: 200}
	v2 := Variant{ID: uuid.New(), PriceDiffCents: -100}
	p := Product{PriceCents: 999, Variants: []Variant{v1, v2}}

	got, err := ResolveLine(Selection{Product: p, VariantIDs: []uuid.UUID{v1.ID, v2.ID}, Quantity: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UnitPriceCents != 1099 {
		t.Fatalf("expected unit 1099, got %d", got.UnitPriceCents)
	}
	if got.LineTotalCents != 3297 {
		t.Fatalf("expected line total 3297, got %d", got.LineTotalCents)
	}
}

func TestResolveLineUnknownVariant(t *testing.T) {
	p := Product{PriceCents: 999}
	_, err := ResolveLine(Selection{Product: p, VariantIDs: []uuid.UUID{uuid.New()}, Quantity: 1})
	if !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestResolveLinePwyw(t *testing.T) {
	p := Product{PriceCents: 500, PayWhatYouWant: true}

	custom := money.Money(1500)
	got, err := ResolveLine(Selection{Product: p, CustomPriceCents: &custom, Quantity: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UnitPriceCents != 1500 {
		t.Fatalf("expected buyer price 1500, got %d", got.UnitPriceCents)
	}

	low := money.Money(499)
	if _, err := ResolveLine(Selection{Product: p, CustomPriceCents: &low, Quantity: 1}); !errors.Is(err, ErrPwywBelowMinimum) {
		t.Fatalf("expected ErrPwywBelowMinimum, got %v", err)
	}
}

func TestResolveLineBundleIgnoresVariants(t *testing.T) {
	p := Product{PriceCents: 2500, IsBundle: true, BundleProductIDs: []uuid.UUID{uuid.New(), uuid.New()}}
	got, err := ResolveLine(Selection{Product: p, Quantity: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UnitPriceCents != 2500 {
		t.Fatalf("bundle must use its flat price, got %d", got.UnitPriceCents)
	}
}

func TestResolveLineRental(t *testing.T) {
	rental := money.Money(399)
	p := Product{PriceCents: 1999, RentalPriceCents: &rental}
	got, err := ResolveLine(Selection{Product: p, Rental: true, Quantity: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UnitPriceCents != 399 {
		t.Fatalf("expected rental price 399, got %d", got.UnitPriceCents)
	}

	if _, err := ResolveLine(Selection{Product: Product{PriceCents: 100}, Rental: true, Quantity: 1}); !errors.Is(err, ErrRentalUnavailable) {
		t.Fatalf("expected ErrRentalUnavailable, got %v", err)
	}
}
