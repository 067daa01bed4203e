package offer

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/checkout-engine/internal/money"
)

func TestAmountPercentageRoundsHalfCentToEven(t *testing.T) {
	a := Percentage(5000)
	if got := a.DiscountFor(4999); got != 2500 {
		t.Fatalf("50%% off $49.99 should be $25.00 discount, got %d", got)
	}
	if price := money.Money(4999) - a.DiscountFor(4999); price != 2499 {
		t.Fatalf("50%% off $49.99 should leave $24.99, got %d", price)
	}
	b := Percentage(7000)
	if got := b.DiscountFor(1395); got != 976 {
		t.Fatalf("70%% off $13.95 should be $9.76 discount, got %d", got)
	}
	if price := money.Money(1395) - b.DiscountFor(1395); price != 419 {
		t.Fatalf("70%% off $13.95 should leave $4.19, got %d", price)
	}
}

func TestAmountFixedCapped(t *testing.T) {
	a := Fixed(2000)
	if got := a.DiscountFor(1500); got != 1500 {
		t.Fatalf("fixed discount must cap at line total, got %d", got)
	}
	if got := a.DiscountFor(5000); got != 2000 {
		t.Fatalf("expected 2000, got %d", got)
	}
}

func TestValidateLiveness(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	max := 5
	minQty := 2

	cases := []struct {
		name string
		code Code
		qty  int
		want error
	}{
		{"deleted", Code{Deleted: true}, 1, ErrInactive},
		{"not yet valid", Code{ValidAt: &future}, 1, ErrInactive},
		{"expired", Code{ExpiresAt: &past}, 1, ErrInactive},
		{"sold out", Code{MaxPurchaseCount: &max, PurchaseCount: 5}, 1, ErrSoldOut},
		{"quantity unmet", Code{MinimumQuantity: &minQty}, 1, ErrMinimumQuantityUnmet},
		{"ok", Code{ValidAt: &past, ExpiresAt: &future, MaxPurchaseCount: &max, PurchaseCount: 4, MinimumQuantity: &minQty}, 2, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.code.Validate(now, tc.qty)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestEligibleSubtotalScoped(t *testing.T) {
	seller := uuid.New()
	prod := uuid.New()
	other := uuid.New()
	c := Code{SellerID: seller, ProductIDs: []uuid.UUID{prod}}
	lines := []Line{
		{ProductID: prod, SellerID: seller, LineTotalCents: 5000},
		{ProductID: other, SellerID: seller, LineTotalCents: 7000},
	}
	if got := EligibleSubtotal(lines, c); got != 5000 {
		t.Fatalf("expected eligible subtotal 5000, got %d", got)
	}

	universal := Code{SellerID: seller, Universal: true}
	if got := EligibleSubtotal(lines, universal); got != 12000 {
		t.Fatalf("universal code should cover all seller lines, got %d", got)
	}
}

func TestCheckMinimumAmount(t *testing.T) {
	min := money.Money(10000)
	c := Code{MinimumAmountCents: &min}
	if err := c.CheckMinimumAmount(9999); !errors.Is(err, ErrMinimumAmountUnmet) {
		t.Fatalf("expected ErrMinimumAmountUnmet, got %v", err)
	}
	if err := c.CheckMinimumAmount(10000); err != nil {
		t.Fatalf("threshold met should pass, got %v", err)
	}
}
