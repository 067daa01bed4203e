package installments

import (
	"testing"

	"github.com/noah-isme/checkout-engine/internal/money"
)

func TestSplitLiteral(t *testing.T) {
	parts := Split(1000, 3)
	want := []money.Money{334, 333, 333}
	for i := range want {
		if parts[i] != want[i] {
			t.Fatalf("$10.00 over 3 should be [334 333 333], got %v", parts)
		}
	}
}

func TestSplitExactSum(t *testing.T) {
	totals := []money.Money{1, 99, 1000, 4999, 123457}
	for _, total := range totals {
		for n := 1; n <= 12; n++ {
			parts := Split(total, n)
			var sum money.Money
			for _, p := range parts {
				sum += p
			}
			if sum != total {
				t.Fatalf("Split(%d, %d) sums to %d", total, n, sum)
			}
			for i := 1; i < len(parts); i++ {
				if parts[i] != parts[1] {
					t.Fatalf("Split(%d, %d): non-first parts must be equal, got %v", total, n, parts)
				}
			}
		}
	}
}

func TestBuildTipOnFirstChargeOnly(t *testing.T) {
	sched, err := Build(1000, Plan{NumberOfInstallments: 3, Recurrence: Monthly}, 200, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sched.Charges[0].TipCents != 200 {
		t.Fatalf("first charge must carry the tip, got %d", sched.Charges[0].TipCents)
	}
	for i := 1; i < len(sched.Charges); i++ {
		if sched.Charges[i].TipCents != 0 {
			t.Fatalf("charge %d must carry no tip", i)
		}
	}
}

func TestBuildPerChargeTax(t *testing.T) {
	taxFn := func(p money.Money) money.Money { return money.RoundHalfUpBps(p, 1000) }
	sched, err := Build(1000, Plan{NumberOfInstallments: 3}, 0, taxFn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 334 -> 33, 333 -> 33, 333 -> 33.
	for i, c := range sched.Charges {
		if c.TaxCents != 33 {
			t.Fatalf("charge %d: expected 33 tax, got %d", i, c.TaxCents)
		}
	}
	// Preview shows the full tax on the first payment.
	if sched.PreviewFirstPaymentCents != 334+99 {
		t.Fatalf("preview first payment should include entire tax, got %d", sched.PreviewFirstPaymentCents)
	}
	// The booked first charge only carries its own tax.
	if sched.Charges[0].TotalCents != 334+33 {
		t.Fatalf("booked first charge should carry proportional tax, got %d", sched.Charges[0].TotalCents)
	}
}

func TestBuildRejectsSingleInstallment(t *testing.T) {
	if _, err := Build(1000, Plan{NumberOfInstallments: 1}, 0, nil); err != ErrInvalidPlan {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
}
