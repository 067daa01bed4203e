package fees

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func defaultSchedule() Schedule {
	return Schedule{
		BaseBps:             1000, // 10%
		BaseFixedCents:      50,
		ProcessorBps:        290, // 2.9%
		ProcessorFixedCents: 30,
		DiscoverBps:         3000, // 30% flat on discover traffic
	}
}

func TestComputeDefault(t *testing.T) {
	got := Compute(10000, defaultSchedule(), false)
	// 10% + 50 + 2.9% + 30 = 1000 + 50 + 290 + 30.
	if got.FeeCents != 1370 {
		t.Fatalf("expected 1370, got %d", got.FeeCents)
	}
	if got.WasDiscoverFeeCharged {
		t.Fatal("organic traffic must not flag discover")
	}
}

func TestComputeCustomFeePerThousand(t *testing.T) {
	s := defaultSchedule()
	custom := int64(50) // 5%
	s.CustomFeePerThousand = &custom
	got := Compute(10000, s, false)
	// 5% + 50 + processor 290 + 30.
	if got.FeeCents != 500+50+290+30 {
		t.Fatalf("expected 870, got %d", got.FeeCents)
	}
}

func TestComputeDiscoverFlat(t *testing.T) {
	s := defaultSchedule()
	s.SellerOptedIntoDiscover = true
	got := Compute(10000, s, true)
	// 30% flat replaces the platform component; processor still added.
	if got.FeeCents != 3000+290+30 {
		t.Fatalf("expected 3320, got %d", got.FeeCents)
	}
	if !got.WasDiscoverFeeCharged {
		t.Fatal("discover flat pricing must flag the purchase")
	}
}

func TestComputeDiscoverPerThousandOverride(t *testing.T) {
	s := defaultSchedule()
	s.SellerOptedIntoDiscover = true
	override := int64(200) // 20%
	s.DiscoverFeePerThousand = &override
	got := Compute(10000, s, true)
	if got.FeeCents != 2000+290+30 {
		t.Fatalf("expected 2320, got %d", got.FeeCents)
	}
	if got.WasDiscoverFeeCharged {
		t.Fatal("an explicit discover override must leave the flag false")
	}
}

func TestComputeCustomFeeBeatsDiscover(t *testing.T) {
	s := defaultSchedule()
	s.SellerOptedIntoDiscover = true
	custom := int64(50)
	s.CustomFeePerThousand = &custom
	got := Compute(10000, s, true)
	if got.WasDiscoverFeeCharged {
		t.Fatal("custom-fee sellers never get discover pricing")
	}
	if got.FeeCents != 500+50+290+30 {
		t.Fatalf("expected custom fee, got %d", got.FeeCents)
	}
}

func TestCreditAffiliate(t *testing.T) {
	a := Attribution{BasisPoints: 3000}
	if got := Credit(9999, a, 0); got != 3000 {
		t.Fatalf("30%% of $99.99 rounds to $30.00, got %d", got)
	}
}

func TestCreditCollaboratorAbsorbsHalfFee(t *testing.T) {
	a := Attribution{BasisPoints: 5000, Collaborator: true}
	if got := Credit(10000, a, 1370); got != 5000-685 {
		t.Fatalf("expected 4315, got %d", got)
	}
	// Credit never goes negative.
	small := Attribution{BasisPoints: 100, Collaborator: true}
	if got := Credit(1000, small, 500); got != 0 {
		t.Fatalf("expected clamped 0, got %d", got)
	}
}

func TestResolveAttributionCollaboratorWins(t *testing.T) {
	product := uuid.New()
	collab := &Attribution{AffiliateID: uuid.New(), BasisPoints: 5000, Collaborator: true}
	affiliateID := uuid.New()
	registry := map[uuid.UUID]Attribution{
		affiliateID: {AffiliateID: affiliateID, BasisPoints: 1000},
	}
	cookies := []Cookie{{AffiliateID: affiliateID, SetAt: time.Now()}}

	got := ResolveAttribution(product, collab, cookies, registry, time.Now())
	if got == nil || !got.Collaborator {
		t.Fatalf("collaborator must supersede affiliates, got %+v", got)
	}
}

func TestResolveAttributionMostRecentEligibleCookie(t *testing.T) {
	product := uuid.New()
	now := time.Now()

	oldEligible := uuid.New()
	newIneligible := uuid.New()
	newestStale := uuid.New()
	registry := map[uuid.UUID]Attribution{
		oldEligible:   {AffiliateID: oldEligible, BasisPoints: 1000},
		newIneligible: {AffiliateID: newIneligible, BasisPoints: 2000, ProductIDs: []uuid.UUID{uuid.New()}},
		newestStale:   {AffiliateID: newestStale, BasisPoints: 3000},
	}
	cookies := []Cookie{
		{AffiliateID: oldEligible, SetAt: now.Add(-2 * time.Hour)},
		{AffiliateID: newIneligible, SetAt: now.Add(-time.Hour)},
		{AffiliateID: newestStale, SetAt: now.Add(-time.Minute), ExpiresAt: now.Add(-time.Second)},
	}

	got := ResolveAttribution(product, nil, cookies, registry, now)
	if got == nil || got.AffiliateID != oldEligible {
		t.Fatalf("expected the alive eligible cookie to win, got %+v", got)
	}
}
