package discount

import "testing"

func TestChoose(t *testing.T) {
	if c := Choose(500, 300); c.Source != SourceOfferCode || c.Cents != 500 {
		t.Fatalf("offer should win: %+v", c)
	}
	if c := Choose(300, 500); c.Source != SourcePPP || c.Cents != 500 {
		t.Fatalf("ppp should win: %+v", c)
	}
	if c := Choose(400, 400); c.Source != SourceOfferCode {
		t.Fatalf("tie should go to the offer code: %+v", c)
	}
	if c := Choose(0, 0); c.Source != SourceNone || c.Cents != 0 {
		t.Fatalf("no discount should be none: %+v", c)
	}
}

func TestArbitrateCodeWinsEverywhere(t *testing.T) {
	out := Arbitrate([]Line{
		{CodeEligible: true, OfferCents: 500, PPPCents: 300},
		{CodeEligible: true, OfferCents: 700, PPPCents: 700},
	})
	if out.CodeRejected {
		t.Fatal("code must not be rejected when it wins every line")
	}
	for i, c := range out.PerLine {
		if c.Source != SourceOfferCode {
			t.Fatalf("line %d: expected offer_code, got %s", i, c.Source)
		}
	}
}

func TestArbitrateCodeLosesEverywhere(t *testing.T) {
	out := Arbitrate([]Line{
		{CodeEligible: true, OfferCents: 100, PPPCents: 300},
		{CodeEligible: true, OfferCents: 200, PPPCents: 700},
	})
	if !out.CodeRejected {
		t.Fatal("code losing every eligible line must be rejected")
	}
	if out.CodeApplied {
		t.Fatal("rejected code must not be applied")
	}
	for i, c := range out.PerLine {
		if c.Source != SourcePPP {
			t.Fatalf("line %d: expected ppp, got %s", i, c.Source)
		}
	}
}

func TestArbitratePartialWin(t *testing.T) {
	out := Arbitrate([]Line{
		{CodeEligible: true, OfferCents: 500, PPPCents: 300},
		{CodeEligible: true, OfferCents: 100, PPPCents: 700},
		{CodeEligible: false, PPPCents: 200},
	})
	if out.CodeRejected {
		t.Fatal("partial win must not reject the code")
	}
	if !out.CodeApplied {
		t.Fatal("partial win must report the code applied")
	}
	want := []Source{SourceOfferCode, SourcePPP, SourcePPP}
	for i, c := range out.PerLine {
		if c.Source != want[i] {
			t.Fatalf("line %d: expected %s, got %s", i, want[i], c.Source)
		}
	}
}

func TestArbitrateMaxPerItem(t *testing.T) {
	lines := []Line{
		{CodeEligible: true, OfferCents: 450, PPPCents: 200},
		{CodeEligible: true, OfferCents: 800, PPPCents: 650},
	}
	out := Arbitrate(lines)
	for i, c := range out.PerLine {
		max := lines[i].OfferCents
		if lines[i].PPPCents > max {
			max = lines[i].PPPCents
		}
		if c.Cents != max {
			t.Fatalf("line %d: chosen discount %d != max candidate %d", i, c.Cents, max)
		}
	}
}
