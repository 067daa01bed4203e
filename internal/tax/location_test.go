package tax

import (
	"errors"
	"testing"
)

func TestValidateLocation(t *testing.T) {
	cases := []struct {
		name    string
		signals Signals
		want    error
	}{
		{"eu elected matches ip", Signals{Elected: "DE", IP: "DE", Card: "US"}, nil},
		{"eu elected matches card", Signals{Elected: "DE", IP: "US", Card: "DE"}, nil},
		{"eu elected matches neither", Signals{Elected: "DE", IP: "US", Card: "GB"}, ErrLocationMismatch},
		{"non-eu elected never rejected", Signals{Elected: "US", IP: "BR", Card: "JP"}, nil},
		{"empty election accepted", Signals{IP: "DE", Card: "FR"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateLocation(tc.signals); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestIsEU(t *testing.T) {
	if !IsEU("de") || !IsEU("FR") {
		t.Fatal("DE and FR are EU members")
	}
	if IsEU("GB") || IsEU("US") {
		t.Fatal("GB and US are not EU members")
	}
}
