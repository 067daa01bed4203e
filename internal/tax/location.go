package tax

import (
	"errors"
	"strings"
)

// ErrLocationMismatch is returned when the buyer-elected country cannot be
// corroborated by either the card-issuer or IP-detected country.
var ErrLocationMismatch = errors.New("tax: elected country does not match card or IP country")

var euMembers = map[string]bool{
	"AT": true, "BE": true, "BG": true, "HR": true, "CY": true, "CZ": true,
	"DK": true, "EE": true, "FI": true, "FR": true, "DE": true, "GR": true,
	"HU": true, "IE": true, "IT": true, "LV": true, "LT": true, "LU": true,
	"MT": true, "NL": true, "PL": true, "PT": true, "RO": true, "SK": true,
	"SI": true, "ES": true, "SE": true,
}

// IsEU reports whether the country code is an EU member state.
func IsEU(country string) bool {
	return euMembers[strings.ToUpper(strings.TrimSpace(country))]
}

// Signals are the three independent country sources for one purchase.
type Signals struct {
	Elected string
	IP      string
	Card    string
}

// ValidateLocation rejects EU-elected countries that match neither the card
// nor the IP signal. Any other combination is accepted: either the election is
// corroborated by at least one source, or it is outside the EU.
func ValidateLocation(s Signals) error {
	elected := strings.ToUpper(strings.TrimSpace(s.Elected))
	if elected == "" || !IsEU(elected) {
		return nil
	}
	ip := strings.ToUpper(strings.TrimSpace(s.IP))
	card := strings.ToUpper(strings.TrimSpace(s.Card))
	if elected == ip || elected == card {
		return nil
	}
	return ErrLocationMismatch
}
