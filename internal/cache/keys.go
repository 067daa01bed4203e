package cache

import (
	"strings"

	"github.com/google/uuid"
)

// KeyProduct is the cache key for a product pricing snapshot.
func KeyProduct(id uuid.UUID) string {
	return "catalog:product:" + id.String()
}

// KeyCommittedQuote is the idempotency key for a booked purchase.
func KeyCommittedQuote(purchaseID uuid.UUID) string {
	return "quote:committed:" + purchaseID.String()
}

// KeyTaxIDVerified caches a positive exemption-id verification.
func KeyTaxIDVerified(country, taxID string) string {
	return "taxid:verified:" + strings.ToUpper(country) + ":" + taxID
}

// KeyGeoCountry caches an IP-to-country lookup.
func KeyGeoCountry(ip string) string {
	return "geo:country:" + strings.TrimSpace(ip)
}
