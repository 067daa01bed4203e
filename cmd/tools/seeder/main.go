package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Fixed ids keep reseeding idempotent and make manual testing predictable.
const (
	sellerCreatorsID = "7b1f6f0e-0a63-4b2e-9a77-6f6a3f1f9d01"
	sellerStudioID   = "7b1f6f0e-0a63-4b2e-9a77-6f6a3f1f9d02"

	productEbookID    = "a3a1c1d0-5b2f-4a01-8c44-1d9e2f3b4c01"
	productCourseID   = "a3a1c1d0-5b2f-4a01-8c44-1d9e2f3b4c02"
	productPosterID   = "a3a1c1d0-5b2f-4a01-8c44-1d9e2f3b4c03"
	productSamplesID  = "a3a1c1d0-5b2f-4a01-8c44-1d9e2f3b4c04"
	productBundleID   = "a3a1c1d0-5b2f-4a01-8c44-1d9e2f3b4c05"
	productTemplateID = "a3a1c1d0-5b2f-4a01-8c44-1d9e2f3b4c06"

	affiliatePartnerID = "c5d2e3f4-1a2b-4c3d-8e9f-0a1b2c3d4e01"
	affiliateCoauthID  = "c5d2e3f4-1a2b-4c3d-8e9f-0a1b2c3d4e02"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedSellers(db)
	seedProducts(db)
	seedOfferCodes(db)
	seedAffiliates(db)
	seedTaxTables(db)
	seedPPPFactors(db)

	log.Println("Seeding completed successfully!")
}

func seedSellers(db *sql.DB) {
	fmt.Println("Seeding Sellers...")
	sellers := []struct {
		ID                   string
		Name                 string
		PPPLimit             *int
		VerificationDisabled bool
		DiscoverOptedIn      bool
	}{
		{sellerCreatorsID, "Creators Co", nil, false, true},
		{sellerStudioID, "Night Studio", intPtr(30), true, false},
	}
	for _, s := range sellers {
		_, err := db.Exec(`
			INSERT INTO sellers (id, name, ppp_limit_percentage, ppp_verification_disabled, discover_opted_in)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name;
		`, s.ID, s.Name, s.PPPLimit, s.VerificationDisabled, s.DiscoverOptedIn)
		if err != nil {
			log.Printf("Failed to seed seller %s: %v", s.Name, err)
		}
	}
}

func seedProducts(db *sql.DB) {
	fmt.Println("Seeding Products...")
	products := []struct {
		ID          string
		SellerID    string
		Name        string
		Currency    string
		PriceCents  int64
		RentalCents *int64
		PWYW        bool
		Bundle      bool
		Epub        bool
		Physical    bool
		PPPDisabled bool
	}{
		{productEbookID, sellerCreatorsID, "Pricing for Creators (ebook)", "usd", 4999, nil, false, false, true, false, false},
		{productCourseID, sellerCreatorsID, "Video Course: Launch Week", "usd", 14900, int64Ptr(4900), false, false, false, false, false},
		{productPosterID, sellerCreatorsID, "Letterpress Poster", "usd", 2500, nil, false, false, false, true, false},
		{productSamplesID, sellerStudioID, "Sample Pack Vol. 1", "usd", 999, nil, true, false, false, false, true},
		{productTemplateID, sellerCreatorsID, "Notion Template", "usd", 1200, nil, false, false, false, false, false},
		{productBundleID, sellerCreatorsID, "Creator Starter Bundle", "usd", 5999, nil, false, true, false, false, false},
	}
	for _, p := range products {
		_, err := db.Exec(`
			INSERT INTO products (id, seller_id, name, currency, price_cents, rental_price_cents,
			                      pay_what_you_want, is_bundle, is_epublication, is_physical, ppp_disabled)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET price_cents = EXCLUDED.price_cents, name = EXCLUDED.name;
		`, p.ID, p.SellerID, p.Name, p.Currency, p.PriceCents, p.RentalCents,
			p.PWYW, p.Bundle, p.Epub, p.Physical, p.PPPDisabled)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.Name, err)
		}
	}

	variants := []struct {
		ProductID string
		Name      string
		DiffCents int64
		Position  int
	}{
		{productCourseID, "Standard", 0, 0},
		{productCourseID, "With feedback session", 5000, 1},
		{productEbookID, "PDF", 0, 0},
		{productEbookID, "PDF + EPUB", 500, 1},
	}
	for _, v := range variants {
		_, err := db.Exec(`
			INSERT INTO product_variants (product_id, name, price_diff_cents, position)
			SELECT $1, $2, $3, $4
			WHERE NOT EXISTS (
				SELECT 1 FROM product_variants WHERE product_id = $1 AND name = $2
			);
		`, v.ProductID, v.Name, v.DiffCents, v.Position)
		if err != nil {
			log.Printf("Failed to seed variant %s: %v", v.Name, err)
		}
	}

	for i, member := range []string{productEbookID, productTemplateID} {
		_, err := db.Exec(`
			INSERT INTO bundle_products (bundle_id, product_id, position)
			VALUES ($1, $2, $3)
			ON CONFLICT (bundle_id, product_id) DO NOTHING;
		`, productBundleID, member, i)
		if err != nil {
			log.Printf("Failed to seed bundle member: %v", err)
		}
	}
}

func seedOfferCodes(db *sql.DB) {
	fmt.Println("Seeding Offer Codes...")
	codes := []struct {
		SellerID   string
		Code       string
		Cents      *int64
		Bps        *int64
		Universal  bool
		MinAmount  *int64
		MinQty     *int
		MaxUses    *int
		ProductIDs []string
	}{
		{sellerCreatorsID, "LAUNCH60", nil, int64Ptr(6000), false, nil, nil, nil, []string{productEbookID, productCourseID}},
		{sellerCreatorsID, "TENOFF", int64Ptr(1000), nil, true, int64Ptr(2500), nil, nil, nil},
		{sellerCreatorsID, "BULK5", nil, int64Ptr(1500), true, nil, intPtr(5), nil, nil},
		{sellerStudioID, "EARLYBIRD", nil, int64Ptr(2500), true, nil, nil, intPtr(100), nil},
	}
	for _, c := range codes {
		var id string
		err := db.QueryRow(`
			INSERT INTO offer_codes (seller_id, code, amount_cents, amount_percentage_bps, universal,
			                         minimum_amount_cents, minimum_quantity, max_purchase_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (seller_id, lower(code)) WHERE deleted_at IS NULL
			DO UPDATE SET amount_cents = EXCLUDED.amount_cents,
			              amount_percentage_bps = EXCLUDED.amount_percentage_bps
			RETURNING id;
		`, c.SellerID, c.Code, c.Cents, c.Bps, c.Universal, c.MinAmount, c.MinQty, c.MaxUses).Scan(&id)
		if err != nil {
			log.Printf("Failed to seed offer code %s: %v", c.Code, err)
			continue
		}
		for _, pid := range c.ProductIDs {
			_, err := db.Exec(`
				INSERT INTO offer_code_products (offer_code_id, product_id)
				VALUES ($1, $2)
				ON CONFLICT (offer_code_id, product_id) DO NOTHING;
			`, id, pid)
			if err != nil {
				log.Printf("Failed to link offer code %s: %v", c.Code, err)
			}
		}
	}
}

func seedAffiliates(db *sql.DB) {
	fmt.Println("Seeding Affiliates...")
	affiliates := []struct {
		ID          string
		SellerID    string
		BasisPoints int
		ProductIDs  []string
	}{
		{affiliatePartnerID, sellerCreatorsID, 3000, []string{productEbookID, productCourseID}},
		{affiliateCoauthID, sellerCreatorsID, 5000, nil},
	}
	for _, a := range affiliates {
		_, err := db.Exec(`
			INSERT INTO affiliates (id, seller_id, basis_points)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET basis_points = EXCLUDED.basis_points;
		`, a.ID, a.SellerID, a.BasisPoints)
		if err != nil {
			log.Printf("Failed to seed affiliate: %v", err)
			continue
		}
		for _, pid := range a.ProductIDs {
			_, err := db.Exec(`
				INSERT INTO affiliate_products (affiliate_id, product_id)
				VALUES ($1, $2)
				ON CONFLICT (affiliate_id, product_id) DO NOTHING;
			`, a.ID, pid)
			if err != nil {
				log.Printf("Failed to link affiliate product: %v", err)
			}
		}
	}

	// Co-author splits half the net on their product.
	_, err := db.Exec(`
		INSERT INTO collaborators (affiliate_id, product_id, basis_points)
		VALUES ($1, $2, 5000)
		ON CONFLICT (affiliate_id, product_id) DO NOTHING;
	`, affiliateCoauthID, productTemplateID)
	if err != nil {
		log.Printf("Failed to seed collaborator: %v", err)
	}
}

func seedTaxTables(db *sql.DB) {
	fmt.Println("Seeding Tax Tables...")
	rates := []struct {
		Country           string
		State             *string
		Zip               *string
		Bps               int64
		SellerResponsible bool
		EpubRate          bool
		PhysicalGoods     bool
	}{
		{"US", strPtr("WI"), nil, 500, false, false, true},
		{"US", strPtr("WI"), strPtr("53703"), 550, false, false, true},
		{"US", strPtr("WA"), strPtr("98121"), 1035, false, false, true},
		{"AU", nil, nil, 1000, false, false, true},
		{"GB", nil, nil, 2000, false, false, true},
		{"DE", nil, nil, 1900, false, false, true},
		{"DE", nil, nil, 700, false, true, true},
		{"JP", nil, nil, 1000, true, false, true},
	}
	for _, r := range rates {
		_, err := db.Exec(`
			INSERT INTO tax_rates (country, state, zip, combined_rate_bps, seller_responsible,
			                       is_epublication_rate, taxes_physical_goods)
			SELECT $1, $2, $3, $4, $5, $6, $7
			WHERE NOT EXISTS (
				SELECT 1 FROM tax_rates
				WHERE country = $1 AND state IS NOT DISTINCT FROM $2
				  AND zip IS NOT DISTINCT FROM $3 AND is_epublication_rate = $6
			);
		`, r.Country, r.State, r.Zip, r.Bps, r.SellerResponsible, r.EpubRate, r.PhysicalGoods)
		if err != nil {
			log.Printf("Failed to seed tax rate %s: %v", r.Country, err)
		}
	}

	for _, country := range []string{"US", "AU", "GB", "DE", "JP"} {
		_, err := db.Exec(`
			INSERT INTO tax_enabled_countries (country, enabled)
			VALUES ($1, true)
			ON CONFLICT (country) DO UPDATE SET enabled = true;
		`, country)
		if err != nil {
			log.Printf("Failed to enable tax country %s: %v", country, err)
		}
	}
}

func seedPPPFactors(db *sql.DB) {
	fmt.Println("Seeding PPP Factors...")
	factors := map[string]int64{
		"IN": 4900,
		"BR": 4000,
		"ID": 5500,
		"TR": 6000,
		"MX": 3000,
	}
	for country, bps := range factors {
		_, err := db.Exec(`
			INSERT INTO ppp_factors (country, factor_bps)
			VALUES ($1, $2)
			ON CONFLICT (country) DO UPDATE SET factor_bps = EXCLUDED.factor_bps;
		`, country, bps)
		if err != nil {
			log.Printf("Failed to seed ppp factor %s: %v", country, err)
		}
	}
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string { return &v }
