// Package testutil seeds throwaway agency registries for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"hajj-assistant/internal/common/config"
	"hajj-assistant/internal/common/database"
	"hajj-assistant/internal/models"
)

const createAgencies = `CREATE TABLE agencies (
	hajj_company_ar TEXT,
	hajj_company_en TEXT,
	formatted_address TEXT,
	city TEXT,
	country TEXT,
	email TEXT,
	contact_Info TEXT,
	rating_reviews TEXT,
	is_authorized TEXT,
	google_maps_link TEXT,
	link_valid INTEGER
)`

// SampleAgencies is a small registry covering both scripts, several
// countries and every authorization state.
func SampleAgencies() []models.Agency {
	return []models.Agency{
		{NameEN: "Royal City Travel", NameAR: "رويال سيتي للسفر", City: "Riyadh", Country: "Saudi Arabia", Rating: "4.6", Email: "info@royalcity.sa", Authorization: models.AuthorizationAuthorized},
		{NameEN: "Al Badr Hajj Company", NameAR: "شركة البدر للحج", City: "Mecca", Country: "Saudi Arabia", Rating: "4.1", Authorization: models.AuthorizationAuthorized},
		{NameEN: "Al Badri Tours", NameAR: "شركة البدري", City: "Jeddah", Country: "Saudi Arabia", Rating: "3.2", Authorization: models.AuthorizationNotAuthorized},
		{NameEN: "Nile Pilgrims", NameAR: "حجاج النيل", City: "Cairo", Country: "Egypt", Rating: "3.9", Email: "contact@nile.eg", Authorization: models.AuthorizationAuthorized},
		{NameEN: "Lahore Hajj Services", NameAR: "لاهور للحج", City: "Lahore", Country: "Pakistan", Rating: "4.4", Authorization: models.AuthorizationNotAuthorized},
		{NameEN: "Medina Gate", NameAR: "بوابة المدينة", City: "Medina", Country: "Saudi Arabia", Rating: "", Authorization: models.AuthorizationUnknown},
	}
}

// SeedSQLite writes agencies into a fresh SQLite file and returns a config
// pointing at it.
func SeedSQLite(t testing.TB, agencies []models.Agency) config.DatabaseConfig {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver: config.DriverSQLite,
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "agencies.db")},
	}

	writer, err := database.OpenWriter(cfg)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	defer writer.Close()

	ctx := context.Background()
	if _, err := writer.DB.ExecContext(ctx, createAgencies); err != nil {
		t.Fatalf("create agencies: %v", err)
	}

	for _, a := range agencies {
		var linkValid interface{}
		if a.LinkValid != nil {
			linkValid = *a.LinkValid
		}
		_, err := writer.DB.ExecContext(ctx,
			`INSERT INTO agencies VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.NameAR, a.NameEN, a.Address, a.City, a.Country, a.Email, a.ContactInfo,
			a.Rating, authFlag(a.Authorization), a.MapLink, linkValid)
		if err != nil {
			t.Fatalf("insert agency: %v", err)
		}
	}
	return cfg
}

// OpenSeeded seeds a registry and opens it read-only.
func OpenSeeded(t testing.TB, agencies []models.Agency) *database.SQLClient {
	t.Helper()
	client, err := database.OpenReadOnly(SeedSQLite(t, agencies))
	if err != nil {
		t.Fatalf("open read-only: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func authFlag(s models.AuthorizationStatus) string {
	switch s {
	case models.AuthorizationAuthorized:
		return "Yes"
	case models.AuthorizationNotAuthorized:
		return "No"
	}
	return ""
}
