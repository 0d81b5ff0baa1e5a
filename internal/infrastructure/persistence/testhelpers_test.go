package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/dealtracker/backend/internal/domain/listing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestDB opens an in-memory SQLite database with the schema applied.
// The pool is held to one connection so every query sees the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, NewDatabaseFromGorm(db).AutoMigrate(context.Background()))
	return db
}

func testSpecs(ram string) listing.Specs {
	return listing.ExtractSpecs(map[string]string{
		"Brand":                  "HP",
		"Product Name":           "Envy 15",
		"Processor Model":        "Intel Core i7",
		"Graphics":               "Intel Iris Xe",
		"System Memory (RAM)":    ram,
		"Total Storage Capacity": "512 gigabytes",
		"Screen Size":            "15.6 inches",
	})
}

func newResolution(code, ram string) listing.Resolution {
	return listing.Resolution{Record: listing.NewProductRecord(code, testSpecs(ram)), IsNew: true}
}

func observationFor(r *listing.ProductRecord, price, full string, at time.Time) *listing.PriceObservation {
	p := decimal.NewNullDecimal(decimal.RequireFromString(price))
	f := decimal.NullDecimal{}
	if full != "" {
		f = decimal.NewNullDecimal(decimal.RequireFromString(full))
	}
	return listing.NewPriceObservation(r.ID, p, f, listing.ComputePriceStats(p, f), "https://example.com/p/"+r.ProductCode, at)
}
