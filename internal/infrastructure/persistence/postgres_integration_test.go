//go:build integration

package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dealtracker/backend/internal/domain/listing"
	"github.com/dealtracker/backend/internal/infrastructure/migration"
)

// newPostgresDB starts a disposable PostgreSQL container and applies the
// embedded migrations to it.
func newPostgresDB(t *testing.T) (*gorm.DB, *sql.DB) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("deals_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.New(sqlDB, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Up())

	version, dirty, err := m.Version()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Greater(t, version, uint(0))

	return db, sqlDB
}

func TestPostgres_BatchWriterAndDealQuery(t *testing.T) {
	db, sqlDB := newPostgresDB(t)
	ctx := context.Background()

	w, err := NewBatchWriter(db, 16, zaptest.NewLogger(t), WithBatchSize(2))
	require.NoError(t, err)

	day := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	a := newResolution("111", "8 gigabytes")
	b := newResolution("222", "16 gigabytes")
	require.NoError(t, w.Stage(ctx, a, observationFor(a.Record, "1299.99", "1499.99", day)))
	require.NoError(t, w.Stage(ctx, b, observationFor(b.Record, "950", "1000", day)))

	again, err := w.Lookup(ctx, "111")
	require.NoError(t, err)
	require.NotNil(t, again)
	require.NoError(t, w.Stage(ctx, listing.Resolution{Record: again}, observationFor(again, "1199.99", "1499.99", day.Add(24*time.Hour))))
	require.NoError(t, w.Flush(ctx))

	committed, failed := w.Batches()
	assert.Equal(t, 2, committed)
	assert.Equal(t, 0, failed)

	q := NewDealQuery(sqlDB, "postgres")
	deals, err := q.LatestDeals(ctx, DealFilter{})
	require.NoError(t, err)
	require.Len(t, deals, 2)
	assert.Equal(t, "111", deals[0].ProductCode)
	assert.Equal(t, "1199.99", deals[0].Price.StringFixed(2))

	history, err := q.PriceHistory(ctx, "111")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestPostgres_DuplicateCodeRollsBackBatch(t *testing.T) {
	db, _ := newPostgresDB(t)
	ctx := context.Background()

	w, err := NewBatchWriter(db, 16, zaptest.NewLogger(t), WithBatchSize(10))
	require.NoError(t, err)
	day := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	first := newResolution("111", "8 gigabytes")
	require.NoError(t, w.Stage(ctx, first, observationFor(first.Record, "100", "", day)))
	require.NoError(t, w.Flush(ctx))

	// A second writer does not know 111 exists and inserts it again.
	other, err := NewBatchWriter(db, 16, zaptest.NewLogger(t), WithBatchSize(10))
	require.NoError(t, err)
	dup := newResolution("111", "8 gigabytes")
	fresh := newResolution("333", "8 gigabytes")
	require.NoError(t, other.Stage(ctx, fresh, observationFor(fresh.Record, "50", "", day)))
	require.NoError(t, other.Stage(ctx, dup, observationFor(dup.Record, "90", "", day)))
	assert.ErrorIs(t, other.Flush(ctx), ErrBatchFailed)

	var products, observations int64
	require.NoError(t, db.Table("product_records").Count(&products).Error)
	require.NoError(t, db.Table("price_observations").Count(&observations).Error)
	assert.Equal(t, int64(1), products)
	assert.Equal(t, int64(1), observations)
}
