package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dealtracker/backend/internal/domain/shared"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Deal is the latest observation of one product joined with its spec
// snapshot.
type Deal struct {
	ProductCode        string              `db:"product_code" json:"product_code"`
	ProductName        *string             `db:"product_name" json:"product_name"`
	Brand              *string             `db:"brand" json:"brand"`
	ProcessorModel     *string             `db:"processor_model" json:"processor_model"`
	Graphics           *string             `db:"graphics" json:"graphics"`
	SystemMemoryGB     *float64            `db:"system_memory_ram_gb" json:"system_memory_ram_gb"`
	TotalStorageGB     *float64            `db:"total_storage_capacity_gb" json:"total_storage_capacity_gb"`
	ScreenSizeInches   *float64            `db:"screen_size_inches" json:"screen_size_inches"`
	Price              decimal.Decimal     `db:"price" json:"price"`
	FullPrice          decimal.NullDecimal `db:"full_price" json:"full_price"`
	DollarsOff         decimal.Decimal     `db:"dollars_off" json:"dollars_off"`
	DiscountPercentage decimal.Decimal     `db:"discount_percentage" json:"discount_percentage"`
	SourceURL          string              `db:"source_url" json:"source_url"`
	ObservedAt         time.Time           `db:"observed_at" json:"observed_at"`
}

// PricePoint is one entry of a product's price history.
type PricePoint struct {
	ObservedAt         time.Time           `db:"observed_at" json:"observed_at"`
	Price              decimal.Decimal     `db:"price" json:"price"`
	FullPrice          decimal.NullDecimal `db:"full_price" json:"full_price"`
	DollarsOff         decimal.Decimal     `db:"dollars_off" json:"dollars_off"`
	DiscountPercentage decimal.Decimal     `db:"discount_percentage" json:"discount_percentage"`
	SourceURL          string              `db:"source_url" json:"source_url"`
}

// DealFilter narrows LatestDeals.
type DealFilter struct {
	MinDiscount decimal.Decimal
	Brand       string
	Limit       int
	Offset      int
}

const (
	defaultDealLimit = 50
	maxDealLimit     = 500
)

// DealQuery is the read side used by the API and reporting tools. It never
// writes.
type DealQuery struct {
	db *sqlx.DB
}

// NewDealQuery wraps an open connection pool. driverName selects the bind
// variable style, e.g. "postgres" or "sqlite3".
func NewDealQuery(db *sql.DB, driverName string) *DealQuery {
	return &DealQuery{db: sqlx.NewDb(db, driverName)}
}

const latestDealsQuery = `
SELECT p.product_code, p.product_name, p.brand, p.processor_model, p.graphics,
       p.system_memory_ram_gb, p.total_storage_capacity_gb, p.screen_size_inches,
       o.price, o.full_price, o.dollars_off, o.discount_percentage, o.source_url, o.observed_at
FROM product_records p
JOIN (
    SELECT o2.*, ROW_NUMBER() OVER (
        PARTITION BY o2.product_id ORDER BY o2.observed_at DESC, o2.created_at DESC, o2.id DESC
    ) AS rn
    FROM price_observations o2
) o ON o.product_id = p.id AND o.rn = 1
WHERE o.discount_percentage >= :min_discount`

// LatestDeals returns the most recent observation of every product,
// largest discount first. Observations sharing a timestamp resolve to the
// one recorded last, so a product appears at most once.
func (q *DealQuery) LatestDeals(ctx context.Context, filter DealFilter) ([]Deal, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultDealLimit
	}
	if limit > maxDealLimit {
		limit = maxDealLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var b strings.Builder
	b.WriteString(latestDealsQuery)
	args := map[string]any{
		"min_discount": filter.MinDiscount,
		"limit":        limit,
		"offset":       offset,
	}
	if filter.Brand != "" {
		b.WriteString("\nAND LOWER(p.brand) = LOWER(:brand)")
		args["brand"] = filter.Brand
	}
	b.WriteString("\nORDER BY o.discount_percentage DESC, p.product_code\nLIMIT :limit OFFSET :offset")

	query, bound, err := sqlx.Named(b.String(), args)
	if err != nil {
		return nil, fmt.Errorf("bind deal query: %w", err)
	}

	deals := []Deal{}
	if err := q.db.SelectContext(ctx, &deals, q.db.Rebind(query), bound...); err != nil {
		return nil, fmt.Errorf("query latest deals: %w", err)
	}
	return deals, nil
}

// PriceHistory returns every observation of a product, oldest first. It
// returns shared.ErrNotFound for an unknown product code.
func (q *DealQuery) PriceHistory(ctx context.Context, code string) ([]PricePoint, error) {
	var productID string
	err := q.db.GetContext(ctx, &productID,
		q.db.Rebind("SELECT id FROM product_records WHERE product_code = ?"), code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("find product %s: %w", code, err)
	}

	history := []PricePoint{}
	err = q.db.SelectContext(ctx, &history, q.db.Rebind(`
SELECT observed_at, price, full_price, dollars_off, discount_percentage, source_url
FROM price_observations
WHERE product_id = ?
ORDER BY observed_at ASC`), productID)
	if err != nil {
		return nil, fmt.Errorf("query price history %s: %w", code, err)
	}
	return history, nil
}
