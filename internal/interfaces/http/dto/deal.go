package dto

import (
	"github.com/shopspring/decimal"

	"github.com/dealtracker/backend/internal/infrastructure/persistence"
)

// DealListQuery are the query parameters of GET /deals
type DealListQuery struct {
	MinDiscount string `form:"min_discount" binding:"omitempty,numeric"`
	Brand       string `form:"brand" binding:"omitempty,max=64"`
	Limit       int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset      int    `form:"offset" binding:"omitempty,min=0"`
}

// Filter converts the query into a DealFilter. MinDiscount is a percentage,
// e.g. "15" for deals of at least 15% off.
func (q DealListQuery) Filter() (persistence.DealFilter, error) {
	filter := persistence.DealFilter{
		Brand:  q.Brand,
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	if q.MinDiscount != "" {
		d, err := decimal.NewFromString(q.MinDiscount)
		if err != nil {
			return filter, err
		}
		filter.MinDiscount = d
	}
	return filter, nil
}

// PriceHistoryResponse is the body of GET /deals/:code/history
type PriceHistoryResponse struct {
	ProductCode string                   `json:"product_code"`
	History     []persistence.PricePoint `json:"history"`
}

// WatchlistResponse lists the watched product codes
type WatchlistResponse struct {
	Codes []string `json:"codes"`
}

// WatchlistChangeResponse reports a watchlist edit
type WatchlistChangeResponse struct {
	ProductCode string `json:"product_code"`
	Watched     bool   `json:"watched"`
	Operator    string `json:"operator"`
}
