package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dealtracker/backend/internal/infrastructure/persistence"
	"github.com/dealtracker/backend/internal/interfaces/http/dto"
	"github.com/dealtracker/backend/internal/interfaces/http/middleware"
)

// DealReader is the read side the deal endpoints query.
type DealReader interface {
	LatestDeals(ctx context.Context, filter persistence.DealFilter) ([]persistence.Deal, error)
	PriceHistory(ctx context.Context, code string) ([]persistence.PricePoint, error)
}

// DealHandler serves the latest deals and per-product price history.
type DealHandler struct {
	BaseHandler
	deals DealReader
}

// NewDealHandler creates a new DealHandler
func NewDealHandler(deals DealReader) *DealHandler {
	return &DealHandler{deals: deals}
}

// ListDeals handles GET /deals?min_discount=&brand=&limit=&offset=
func (h *DealHandler) ListDeals(c *gin.Context) {
	var query dto.DealListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	filter, err := query.Filter()
	if err != nil {
		h.BadRequest(c, "min_discount must be a number")
		return
	}

	deals, err := h.deals.LatestDeals(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, deals, len(deals), filter.Limit, filter.Offset)
}

// PriceHistory handles GET /deals/:code/history
func (h *DealHandler) PriceHistory(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		h.BadRequest(c, "product code is required")
		return
	}

	history, err := h.deals.PriceHistory(c.Request.Context(), code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.PriceHistoryResponse{ProductCode: code, History: history})
}
