package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dealtracker/backend/internal/application/alert"
	"github.com/dealtracker/backend/internal/infrastructure/logger"
	"github.com/dealtracker/backend/internal/interfaces/http/dto"
	"github.com/dealtracker/backend/internal/interfaces/http/middleware"
)

// WatchlistHandler lists and edits the codes the alerter watches. Edits
// take effect on the next ingest batch when watchlist.reload_each_batch
// is on, otherwise on the next run.
type WatchlistHandler struct {
	BaseHandler
	watchlist alert.EditableWatchlist
}

// NewWatchlistHandler creates a new WatchlistHandler
func NewWatchlistHandler(watchlist alert.EditableWatchlist) *WatchlistHandler {
	return &WatchlistHandler{watchlist: watchlist}
}

// List handles GET /watchlist
func (h *WatchlistHandler) List(c *gin.Context) {
	codes, err := h.watchlist.Load(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.WatchlistResponse{Codes: codes})
}

// Add handles PUT /watchlist/:code. Adding a watched code is a no-op.
func (h *WatchlistHandler) Add(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		h.BadRequest(c, "product code is required")
		return
	}

	if err := h.watchlist.Add(c.Request.Context(), code); err != nil {
		h.HandleError(c, err)
		return
	}

	logger.L(c.Request.Context()).Info("Watchlist code added", zap.String("product_code", code))
	h.Success(c, dto.WatchlistChangeResponse{
		ProductCode: code,
		Watched:     true,
		Operator:    middleware.GetOperator(c),
	})
}

// Remove handles DELETE /watchlist/:code
func (h *WatchlistHandler) Remove(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))

	removed, err := h.watchlist.Remove(c.Request.Context(), code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !removed {
		h.NotFound(c, "product code is not on the watchlist")
		return
	}

	logger.L(c.Request.Context()).Info("Watchlist code removed", zap.String("product_code", code))
	h.Success(c, dto.WatchlistChangeResponse{
		ProductCode: code,
		Watched:     false,
		Operator:    middleware.GetOperator(c),
	})
}
