package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dealtracker/backend/internal/domain/shared"
	"github.com/dealtracker/backend/internal/infrastructure/auth"
	"github.com/dealtracker/backend/internal/infrastructure/config"
	"github.com/dealtracker/backend/internal/infrastructure/persistence"
	"github.com/dealtracker/backend/internal/infrastructure/watchlist"
	"github.com/dealtracker/backend/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockDealReader struct {
	mock.Mock
}

func (m *MockDealReader) LatestDeals(ctx context.Context, filter persistence.DealFilter) ([]persistence.Deal, error) {
	args := m.Called(ctx, filter)
	deals, _ := args.Get(0).([]persistence.Deal)
	return deals, args.Error(1)
}

func (m *MockDealReader) PriceHistory(ctx context.Context, code string) ([]persistence.PricePoint, error) {
	args := m.Called(ctx, code)
	history, _ := args.Get(0).([]persistence.PricePoint)
	return history, args.Error(1)
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

type apiFixture struct {
	engine      *gin.Engine
	deals       *MockDealReader
	watchlist   *watchlist.FileStore
	tokens      *auth.TokenService
	revocations *auth.MemoryRevocationList
}

func newAPI(t *testing.T, mutate ...func(*Deps)) *apiFixture {
	t.Helper()
	cfg := &config.Config{
		App:  config.AppConfig{Name: "dealtracker"},
		HTTP: config.HTTPConfig{MaxBodyBytes: 1 << 20},
	}
	tokens, err := auth.NewTokenService(config.HTTPConfig{
		JWTSecret: "router-test-secret-at-least-32-chars",
		TokenTTL:  time.Hour,
	}, "dealtracker")
	require.NoError(t, err)

	f := &apiFixture{
		deals:       new(MockDealReader),
		watchlist:   watchlist.NewFileStore(filepath.Join(t.TempDir(), "watchlist.json")),
		tokens:      tokens,
		revocations: auth.NewMemoryRevocationList(),
	}
	deps := Deps{
		Config:      cfg,
		Logger:      zaptest.NewLogger(t),
		Version:     "test",
		Deals:       f.deals,
		Watchlist:   f.watchlist,
		DB:          fakePinger{},
		Tokens:      f.tokens,
		Revocations: f.revocations,
	}
	for _, m := range mutate {
		m(&deps)
	}
	f.engine, err = NewEngine(deps)
	require.NoError(t, err)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, token string) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var resp dto.Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func (f *apiFixture) token(t *testing.T) string {
	t.Helper()
	issued, err := f.tokens.Issue("alice")
	require.NoError(t, err)
	return issued.Token
}

func TestHealthAndReady(t *testing.T) {
	f := newAPI(t)
	w, _ := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)

	down := newAPI(t, func(d *Deps) { d.DB = fakePinger{err: errors.New("connection refused")} })
	w, resp := down.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, dto.ErrCodeUnavailable, resp.Error.Code)
}

func TestSystemInfo(t *testing.T) {
	f := newAPI(t)
	w, resp := f.do(t, http.MethodGet, "/api/v1/system/info", "")
	require.Equal(t, http.StatusOK, w.Code)
	info := resp.Data.(map[string]any)
	assert.Equal(t, "dealtracker", info["name"])
	assert.Equal(t, "test", info["version"])
}

func TestListDeals(t *testing.T) {
	f := newAPI(t)
	f.deals.On("LatestDeals", mock.Anything, persistence.DealFilter{
		MinDiscount: decimal.RequireFromString("15"),
		Brand:       "Dell",
		Limit:       10,
	}).Return([]persistence.Deal{
		{ProductCode: "111", Price: decimal.RequireFromString("799.99"), DiscountPercentage: decimal.RequireFromString("20")},
	}, nil).Once()

	w, resp := f.do(t, http.MethodGet, "/api/v1/deals?min_discount=15&brand=Dell&limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, &dto.Meta{Count: 1, Limit: 10}, resp.Meta)
	deals := resp.Data.([]any)
	require.Len(t, deals, 1)
	assert.Equal(t, "111", deals[0].(map[string]any)["product_code"])
	f.deals.AssertExpectations(t)
}

func TestListDeals_InvalidQuery(t *testing.T) {
	f := newAPI(t)
	w, resp := f.do(t, http.MethodGet, "/api/v1/deals?limit=9999", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "limit", resp.Error.Details[0].Field)

	w, _ = f.do(t, http.MethodGet, "/api/v1/deals?min_discount=lots", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.deals.AssertNotCalled(t, "LatestDeals", mock.Anything, mock.Anything)
}

func TestListDeals_StoreErrorIsInternal(t *testing.T) {
	f := newAPI(t)
	f.deals.On("LatestDeals", mock.Anything, mock.Anything).Return(nil, errors.New("pq: connection reset")).Once()

	w, resp := f.do(t, http.MethodGet, "/api/v1/deals", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "pq")
}

func TestPriceHistory(t *testing.T) {
	f := newAPI(t)
	observed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	f.deals.On("PriceHistory", mock.Anything, "111").Return([]persistence.PricePoint{
		{ObservedAt: observed, Price: decimal.RequireFromString("999.99")},
	}, nil).Once()
	f.deals.On("PriceHistory", mock.Anything, "404").Return(nil, shared.ErrNotFound).Once()

	w, resp := f.do(t, http.MethodGet, "/api/v1/deals/111/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := resp.Data.(map[string]any)
	assert.Equal(t, "111", body["product_code"])
	assert.Len(t, body["history"], 1)

	w, resp = f.do(t, http.MethodGet, "/api/v1/deals/404/history", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
}

func TestWatchlistEditing(t *testing.T) {
	f := newAPI(t)
	token := f.token(t)

	w, _ := f.do(t, http.MethodPut, "/api/v1/watchlist/111", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp := f.do(t, http.MethodPut, "/api/v1/watchlist/111", token)
	require.Equal(t, http.StatusOK, w.Code)
	change := resp.Data.(map[string]any)
	assert.Equal(t, true, change["watched"])
	assert.Equal(t, "alice", change["operator"])

	_, resp = f.do(t, http.MethodGet, "/api/v1/watchlist", "")
	assert.Equal(t, []any{"111"}, resp.Data.(map[string]any)["codes"])

	codes, err := f.watchlist.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"111"}, codes)

	w, _ = f.do(t, http.MethodDelete, "/api/v1/watchlist/111", token)
	assert.Equal(t, http.StatusOK, w.Code)
	w, resp = f.do(t, http.MethodDelete, "/api/v1/watchlist/111", token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
}

func TestWatchlistEditing_NoTokenService(t *testing.T) {
	f := newAPI(t, func(d *Deps) { d.Tokens = nil })
	w, resp := f.do(t, http.MethodPut, "/api/v1/watchlist/111", "anything")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, dto.ErrCodeNotConfigured, resp.Error.Code)
}

func TestRevokeToken(t *testing.T) {
	f := newAPI(t)
	token := f.token(t)

	w, resp := f.do(t, http.MethodGet, "/api/v1/auth/token", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", resp.Data.(map[string]any)["operator"])

	w, _ = f.do(t, http.MethodDelete, "/api/v1/auth/token", token)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = f.do(t, http.MethodPut, "/api/v1/watchlist/111", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeTokenRevoked, resp.Error.Code)
}

func TestRateLimit(t *testing.T) {
	f := newAPI(t, func(d *Deps) {
		d.Config.HTTP.RateLimit = 0.001
		d.Config.HTTP.RateBurst = 1
	})
	w, _ := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, resp := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, dto.ErrCodeRateLimited, resp.Error.Code)
}

func TestDomainGroup(t *testing.T) {
	engine := gin.New()
	called := false
	group := NewDomainGroup("probe", "/probe").
		Use(func(c *gin.Context) { called = true }).
		GET("/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })
	assert.Equal(t, "probe", group.Name())
	assert.Equal(t, "/probe", group.Prefix())

	NewRouter(engine, WithAPIVersion("v2")).Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/probe/7", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7", w.Body.String())
	assert.True(t, called)
}
