package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dealtracker/backend/internal/application/alert"
	"github.com/dealtracker/backend/internal/infrastructure/auth"
	"github.com/dealtracker/backend/internal/infrastructure/config"
	"github.com/dealtracker/backend/internal/infrastructure/logger"
	"github.com/dealtracker/backend/internal/interfaces/http/handler"
	"github.com/dealtracker/backend/internal/interfaces/http/middleware"
)

// Deps are the collaborators of the API engine.
type Deps struct {
	Config    *config.Config
	Logger    *zap.Logger
	Version   string
	Deals     handler.DealReader
	Watchlist alert.EditableWatchlist
	DB        handler.Pinger
	// Tokens may be nil when http.jwt_secret is unset; watchlist edits
	// then answer 503.
	Tokens      *auth.TokenService
	Revocations auth.RevocationList
	// TracerProvider overrides the global provider; tests use this.
	TracerProvider trace.TracerProvider
}

// NewEngine builds the gin engine serving the deal and watchlist API.
func NewEngine(d Deps) (*gin.Engine, error) {
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(d.Config.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(
		logger.GinMiddleware(d.Logger),
		logger.Recovery(d.Logger),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName:    d.Config.Telemetry.ServiceName,
			Enabled:        d.Config.Telemetry.Enabled || d.TracerProvider != nil,
			TracerProvider: d.TracerProvider,
		}),
		middleware.SpanAttributes(),
		middleware.BodyLimit(d.Config.HTTP.MaxBodyBytes),
	)
	if d.Config.HTTP.RateLimit > 0 {
		limiter, err := middleware.NewRateLimiter(d.Config.HTTP.RateLimit, d.Config.HTTP.RateBurst, 0)
		if err != nil {
			return nil, err
		}
		engine.Use(limiter.Middleware())
	}

	system := handler.NewSystemHandler(d.Config.App.Name, d.Version, d.DB)
	engine.GET("/health", system.Health)
	engine.GET("/ready", system.Ready)

	guard := middleware.JWTAuth(middleware.JWTMiddlewareConfig{
		Tokens:      d.Tokens,
		Revocations: d.Revocations,
		Logger:      d.Logger,
	})

	deals := handler.NewDealHandler(d.Deals)
	watchlist := handler.NewWatchlistHandler(d.Watchlist)
	authHandler := handler.NewAuthHandler(d.Revocations)

	NewRouter(engine).
		Register(NewDomainGroup("system", "/system").
			GET("/info", system.Info)).
		Register(NewDomainGroup("deals", "/deals").
			GET("", deals.ListDeals).
			GET("/:code/history", deals.PriceHistory)).
		Register(NewDomainGroup("watchlist", "/watchlist").
			GET("", watchlist.List).
			PUT("/:code", guard, watchlist.Add).
			DELETE("/:code", guard, watchlist.Remove)).
		Register(NewDomainGroup("auth", "/auth").
			Use(guard).
			GET("/token", authHandler.CurrentToken).
			DELETE("/token", authHandler.RevokeToken)).
		Setup()

	return engine, nil
}
