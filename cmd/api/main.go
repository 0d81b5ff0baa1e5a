package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dealtracker/backend/internal/infrastructure/auth"
	"github.com/dealtracker/backend/internal/infrastructure/config"
	"github.com/dealtracker/backend/internal/infrastructure/logger"
	"github.com/dealtracker/backend/internal/infrastructure/persistence"
	"github.com/dealtracker/backend/internal/infrastructure/telemetry"
	"github.com/dealtracker/backend/internal/infrastructure/watchlist"
	"github.com/dealtracker/backend/internal/interfaces/http/router"
)

var version = "dev"

const tokenIssuer = "dealtracker-api"

func main() {
	var (
		configPath string
		issueFor   string
	)
	flag.StringVar(&configPath, "config", "", "Path to config file (default: ./config.toml)")
	flag.StringVar(&issueFor, "issue-token", "", "Print a bearer token for the named operator and exit")
	flag.Parse()

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if issueFor != "" {
		if err := printToken(cfg, issueFor); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
			os.Exit(1)
		}
		return
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, log); err != nil {
		log.Error("API server failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func printToken(cfg *config.Config, operator string) error {
	tokens, err := auth.NewTokenService(cfg.HTTP, tokenIssuer)
	if err != nil {
		return err
	}
	issued, err := tokens.Issue(operator)
	if err != nil {
		return err
	}
	fmt.Println(issued.Token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", issued.ExpiresAt.Format(time.RFC3339))
	return nil
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	telemetry.ServiceVersion = version
	tel, err := telemetry.Setup(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()
	log = tel.BridgeLogger(log, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))

	log.Info("Starting deal API",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("port", cfg.HTTP.Port),
	)

	db, err := persistence.NewDatabase(&cfg.Database, log.Named("gorm"), logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			return err
		}
	}
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:  cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBSystem: dbSystem(cfg.Database.Driver),
	}, log); err != nil {
		return fmt.Errorf("database tracing: %w", err)
	}
	sqlDB, err := db.SQLDB()
	if err != nil {
		return err
	}

	watch, closeWatch, err := watchlist.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("watchlist: %w", err)
	}
	defer func() { _ = closeWatch() }()

	var tokens *auth.TokenService
	if cfg.HTTP.JWTSecret != "" {
		if tokens, err = auth.NewTokenService(cfg.HTTP, tokenIssuer); err != nil {
			return err
		}
	} else {
		log.Warn("http.jwt_secret is not set, watchlist edits are disabled")
	}

	revocations, closeRevocations, err := openRevocations(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeRevocations() }()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := router.NewEngine(router.Deps{
		Config:      cfg,
		Logger:      log,
		Version:     version,
		Deals:       persistence.NewDealQuery(sqlDB, db.Driver()),
		Watchlist:   watch,
		DB:          sqlDB,
		Tokens:      tokens,
		Revocations: revocations,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Named("http")),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited gracefully")
	return nil
}

// openRevocations shares the watchlist's Redis when there is one, so a
// revoked token stays revoked across API replicas.
func openRevocations(ctx context.Context, cfg *config.Config, log *zap.Logger) (auth.RevocationList, func() error, error) {
	if cfg.Watchlist.Source != "redis" {
		log.Info("Using in-memory token revocation list")
		return auth.NewMemoryRevocationList(), func() error { return nil }, nil
	}
	client, err := watchlist.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("revocation list: %w", err)
	}
	log.Info("Using Redis token revocation list", zap.String("addr", cfg.Redis.Addr()))
	return auth.NewRedisRevocationList(client), client.Close, nil
}

func dbSystem(driver string) string {
	if driver == "sqlite" {
		return "sqlite"
	}
	return "postgresql"
}
