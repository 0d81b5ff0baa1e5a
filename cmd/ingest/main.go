package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dealtracker/backend/internal/application/alert"
	"github.com/dealtracker/backend/internal/application/ingest"
	"github.com/dealtracker/backend/internal/domain/listing"
	"github.com/dealtracker/backend/internal/infrastructure/config"
	"github.com/dealtracker/backend/internal/infrastructure/logger"
	"github.com/dealtracker/backend/internal/infrastructure/mismatchlog"
	"github.com/dealtracker/backend/internal/infrastructure/notify"
	"github.com/dealtracker/backend/internal/infrastructure/persistence"
	"github.com/dealtracker/backend/internal/infrastructure/source"
	"github.com/dealtracker/backend/internal/infrastructure/telemetry"
	"github.com/dealtracker/backend/internal/infrastructure/watchlist"
)

var version = "dev"

func main() {
	var (
		configPath string
		runID      string
	)
	flag.StringVar(&configPath, "config", "", "Path to config file (default: ./config.toml)")
	flag.StringVar(&runID, "run-id", "", "Id attached to every log line of this run (default: random)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: ingest [flags] [source ...]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Sources are JSON Lines files, s3://bucket/key URLs or - for stdin.\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Without arguments pipeline.sources from the config is used.\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if args := flag.Args(); len(args) > 0 {
		cfg.Pipeline.Sources = args
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runID == "" {
		runID = uuid.NewString()
	}

	if err := run(ctx, cfg, log, runID); err != nil {
		log.Error("Ingest run failed", zap.String("run_id", runID), zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, runID string) error {
	telemetry.ServiceVersion = version
	tel, err := telemetry.Setup(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if shutdownErr := tel.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(shutdownErr))
		}
	}()
	log = tel.BridgeLogger(log, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))
	ctx, log = logger.WithRunID(ctx, log, runID)

	log.Info("Starting ingest run",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.Strings("sources", cfg.Pipeline.Sources),
	)

	sources, err := resolveSources(ctx, cfg)
	if err != nil {
		return err
	}

	db, err := persistence.NewDatabase(&cfg.Database, log.Named("gorm"), logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Error closing database", zap.Error(closeErr))
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

	metrics, err := telemetry.NewPipelineMetrics(tel.Meter.Meter(telemetry.MeterName))
	if err != nil {
		return fmt.Errorf("pipeline metrics: %w", err)
	}

	writer, err := persistence.NewBatchWriter(db.DB, cfg.Identity.CacheSize, log,
		persistence.WithBatchSize(cfg.Pipeline.BatchSize),
		persistence.WithCommitRecorder(metrics),
	)
	if err != nil {
		return err
	}

	rules, err := listing.BuildIdentityRules(cfg.Identity.MonitoredFields, cfg.Identity.Tolerances)
	if err != nil {
		return fmt.Errorf("identity: %w", err)
	}

	watch, closeWatch, err := watchlist.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("watchlist: %w", err)
	}
	defer func() { _ = closeWatch() }()

	notifier, err := notify.New(cfg, log)
	if err != nil {
		return fmt.Errorf("notifier: %w", err)
	}
	alerter := alert.NewAlerter(watch, notifier, alert.Config{
		Threshold: decimal.NewFromFloat(cfg.Alert.Threshold),
		Recipient: cfg.Alert.Recipient,
	}, log)

	mismatches := mismatchlog.NewFileLog(cfg.MismatchLog.Path, log)
	defer func() {
		if closeErr := mismatches.Close(); closeErr != nil {
			log.Warn("Error closing mismatch log", zap.Error(closeErr))
		}
	}()

	pipeline := ingest.NewPipeline(
		ingest.NewResolver(writer, rules),
		writer,
		mismatches,
		alerter,
		log,
		ingest.WithMetrics(metrics),
		ingest.WithWatchlistReload(cfg.Watchlist.ReloadEachBatch),
	)

	ctx, span := tel.Tracer.Tracer("github.com/dealtracker/backend/cmd/ingest").Start(ctx, "ingest.run")
	defer span.End()

	queue := make(chan listing.RawListing, cfg.Pipeline.QueueSize)
	producer := source.NewProducer(log)
	feedDone := make(chan error, 1)
	go func() {
		feedDone <- producer.Feed(ctx, sources, queue)
	}()

	runErr := pipeline.Run(ctx, queue)
	feedErr := <-feedDone

	for name, s := range producer.Stats() {
		log.Info("Source finished",
			zap.String("source", name),
			zap.Int("lines", s.Lines),
			zap.Int("listings", s.Listings),
			zap.Int("skipped", s.Skipped),
		)
	}
	stats := pipeline.Stats()
	log.Info("Ingest summary",
		zap.Int("accepted", stats.Accepted),
		zap.Int("dropped", stats.Dropped),
		zap.Int("new_products", stats.NewProducts),
		zap.Int("drifted_products", stats.DriftedProducts),
		zap.Int("alerts_fired", stats.AlertsFired),
		zap.Int("batches_committed", stats.BatchesCommitted),
		zap.Int("batches_failed", stats.BatchesFailed),
		zap.String("mismatch_log", mismatches.Path()),
	)

	if errors.Is(feedErr, context.Canceled) {
		feedErr = nil
	}
	return errors.Join(feedErr, runErr)
}

// resolveSources builds the input sources, creating an S3 client only when
// an s3:// source is configured.
func resolveSources(ctx context.Context, cfg *config.Config) ([]source.Source, error) {
	if len(cfg.Pipeline.Sources) == 0 {
		return nil, errors.New("no listing sources: pass paths as arguments or set pipeline.sources")
	}

	var client source.ObjectGetter
	for _, p := range cfg.Pipeline.Sources {
		if strings.HasPrefix(p, "s3://") {
			s3Client, err := source.NewS3Client(ctx, cfg.Storage)
			if err != nil {
				return nil, err
			}
			client = s3Client
			break
		}
	}
	return source.Resolve(cfg.Pipeline.Sources, os.Stdin, client)
}

func dbSystem(driver string) string {
	if driver == "sqlite" {
		return "sqlite"
	}
	return "postgresql"
}
