package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Log         LogConfig
	Pipeline    PipelineConfig
	Identity    IdentityConfig
	Watchlist   WatchlistConfig
	Alert       AlertConfig
	SMTP        SMTPConfig
	Redis       RedisConfig
	MismatchLog MismatchLogConfig
	Storage     StorageConfig
	Telemetry   TelemetryConfig
	HTTP        HTTPConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	URL             string // full connection URL, overrides the discrete fields
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SQLitePath      string
	AutoMigrate     bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// PipelineConfig holds ingest pipeline settings
type PipelineConfig struct {
	BatchSize int
	QueueSize int
	Sources   []string // file paths, s3://bucket/key URLs or "-" for stdin
}

// IdentityConfig controls identity resolution
type IdentityConfig struct {
	MonitoredFields []string
	Tolerances      map[string]float64
	CacheSize       int
}

// WatchlistConfig selects and configures the watchlist source
type WatchlistConfig struct {
	Source          string // file or redis
	Path            string
	RedisKey        string
	ReloadEachBatch bool
}

// AlertConfig holds discount alert settings
type AlertConfig struct {
	Threshold float64
	Recipient string
	Notifier  string // smtp or log
}

// SMTPConfig holds outgoing mail settings
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	RateLimit float64 // messages per second
	Burst     int
	Timeout   time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// MismatchLogConfig holds the mismatch log location
type MismatchLogConfig struct {
	Path string
}

// StorageConfig holds S3-compatible object storage settings for listing sources
type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
	LogsEnabled       bool
	DBTraceEnabled    bool
	ProfilingEnabled  bool
	ProfilingServer   string
}

// HTTPConfig holds read API server configuration
type HTTPConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	JWTSecret      string
	TokenTTL       time.Duration
	TrustedProxies []string
	RateLimit      float64 // requests per second per client, 0 disables
	RateBurst      int
	MaxBodyBytes   int64
}

// Load loads configuration from config.toml in the usual locations and the
// environment. See LoadFile.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from path, or from config.toml in the usual
// locations when path is empty.
// Priority (highest to lowest):
// 1. Environment variables with DEAL_ prefix (e.g., DEAL_DATABASE_PASSWORD)
// 2. Variables from .env, which never override the real environment
// 3. The TOML file
// 4. Built-in defaults
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/dealtracker")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("DEAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var tolerances map[string]float64
	if err := v.UnmarshalKey("identity.tolerances", &tolerances); err != nil {
		return nil, fmt.Errorf("identity.tolerances: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			URL:             v.GetString("database.url"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Pipeline: PipelineConfig{
			BatchSize: v.GetInt("pipeline.batch_size"),
			QueueSize: v.GetInt("pipeline.queue_size"),
			Sources:   v.GetStringSlice("pipeline.sources"),
		},
		Identity: IdentityConfig{
			MonitoredFields: v.GetStringSlice("identity.monitored_fields"),
			Tolerances:      tolerances,
			CacheSize:       v.GetInt("identity.cache_size"),
		},
		Watchlist: WatchlistConfig{
			Source:          v.GetString("watchlist.source"),
			Path:            v.GetString("watchlist.path"),
			RedisKey:        v.GetString("watchlist.redis_key"),
			ReloadEachBatch: v.GetBool("watchlist.reload_each_batch"),
		},
		Alert: AlertConfig{
			Threshold: v.GetFloat64("alert.threshold"),
			Recipient: v.GetString("alert.recipient"),
			Notifier:  v.GetString("alert.notifier"),
		},
		SMTP: SMTPConfig{
			Host:      v.GetString("smtp.host"),
			Port:      v.GetInt("smtp.port"),
			Username:  v.GetString("smtp.username"),
			Password:  v.GetString("smtp.password"),
			From:      v.GetString("smtp.from"),
			RateLimit: v.GetFloat64("smtp.rate_limit"),
			Burst:     v.GetInt("smtp.burst"),
			Timeout:   v.GetDuration("smtp.timeout"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		MismatchLog: MismatchLogConfig{
			Path: v.GetString("mismatch_log.path"),
		},
		Storage: StorageConfig{
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingServer:   v.GetString("telemetry.profiling_server"),
		},
		HTTP: HTTPConfig{
			Port:           v.GetString("http.port"),
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			JWTSecret:      v.GetString("http.jwt_secret"),
			TokenTTL:       v.GetDuration("http.token_ttl"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
			RateLimit:      v.GetFloat64("http.rate_limit"),
			RateBurst:      v.GetInt("http.rate_burst"),
			MaxBodyBytes:   v.GetInt64("http.max_body_bytes"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "dealtracker"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "deals"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "deals.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Pipeline.BatchSize == 0 {
		cfg.Pipeline.BatchSize = 100
	}
	if cfg.Pipeline.QueueSize == 0 {
		cfg.Pipeline.QueueSize = 256
	}
	if cfg.Identity.CacheSize == 0 {
		cfg.Identity.CacheSize = 10000
	}
	if cfg.Watchlist.Source == "" {
		cfg.Watchlist.Source = "file"
	}
	if cfg.Watchlist.Path == "" {
		cfg.Watchlist.Path = "watchlist.json"
	}
	if cfg.Watchlist.RedisKey == "" {
		cfg.Watchlist.RedisKey = "dealtracker:watchlist"
	}
	if cfg.Alert.Notifier == "" {
		cfg.Alert.Notifier = "log"
	}
	if cfg.SMTP.Host == "" {
		cfg.SMTP.Host = "smtp.gmail.com"
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.SMTP.RateLimit == 0 {
		cfg.SMTP.RateLimit = 1
	}
	if cfg.SMTP.Burst == 0 {
		cfg.SMTP.Burst = 5
	}
	if cfg.SMTP.Timeout == 0 {
		cfg.SMTP.Timeout = 30 * time.Second
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.MismatchLog.Path == "" {
		cfg.MismatchLog.Path = "mismatch_log.txt"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.ProfilingServer == "" {
		cfg.Telemetry.ProfilingServer = "http://localhost:4040"
	}
	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.TokenTTL == 0 {
		cfg.HTTP.TokenTTL = 24 * time.Hour
	}
	if cfg.HTTP.RateLimit > 0 && cfg.HTTP.RateBurst <= 0 {
		cfg.HTTP.RateBurst = int(cfg.HTTP.RateLimit) + 1
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		cfg.HTTP.MaxBodyBytes = 1 << 20
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("pipeline.batch_size must be at least 1")
	}
	if c.Pipeline.QueueSize < 1 {
		return fmt.Errorf("pipeline.queue_size must be at least 1")
	}
	if c.Identity.CacheSize < 1 {
		return fmt.Errorf("identity.cache_size must be at least 1")
	}
	for field, eps := range c.Identity.Tolerances {
		if eps < 0 {
			return fmt.Errorf("identity.tolerances.%s cannot be negative", field)
		}
	}

	switch c.Watchlist.Source {
	case "file", "redis":
	default:
		return fmt.Errorf("watchlist.source must be file or redis, got %q", c.Watchlist.Source)
	}

	if c.Alert.Threshold < 0 {
		return fmt.Errorf("alert.threshold cannot be negative")
	}
	switch c.Alert.Notifier {
	case "log":
	case "smtp":
		if c.Alert.Recipient == "" {
			return fmt.Errorf("alert.recipient is required for the smtp notifier")
		}
		if c.SMTP.From == "" {
			return fmt.Errorf("smtp.from is required for the smtp notifier")
		}
	default:
		return fmt.Errorf("alert.notifier must be smtp or log, got %q", c.Alert.Notifier)
	}
	if c.SMTP.RateLimit < 0 {
		return fmt.Errorf("smtp.rate_limit cannot be negative")
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rate_limit cannot be negative")
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "postgres" && c.Database.URL == "" {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		if c.HTTP.JWTSecret != "" && len(c.HTTP.JWTSecret) < 32 {
			return fmt.Errorf("http.jwt_secret must be at least 32 characters in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address as host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
