// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Cache backends.
const (
	CacheBackendMemory   = "memory"
	CacheBackendPostgres = "postgres"
)

// Vendor metrics backends.
const (
	VendorBackendMongo = "mongo"
	VendorBackendHTTP  = "http"
)

// Config is the top-level application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Mongo         MongoConfig         `yaml:"mongo"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	BuyBox        BuyBoxConfig        `yaml:"buybox"`
	VendorMetrics VendorMetricsConfig `yaml:"vendor_metrics"`
	Breaker       BreakerConfig       `yaml:"breaker"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig defines PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	PoolSize int    `yaml:"pool_size"`
}

// DSN returns a PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
}

// MongoConfig defines MongoDB connection settings for the vendor metrics
// backend.
type MongoConfig struct {
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// KafkaConfig defines the invalidation event consumer settings.
type KafkaConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Brokers     []string      `yaml:"brokers"`
	Topic       string        `yaml:"topic"`
	GroupID     string        `yaml:"group_id"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

// BuyBoxConfig defines ranking and caching behavior.
type BuyBoxConfig struct {
	CacheTTL           time.Duration  `yaml:"cache_ttl"`
	ComputeTimeout     time.Duration  `yaml:"compute_timeout"`
	TieBreakThreshold  *float64       `yaml:"tie_break_threshold"`
	MetricsConcurrency int            `yaml:"metrics_concurrency"`
	BatchConcurrency   int            `yaml:"batch_concurrency"`
	CacheBackend       string         `yaml:"cache_backend"` // memory, postgres
	KeyPrefix          string         `yaml:"key_prefix"`
	Weights            ScoringWeights `yaml:"weights"`
}

// ScoringWeights defines the relative weight of each scoring factor.
type ScoringWeights struct {
	Price        float64 `yaml:"price"`
	VendorRating float64 `yaml:"vendor_rating"`
	DeliverySLA  float64 `yaml:"delivery_sla"`
	Cancellation float64 `yaml:"cancellation"`
	Stock        float64 `yaml:"stock"`
}

// IsZero reports whether no weight has been configured.
func (w ScoringWeights) IsZero() bool {
	return w == ScoringWeights{}
}

func (w ScoringWeights) sum() float64 {
	return w.Price + w.VendorRating + w.DeliverySLA + w.Cancellation + w.Stock
}

// VendorMetricsConfig selects and configures the vendor metrics provider.
type VendorMetricsConfig struct {
	Backend   string          `yaml:"backend"` // mongo, http
	Endpoint  string          `yaml:"endpoint"`
	Timeout   time.Duration   `yaml:"timeout"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig defines the HTTP vendor metrics rate limit. Zero PerSecond
// disables limiting.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// BreakerConfig defines the circuit breaker guarding the KV store.
type BreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// ScheduleConfig defines cron intervals.
type ScheduleConfig struct {
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

// NotificationsConfig defines notification targets.
type NotificationsConfig struct {
	Discord DiscordConfig `yaml:"discord"`
}

// DiscordConfig defines Discord webhook settings.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// TelemetryConfig defines OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Endpoint       string        `yaml:"endpoint"`
	Insecure       bool          `yaml:"insecure"`
	ServiceName    string        `yaml:"service_name"`
	Environment    string        `yaml:"environment"`
	SampleRatio    float64       `yaml:"sample_ratio"`
	ExportInterval time.Duration `yaml:"export_interval"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyMongoDefaults(&cfg.Mongo)
	applyKafkaDefaults(&cfg.Kafka)
	applyBuyBoxDefaults(&cfg.BuyBox)
	applyVendorMetricsDefaults(&cfg.VendorMetrics)
	applyBreakerDefaults(&cfg.Breaker)
	applyScheduleDefaults(&cfg.Schedule)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 10 * time.Second
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.PoolSize == 0 {
		d.PoolSize = 10
	}
}

func applyMongoDefaults(m *MongoConfig) {
	if m.Database == "" {
		m.Database = "buybox"
	}
	if m.Collection == "" {
		m.Collection = "vendor_metrics"
	}
	if m.Timeout == 0 {
		m.Timeout = 5 * time.Second
	}
}

func applyKafkaDefaults(k *KafkaConfig) {
	if k.Topic == "" {
		k.Topic = "catalog.offers"
	}
	if k.GroupID == "" {
		k.GroupID = "buybox-invalidator"
	}
	if k.PollTimeout == 0 {
		k.PollTimeout = 5 * time.Second
	}
}

func applyBuyBoxDefaults(b *BuyBoxConfig) {
	if b.CacheTTL == 0 {
		b.CacheTTL = 300 * time.Second
	}
	if b.ComputeTimeout == 0 {
		b.ComputeTimeout = 30 * time.Second
	}
	if b.TieBreakThreshold == nil {
		v := 0.5
		b.TieBreakThreshold = &v
	}
	if b.MetricsConcurrency == 0 {
		b.MetricsConcurrency = 8
	}
	if b.BatchConcurrency == 0 {
		b.BatchConcurrency = 16
	}
	if b.CacheBackend == "" {
		b.CacheBackend = CacheBackendPostgres
	}
	if b.KeyPrefix == "" {
		b.KeyPrefix = "buybox"
	}
	if b.Weights.IsZero() {
		b.Weights = ScoringWeights{
			Price:        0.40,
			VendorRating: 0.25,
			DeliverySLA:  0.20,
			Cancellation: 0.10,
			Stock:        0.05,
		}
	}
}

func applyVendorMetricsDefaults(v *VendorMetricsConfig) {
	if v.Backend == "" {
		v.Backend = VendorBackendMongo
	}
	if v.Timeout == 0 {
		v.Timeout = 5 * time.Second
	}
	if v.RateLimit.PerSecond > 0 && v.RateLimit.Burst == 0 {
		v.RateLimit.Burst = 10
	}
}

func applyBreakerDefaults(b *BreakerConfig) {
	if b.MaxFailures == 0 {
		b.MaxFailures = 5
	}
	if b.ResetTimeout == 0 {
		b.ResetTimeout = 30 * time.Second
	}
}

func applyScheduleDefaults(s *ScheduleConfig) {
	if s.PurgeInterval == 0 {
		s.PurgeInterval = 10 * time.Minute
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.ServiceName == "" {
		t.ServiceName = "buybox"
	}
	if t.SampleRatio == 0 {
		t.SampleRatio = 1
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if cfg.Database.Name == "" {
		errs = append(errs, fmt.Errorf("database.name is required"))
	}
	if cfg.Database.User == "" {
		errs = append(errs, fmt.Errorf("database.user is required"))
	}

	errs = append(errs, validateBuyBox(&cfg.BuyBox)...)

	switch cfg.VendorMetrics.Backend {
	case VendorBackendMongo:
		if cfg.Mongo.URI == "" {
			errs = append(
				errs,
				fmt.Errorf("mongo.uri is required when vendor_metrics.backend is mongo"),
			)
		}
	case VendorBackendHTTP:
		if cfg.VendorMetrics.Endpoint == "" {
			errs = append(
				errs,
				fmt.Errorf("vendor_metrics.endpoint is required when backend is http"),
			)
		}
	default:
		errs = append(
			errs,
			fmt.Errorf(
				"vendor_metrics.backend must be one of: mongo, http (got %q)",
				cfg.VendorMetrics.Backend,
			),
		)
	}

	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		errs = append(errs, fmt.Errorf("kafka.brokers is required when kafka is enabled"))
	}
	if cfg.Notifications.Discord.Enabled && cfg.Notifications.Discord.WebhookURL == "" {
		errs = append(
			errs,
			fmt.Errorf("notifications.discord.webhook_url is required when discord is enabled"),
		)
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		errs = append(errs, fmt.Errorf("telemetry.endpoint is required when telemetry is enabled"))
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf(
			"telemetry.sample_ratio must be between 0 and 1 (got %g)", cfg.Telemetry.SampleRatio,
		))
	}

	return errors.Join(errs...)
}

func validateBuyBox(b *BuyBoxConfig) []error {
	var errs []error

	if b.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("buybox.cache_ttl must be positive (got %s)", b.CacheTTL))
	}
	if b.ComputeTimeout < 0 {
		errs = append(errs, fmt.Errorf("buybox.compute_timeout must be positive (got %s)", b.ComputeTimeout))
	}
	if *b.TieBreakThreshold < 0 {
		errs = append(errs, fmt.Errorf(
			"buybox.tie_break_threshold must be >= 0 (got %g)", *b.TieBreakThreshold,
		))
	}
	if b.MetricsConcurrency < 0 {
		errs = append(errs, fmt.Errorf("buybox.metrics_concurrency must be positive"))
	}
	if b.BatchConcurrency < 0 {
		errs = append(errs, fmt.Errorf("buybox.batch_concurrency must be positive"))
	}
	switch b.CacheBackend {
	case CacheBackendMemory, CacheBackendPostgres:
	default:
		errs = append(errs, fmt.Errorf(
			"buybox.cache_backend must be one of: memory, postgres (got %q)", b.CacheBackend,
		))
	}

	w := b.Weights
	if w.Price < 0 || w.VendorRating < 0 || w.DeliverySLA < 0 || w.Cancellation < 0 || w.Stock < 0 {
		errs = append(errs, fmt.Errorf("buybox.weights must not be negative"))
	}
	if sum := w.sum(); math.Abs(sum-1.0) > 1e-6 {
		errs = append(errs, fmt.Errorf("buybox.weights must sum to 1.0 (got %.4f)", sum))
	}

	return errs
}
