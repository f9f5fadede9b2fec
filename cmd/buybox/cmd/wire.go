package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/donaldgifford/buybox/internal/cache"
	"github.com/donaldgifford/buybox/internal/config"
	"github.com/donaldgifford/buybox/internal/engine"
	"github.com/donaldgifford/buybox/internal/metrics"
	"github.com/donaldgifford/buybox/internal/notify"
	"github.com/donaldgifford/buybox/internal/reputation"
	"github.com/donaldgifford/buybox/internal/telemetry"
	"github.com/donaldgifford/buybox/pkg/logger"
	score "github.com/donaldgifford/buybox/pkg/scorer"
)

const kvBreakerName = "kv"

// newKVStore selects the cache backend and wraps it in a circuit breaker.
// pg serves as the backend when cache_backend is postgres.
func newKVStore(cfg *config.Config, pg cache.Store, log *slog.Logger) *cache.BreakerStore {
	var kv cache.Store = pg
	if cfg.BuyBox.CacheBackend == config.CacheBackendMemory {
		kv = cache.NewMemory()
	}

	metrics.BreakerState.WithLabelValues(kvBreakerName).Set(float64(cache.BreakerClosed))

	return cache.NewBreakerStore(kv, kvBreakerName,
		cache.BreakerConfig{
			MaxFailures:  cfg.Breaker.MaxFailures,
			ResetTimeout: cfg.Breaker.ResetTimeout,
		},
		cache.WithBreakerLogger(logger.Component(log, "breaker")),
		cache.WithStateChangeHook(func(name string, _, to cache.BreakerState) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		}),
	)
}

// vendorProvider is a metrics provider plus the cleanup for its client.
type vendorProvider struct {
	reputation.MetricsProvider
	close func(context.Context) error
}

func newVendorProvider(ctx context.Context, cfg *config.Config, log *slog.Logger) (*vendorProvider, error) {
	switch cfg.VendorMetrics.Backend {
	case config.VendorBackendHTTP:
		opts := []reputation.HTTPOption{
			reputation.WithHTTPClient(&http.Client{Timeout: cfg.VendorMetrics.Timeout}),
		}
		if rl := cfg.VendorMetrics.RateLimit; rl.PerSecond > 0 {
			opts = append(opts, reputation.WithRateLimit(rl.PerSecond, rl.Burst))
		}
		log.Info("vendor metrics via http", "endpoint", cfg.VendorMetrics.Endpoint)
		return &vendorProvider{
			MetricsProvider: reputation.NewHTTPProvider(cfg.VendorMetrics.Endpoint, opts...),
			close:           func(context.Context) error { return nil },
		}, nil

	case config.VendorBackendMongo:
		client, err := mongo.Connect(ctx, options.Client().
			ApplyURI(cfg.Mongo.URI).
			SetTimeout(cfg.Mongo.Timeout))
		if err != nil {
			return nil, fmt.Errorf("connecting to mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("pinging mongo: %w", err)
		}

		p := reputation.NewMongoProvider(client, cfg.Mongo.Database, cfg.Mongo.Collection,
			reputation.WithMongoTimeout(cfg.Mongo.Timeout))
		if err := p.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("ensuring vendor metrics indexes: %w", err)
		}
		log.Info("vendor metrics via mongo", "database", cfg.Mongo.Database, "collection", cfg.Mongo.Collection)
		return &vendorProvider{MetricsProvider: p, close: client.Disconnect}, nil

	default:
		return nil, fmt.Errorf("unknown vendor metrics backend %q", cfg.VendorMetrics.Backend)
	}
}

func newNotifier(cfg *config.Config, log *slog.Logger) notify.Notifier {
	if d := cfg.Notifications.Discord; d.Enabled {
		return notify.NewDiscordNotifier(d.WebhookURL)
	}
	return notify.NewNoOpNotifier(log)
}

func engineOptions(cfg *config.Config, log *slog.Logger) []engine.EngineOption {
	b := cfg.BuyBox
	return []engine.EngineOption{
		engine.WithLogger(logger.Component(log, "engine")),
		engine.WithCacheTTL(b.CacheTTL),
		engine.WithComputeTimeout(b.ComputeTimeout),
		engine.WithTieBreakThreshold(*b.TieBreakThreshold),
		engine.WithWeights(score.Weights{
			Price:        b.Weights.Price,
			VendorRating: b.Weights.VendorRating,
			DeliverySLA:  b.Weights.DeliverySLA,
			Cancellation: b.Weights.Cancellation,
			Stock:        b.Weights.Stock,
		}),
		engine.WithMetricsConcurrency(b.MetricsConcurrency),
		engine.WithBatchConcurrency(b.BatchConcurrency),
	}
}

func telemetryConfig(cfg *config.Config) telemetry.Config {
	t := cfg.Telemetry
	return telemetry.Config{
		Enabled:        t.Enabled,
		Endpoint:       t.Endpoint,
		Insecure:       t.Insecure,
		ServiceName:    t.ServiceName,
		ServiceVersion: Version,
		Environment:    t.Environment,
		SampleRatio:    t.SampleRatio,
		ExportInterval: t.ExportInterval,
	}
}
