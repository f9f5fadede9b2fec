package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/donaldgifford/buybox/internal/api/handlers"
	"github.com/donaldgifford/buybox/internal/api/middleware"
	"github.com/donaldgifford/buybox/internal/config"
	"github.com/donaldgifford/buybox/internal/engine"
	"github.com/donaldgifford/buybox/internal/events"
	"github.com/donaldgifford/buybox/internal/store"
	"github.com/donaldgifford/buybox/internal/telemetry"
	"github.com/donaldgifford/buybox/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server, purge scheduler and event consumer",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	pg, err := store.NewPostgresStore(ctx, cfg.Database.DSN(),
		store.WithMaxConns(int32(cfg.Database.PoolSize))) //nolint:gosec // pool size is a small config value
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pg.Close()

	vendors, err := newVendorProvider(ctx, cfg, log)
	if err != nil {
		return err
	}

	kv := newKVStore(cfg, pg, log)
	results := engine.NewResultCache(kv, cfg.BuyBox.KeyPrefix)
	overrides := engine.NewOverrideRegistry(kv, cfg.BuyBox.KeyPrefix, results,
		engine.WithOverrideLogger(logger.Component(log, "overrides")),
		engine.WithNotifier(newNotifier(cfg, log)),
	)
	eng := engine.NewEngine(pg, vendors, results, overrides, engineOptions(cfg, log)...)

	sched, err := engine.NewScheduler(kv, cfg.Schedule.PurgeInterval, logger.Component(log, "scheduler"))
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	sched.Start()

	consumerDone := make(chan struct{})
	if cfg.Kafka.Enabled {
		consumer, err := events.NewConsumer(events.ConsumerConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			GroupID:     cfg.Kafka.GroupID,
			PollTimeout: cfg.Kafka.PollTimeout,
		}, eng,
			events.WithLogger(logger.Component(log, "events")),
			events.WithProductResolver(pg),
		)
		if err != nil {
			return fmt.Errorf("creating event consumer: %w", err)
		}
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("event consumer stopped", "error", err)
			}
			if err := consumer.Close(); err != nil {
				log.Warn("closing event consumer", "error", err)
			}
		}()
	} else {
		close(consumerDone)
	}

	e := newServer(cfg, eng, pg, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting server", "addr", addr, "version", Version)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := e.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down server: %w", err))
	}

	<-sched.Stop().Done()
	<-consumerDone

	if err := vendors.close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("closing vendor metrics client: %w", err))
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down telemetry: %w", err))
	}

	log.Info("server stopped")
	return errors.Join(errs...)
}

// newServer builds the Echo server with operational routes and the Huma API.
func newServer(cfg *config.Config, svc handlers.BuyBoxService, ready handlers.Pinger, log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	e.Use(middleware.Recovery(logger.Component(log, "http")))
	e.Use(middleware.RequestLog(logger.Component(log, "http")))
	e.Use(middleware.Metrics())

	health := handlers.NewHealthHandler(ready)
	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := humaecho.New(e, huma.DefaultConfig("Buy Box API", Version))
	handlers.RegisterBuyBoxRoutes(api, handlers.NewBuyBoxHandler(svc))
	handlers.RegisterOverrideRoutes(api, handlers.NewOverrideHandler(svc))

	return e
}
