package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/bukget/pkg/config"
	"github.com/platinummonkey/bukget/pkg/observability"
	"github.com/platinummonkey/bukget/pkg/stats"
	"github.com/platinummonkey/bukget/pkg/storage/postgres"
)

const rollupJob = "stats_rollup"

var (
	configPath     = flag.String("config", os.Getenv(config.EnvConfigPath), "Path to the YAML configuration file")
	rollupSchedule = flag.String("rollup-schedule", "*/15 * * * *", "Cron schedule for the download rollup (default: every 15 minutes)")
	retention      = flag.Duration("retention", 0, "How long raw download events are kept (default: 30 days)")
	metricsAddr    = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address when set")
	runOnce        = flag.Bool("run-once", false, "Run the rollup once and exit")
	logLevel       = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

// bukget-aggregator rolls raw download events up into daily totals, refreshes
// plugin popularity and prunes old events on a cron schedule
func main() {
	flag.Parse()

	logger := setupLogger(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		metrics  *observability.Metrics
		registry *prometheus.Registry
	)
	if *metricsAddr != "" {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	storeLogger := observability.NewLogger(observability.ParseLogLevel(*logLevel), os.Stderr)
	store, err := postgres.Open(ctx, cfg.Storage, storeLogger, metrics)
	if err != nil {
		logger.Fatalf("Failed to open catalog store: %v", err)
	}
	defer store.Close()

	var statsOpts []stats.Option
	if *retention > 0 {
		statsOpts = append(statsOpts, stats.WithRetention(*retention))
	}
	svc := stats.NewService(store, statsOpts...)

	var cache *postgres.CachedRepository
	if cfg.Storage.CacheEnabled {
		redisClient, err := postgres.NewRedisClient(cfg.Storage)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, popularity changes will show once cached entries expire")
		} else {
			defer redisClient.Close()
			cache = postgres.NewCachedRepository(store, redisClient, cfg.Storage, metrics)
		}
	}

	rollup := func() error {
		start := time.Now()
		result, err := svc.Rollup(ctx)
		metrics.RecordJobRun(rollupJob, start, err)
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{
			"days":     result.Days,
			"rows":     result.Rows,
			"pruned":   result.Pruned,
			"duration": time.Since(start),
		}).Info("Download rollup completed")

		if cache != nil {
			if err := cache.Invalidate(ctx); err != nil {
				logger.WithError(err).Warn("Failed to invalidate catalog cache")
			}
		}
		return nil
	}

	if *runOnce {
		if err := rollup(); err != nil {
			logger.Fatalf("Rollup failed: %v", err)
		}
		return
	}

	if registry != nil {
		mux := http.NewServeMux()
		observability.RegisterMetricsEndpoint(mux, registry)
		metricsServer := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
		defer metricsServer.Close()
	}

	c := cron.New()
	_, err = c.AddFunc(*rollupSchedule, func() {
		logger.Debug("Starting download rollup")
		if err := rollup(); err != nil {
			logger.WithError(err).Error("Download rollup failed")
		}
	})
	if err != nil {
		logger.Fatalf("Failed to schedule rollup: %v", err)
	}

	c.Start()
	logger.Infof("bukget aggregator started, rollup schedule: %s", *rollupSchedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down aggregator...")
	cancel()
	<-c.Stop().Done()
	logger.Info("Aggregator stopped")
}

func setupLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	return logger
}
