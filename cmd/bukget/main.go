package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/fcgi"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/bukget/pkg/api"
	"github.com/platinummonkey/bukget/pkg/catalog"
	"github.com/platinummonkey/bukget/pkg/config"
	"github.com/platinummonkey/bukget/pkg/observability"
	"github.com/platinummonkey/bukget/pkg/stats"
	"github.com/platinummonkey/bukget/pkg/storage/postgres"
)

const (
	dbStatsInterval      = 15 * time.Second
	replicaCheckInterval = 30 * time.Second
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("bukget exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelProviders, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	var (
		metrics  *observability.Metrics
		registry *prometheus.Registry
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	store, err := postgres.Open(ctx, cfg.Storage, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to open catalog store: %w", err)
	}

	if len(cfg.Storage.ReplicaDSNs) > 0 {
		store.Connections().StartHealthCheckRoutine(ctx, replicaCheckInterval)
	}

	var repo catalog.Repository = store
	var redisClient *postgres.RedisClient
	if cfg.Storage.CacheEnabled {
		redisClient, err = postgres.NewRedisClient(cfg.Storage)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, serving without cache")
		} else {
			repo = postgres.NewCachedRepository(store, redisClient, cfg.Storage, metrics)
		}
	}

	checker := observability.NewHealthChecker(store.DB(), nil)
	if redisClient != nil {
		checker = observability.NewHealthChecker(store.DB(), redisClient.Client())
	}

	statsSvc := stats.NewService(store)
	opts := []api.Option{
		api.WithStats(statsSvc),
		api.WithMetrics(metrics),
		api.WithLogger(logger),
	}
	if cfg.Observability.OTelEnabled {
		opts = append(opts, api.WithTracing(cfg.Observability.OTelServiceName))
	}
	if cfg.Storage.MirrorEnabled() {
		mirror, err := postgres.NewMirror(ctx, cfg.Storage)
		if err != nil {
			logger.WithError(err).Warn("Download mirror unavailable, serving origin URLs")
		} else {
			opts = append(opts, api.WithMirror(mirror))
			checker.AddCheck("mirror", mirror.HealthCheck, false)
		}
	}

	server := api.NewServer(catalog.NewService(repo), opts...)

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, checker)
	if registry != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:              cfg.Server.HealthAddr(),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, healthServer)
	shutdown.RegisterShutdownFunc(func(context.Context) error { return store.Close() })
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error { return redisClient.Close() })
	}
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	errc := make(chan error, 2)

	switch cfg.Server.AppServer {
	case "fcgi":
		ln, err := net.Listen("tcp", cfg.Server.Addr())
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr(), err)
		}
		shutdown.RegisterShutdownFunc(func(context.Context) error { return ln.Close() })
		go func() {
			logger.WithField("addr", cfg.Server.Addr()).Info("Starting bukget FastCGI server")
			if err := fcgi.Serve(ln, server); err != nil && !errors.Is(err, net.ErrClosed) {
				errc <- err
			}
		}()
	default:
		appServer := &http.Server{
			Addr:         cfg.Server.Addr(),
			Handler:      server,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}
		shutdown.RegisterShutdownFunc(appServer.Shutdown)
		go func() {
			logger.WithField("addr", appServer.Addr).Info("Starting bukget API server")
			if err := appServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
	}

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	if metrics != nil {
		go reportStats(ctx, store, metrics, logger)
	}

	if cfg.AutoReload && cfg.Path != "" {
		go func() {
			err := config.Watch(ctx, cfg.Path, logger, func(next *config.Config) {
				logger.SetLevel(next.LogLevel())
			})
			if err != nil {
				logger.WithError(err).Warn("Configuration watcher stopped")
			}
		}()
	}

	return awaitShutdown(ctx, shutdown, errc, logger)
}

// awaitShutdown blocks until a signal arrives, ctx is done or a listener fails,
// then shuts everything down. A listener failure is returned so the process
// exits non-zero.
func awaitShutdown(ctx context.Context, shutdown *observability.ShutdownManager, errc <-chan error, logger *observability.Logger) error {
	waitCtx, stopWaiting := context.WithCancel(ctx)
	defer stopWaiting()

	failed := make(chan error, 1)
	go func() {
		select {
		case err := <-errc:
			logger.WithError(err).Error("Server failed")
			failed <- err
			stopWaiting()
		case <-waitCtx.Done():
		}
	}()

	shutdownErr := shutdown.WaitForShutdown(waitCtx)
	stopWaiting()

	var serveErr error
	select {
	case serveErr = <-failed:
	default:
	}
	if serveErr != nil {
		serveErr = fmt.Errorf("server failed: %w", serveErr)
	}
	return errors.Join(serveErr, shutdownErr)
}

// reportStats refreshes the connection pool and catalog size gauges
func reportStats(ctx context.Context, store *postgres.Store, metrics *observability.Metrics, logger *observability.Logger) {
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()

	for {
		metrics.UpdateDBStats(store.DB().Stats())
		totals, err := store.CatalogTotals(ctx)
		if err != nil {
			logger.WithError(err).Debug("Failed to count catalog")
		} else {
			metrics.PluginsTotal.Set(float64(totals.Plugins))
			metrics.VersionsTotal.Set(float64(totals.Versions))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
