// Package observability provides structured logging, Prometheus metrics, health
// probes and OpenTelemetry tracing for the bukget services.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("server", "bukkit").Info("catalog loaded")
//
// Loggers derived with WithField share their parent's level, so SetLevel on the root
// logger (config auto-reload) applies everywhere.
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	metrics.RecordCacheHit("redis", "plugin")
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	checker.AddCheck("s3", mirror.HealthCheck, false)
//	observability.RegisterHealthRoutes(healthMux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:  true,
//		Endpoint: "otel-collector:4317",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
