// Package config provides application configuration from an optional YAML file
// and environment variables.
//
// # Overview
//
// Load starts from Default, overlays the YAML file (when a path is given), then
// overlays BUKGET_* environment variables and validates the result. LoadConfig
// takes the file path from BUKGET_CONFIG.
//
// # Configuration File
//
//	debug: false
//	auto_reload: true
//	server:
//	  address: 0.0.0.0
//	  port: "9132"
//	  app_server: http   # http or fcgi
//	  health_port: "9133"
//	storage:
//	  driver: postgres   # postgres or sqlite3
//	  dsn: postgres://bukget@localhost/bukget?sslmode=disable
//	  cache_enabled: true
//	  redis_url: redis://localhost:6379
//	  s3_bucket: bukget-mirror
//	observability:
//	  log_level: info    # debug, info, warn, error
//	  otel_enabled: false
//
// # Environment Overrides
//
//	BUKGET_DEBUG="true"
//	BUKGET_ADDRESS="0.0.0.0"
//	BUKGET_PORT="9132"
//	BUKGET_APP_SERVER="fcgi"
//	BUKGET_DB_DRIVER="postgres"
//	BUKGET_DB_DSN="postgres://localhost/bukget"
//	BUKGET_REDIS_URL="redis://localhost:6379"
//	BUKGET_S3_BUCKET="bukget-mirror"
//	BUKGET_LOG_LEVEL="debug"
//	BUKGET_OTEL_ENABLED="true"
//
// # Live Reload
//
// With auto_reload set, the server runs Watch on the file and applies a changed
// log level without restarting:
//
//	go config.Watch(ctx, cfg.Path, logger, func(next *config.Config) {
//		logger.SetLevel(next.LogLevel())
//	})
package config
