package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/bukget/pkg/observability"
	"github.com/platinummonkey/bukget/pkg/storage"
)

// Application server modes
const (
	AppServerHTTP = "http"
	AppServerFCGI = "fcgi"
)

// EnvConfigPath names the variable holding the config file path
const EnvConfigPath = "BUKGET_CONFIG"

// Config holds all application configuration
type Config struct {
	// Debug forces debug logging
	Debug bool `yaml:"debug"`

	// AutoReload watches the config file and applies log level changes live
	AutoReload bool `yaml:"auto_reload"`

	Server        ServerConfig        `yaml:"server"`
	Storage       storage.Config      `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`

	// Path is the file the configuration was read from, if any
	Path string `yaml:"-"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address         string        `yaml:"address"`
	Port            string        `yaml:"port"`
	AppServer       string        `yaml:"app_server"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// Addr returns the API listen address
func (s ServerConfig) Addr() string {
	return s.Address + ":" + s.Port
}

// HealthAddr returns the health and metrics listen address
func (s ServerConfig) HealthAddr() string {
	return s.Address + ":" + s.HealthPort
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// OTel converts the settings for observability.InitOTel
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         "0.0.0.0",
			Port:            "9132",
			AppServer:       AppServerHTTP,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9133",
		},
		Storage: storage.DefaultConfig(),
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "bukget",
			OTelServiceVersion: "3.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig loads the file named by BUKGET_CONFIG, if set, then applies
// environment overrides
func LoadConfig() (*Config, error) {
	return Load(os.Getenv(EnvConfigPath))
}

// Load reads defaults, then the YAML file at path (skipped when empty), then
// BUKGET_* environment variables, and validates the result
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		cfg.Path = path
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables on c
func (c *Config) applyEnv() {
	c.Debug = getEnvBool("BUKGET_DEBUG", c.Debug)
	c.AutoReload = getEnvBool("BUKGET_AUTO_RELOAD", c.AutoReload)

	c.Server.Address = getEnv("BUKGET_ADDRESS", c.Server.Address)
	c.Server.Port = getEnv("BUKGET_PORT", c.Server.Port)
	c.Server.AppServer = strings.ToLower(getEnv("BUKGET_APP_SERVER", c.Server.AppServer))
	c.Server.ReadTimeout = getEnvDuration("BUKGET_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("BUKGET_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("BUKGET_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("BUKGET_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.HealthPort = getEnv("BUKGET_HEALTH_PORT", c.Server.HealthPort)

	applyStorageEnv(&c.Storage)

	o := &c.Observability
	o.LogLevel = getEnv("BUKGET_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("BUKGET_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("BUKGET_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("BUKGET_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("BUKGET_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("BUKGET_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("BUKGET_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("BUKGET_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

func applyStorageEnv(cfg *storage.Config) {
	// SQL store
	cfg.Driver = getEnv("BUKGET_DB_DRIVER", cfg.Driver)
	cfg.DSN = getEnv("BUKGET_DB_DSN", cfg.DSN)
	if replicas := getEnv("BUKGET_DB_REPLICA_DSNS", ""); replicas != "" {
		cfg.ReplicaDSNs = splitList(replicas)
	}
	if maxConns := getEnvInt("BUKGET_DB_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("BUKGET_DB_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("BUKGET_DB_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}
	cfg.AutoMigrate = getEnvBool("BUKGET_DB_AUTO_MIGRATE", cfg.AutoMigrate)

	// Redis config
	cfg.CacheEnabled = getEnvBool("BUKGET_CACHE_ENABLED", cfg.CacheEnabled)
	cfg.RedisURL = getEnv("BUKGET_REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("BUKGET_REDIS_PASSWORD", cfg.RedisPassword)
	if redisDB := getEnvInt("BUKGET_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if poolSize := getEnvInt("BUKGET_REDIS_POOL_SIZE", 0); poolSize > 0 {
		cfg.RedisPoolSize = poolSize
	}
	cfg.CacheTTL = getEnvDuration("BUKGET_CACHE_TTL", cfg.CacheTTL)
	if l1Size := getEnvInt("BUKGET_L1_CACHE_SIZE", -1); l1Size >= 0 {
		cfg.L1CacheSize = l1Size
	}
	cfg.L1CacheTTL = getEnvDuration("BUKGET_L1_CACHE_TTL", cfg.L1CacheTTL)

	// S3 mirror
	cfg.S3Endpoint = getEnv("BUKGET_S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3Region = getEnv("BUKGET_S3_REGION", cfg.S3Region)
	cfg.S3Bucket = getEnv("BUKGET_S3_BUCKET", cfg.S3Bucket)
	cfg.S3Prefix = getEnv("BUKGET_S3_PREFIX", cfg.S3Prefix)
	cfg.S3AccessKey = getEnv("BUKGET_S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = getEnv("BUKGET_S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3UsePathStyle = getEnvBool("BUKGET_S3_USE_PATH_STYLE", cfg.S3UsePathStyle)
	cfg.PresignTTL = getEnvDuration("BUKGET_S3_PRESIGN_TTL", cfg.PresignTTL)
}

// LogLevel returns the effective log level. Debug overrides the configured level.
func (c *Config) LogLevel() observability.LogLevel {
	if c.Debug {
		return observability.DebugLevel
	}
	return observability.ParseLogLevel(c.Observability.LogLevel)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Server.HealthPort == "" {
		return errors.New("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return errors.New("server port and health port must be different")
	}
	switch c.Server.AppServer {
	case AppServerHTTP, AppServerFCGI:
	default:
		return fmt.Errorf("invalid app server: %s (must be http or fcgi)", c.Server.AppServer)
	}

	// Validate storage config based on driver
	switch c.Storage.Driver {
	case storage.DriverPostgres, storage.DriverSQLite:
		if c.Storage.DSN == "" {
			return fmt.Errorf("a DSN is required for the %s driver", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("invalid storage driver: %s (must be postgres or sqlite3)", c.Storage.Driver)
	}
	if c.Storage.CacheEnabled && c.Storage.RedisURL == "" {
		return errors.New("redis URL is required when the cache is enabled")
	}
	if c.Storage.S3Bucket != "" && c.Storage.S3Region == "" && c.Storage.S3Endpoint == "" {
		return errors.New("S3 region or endpoint is required when a mirror bucket is set")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
