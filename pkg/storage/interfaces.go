package storage

import (
	"context"
	"time"

	"github.com/platinummonkey/bukget/pkg/catalog"
	"github.com/platinummonkey/bukget/pkg/stats"
)

// Store is a complete catalog backend: catalog reads for the API, writes for
// ingestion and download statistics
type Store interface {
	catalog.Repository
	catalog.Writer
	stats.Store

	// HealthCheck verifies the backend is reachable
	HealthCheck(ctx context.Context) error

	// Close releases the backend's connections
	Close() error
}

// Supported SQL drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config for the storage backend
type Config struct {
	// SQL store
	Driver      string        `yaml:"driver"`
	DSN         string        `yaml:"dsn"`
	ReplicaDSNs []string      `yaml:"replica_dsns"`
	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	Timeout     time.Duration `yaml:"timeout"`
	AutoMigrate bool          `yaml:"auto_migrate"`

	// Redis (L2) cache
	CacheEnabled  bool          `yaml:"cache_enabled"`
	RedisURL      string        `yaml:"redis_url"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisPoolSize int           `yaml:"redis_pool_size"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`

	// In-process (L1) cache
	L1CacheSize int           `yaml:"l1_cache_size"`
	L1CacheTTL  time.Duration `yaml:"l1_cache_ttl"`

	// S3 download mirror
	S3Endpoint     string        `yaml:"s3_endpoint"`
	S3Region       string        `yaml:"s3_region"`
	S3Bucket       string        `yaml:"s3_bucket"`
	S3Prefix       string        `yaml:"s3_prefix"`
	S3AccessKey    string        `yaml:"s3_access_key"`
	S3SecretKey    string        `yaml:"s3_secret_key"`
	S3UsePathStyle bool          `yaml:"s3_use_path_style"`
	PresignTTL     time.Duration `yaml:"presign_ttl"`
}

// MirrorEnabled reports whether an S3 download mirror is configured
func (c Config) MirrorEnabled() bool {
	return c.S3Bucket != ""
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Driver:        DriverSQLite,
		DSN:           "file:bukget.db?_foreign_keys=on&_busy_timeout=5000",
		MaxConns:      20,
		MinConns:      2,
		Timeout:       10 * time.Second,
		AutoMigrate:   true,
		CacheEnabled:  false,
		RedisPoolSize: 10,
		CacheTTL:      5 * time.Minute,
		L1CacheSize:   512,
		L1CacheTTL:    30 * time.Second,
		S3Region:      "us-east-1",
		S3Prefix:      "plugins",
		PresignTTL:    15 * time.Minute,
	}
}
