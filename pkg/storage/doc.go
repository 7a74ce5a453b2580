// Package storage defines the catalog backend contract and its configuration.
//
// # Overview
//
// A Store combines the catalog read side used by the API (catalog.Repository), the
// write side used by ingestion (catalog.Writer) and the download statistics used by
// the stats endpoints and the aggregator (stats.Store).
//
// # Backend
//
// pkg/storage/postgres implements Store on database/sql. The same schema and queries
// run on PostgreSQL (lib/pq) in production and SQLite (mattn/go-sqlite3) for local
// use and tests:
//
//	cfg := storage.DefaultConfig()
//	cfg.Driver = storage.DriverPostgres
//	cfg.DSN = "postgres://bukget@localhost/bukget?sslmode=disable"
//	store, err := postgres.Open(ctx, cfg, logger, metrics)
//
// # Caching
//
// postgres.CachedRepository layers an in-process expirable LRU (L1) over Redis (L2)
// over any catalog.Repository. Ingestion and the aggregator invalidate the Redis
// keyspace after writing.
//
// # Download Mirror
//
// When an S3 bucket is configured, postgres.Mirror answers download requests with
// presigned URLs for mirrored artifacts.
package storage
