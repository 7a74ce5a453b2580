package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/bukget/pkg/observability"
)

// Migration represents a database migration. The SQL is written to run unchanged
// on PostgreSQL and SQLite.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all catalog migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create plugin catalog tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS plugins (
					server TEXT NOT NULL,
					slug TEXT NOT NULL,
					plugin_name TEXT NOT NULL DEFAULT '',
					description TEXT NOT NULL DEFAULT '',
					website TEXT NOT NULL DEFAULT '',
					logo TEXT NOT NULL DEFAULT '',
					logo_full TEXT NOT NULL DEFAULT '',
					dbo_page TEXT NOT NULL DEFAULT '',
					main TEXT NOT NULL DEFAULT '',
					stage TEXT NOT NULL DEFAULT '',
					popularity_daily BIGINT NOT NULL DEFAULT 0,
					popularity_weekly BIGINT NOT NULL DEFAULT 0,
					popularity_monthly BIGINT NOT NULL DEFAULT 0,
					updated_at BIGINT NOT NULL DEFAULT 0,
					PRIMARY KEY (server, slug)
				);

				CREATE INDEX IF NOT EXISTS idx_plugins_slug ON plugins(slug);

				CREATE TABLE IF NOT EXISTS plugin_authors (
					server TEXT NOT NULL,
					slug TEXT NOT NULL,
					position INTEGER NOT NULL,
					name TEXT NOT NULL,
					PRIMARY KEY (server, slug, position)
				);

				CREATE INDEX IF NOT EXISTS idx_plugin_authors_name ON plugin_authors(name);

				CREATE TABLE IF NOT EXISTS plugin_categories (
					server TEXT NOT NULL,
					slug TEXT NOT NULL,
					position INTEGER NOT NULL,
					name TEXT NOT NULL,
					PRIMARY KEY (server, slug, position)
				);

				CREATE INDEX IF NOT EXISTS idx_plugin_categories_name ON plugin_categories(name);

				CREATE TABLE IF NOT EXISTS versions (
					server TEXT NOT NULL,
					slug TEXT NOT NULL,
					position INTEGER NOT NULL,
					version TEXT NOT NULL,
					download TEXT NOT NULL DEFAULT '',
					md5 TEXT NOT NULL DEFAULT '',
					changelog TEXT NOT NULL DEFAULT '',
					released_at BIGINT NOT NULL DEFAULT 0,
					filename TEXT NOT NULL DEFAULT '',
					link TEXT NOT NULL DEFAULT '',
					version_type TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT '',
					game_versions TEXT NOT NULL DEFAULT '[]',
					hard_dependencies TEXT NOT NULL DEFAULT '[]',
					soft_dependencies TEXT NOT NULL DEFAULT '[]',
					commands TEXT NOT NULL DEFAULT 'null',
					permissions TEXT NOT NULL DEFAULT 'null',
					PRIMARY KEY (server, slug, position)
				);
			`,
		},
		{
			Version:     2,
			Description: "Create generations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS generations (
					id TEXT PRIMARY KEY,
					started_at BIGINT NOT NULL,
					parser TEXT NOT NULL DEFAULT '',
					gen_type TEXT NOT NULL DEFAULT '',
					duration DOUBLE PRECISION NOT NULL DEFAULT 0,
					changes TEXT NOT NULL DEFAULT '[]'
				);

				CREATE INDEX IF NOT EXISTS idx_generations_started_at ON generations(started_at);
			`,
		},
		{
			Version:     3,
			Description: "Create download statistics tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS downloads (
					id TEXT PRIMARY KEY,
					server TEXT NOT NULL,
					slug TEXT NOT NULL,
					version TEXT NOT NULL,
					downloaded_at BIGINT NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_downloads_downloaded_at ON downloads(downloaded_at);

				CREATE TABLE IF NOT EXISTS download_stats_daily (
					day TEXT NOT NULL,
					server TEXT NOT NULL,
					slug TEXT NOT NULL,
					downloads BIGINT NOT NULL DEFAULT 0,
					PRIMARY KEY (day, server, slug)
				);

				CREATE INDEX IF NOT EXISTS idx_download_stats_plugin ON download_stats_daily(server, slug, day);
			`,
		},
	}
}

// RunMigrations applies every migration not yet recorded in schema_migrations
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	pending := 0
	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}
		pending++

		if logger != nil {
			logger.WithField("version", migration.Version).Infof("Running migration: %s", migration.Description)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	if pending == 0 && logger != nil {
		logger.Debugf("Schema is current, %d migrations applied", len(applied))
	}
	return nil
}
