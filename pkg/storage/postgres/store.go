package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/bukget/pkg/catalog"
	"github.com/platinummonkey/bukget/pkg/observability"
	"github.com/platinummonkey/bukget/pkg/storage"
)

var tracer = observability.Tracer("storage/postgres")

var _ storage.Store = (*Store)(nil)

// Store implements storage.Store on PostgreSQL or SQLite. Reads go to a replica
// when one is configured.
type Store struct {
	conns   *ConnectionManager
	metrics *observability.Metrics
}

// NewStore creates a store over an open connection manager. metrics may be nil.
func NewStore(conns *ConnectionManager, metrics *observability.Metrics) *Store {
	return &Store{conns: conns, metrics: metrics}
}

// Open connects to the configured database and applies migrations when
// AutoMigrate is set
func Open(ctx context.Context, cfg storage.Config, logger *observability.Logger, metrics *observability.Metrics) (*Store, error) {
	conns, err := NewConnectionManager(ConnectionConfigFromStorage(cfg), logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := RunMigrations(ctx, conns.Primary(), logger); err != nil {
			conns.Close()
			return nil, err
		}
	}

	return NewStore(conns, metrics), nil
}

// DB returns the primary handle, for health checks and pool metrics
func (s *Store) DB() *sql.DB {
	return s.conns.Primary()
}

// Connections returns the underlying connection manager
func (s *Store) Connections() *ConnectionManager {
	return s.conns
}

// HealthCheck verifies the database is reachable
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.conns.HealthCheck(ctx)
}

// Close releases every connection
func (s *Store) Close() error {
	return s.conns.Close()
}

// begin starts a span for one storage operation; finish ends it and records metrics
func (s *Store) begin(ctx context.Context, op string) (context.Context, trace.Span, time.Time) {
	ctx, span := tracer.Start(ctx, "Store."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", s.conns.Driver()),
			attribute.String("db.operation", op),
		),
	)
	return ctx, span, time.Now()
}

func (s *Store) finish(span trace.Span, op string, start time.Time, err error) {
	if err != nil && !catalog.IsNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	s.metrics.RecordStorageOperation(op, s.conns.Driver(), start, err)
}

// pluginFilter narrows plugin queries. Empty fields match everything.
type pluginFilter struct {
	server   string
	slug     string
	author   string
	category string
}

// where renders the filter against the plugins table aliased p
func (f pluginFilter) where() (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(clause string, arg string) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.server != "" {
		add("p.server = $%d", f.server)
	}
	if f.slug != "" {
		add("p.slug = $%d", f.slug)
	}
	if f.author != "" {
		add("EXISTS (SELECT 1 FROM plugin_authors a WHERE a.server = p.server AND a.slug = p.slug AND a.name = $%d)", f.author)
	}
	if f.category != "" {
		add("EXISTS (SELECT 1 FROM plugin_categories c WHERE c.server = p.server AND c.slug = p.slug AND c.name = $%d)", f.category)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListPlugins returns plugins matching the query ordered by server and slug
func (s *Store) ListPlugins(ctx context.Context, q catalog.PluginQuery) (plugins []catalog.Plugin, err error) {
	ctx, span, start := s.begin(ctx, "ListPlugins")
	defer func() { s.finish(span, "ListPlugins", start, err) }()

	return s.queryPlugins(ctx, pluginFilter{server: q.Server, author: q.Author, category: q.Category}, q.WithVersions)
}

// GetPlugin returns a plugin with its versions. An empty server matches the
// first server, in name order, that has the slug.
func (s *Store) GetPlugin(ctx context.Context, server, slug string) (plugin *catalog.Plugin, err error) {
	ctx, span, start := s.begin(ctx, "GetPlugin")
	defer func() { s.finish(span, "GetPlugin", start, err) }()
	span.SetAttributes(attribute.String("plugin.slug", slug), attribute.String("plugin.server", server))

	plugins, err := s.queryPlugins(ctx, pluginFilter{server: server, slug: slug}, true)
	if err != nil {
		return nil, err
	}
	if len(plugins) == 0 {
		return nil, fmt.Errorf("plugin %s/%s: %w", server, slug, catalog.ErrNotFound)
	}
	return &plugins[0], nil
}

func (s *Store) queryPlugins(ctx context.Context, f pluginFilter, withVersions bool) ([]catalog.Plugin, error) {
	db := s.conns.Replica()
	where, args := f.where()

	rows, err := db.QueryContext(ctx, `
		SELECT p.server, p.slug, p.plugin_name, p.description, p.website, p.logo, p.logo_full,
			p.dbo_page, p.main, p.stage, p.popularity_daily, p.popularity_weekly, p.popularity_monthly
		FROM plugins p`+where+`
		ORDER BY p.server, p.slug`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plugins: %w", err)
	}

	plugins := []catalog.Plugin{}
	index := map[string]int{}
	for rows.Next() {
		var p catalog.Plugin
		if err := rows.Scan(&p.Server, &p.Slug, &p.PluginName, &p.Description, &p.Website, &p.Logo,
			&p.LogoFull, &p.DBOPage, &p.Main, &p.Stage,
			&p.Popularity.Daily, &p.Popularity.Weekly, &p.Popularity.Monthly); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan plugin: %w", err)
		}
		p.Authors = []string{}
		p.Categories = []string{}
		index[pluginKey(p.Server, p.Slug)] = len(plugins)
		plugins = append(plugins, p)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("failed to iterate plugins: %w", err)
	}
	if len(plugins) == 0 {
		return plugins, nil
	}

	if err := s.loadNames(ctx, db, "plugin_authors", where, args, func(i int, name string) {
		plugins[i].Authors = append(plugins[i].Authors, name)
	}, index); err != nil {
		return nil, err
	}
	if err := s.loadNames(ctx, db, "plugin_categories", where, args, func(i int, name string) {
		plugins[i].Categories = append(plugins[i].Categories, name)
	}, index); err != nil {
		return nil, err
	}

	if withVersions {
		for i := range plugins {
			plugins[i].Versions = []catalog.Version{}
		}
		if err := s.loadVersions(ctx, db, where, args, plugins, index); err != nil {
			return nil, err
		}
	}

	return plugins, nil
}

// loadNames reads an author or category table for every plugin the filter matches
func (s *Store) loadNames(ctx context.Context, db *sql.DB, table, where string, args []interface{},
	add func(i int, name string), index map[string]int) error {
	rows, err := db.QueryContext(ctx, `
		SELECT t.server, t.slug, t.name
		FROM `+table+` t
		JOIN plugins p ON p.server = t.server AND p.slug = t.slug`+where+`
		ORDER BY t.server, t.slug, t.position`, args...)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", table, err)
	}

	for rows.Next() {
		var server, slug, name string
		if err := rows.Scan(&server, &slug, &name); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan %s: %w", table, err)
		}
		if i, ok := index[pluginKey(server, slug)]; ok {
			add(i, name)
		}
	}
	if err := closeRows(rows); err != nil {
		return fmt.Errorf("failed to iterate %s: %w", table, err)
	}
	return nil
}

func (s *Store) loadVersions(ctx context.Context, db *sql.DB, where string, args []interface{},
	plugins []catalog.Plugin, index map[string]int) error {
	rows, err := db.QueryContext(ctx, `
		SELECT v.server, v.slug, v.version, v.download, v.md5, v.changelog, v.released_at, v.filename,
			v.link, v.version_type, v.status, v.game_versions, v.hard_dependencies, v.soft_dependencies,
			v.commands, v.permissions
		FROM versions v
		JOIN plugins p ON p.server = v.server AND p.slug = v.slug`+where+`
		ORDER BY v.server, v.slug, v.position`, args...)
	if err != nil {
		return fmt.Errorf("failed to query versions: %w", err)
	}

	for rows.Next() {
		var (
			server                           string
			v                                catalog.Version
			gameVersions, hardDeps, softDeps string
			commands, permissions            string
		)
		if err := rows.Scan(&server, &v.Slug, &v.Version, &v.Download, &v.MD5, &v.Changelog, &v.Date,
			&v.Filename, &v.Link, &v.Type, &v.Status, &gameVersions, &hardDeps, &softDeps,
			&commands, &permissions); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan version: %w", err)
		}

		if err := decodeJSONColumns(
			column{gameVersions, &v.GameVersions},
			column{hardDeps, &v.HardDependencies},
			column{softDeps, &v.SoftDependencies},
			column{commands, &v.Commands},
			column{permissions, &v.Permissions},
		); err != nil {
			rows.Close()
			return fmt.Errorf("failed to decode version %s of %s: %w", v.Version, v.Slug, err)
		}

		if i, ok := index[pluginKey(server, v.Slug)]; ok {
			plugins[i].Versions = append(plugins[i].Versions, v)
		}
	}
	if err := closeRows(rows); err != nil {
		return fmt.Errorf("failed to iterate versions: %w", err)
	}
	return nil
}

// ListAuthors returns every author with the number of plugins credited to them
func (s *Store) ListAuthors(ctx context.Context) (authors []catalog.Author, err error) {
	ctx, span, start := s.begin(ctx, "ListAuthors")
	defer func() { s.finish(span, "ListAuthors", start, err) }()

	names, err := s.countNames(ctx, "plugin_authors")
	if err != nil {
		return nil, err
	}
	authors = make([]catalog.Author, 0, len(names))
	for _, n := range names {
		authors = append(authors, catalog.Author{Name: n.name, Count: n.count})
	}
	return authors, nil
}

// ListCategories returns every category with the number of plugins filed under it
func (s *Store) ListCategories(ctx context.Context) (categories []catalog.Category, err error) {
	ctx, span, start := s.begin(ctx, "ListCategories")
	defer func() { s.finish(span, "ListCategories", start, err) }()

	names, err := s.countNames(ctx, "plugin_categories")
	if err != nil {
		return nil, err
	}
	categories = make([]catalog.Category, 0, len(names))
	for _, n := range names {
		categories = append(categories, catalog.Category{Name: n.name, Count: n.count})
	}
	return categories, nil
}

type namedCount struct {
	name  string
	count int64
}

func (s *Store) countNames(ctx context.Context, table string) ([]namedCount, error) {
	rows, err := s.conns.Replica().QueryContext(ctx, `
		SELECT name, COUNT(*)
		FROM `+table+`
		GROUP BY name
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}

	var out []namedCount
	for rows.Next() {
		var n namedCount
		if err := rows.Scan(&n.name, &n.count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		out = append(out, n)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", table, err)
	}
	return out, nil
}

// ListGenerations returns the most recent generations, newest first. A limit
// below one returns all of them.
func (s *Store) ListGenerations(ctx context.Context, limit int) (gens []catalog.Generation, err error) {
	ctx, span, start := s.begin(ctx, "ListGenerations")
	defer func() { s.finish(span, "ListGenerations", start, err) }()

	query := `
		SELECT id, started_at, parser, gen_type, duration, changes
		FROM generations
		ORDER BY started_at DESC, id`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.conns.Replica().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}

	gens = []catalog.Generation{}
	for rows.Next() {
		var g catalog.Generation
		var changes string
		if err := rows.Scan(&g.ID, &g.Timestamp, &g.Parser, &g.Type, &g.Duration, &changes); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		if err := json.Unmarshal([]byte(changes), &g.Changes); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to decode changes of generation %s: %w", g.ID, err)
		}
		gens = append(gens, g)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("failed to iterate generations: %w", err)
	}
	return gens, nil
}

// UpsertPlugin replaces a plugin, its authors, categories and versions. Existing
// popularity counters are kept since they are owned by the stats rollup.
func (s *Store) UpsertPlugin(ctx context.Context, plugin *catalog.Plugin) (err error) {
	ctx, span, start := s.begin(ctx, "UpsertPlugin")
	defer func() { s.finish(span, "UpsertPlugin", start, err) }()

	if plugin.Server == "" || plugin.Slug == "" {
		return fmt.Errorf("plugin server and slug are required")
	}

	tx, err := s.conns.Primary().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO plugins (server, slug, plugin_name, description, website, logo, logo_full, dbo_page,
			main, stage, popularity_daily, popularity_weekly, popularity_monthly, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (server, slug) DO UPDATE SET
			plugin_name = excluded.plugin_name,
			description = excluded.description,
			website = excluded.website,
			logo = excluded.logo,
			logo_full = excluded.logo_full,
			dbo_page = excluded.dbo_page,
			main = excluded.main,
			stage = excluded.stage,
			updated_at = excluded.updated_at`,
		plugin.Server, plugin.Slug, plugin.PluginName, plugin.Description, plugin.Website, plugin.Logo,
		plugin.LogoFull, plugin.DBOPage, plugin.Main, plugin.Stage,
		plugin.Popularity.Daily, plugin.Popularity.Weekly, plugin.Popularity.Monthly, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert plugin %s: %w", plugin.Slug, err)
	}

	for _, table := range []string{"plugin_authors", "plugin_categories", "versions"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE server = $1 AND slug = $2",
			plugin.Server, plugin.Slug); err != nil {
			return fmt.Errorf("failed to clear %s of %s: %w", table, plugin.Slug, err)
		}
	}

	if err := insertNames(ctx, tx, "plugin_authors", plugin.Server, plugin.Slug, plugin.Authors); err != nil {
		return err
	}
	if err := insertNames(ctx, tx, "plugin_categories", plugin.Server, plugin.Slug, plugin.Categories); err != nil {
		return err
	}

	for i, v := range plugin.Versions {
		cols, err := encodeJSONColumns(v.GameVersions, v.HardDependencies, v.SoftDependencies, v.Commands, v.Permissions)
		if err != nil {
			return fmt.Errorf("failed to encode version %s of %s: %w", v.Version, plugin.Slug, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO versions (server, slug, position, version, download, md5, changelog, released_at,
				filename, link, version_type, status, game_versions, hard_dependencies, soft_dependencies,
				commands, permissions)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			plugin.Server, plugin.Slug, i, v.Version, v.Download, v.MD5, v.Changelog, v.Date,
			v.Filename, v.Link, v.Type, v.Status, cols[0], cols[1], cols[2], cols[3], cols[4],
		); err != nil {
			return fmt.Errorf("failed to insert version %s of %s: %w", v.Version, plugin.Slug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit plugin %s: %w", plugin.Slug, err)
	}
	return nil
}

func insertNames(ctx context.Context, tx *sql.Tx, table, server, slug string, names []string) error {
	for i, name := range names {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO "+table+" (server, slug, position, name) VALUES ($1, $2, $3, $4)",
			server, slug, i, name,
		); err != nil {
			return fmt.Errorf("failed to insert into %s for %s: %w", table, slug, err)
		}
	}
	return nil
}

// AddGeneration records an ingestion run. An empty ID is filled with a new UUID.
func (s *Store) AddGeneration(ctx context.Context, gen *catalog.Generation) (err error) {
	ctx, span, start := s.begin(ctx, "AddGeneration")
	defer func() { s.finish(span, "AddGeneration", start, err) }()

	if gen.ID == "" {
		gen.ID = uuid.NewString()
	}
	changes := gen.Changes
	if changes == nil {
		changes = []catalog.Change{}
	}
	data, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("failed to encode changes: %w", err)
	}

	_, err = s.conns.Primary().ExecContext(ctx, `
		INSERT INTO generations (id, started_at, parser, gen_type, duration, changes)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		gen.ID, gen.Timestamp, gen.Parser, gen.Type, gen.Duration, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation %s: %w", gen.ID, err)
	}
	return nil
}

func pluginKey(server, slug string) string {
	return server + "\x00" + slug
}

// closeRows closes rows and reports any iteration error
func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}

type column struct {
	raw  string
	dest interface{}
}

func decodeJSONColumns(cols ...column) error {
	for _, c := range cols {
		if c.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(c.raw), c.dest); err != nil {
			return err
		}
	}
	return nil
}

func encodeJSONColumns(values ...interface{}) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		if list, ok := v.([]string); ok && list == nil {
			v = []string{}
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[i] = string(data)
	}
	return out, nil
}
