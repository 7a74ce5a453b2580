package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/bukget/pkg/stats"
)

// RecordDownload appends one raw download event
func (s *Store) RecordDownload(ctx context.Context, d stats.Download) (err error) {
	ctx, span, start := s.begin(ctx, "RecordDownload")
	defer func() { s.finish(span, "RecordDownload", start, err) }()

	_, err = s.conns.Primary().ExecContext(ctx, `
		INSERT INTO downloads (id, server, slug, version, downloaded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), d.Server, d.Slug, d.Version, d.At.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert download: %w", err)
	}
	return nil
}

// CatalogTotals counts plugins and versions
func (s *Store) CatalogTotals(ctx context.Context) (totals stats.CatalogTotals, err error) {
	ctx, span, start := s.begin(ctx, "CatalogTotals")
	defer func() { s.finish(span, "CatalogTotals", start, err) }()

	err = s.conns.Replica().QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM plugins), (SELECT COUNT(*) FROM versions)`,
	).Scan(&totals.Plugins, &totals.Versions)
	if err != nil {
		return stats.CatalogTotals{}, fmt.Errorf("failed to count catalog: %w", err)
	}
	return totals, nil
}

// CountDownloads counts raw events in [from, to)
func (s *Store) CountDownloads(ctx context.Context, from, to time.Time) (n int64, err error) {
	ctx, span, start := s.begin(ctx, "CountDownloads")
	defer func() { s.finish(span, "CountDownloads", start, err) }()

	err = s.conns.Replica().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM downloads WHERE downloaded_at >= $1 AND downloaded_at < $2`,
		from.Unix(), to.Unix(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count downloads: %w", err)
	}
	return n, nil
}

// DailyTotals returns aggregated downloads per day, oldest first
func (s *Store) DailyTotals(ctx context.Context, fromDay, toDay string) (totals []stats.DailyTotal, err error) {
	ctx, span, start := s.begin(ctx, "DailyTotals")
	defer func() { s.finish(span, "DailyTotals", start, err) }()

	return s.queryDailyTotals(ctx, `
		SELECT day, CAST(SUM(downloads) AS BIGINT)
		FROM download_stats_daily
		WHERE day >= $1 AND day <= $2
		GROUP BY day
		ORDER BY day`, fromDay, toDay)
}

// PluginDailyTotals returns one plugin's downloads per day, oldest first
func (s *Store) PluginDailyTotals(ctx context.Context, server, slug, fromDay, toDay string) (totals []stats.DailyTotal, err error) {
	ctx, span, start := s.begin(ctx, "PluginDailyTotals")
	defer func() { s.finish(span, "PluginDailyTotals", start, err) }()

	return s.queryDailyTotals(ctx, `
		SELECT day, downloads
		FROM download_stats_daily
		WHERE server = $1 AND slug = $2 AND day >= $3 AND day <= $4
		ORDER BY day`, server, slug, fromDay, toDay)
}

func (s *Store) queryDailyTotals(ctx context.Context, query string, args ...interface{}) ([]stats.DailyTotal, error) {
	rows, err := s.conns.Replica().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily totals: %w", err)
	}

	totals := []stats.DailyTotal{}
	for rows.Next() {
		var t stats.DailyTotal
		if err := rows.Scan(&t.Day, &t.Downloads); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan daily total: %w", err)
		}
		totals = append(totals, t)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("failed to iterate daily totals: %w", err)
	}
	return totals, nil
}

// RollupDownloads recomputes one day's per-plugin aggregates from raw events
func (s *Store) RollupDownloads(ctx context.Context, day string) (n int64, err error) {
	ctx, span, start := s.begin(ctx, "RollupDownloads")
	defer func() { s.finish(span, "RollupDownloads", start, err) }()

	from, err := time.ParseInLocation(stats.DayLayout, day, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("invalid day %q: %w", day, err)
	}
	to := from.AddDate(0, 0, 1)

	tx, err := s.conns.Primary().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM download_stats_daily WHERE day = $1", day); err != nil {
		return 0, fmt.Errorf("failed to clear aggregates of %s: %w", day, err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO download_stats_daily (day, server, slug, downloads)
		SELECT CAST($1 AS TEXT), server, slug, COUNT(*)
		FROM downloads
		WHERE downloaded_at >= $2 AND downloaded_at < $3
		GROUP BY server, slug`,
		day, from.Unix(), to.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate %s: %w", day, err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count aggregates of %s: %w", day, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit aggregates of %s: %w", day, err)
	}
	return n, nil
}

// RefreshPopularity rewrites every plugin's popularity from the aggregates of
// the 1, 7 and 30 days ending at asOf
func (s *Store) RefreshPopularity(ctx context.Context, asOf string) (err error) {
	ctx, span, start := s.begin(ctx, "RefreshPopularity")
	defer func() { s.finish(span, "RefreshPopularity", start, err) }()

	end, err := time.ParseInLocation(stats.DayLayout, asOf, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid day %q: %w", asOf, err)
	}
	weekStart := stats.DayKey(end.AddDate(0, 0, -6))
	monthStart := stats.DayKey(end.AddDate(0, 0, -29))

	_, err = s.conns.Primary().ExecContext(ctx, `
		UPDATE plugins SET
			popularity_daily = COALESCE((
				SELECT SUM(d.downloads) FROM download_stats_daily d
				WHERE d.server = plugins.server AND d.slug = plugins.slug AND d.day = $1), 0),
			popularity_weekly = COALESCE((
				SELECT SUM(d.downloads) FROM download_stats_daily d
				WHERE d.server = plugins.server AND d.slug = plugins.slug AND d.day >= $2 AND d.day <= $1), 0),
			popularity_monthly = COALESCE((
				SELECT SUM(d.downloads) FROM download_stats_daily d
				WHERE d.server = plugins.server AND d.slug = plugins.slug AND d.day >= $3 AND d.day <= $1), 0)`,
		asOf, weekStart, monthStart,
	)
	if err != nil {
		return fmt.Errorf("failed to refresh popularity: %w", err)
	}
	return nil
}

// PruneDownloads deletes raw events older than before
func (s *Store) PruneDownloads(ctx context.Context, before time.Time) (n int64, err error) {
	ctx, span, start := s.begin(ctx, "PruneDownloads")
	defer func() { s.finish(span, "PruneDownloads", start, err) }()

	res, err := s.conns.Primary().ExecContext(ctx, "DELETE FROM downloads WHERE downloaded_at < $1", before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune downloads: %w", err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned downloads: %w", err)
	}
	return n, nil
}
