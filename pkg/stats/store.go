package stats

import (
	"context"
	"time"
)

// Store persists download events and their daily aggregates
type Store interface {
	// RecordDownload appends one raw download event
	RecordDownload(ctx context.Context, d Download) error

	// CatalogTotals counts plugins and versions
	CatalogTotals(ctx context.Context) (CatalogTotals, error)

	// CountDownloads counts raw events in [from, to)
	CountDownloads(ctx context.Context, from, to time.Time) (int64, error)

	// DailyTotals returns aggregated downloads per day for fromDay..toDay inclusive.
	// Days without downloads may be omitted.
	DailyTotals(ctx context.Context, fromDay, toDay string) ([]DailyTotal, error)

	// PluginDailyTotals is DailyTotals restricted to one plugin
	PluginDailyTotals(ctx context.Context, server, slug, fromDay, toDay string) ([]DailyTotal, error)

	// RollupDownloads recomputes the aggregates of one day from raw events and
	// returns the number of aggregate rows written
	RollupDownloads(ctx context.Context, day string) (int64, error)

	// RefreshPopularity rewrites the daily, weekly and monthly popularity of every
	// plugin from the aggregates ending at asOf
	RefreshPopularity(ctx context.Context, asOf string) error

	// PruneDownloads deletes raw events older than before
	PruneDownloads(ctx context.Context, before time.Time) (int64, error)
}
