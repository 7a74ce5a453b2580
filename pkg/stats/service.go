package stats

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// MaxTrendDays bounds every trend window
	MaxTrendDays = 365

	// DefaultPluginTrendDays is used when /stats/plugin has no days parameter
	DefaultPluginTrendDays = 30

	// DefaultRetention is how long raw download events are kept after rollup
	DefaultRetention = 45 * 24 * time.Hour
)

// Service records downloads and answers trend queries
type Service struct {
	store     Store
	now       func() time.Time
	retention time.Duration
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRetention sets how long raw download events survive a rollup
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// NewService creates a new stats service
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		now:       time.Now,
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record stores one download event stamped with the current time
func (s *Service) Record(ctx context.Context, server, slug, version string) error {
	d := Download{Server: server, Slug: slug, Version: version, At: s.now().UTC()}
	if err := s.store.RecordDownload(ctx, d); err != nil {
		return fmt.Errorf("failed to record download of %s/%s: %w", server, slug, err)
	}
	return nil
}

// TodaysTrends returns the catalog size and the number of downloads so far today
func (s *Service) TodaysTrends(ctx context.Context) (Trends, error) {
	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var trends Trends
	trends.Day = DayKey(now)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		totals, err := s.store.CatalogTotals(gctx)
		if err != nil {
			return fmt.Errorf("failed to count catalog: %w", err)
		}
		trends.CatalogTotals = totals
		return nil
	})
	g.Go(func() error {
		n, err := s.store.CountDownloads(gctx, midnight, midnight.AddDate(0, 0, 1))
		if err != nil {
			return fmt.Errorf("failed to count downloads: %w", err)
		}
		trends.DownloadsToday = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return Trends{}, err
	}
	return trends, nil
}

// Trend returns total downloads per day for the last days days, oldest first,
// with missing days reported as zero
func (s *Service) Trend(ctx context.Context, days int) ([]DailyTotal, error) {
	days = clampDays(days)
	from, to := s.window(days)

	totals, err := s.store.DailyTotals(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily totals: %w", err)
	}
	return s.fill(totals, days), nil
}

// PluginTrend is Trend for one plugin
func (s *Service) PluginTrend(ctx context.Context, server, slug string, days int) (PluginTrend, error) {
	days = clampDays(days)
	from, to := s.window(days)

	totals, err := s.store.PluginDailyTotals(ctx, server, slug, from, to)
	if err != nil {
		return PluginTrend{}, fmt.Errorf("failed to load daily totals of %s/%s: %w", server, slug, err)
	}

	trend := PluginTrend{
		Server:    server,
		Slug:      slug,
		Days:      days,
		Downloads: s.fill(totals, days),
	}
	for _, t := range trend.Downloads {
		trend.Total += t.Downloads
	}
	return trend, nil
}

// Rollup aggregates yesterday and today from raw events, refreshes plugin
// popularity and prunes raw events past the retention window
func (s *Service) Rollup(ctx context.Context) (RollupResult, error) {
	now := s.now().UTC()
	result := RollupResult{
		Days: []string{DayKey(now.AddDate(0, 0, -1)), DayKey(now)},
	}

	for _, day := range result.Days {
		n, err := s.store.RollupDownloads(ctx, day)
		if err != nil {
			return result, fmt.Errorf("failed to roll up %s: %w", day, err)
		}
		result.Rows += n
	}

	if err := s.store.RefreshPopularity(ctx, DayKey(now)); err != nil {
		return result, fmt.Errorf("failed to refresh popularity: %w", err)
	}

	pruned, err := s.store.PruneDownloads(ctx, now.Add(-s.retention))
	if err != nil {
		return result, fmt.Errorf("failed to prune downloads: %w", err)
	}
	result.Pruned = pruned
	return result, nil
}

// window returns the first and last day keys of a days-long window ending today
func (s *Service) window(days int) (string, string) {
	now := s.now().UTC()
	return DayKey(now.AddDate(0, 0, -(days - 1))), DayKey(now)
}

func (s *Service) fill(totals []DailyTotal, days int) []DailyTotal {
	byDay := make(map[string]int64, len(totals))
	for _, t := range totals {
		byDay[t.Day] += t.Downloads
	}

	now := s.now().UTC()
	out := make([]DailyTotal, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := DayKey(now.AddDate(0, 0, -i))
		out = append(out, DailyTotal{Day: day, Downloads: byDay[day]})
	}
	return out
}

func clampDays(days int) int {
	switch {
	case days < 1:
		return 1
	case days > MaxTrendDays:
		return MaxTrendDays
	default:
		return days
	}
}
