package stats

import "time"

// DayLayout is the format of a statistics day key. Days are UTC.
const DayLayout = "2006-01-02"

// Download is one resolved download redirect
type Download struct {
	Server  string
	Slug    string
	Version string
	At      time.Time
}

// DailyTotal is the number of downloads on one day
type DailyTotal struct {
	Day       string `json:"day"`
	Downloads int64  `json:"downloads"`
}

// CatalogTotals counts the plugins and versions currently in the catalog
type CatalogTotals struct {
	Plugins  int64 `json:"plugin_count"`
	Versions int64 `json:"version_count"`
}

// Trends is the body of /stats/todays_trends
type Trends struct {
	CatalogTotals
	DownloadsToday int64  `json:"downloads_today"`
	Day            string `json:"day"`
}

// PluginTrend is the body of /stats/plugin/{server}/{slug}
type PluginTrend struct {
	Server    string       `json:"server"`
	Slug      string       `json:"slug"`
	Days      int          `json:"days"`
	Total     int64        `json:"total"`
	Downloads []DailyTotal `json:"downloads"`
}

// RollupResult summarizes one aggregation run
type RollupResult struct {
	Days   []string `json:"days"`
	Rows   int64    `json:"rows"`
	Pruned int64    `json:"pruned"`
}

// DayKey returns the statistics day containing t
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}
