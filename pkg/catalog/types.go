package catalog

// Plugin represents a plugin in the catalog
type Plugin struct {
	Slug        string     `json:"slug" yaml:"slug"`
	PluginName  string     `json:"plugin_name" yaml:"plugin_name"`
	Description string     `json:"description" yaml:"description"`
	Authors     []string   `json:"authors" yaml:"authors"`
	Categories  []string   `json:"categories" yaml:"categories"`
	Server      string     `json:"server" yaml:"server"`
	Website     string     `json:"website" yaml:"website"`
	Logo        string     `json:"logo" yaml:"logo"`
	LogoFull    string     `json:"logo_full" yaml:"logo_full"`
	DBOPage     string     `json:"dbo_page" yaml:"dbo_page"`
	Main        string     `json:"main" yaml:"main"`
	Stage       string     `json:"stage" yaml:"stage"`
	Popularity  Popularity `json:"popularity" yaml:"popularity"`
	Versions    []Version  `json:"versions" yaml:"versions"`
}

// Popularity holds download-based popularity counters
type Popularity struct {
	Daily   int64 `json:"daily" yaml:"daily"`
	Weekly  int64 `json:"weekly" yaml:"weekly"`
	Monthly int64 `json:"monthly" yaml:"monthly"`
}

// Version represents a single released file of a plugin. Slug is a back-reference to
// the owning plugin and is never used for ownership.
type Version struct {
	Version          string      `json:"version" yaml:"version"`
	Download         string      `json:"download" yaml:"download"`
	MD5              string      `json:"md5" yaml:"md5"`
	Changelog        string      `json:"changelog" yaml:"changelog"`
	Date             int64       `json:"date" yaml:"date"`
	Filename         string      `json:"filename" yaml:"filename"`
	Link             string      `json:"link" yaml:"link"`
	Type             string      `json:"type" yaml:"type"`
	Status           string      `json:"status" yaml:"status"`
	GameVersions     []string    `json:"game_versions" yaml:"game_versions"`
	HardDependencies []string    `json:"hard_dependencies" yaml:"hard_dependencies"`
	SoftDependencies []string    `json:"soft_dependencies" yaml:"soft_dependencies"`
	Commands         interface{} `json:"commands" yaml:"commands"`
	Permissions      interface{} `json:"permissions" yaml:"permissions"`
	Slug             string      `json:"slug" yaml:"slug"`
}

// Author is a plugin author and the number of plugins credited to them
type Author struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Category is a plugin category and the number of plugins filed under it
type Category struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Generation describes one ingestion run
type Generation struct {
	ID        string   `json:"id" yaml:"id"`
	Timestamp int64    `json:"timestamp" yaml:"timestamp"`
	Parser    string   `json:"parser" yaml:"parser"`
	Type      string   `json:"type" yaml:"type"`
	Duration  float64  `json:"duration" yaml:"duration"`
	Changes   []Change `json:"changes" yaml:"changes"`
}

// Change is a plugin version touched by a generation
type Change struct {
	Plugin  string `json:"plugin" yaml:"plugin"`
	Version string `json:"version" yaml:"version"`
}

// PluginQuery narrows the plugins returned by a Repository.
// Empty fields match everything.
type PluginQuery struct {
	Server       string
	Author       string
	Category     string
	WithVersions bool
}

// Latest returns the most recent version, if any
func (p *Plugin) Latest() (Version, bool) {
	if len(p.Versions) == 0 {
		return Version{}, false
	}
	return p.Versions[0], true
}
