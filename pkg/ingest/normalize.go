package ingest

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/platinummonkey/bukget/pkg/catalog"
)

// DefaultServer is assigned to plugins that do not name a server
const DefaultServer = "bukkit"

// ErrInvalidPlugin is returned for records that cannot be stored
var ErrInvalidPlugin = errors.New("invalid plugin")

// Normalize cleans a plugin record in place: keys are trimmed and lowercased,
// names deduplicated, version back-references set and versions ordered newest
// first
func Normalize(p *catalog.Plugin) error {
	p.Slug = strings.ToLower(strings.TrimSpace(p.Slug))
	if p.Slug == "" {
		return fmt.Errorf("%w: missing slug", ErrInvalidPlugin)
	}
	p.Server = strings.ToLower(strings.TrimSpace(p.Server))
	if p.Server == "" {
		p.Server = DefaultServer
	}
	if strings.TrimSpace(p.PluginName) == "" {
		p.PluginName = p.Slug
	}
	p.Authors = uniqueNames(p.Authors)
	p.Categories = uniqueNames(p.Categories)

	for i := range p.Versions {
		v := &p.Versions[i]
		v.Version = strings.TrimSpace(v.Version)
		if v.Version == "" {
			return fmt.Errorf("%w: %s/%s has a version without a name", ErrInvalidPlugin, p.Server, p.Slug)
		}
		v.Slug = p.Slug
	}
	SortVersions(p.Versions)
	return nil
}

// SortVersions orders versions newest first: by release date, then by version
// number
func SortVersions(versions []catalog.Version) {
	sort.SliceStable(versions, func(i, j int) bool {
		a, b := versions[i], versions[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		return CompareVersions(a.Version, b.Version) > 0
	})
}

// CompareVersions compares two version strings. Semantic versions compare
// numerically and sort above anything that does not parse; the rest compare
// lexically.
//
//	-1 if a < b
//	 0 if a == b
//	 1 if a > b
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	default:
		return strings.Compare(a, b)
	}
}

func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
