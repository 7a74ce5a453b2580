package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/bukget/pkg/catalog"
)

// memoryRepository serves a fixed catalog from memory
type memoryRepository struct {
	plugins     []catalog.Plugin
	generations []catalog.Generation
	err         error
}

func (m *memoryRepository) ListPlugins(ctx context.Context, q catalog.PluginQuery) ([]catalog.Plugin, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []catalog.Plugin
	for _, p := range m.plugins {
		if q.Server != "" && p.Server != q.Server {
			continue
		}
		if q.Author != "" && !hasString(p.Authors, q.Author) {
			continue
		}
		if q.Category != "" && !hasString(p.Categories, q.Category) {
			continue
		}
		if !q.WithVersions {
			p.Versions = nil
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryRepository) GetPlugin(ctx context.Context, server, slug string) (*catalog.Plugin, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.plugins {
		if p.Slug == slug && (server == "" || p.Server == server) {
			p.Versions = append([]catalog.Version(nil), p.Versions...)
			return &p, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (m *memoryRepository) ListAuthors(ctx context.Context) ([]catalog.Author, error) {
	if m.err != nil {
		return nil, m.err
	}
	counts := map[string]int64{}
	for _, p := range m.plugins {
		for _, a := range p.Authors {
			counts[a]++
		}
	}
	out := make([]catalog.Author, 0, len(counts))
	for name, n := range counts {
		out = append(out, catalog.Author{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRepository) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	if m.err != nil {
		return nil, m.err
	}
	counts := map[string]int64{}
	for _, p := range m.plugins {
		for _, c := range p.Categories {
			counts[c]++
		}
	}
	out := make([]catalog.Category, 0, len(counts))
	for name, n := range counts {
		out = append(out, catalog.Category{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRepository) ListGenerations(ctx context.Context, limit int) ([]catalog.Generation, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit > len(m.generations) {
		limit = len(m.generations)
	}
	return m.generations[:limit], nil
}

func hasString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func testCatalog() *memoryRepository {
	return &memoryRepository{
		plugins: []catalog.Plugin{
			{
				Slug: "essentials", PluginName: "Essentials", Description: "The essential plugin",
				Server: "bukkit", Authors: []string{"snowleo"}, Categories: []string{"Admin Tools", "Chat Related"},
				DBOPage: "http://dev.bukkit.org/server-mods/essentials", Logo: "ess.png", Website: "http://ess3.net",
				Popularity: catalog.Popularity{Daily: 9, Weekly: 50, Monthly: 200},
				Versions: []catalog.Version{
					{Version: "2.9", Download: "http://dev.bukkit.org/media/files/ess-2.9.jar", Date: 300, MD5: "e1"},
				},
			},
			{
				Slug: "worldedit", PluginName: "WorldEdit", Description: "In-game map editor",
				Server: "bukkit", Authors: []string{"sk89q"}, Categories: []string{"Admin Tools", "World Editing"},
				DBOPage: "http://dev.bukkit.org/server-mods/worldedit", Logo: "we.png", Website: "http://sk89q.com",
				Popularity: catalog.Popularity{Daily: 4, Weekly: 20, Monthly: 80},
				Versions: []catalog.Version{
					{
						Version: "5.5", Download: "http://dev.bukkit.org/media/files/we-5.5.jar", Date: 200,
						MD5: "a1", Changelog: "fixes", Filename: "worldedit.jar", Slug: "worldedit",
						Commands: map[string]interface{}{"/wand": "gives a wand"},
					},
					{Version: "5.4", Download: "http://dev.bukkit.org/media/files/we-5.4.jar", Date: 100, MD5: "a0", Slug: "worldedit"},
				},
			},
			{
				Slug: "worldedit", PluginName: "WorldEdit", Description: "Spout port",
				Server: "spout", Authors: []string{"sk89q"}, Categories: []string{"World Editing"},
				Popularity: catalog.Popularity{Daily: 1},
				Versions: []catalog.Version{
					{Version: "1.0", Download: "http://spout.org/we-1.0.jar", Date: 150},
				},
			},
		},
		generations: []catalog.Generation{
			{ID: "gen-2", Timestamp: 2000, Parser: "bukkit", Type: "speedy", Changes: []catalog.Change{{Plugin: "worldedit", Version: "5.5"}}},
			{ID: "gen-1", Timestamp: 1000, Parser: "bukkit", Type: "full", Changes: []catalog.Change{}},
		},
	}
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *memoryRepository) {
	t.Helper()
	repo := testCatalog()
	return NewServer(catalog.NewService(repo), opts...), repo
}

func doRequest(t *testing.T, h http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	return doRequest(t, h, http.MethodGet, target, nil, "")
}

func postJSON(t *testing.T, h http.Handler, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doRequest(t, h, http.MethodPost, target, strings.NewReader(body), "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type recordedDownload struct {
	server, slug, version string
}

// fakeRecorder collects recorded downloads
type fakeRecorder struct {
	mu        sync.Mutex
	downloads []recordedDownload
}

func (f *fakeRecorder) Record(ctx context.Context, server, slug, version string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, recordedDownload{server, slug, version})
	return nil
}

func (f *fakeRecorder) recorded() []recordedDownload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedDownload(nil), f.downloads...)
}

// fakeMirror answers DownloadURL from fixed values
type fakeMirror struct {
	url string
	ok  bool
	err error
}

func (f *fakeMirror) DownloadURL(ctx context.Context, server, slug string, v catalog.Version) (string, bool, error) {
	return f.url, f.ok, f.err
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// keys returns the sorted keys of doc
func keys(doc map[string]interface{}) []string {
	out := make([]string, 0, len(doc))
	for k := range doc {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
