package catalog

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryRepository is an in-memory Repository used by the service tests
type memoryRepository struct {
	plugins     []Plugin
	generations []Generation
	lastQuery   PluginQuery
	err         error
}

func (m *memoryRepository) ListPlugins(ctx context.Context, q PluginQuery) ([]Plugin, error) {
	m.lastQuery = q
	if m.err != nil {
		return nil, m.err
	}
	var out []Plugin
	for _, p := range m.plugins {
		if q.Server != "" && p.Server != q.Server {
			continue
		}
		if q.Author != "" && !contains(p.Authors, q.Author) {
			continue
		}
		if q.Category != "" && !contains(p.Categories, q.Category) {
			continue
		}
		if !q.WithVersions {
			p.Versions = nil
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryRepository) GetPlugin(ctx context.Context, server, slug string) (*Plugin, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.plugins {
		if p.Slug == slug && (server == "" || p.Server == server) {
			p.Versions = append([]Version(nil), p.Versions...)
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryRepository) ListAuthors(ctx context.Context) ([]Author, error) {
	counts := map[string]int64{}
	for _, p := range m.plugins {
		for _, a := range p.Authors {
			counts[a]++
		}
	}
	out := make([]Author, 0, len(counts))
	for name, n := range counts {
		out = append(out, Author{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRepository) ListCategories(ctx context.Context) ([]Category, error) {
	counts := map[string]int64{}
	for _, p := range m.plugins {
		for _, c := range p.Categories {
			counts[c]++
		}
	}
	out := make([]Category, 0, len(counts))
	for name, n := range counts {
		out = append(out, Category{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryRepository) ListGenerations(ctx context.Context, limit int) ([]Generation, error) {
	if limit > len(m.generations) {
		limit = len(m.generations)
	}
	return m.generations[:limit], nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func newTestService() (*Service, *memoryRepository) {
	repo := &memoryRepository{
		plugins: []Plugin{
			{
				Slug: "worldedit", PluginName: "WorldEdit", Server: "bukkit",
				Authors: []string{"sk89q"}, Categories: []string{"Admin Tools"},
				Popularity: Popularity{Daily: 4},
				Versions: []Version{
					{Version: "5.5", Download: "http://dl/we-5.5.jar", Date: 200},
					{Version: "5.4", Download: "http://dl/we-5.4.jar", Date: 100},
				},
			},
			{
				Slug: "essentials", PluginName: "Essentials", Server: "bukkit",
				Authors: []string{"snowleo"}, Categories: []string{"Admin Tools", "Chat Related"},
				Popularity: Popularity{Daily: 9},
				Versions:   []Version{{Version: "2.0", Download: "http://dl/ess-2.0.jar", Date: 50}},
			},
			{
				Slug: "orphan", PluginName: "Orphan", Server: "bukkit",
				Authors: []string{"ghost"},
			},
		},
		generations: []Generation{
			{ID: "g3", Timestamp: 3},
			{ID: "g2", Timestamp: 2},
			{ID: "g1", Timestamp: 1},
		},
	}
	return NewService(repo), repo
}

func TestServiceListPlugins(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	docs, err := svc.ListPlugins(ctx, "bukkit", Fields{"slug"}, DefaultSort)
	require.NoError(t, err)
	assert.Equal(t, []string{"essentials", "orphan", "worldedit"}, slugs(docs))
	assert.False(t, repo.lastQuery.WithVersions)
	assert.Equal(t, Document{"slug": "essentials"}, docs[0])

	docs, err = svc.ListPlugins(ctx, "", Fields{"slug", "versions.version"}, "-popularity.daily")
	require.NoError(t, err)
	assert.True(t, repo.lastQuery.WithVersions)
	assert.Equal(t, []string{"essentials", "worldedit", "orphan"}, slugs(docs))

	docs, err = svc.ListPlugins(ctx, "sponge", nil, DefaultSort)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestServiceListPluginsError(t *testing.T) {
	svc, repo := newTestService()
	repo.err = errors.New("boom")

	_, err := svc.ListPlugins(context.Background(), "", nil, DefaultSort)
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

func TestServicePluginDetails(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name         string
		server       string
		slug         string
		version      string
		wantVersions []interface{}
		wantErr      error
	}{
		{name: "all versions", server: "bukkit", slug: "worldedit", wantVersions: []interface{}{"5.5", "5.4"}},
		{name: "any server", slug: "worldedit", wantVersions: []interface{}{"5.5", "5.4"}},
		{name: "latest", server: "bukkit", slug: "worldedit", version: "latest", wantVersions: []interface{}{"5.5"}},
		{name: "latest any case", server: "bukkit", slug: "worldedit", version: "LaTeSt", wantVersions: []interface{}{"5.5"}},
		{name: "exact version", server: "bukkit", slug: "worldedit", version: "5.4", wantVersions: []interface{}{"5.4"}},
		{name: "unknown version", server: "bukkit", slug: "worldedit", version: "9.9", wantVersions: nil},
		{name: "unknown plugin", server: "bukkit", slug: "nope", wantErr: ErrNotFound},
		{name: "wrong server", server: "sponge", slug: "worldedit", wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := svc.PluginDetails(ctx, tt.server, tt.slug, tt.version, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.slug, doc["slug"])
			vals, _ := doc.Lookup("versions.version")
			assert.Equal(t, tt.wantVersions, vals)
		})
	}
}

func TestServicePluginDetailsProjection(t *testing.T) {
	svc, _ := newTestService()

	doc, err := svc.PluginDetails(context.Background(), "bukkit", "worldedit", "", Fields{"plugin_name", "versions.download"})
	require.NoError(t, err)
	assert.Equal(t, Document{
		"plugin_name": "WorldEdit",
		"versions": []interface{}{
			map[string]interface{}{"download": "http://dl/we-5.5.jar"},
			map[string]interface{}{"download": "http://dl/we-5.4.jar"},
		},
	}, doc)
}

func TestServiceResolveDownload(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	v, err := svc.ResolveDownload(ctx, "bukkit", "worldedit", "latest")
	require.NoError(t, err)
	assert.Equal(t, "http://dl/we-5.5.jar", v.Download)

	v, err = svc.ResolveDownload(ctx, "bukkit", "worldedit", "5.4")
	require.NoError(t, err)
	assert.Equal(t, "http://dl/we-5.4.jar", v.Download)

	_, err = svc.ResolveDownload(ctx, "bukkit", "worldedit", "1.0")
	assert.ErrorIs(t, err, ErrVersionNotFound)

	_, err = svc.ResolveDownload(ctx, "bukkit", "orphan", "latest")
	assert.ErrorIs(t, err, ErrVersionNotFound)

	_, err = svc.ResolveDownload(ctx, "bukkit", "missing", "latest")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceAuthorsAndCategories(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	authors, err := svc.ListAuthors(ctx)
	require.NoError(t, err)
	assert.Len(t, authors, 3)

	docs, err := svc.ListAuthorPlugins(ctx, "", "sk89q", Fields{"slug"}, DefaultSort)
	require.NoError(t, err)
	assert.Equal(t, []string{"worldedit"}, slugs(docs))

	// known author with nothing on this server is an empty list
	docs, err = svc.ListAuthorPlugins(ctx, "sponge", "sk89q", nil, DefaultSort)
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = svc.ListAuthorPlugins(ctx, "", "nobody", nil, DefaultSort)
	assert.ErrorIs(t, err, ErrNotFound)

	categories, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Category{{Name: "Admin Tools", Count: 2}, {Name: "Chat Related", Count: 1}}, categories)

	docs, err = svc.ListCategoryPlugins(ctx, "bukkit", "Admin Tools", Fields{"slug"}, "-slug")
	require.NoError(t, err)
	assert.Equal(t, []string{"worldedit", "essentials"}, slugs(docs))

	_, err = svc.ListCategoryPlugins(ctx, "", "Nope", nil, DefaultSort)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceSearch(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	docs, err := svc.Search(ctx, "", []Filter{{Field: "versions.version", Action: "=", Value: "2.0"}}, Fields{"slug"}, DefaultSort)
	require.NoError(t, err)
	assert.True(t, repo.lastQuery.WithVersions)
	assert.Equal(t, []string{"essentials"}, slugs(docs))
	assert.Equal(t, Document{"slug": "essentials"}, docs[0])

	docs, err = svc.Search(ctx, "bukkit", []Filter{{Field: "popularity.daily", Action: ">", Value: "0"}}, Fields{"slug"}, "-popularity.daily")
	require.NoError(t, err)
	assert.False(t, repo.lastQuery.WithVersions)
	assert.Equal(t, []string{"essentials", "worldedit"}, slugs(docs))

	_, err = svc.Search(ctx, "", []Filter{{Field: "slug", Action: "bogus"}}, nil, DefaultSort)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestServiceListGenInfo(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	gens, err := svc.ListGenInfo(ctx, 0)
	require.NoError(t, err)
	require.Len(t, gens, 1)
	assert.Equal(t, "g3", gens[0].ID)

	gens, err = svc.ListGenInfo(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, gens, 2)

	gens, err = svc.ListGenInfo(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, gens, 3)
}
