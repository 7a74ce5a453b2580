package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/bukget/pkg/catalog"
	"github.com/platinummonkey/bukget/pkg/httputil"
)

func TestV3GenInfo(t *testing.T) {
	server, _ := newTestServer(t)

	rec := get(t, server, "/3")
	require.Equal(t, http.StatusOK, rec.Code)
	gens := decode[[]catalog.Generation](t, rec)
	require.Len(t, gens, 1)
	assert.Equal(t, "gen-2", gens[0].ID)
	assert.Equal(t, []catalog.Change{{Plugin: "worldedit", Version: "5.5"}}, gens[0].Changes)

	rec = get(t, server, "/3/geninfo?size=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]catalog.Generation](t, rec), 2)
}

func TestV3ListPlugins(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name    string
		path    string
		servers []string
		slugs   []string
	}{
		{"all servers", "/3/plugins", []string{"bukkit", "bukkit", "spout"}, []string{"essentials", "worldedit", "worldedit"}},
		{"one server", "/3/plugins/spout", []string{"spout"}, []string{"worldedit"}},
		{"descending", "/3/plugins?sort=-slug", []string{"bukkit", "spout", "bukkit"}, []string{"worldedit", "worldedit", "essentials"}},
		{"by popularity", "/3/plugins?sort=popularity.daily", []string{"spout", "bukkit", "bukkit"}, []string{"worldedit", "worldedit", "essentials"}},
		{"unknown sort key keeps order", "/3/plugins?sort=nothing", []string{"bukkit", "bukkit", "spout"}, []string{"essentials", "worldedit", "worldedit"}},
		{"window", "/3/plugins?start=1&size=1", []string{"bukkit"}, []string{"worldedit"}},
		{"window past end", "/3/plugins?start=10&size=5", []string{}, []string{}},
		{"negative window ignored", "/3/plugins?start=-1&size=1", []string{"bukkit", "bukkit", "spout"}, []string{"essentials", "worldedit", "worldedit"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, server, tt.path)
			require.Equal(t, http.StatusOK, rec.Code)

			docs := decode[[]map[string]interface{}](t, rec)
			servers, slugs := []string{}, []string{}
			for _, doc := range docs {
				assert.Equal(t, []string{"description", "plugin_name", "server", "slug"}, keys(doc))
				servers = append(servers, doc["server"].(string))
				slugs = append(slugs, doc["slug"].(string))
			}
			assert.Equal(t, tt.servers, servers)
			assert.Equal(t, tt.slugs, slugs)
		})
	}
}

func TestV3PluginDetails(t *testing.T) {
	server, _ := newTestServer(t)

	rec := get(t, server, "/3/plugins/bukkit/worldedit")
	require.Equal(t, http.StatusOK, rec.Code)

	var plugin catalog.Plugin
	plugin = decode[catalog.Plugin](t, rec)
	assert.Equal(t, "worldedit", plugin.Slug)
	assert.Equal(t, "bukkit", plugin.Server)
	assert.Equal(t, "http://dev.bukkit.org/server-mods/worldedit", plugin.DBOPage)
	assert.Equal(t, catalog.Popularity{Daily: 4, Weekly: 20, Monthly: 80}, plugin.Popularity)
	require.Len(t, plugin.Versions, 2)
	assert.Equal(t, "fixes", plugin.Versions[0].Changelog)
	assert.Equal(t, map[string]interface{}{"/wand": "gives a wand"}, plugin.Versions[0].Commands)

	rec = get(t, server, "/3/plugins/bukkit/worldedit/5.4?fields=slug,versions.version,versions.date")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{
		"slug":     "worldedit",
		"versions": []interface{}{map[string]interface{}{"version": "5.4", "date": float64(100)}},
	}, decode[map[string]interface{}](t, rec))

	rec = get(t, server, "/3/plugins/bukkit/worldedit/9.9")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[catalog.Plugin](t, rec).Versions)

	rec = get(t, server, "/3/plugins/spout/essentials")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgPluginNotFound, decode[httputil.ErrorResponse](t, rec).Error)
}

func TestV3AuthorsAndCategories(t *testing.T) {
	server, _ := newTestServer(t)

	rec := get(t, server, "/3/authors")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []catalog.Author{{Name: "sk89q", Count: 2}, {Name: "snowleo", Count: 1}},
		decode[[]catalog.Author](t, rec))

	rec = get(t, server, "/3/authors?start=1&size=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []catalog.Author{{Name: "snowleo", Count: 1}}, decode[[]catalog.Author](t, rec))

	rec = get(t, server, "/3/categories")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []catalog.Category{
		{Name: "Admin Tools", Count: 2},
		{Name: "Chat Related", Count: 1},
		{Name: "World Editing", Count: 2},
	}, decode[[]catalog.Category](t, rec))
}

func TestV3AuthorAndCategoryPlugins(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name    string
		path    string
		servers []string
	}{
		{"author", "/3/authors/sk89q", []string{"bukkit", "spout"}},
		{"author on server", "/3/authors/spout/sk89q", []string{"spout"}},
		{"author window", "/3/authors/sk89q?start=1&size=1", []string{"spout"}},
		{"category", "/3/categories/World%20Editing", []string{"bukkit", "spout"}},
		{"category on server", "/3/categories/bukkit/Admin%20Tools", []string{"bukkit", "bukkit"}},
		{"known author without plugins on server", "/3/authors/spout/snowleo", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, server, tt.path)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			servers := []string{}
			for _, doc := range decode[[]map[string]interface{}](t, rec) {
				servers = append(servers, doc["server"].(string))
			}
			assert.Equal(t, tt.servers, servers)
		})
	}

	rec := get(t, server, "/3/authors/bukkit/nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgAuthorNotFound, decode[httputil.ErrorResponse](t, rec).Error)

	rec = get(t, server, "/3/categories/Nothing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgCategoryNotFound, decode[httputil.ErrorResponse](t, rec).Error)
}

func TestV3Search(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("get", func(t *testing.T) {
		rec := get(t, server, "/3/search/server/=/spout")
		require.Equal(t, http.StatusOK, rec.Code)
		docs := decode[[]map[string]interface{}](t, rec)
		require.Len(t, docs, 1)
		assert.Equal(t, "spout", docs[0]["server"])
	})

	t.Run("post combinators", func(t *testing.T) {
		rec := postJSON(t, server, "/3/search", `{
			"filters": [{"action": "or", "value": [
				{"field": "versions.version", "action": "=", "value": "2.9"},
				{"field": "versions.date", "action": "<", "value": 160}
			]}],
			"fields": ["slug", "server"],
			"sort": "-server"
		}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, []map[string]interface{}{
			{"slug": "worldedit", "server": "spout"},
			{"slug": "essentials", "server": "bukkit"},
			{"slug": "worldedit", "server": "bukkit"},
		}, decode[[]map[string]interface{}](t, rec))
	})

	t.Run("post window", func(t *testing.T) {
		rec := postJSON(t, server, "/3/search",
			`{"filters":[{"field":"categories","action":"exists"}],"fields":["slug"],"start":2,"size":1}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, []map[string]interface{}{{"slug": "worldedit"}}, decode[[]map[string]interface{}](t, rec))
	})

	t.Run("invalid", func(t *testing.T) {
		rec := postJSON(t, server, "/3/search", `{"filters":[{"field":"","action":"="}]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgInvalidSearch, decode[httputil.ErrorResponse](t, rec).Error)
	})
}
