package api

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/bukget/pkg/catalog"
	"github.com/platinummonkey/bukget/pkg/httputil"
)

func TestV1GenInfo(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		path string
		want []string
	}{
		{"/1", []string{"gen-2"}},
		{"/1/geninfo", []string{"gen-2"}},
		{"/1/geninfo?size=2", []string{"gen-2", "gen-1"}},
		{"/1/geninfo?size=10", []string{"gen-2", "gen-1"}},
		{"/1/geninfo?size=bogus", []string{"gen-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, server, tt.path)
			require.Equal(t, http.StatusOK, rec.Code)

			gens := decode[[]catalog.Generation](t, rec)
			ids := make([]string, len(gens))
			for i, g := range gens {
				ids[i] = g.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestV1ListPlugins(t *testing.T) {
	server, _ := newTestServer(t)

	rec := get(t, server, "/1/plugins")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"essentials", "worldedit"}, decode[[]string](t, rec))
}

func TestV1PluginDetails(t *testing.T) {
	server, _ := newTestServer(t)

	rec := get(t, server, "/1/plugin/worldedit")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "worldedit", doc["name"])
	assert.Equal(t, "In-game map editor", doc["desc"])
	assert.Equal(t, "http://dev.bukkit.org/server-mods/worldedit", doc["bukkitdev_link"])
	assert.Equal(t, "WorldEdit", doc["plugin_name"])
	for _, gone := range []string{"slug", "description", "dbo_page", "logo", "logo_full", "server", "website"} {
		assert.NotContains(t, doc, gone)
	}

	versions := doc["versions"].([]interface{})
	require.Len(t, versions, 2)
	latest := versions[0].(map[string]interface{})
	assert.Equal(t, "5.5", latest["name"])
	assert.Equal(t, "5.5", latest["version"])
	assert.Equal(t, "http://dev.bukkit.org/media/files/we-5.5.jar", latest["dl_link"])
	assert.Equal(t, "worldedit.jar", latest["filename"])
	for _, gone := range []string{"download", "commands", "permissions", "changelog", "md5", "slug"} {
		assert.NotContains(t, latest, gone)
	}
}

func TestV1PluginVersion(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name     string
		path     string
		versions []string
	}{
		{"exact", "/1/plugin/worldedit/5.4", []string{"5.4"}},
		{"latest", "/1/plugin/worldedit/latest", []string{"5.5"}},
		{"latest any case", "/1/plugin/worldedit/LATEST", []string{"5.5"}},
		{"unknown version", "/1/plugin/worldedit/9.9", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, server, tt.path)
			require.Equal(t, http.StatusOK, rec.Code)

			doc := decode[map[string]interface{}](t, rec)
			got := []string{}
			for _, v := range doc["versions"].([]interface{}) {
				got = append(got, v.(map[string]interface{})["name"].(string))
			}
			assert.Equal(t, tt.versions, got)
		})
	}
}

func TestV1PluginNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	// v1 only knows bukkit
	for _, path := range []string{"/1/plugin/missing", "/1/plugin/missing/1.0"} {
		rec := get(t, server, path)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, msgPluginNotFound, decode[httputil.ErrorResponse](t, rec).Error)
	}
}

func TestV1AuthorsAndCategories(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name string
		path string
		want []string
	}{
		{"authors", "/1/authors", []string{"sk89q", "snowleo"}},
		{"author plugins", "/1/author/snowleo", []string{"essentials"}},
		{"author across servers", "/1/author/sk89q", []string{"worldedit", "worldedit"}},
		{"categories", "/1/categories", []string{"Admin Tools", "Chat Related", "World Editing"}},
		{"category plugins", "/1/categories/Admin%20Tools", []string{"essentials", "worldedit"}},
		{"category window", "/1/categories/Admin%20Tools?start=1&size=1", []string{"worldedit"}},
		{"category sort", "/1/categories/Admin%20Tools?sort=-slug", []string{"worldedit", "essentials"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, server, tt.path)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, decode[[]string](t, rec))
		})
	}
}

func TestV1UnknownAuthorOrCategory(t *testing.T) {
	server, _ := newTestServer(t)

	rec := get(t, server, "/1/author/nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgAuthorNotFound, decode[httputil.ErrorResponse](t, rec).Error)

	rec = get(t, server, "/1/categories/Nothing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgCategoryNotFound, decode[httputil.ErrorResponse](t, rec).Error)
}

func TestV1Search(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name string
		path string
		want []string
	}{
		{"equal", "/1/search/slug/=/essentials", []string{"essentials"}},
		{"like", "/1/search/plugin_name/like/edit", []string{"worldedit", "worldedit"}},
		{"version field", "/1/search/versions.version/=/5.4", []string{"worldedit"}},
		{"numeric", "/1/search/popularity.daily/%3E/3?sort=-popularity.daily", []string{"essentials", "worldedit"}},
		{"no match", "/1/search/slug/=/nothing", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, server, tt.path)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, decode[[]string](t, rec))
		})
	}
}

func TestV1SearchInvalid(t *testing.T) {
	server, _ := newTestServer(t)

	rec := get(t, server, "/1/search/slug/bogus/essentials")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInvalidSearch, decode[httputil.ErrorResponse](t, rec).Error)
}

func TestV1SearchPost(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("json body", func(t *testing.T) {
		rec := postJSON(t, server, "/1/search",
			`{"filters":[{"field":"categories","action":"=","value":"Admin Tools"},{"field":"authors","action":"in","value":["sk89q"]}]}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, []string{"worldedit"}, decode[[]string](t, rec))
	})

	t.Run("json body window", func(t *testing.T) {
		rec := postJSON(t, server, "/1/search",
			`{"filters":[{"field":"slug","action":"like","value":"."}],"sort":"-slug","start":0,"size":2}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, []string{"worldedit", "worldedit"}, decode[[]string](t, rec))
	})

	t.Run("form body", func(t *testing.T) {
		form := url.Values{"filters": {`[{"field":"server","action":"=","value":"spout"}]`}}
		rec := doRequest(t, server, http.MethodPost, "/1/search",
			strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, []string{"worldedit"}, decode[[]string](t, rec))
	})

	t.Run("invalid", func(t *testing.T) {
		bodies := []struct {
			body        string
			contentType string
		}{
			{`{"filters":`, "application/json"},
			{`{"filters":[]}`, "application/json"},
			{`{"filters":[{"field":"slug","action":"like","value":"("}]}`, "application/json"},
			{"", "application/x-www-form-urlencoded"},
			{"filters=not-json", "application/x-www-form-urlencoded"},
			{`{"filters":[{"field":"slug","action":"equals","value":"worldedit"}]}`, "application/json"},
			{"filters=" + url.QueryEscape(`[{"field":"slug","action":"between","value":"a"}]`), "application/x-www-form-urlencoded"},
		}
		for _, b := range bodies {
			rec := doRequest(t, server, http.MethodPost, "/1/search", strings.NewReader(b.body), b.contentType)
			assert.Equal(t, http.StatusBadRequest, rec.Code, b.body)
			assert.JSONEq(t, `{"error":"invalid search"}`, rec.Body.String(), b.body)
		}
	})
}
