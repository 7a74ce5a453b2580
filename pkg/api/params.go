package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/platinummonkey/bukget/pkg/catalog"
	"github.com/platinummonkey/bukget/pkg/httputil"
)

// Default parameter values
const (
	defaultSort     = "slug"
	defaultV2Fields = "slug,plugin_name,description"
	defaultV3Fields = "slug,plugin_name,description,server"
	defaultServer   = "bukkit"
)

var slugFields = catalog.Fields{"slug"}

// listParams are the projection, ordering and window options of a listing
type listParams struct {
	fields catalog.Fields
	sort   string
	window catalog.Window
}

// parseListParams reads fields, sort, start and size from the query string.
// defaultFields applies when fields is absent.
func parseListParams(r *http.Request, defaultFields string) listParams {
	q := r.URL.Query()

	fields := q.Get("fields")
	if fields == "" {
		fields = defaultFields
	}
	sort := strings.TrimSpace(q.Get("sort"))
	if sort == "" {
		sort = defaultSort
	}

	return listParams{
		fields: catalog.ParseFields(fields),
		sort:   sort,
		window: catalog.ParseWindow(q.Get("start"), q.Get("size")),
	}
}

// parseSize reads ?size as a non-negative int. Absent or invalid values give 0.
func parseSize(r *http.Request) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("size")))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// searchRequest is the body of POST /search
type searchRequest struct {
	Filters []catalog.Filter `json:"filters"`
	Fields  []string         `json:"fields"`
	Sort    string           `json:"sort"`
	Start   *int             `json:"start"`
	Size    *int             `json:"size"`
}

// parseSearchBody decodes a multi-filter search from a JSON body or from a form
// field "filters" holding a JSON list. Query string options fill whatever the
// body leaves out.
func parseSearchBody(r *http.Request, defaultFields string) ([]catalog.Filter, listParams, error) {
	params := parseListParams(r, defaultFields)

	var req searchRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), httputil.ContentTypeJSON) {
		if err := httputil.ParseJSON(r, &req); err != nil {
			return nil, params, fmt.Errorf("%w: %v", catalog.ErrInvalidQuery, err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return nil, params, fmt.Errorf("%w: %v", catalog.ErrInvalidQuery, err)
		}
		raw := r.PostForm.Get("filters")
		if raw == "" {
			return nil, params, fmt.Errorf("%w: missing filters", catalog.ErrInvalidQuery)
		}
		if err := json.Unmarshal([]byte(raw), &req.Filters); err != nil {
			return nil, params, fmt.Errorf("%w: %v", catalog.ErrInvalidQuery, err)
		}
		if fields := r.PostForm.Get("fields"); fields != "" {
			req.Fields = catalog.ParseFields(fields)
		}
		req.Sort = r.PostForm.Get("sort")
	}

	if len(req.Fields) > 0 {
		params.fields = req.Fields
	}
	if req.Sort != "" {
		params.sort = req.Sort
	}
	if req.Start != nil && req.Size != nil && *req.Start >= 0 && *req.Size >= 0 {
		params.window = catalog.NewWindow(*req.Start, *req.Size)
	}
	return req.Filters, params, nil
}

// singleFilter builds the filter of GET /search/{field}/{action}/{value}
func singleFilter(r *http.Request) []catalog.Filter {
	return []catalog.Filter{{
		Field:  httputil.PathVar(r, "field"),
		Action: httputil.PathVar(r, "action"),
		Value:  httputil.PathVar(r, "value"),
	}}
}

// slugs extracts the slug of every document
func slugs(docs []catalog.Document) []string {
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		if slug, ok := doc["slug"].(string); ok {
			out = append(out, slug)
		}
	}
	return out
}
