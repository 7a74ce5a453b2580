package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bukget/pkg/catalog"
	"github.com/platinummonkey/bukget/pkg/httputil"
)

// V3Handlers serves the native API. Documents are returned as stored, every
// listing takes fields, start, size and sort, and any route may be narrowed to
// a server.
type V3Handlers struct {
	s *Server
}

// NewV3Handlers creates the v3 handlers
func NewV3Handlers(s *Server) *V3Handlers {
	return &V3Handlers{s: s}
}

// RegisterRoutes registers v3 routes on a router mounted at /3
func (h *V3Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.genInfo).Methods("GET")
	r.HandleFunc("/geninfo", h.genInfo).Methods("GET")

	r.HandleFunc("/plugins", h.listPlugins).Methods("GET")
	r.HandleFunc("/plugins/{server}", h.listPlugins).Methods("GET")
	r.HandleFunc("/plugins/{server}/{slug}/{version}/download", h.s.download).Methods("GET")
	r.HandleFunc("/plugins/{server}/{slug}", h.pluginDetails).Methods("GET")
	r.HandleFunc("/plugins/{server}/{slug}/{version}", h.pluginDetails).Methods("GET")

	r.HandleFunc("/authors", h.listAuthors).Methods("GET")
	r.HandleFunc("/authors/{name}", h.authorPlugins).Methods("GET")
	r.HandleFunc("/authors/{server}/{name}", h.authorPlugins).Methods("GET")

	r.HandleFunc("/categories", h.listCategories).Methods("GET")
	r.HandleFunc("/categories/{name}", h.categoryPlugins).Methods("GET")
	r.HandleFunc("/categories/{server}/{name}", h.categoryPlugins).Methods("GET")

	r.HandleFunc("/search", h.searchPost).Methods("POST")
	r.HandleFunc("/search/{field}/{action}/{value}", h.search).Methods("GET")
}

// genInfo handles GET /3/geninfo?size=N
func (h *V3Handlers) genInfo(w http.ResponseWriter, r *http.Request) {
	gens, err := h.s.catalog.ListGenInfo(r.Context(), parseSize(r))
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, gens)
}

// listPlugins handles GET /3/plugins[/{server}]
func (h *V3Handlers) listPlugins(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r, defaultV3Fields)
	docs, err := h.s.catalog.ListPlugins(r.Context(), httputil.PathVar(r, "server"), params.fields, params.sort)
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, catalog.Paginate(docs, params.window))
}

// pluginDetails handles GET /3/plugins/{server}/{slug}[/{version}]
func (h *V3Handlers) pluginDetails(w http.ResponseWriter, r *http.Request) {
	fields := catalog.ParseFields(r.URL.Query().Get("fields"))
	doc, err := h.s.catalog.PluginDetails(r.Context(), httputil.PathVar(r, "server"),
		httputil.PathVar(r, "slug"), httputil.PathVar(r, "version"), fields)
	if err != nil {
		writeCatalogError(w, r, err, msgPluginNotFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

// listAuthors handles GET /3/authors
func (h *V3Handlers) listAuthors(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r, "")
	authors, err := h.s.catalog.ListAuthors(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, catalog.Paginate(authors, params.window))
}

// authorPlugins handles GET /3/authors[/{server}]/{name}
func (h *V3Handlers) authorPlugins(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r, defaultV3Fields)
	docs, err := h.s.catalog.ListAuthorPlugins(r.Context(), httputil.PathVar(r, "server"),
		httputil.PathVar(r, "name"), params.fields, params.sort)
	if err != nil {
		writeCatalogError(w, r, err, msgAuthorNotFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, catalog.Paginate(docs, params.window))
}

// listCategories handles GET /3/categories
func (h *V3Handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r, "")
	categories, err := h.s.catalog.ListCategories(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, catalog.Paginate(categories, params.window))
}

// categoryPlugins handles GET /3/categories[/{server}]/{name}
func (h *V3Handlers) categoryPlugins(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r, defaultV3Fields)
	docs, err := h.s.catalog.ListCategoryPlugins(r.Context(), httputil.PathVar(r, "server"),
		httputil.PathVar(r, "name"), params.fields, params.sort)
	if err != nil {
		writeCatalogError(w, r, err, msgCategoryNotFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, catalog.Paginate(docs, params.window))
}

// search handles GET /3/search/{field}/{action}/{value}
func (h *V3Handlers) search(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r, defaultV3Fields)
	h.respondSearch(w, r, singleFilter(r), params)
}

// searchPost handles POST /3/search
func (h *V3Handlers) searchPost(w http.ResponseWriter, r *http.Request) {
	filters, params, err := parseSearchBody(r, defaultV3Fields)
	if err != nil {
		h.s.metrics.RecordSearch("3", "invalid")
		writeCatalogError(w, r, err, msgPluginNotFound)
		return
	}
	h.respondSearch(w, r, filters, params)
}

func (h *V3Handlers) respondSearch(w http.ResponseWriter, r *http.Request, filters []catalog.Filter, params listParams) {
	docs, err := h.s.search(r.Context(), "3", "", filters, params)
	if err != nil {
		writeCatalogError(w, r, err, msgPluginNotFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, docs)
}
