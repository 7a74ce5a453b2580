package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bukget/pkg/catalog"
	"github.com/platinummonkey/bukget/pkg/httputil"
)

// V2Handlers serves the second API. Plugin listings are documents scoped to a
// server and details use the v2 envelope. Search is GET only.
type V2Handlers struct {
	s *Server
}

// NewV2Handlers creates the v2 handlers
func NewV2Handlers(s *Server) *V2Handlers {
	return &V2Handlers{s: s}
}

// RegisterRoutes registers v2 routes on a router mounted at /2
func (h *V2Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/plugins/{server}/{slug}/{version}/download", h.s.download).Methods("GET")
	r.HandleFunc("/authors", h.listAuthors).Methods("GET")
	r.HandleFunc("/author/{name}", h.authorPlugins).Methods("GET")
	r.HandleFunc("/categories", h.listCategories).Methods("GET")
	r.HandleFunc("/categories/{name}", h.categoryPlugins).Methods("GET")
	r.HandleFunc("/search/{field}/{action}/{value}", h.search).Methods("GET")
	r.HandleFunc("/{server}/plugins", h.listPlugins).Methods("GET")
	r.HandleFunc("/{server}/plugin/{slug}", h.pluginDetails).Methods("GET")
	r.HandleFunc("/{server}/plugin/{slug}/{version}", h.pluginDetails).Methods("GET")
}

// listPlugins handles GET /2/{server}/plugins
func (h *V2Handlers) listPlugins(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r, defaultV2Fields)
	docs, err := h.s.catalog.ListPlugins(r.Context(), httputil.PathVar(r, "server"), params.fields, params.sort)
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, catalog.Paginate(docs, params.window))
}

// pluginDetails handles GET /2/{server}/plugin/{slug}[/{version}]
func (h *V2Handlers) pluginDetails(w http.ResponseWriter, r *http.Request) {
	fields := catalog.ParseFields(r.URL.Query().Get("fields"))
	doc, err := h.s.catalog.PluginDetails(r.Context(), httputil.PathVar(r, "server"),
		httputil.PathVar(r, "slug"), httputil.PathVar(r, "version"), fields)
	if err != nil {
		writeCatalogError(w, r, err, msgPluginNotFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v2Shape.apply(doc))
}

// listAuthors handles GET /2/authors
func (h *V2Handlers) listAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := h.s.catalog.ListAuthors(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, authorNames(authors))
}

// authorPlugins handles GET /2/author/{name}
func (h *V2Handlers) authorPlugins(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r, "")
	docs, err := h.s.catalog.ListAuthorPlugins(r.Context(), "", httputil.PathVar(r, "name"), slugFields, params.sort)
	if err != nil {
		writeCatalogError(w, r, err, msgAuthorNotFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, slugs(catalog.Paginate(docs, params.window)))
}

// listCategories handles GET /2/categories
func (h *V2Handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.s.catalog.ListCategories(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, categoryNames(categories))
}

// categoryPlugins handles GET /2/categories/{name}
func (h *V2Handlers) categoryPlugins(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r, "")
	docs, err := h.s.catalog.ListCategoryPlugins(r.Context(), "", httputil.PathVar(r, "name"), slugFields, params.sort)
	if err != nil {
		writeCatalogError(w, r, err, msgCategoryNotFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, slugs(catalog.Paginate(docs, params.window)))
}

// search handles GET /2/search/{field}/{action}/{value}
func (h *V2Handlers) search(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r, defaultV2Fields)
	docs, err := h.s.search(r.Context(), "2", "", singleFilter(r), params)
	if err != nil {
		writeCatalogError(w, r, err, msgPluginNotFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, docs)
}
