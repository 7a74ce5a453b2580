package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bukget/pkg/catalog"
	"github.com/platinummonkey/bukget/pkg/httputil"
)

// V1Handlers serves the original bukkit-only API. Listings return bare slugs or
// names and plugin documents use the v1 envelope.
type V1Handlers struct {
	s *Server
}

// NewV1Handlers creates the v1 handlers
func NewV1Handlers(s *Server) *V1Handlers {
	return &V1Handlers{s: s}
}

// RegisterRoutes registers v1 routes on a router mounted at /1
func (h *V1Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.genInfo).Methods("GET")
	r.HandleFunc("/geninfo", h.genInfo).Methods("GET")
	r.HandleFunc("/plugins", h.listPlugins).Methods("GET")
	r.HandleFunc("/plugin/{slug}", h.pluginDetails).Methods("GET")
	r.HandleFunc("/plugin/{slug}/{version}", h.pluginDetails).Methods("GET")
	r.HandleFunc("/plugins/{server}/{slug}/{version}/download", h.s.download).Methods("GET")
	r.HandleFunc("/authors", h.listAuthors).Methods("GET")
	r.HandleFunc("/author/{name}", h.authorPlugins).Methods("GET")
	r.HandleFunc("/categories", h.listCategories).Methods("GET")
	r.HandleFunc("/categories/{name}", h.categoryPlugins).Methods("GET")
	r.HandleFunc("/search", h.searchPost).Methods("POST")
	r.HandleFunc("/search/{field}/{action}/{value}", h.search).Methods("GET")
}

// genInfo handles GET /1/geninfo?size=N
func (h *V1Handlers) genInfo(w http.ResponseWriter, r *http.Request) {
	gens, err := h.s.catalog.ListGenInfo(r.Context(), parseSize(r))
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, gens)
}

// listPlugins handles GET /1/plugins
func (h *V1Handlers) listPlugins(w http.ResponseWriter, r *http.Request) {
	docs, err := h.s.catalog.ListPlugins(r.Context(), defaultServer, slugFields, defaultSort)
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, slugs(docs))
}

// pluginDetails handles GET /1/plugin/{slug}[/{version}]
func (h *V1Handlers) pluginDetails(w http.ResponseWriter, r *http.Request) {
	doc, err := h.s.catalog.PluginDetails(r.Context(), defaultServer,
		httputil.PathVar(r, "slug"), httputil.PathVar(r, "version"), nil)
	if err != nil {
		writeCatalogError(w, r, err, msgPluginNotFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v1Shape.apply(doc))
}

// listAuthors handles GET /1/authors
func (h *V1Handlers) listAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := h.s.catalog.ListAuthors(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, authorNames(authors))
}

// authorPlugins handles GET /1/author/{name}
func (h *V1Handlers) authorPlugins(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r, "")
	docs, err := h.s.catalog.ListAuthorPlugins(r.Context(), "", httputil.PathVar(r, "name"), slugFields, params.sort)
	if err != nil {
		writeCatalogError(w, r, err, msgAuthorNotFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, slugs(catalog.Paginate(docs, params.window)))
}

// listCategories handles GET /1/categories
func (h *V1Handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.s.catalog.ListCategories(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, categoryNames(categories))
}

// categoryPlugins handles GET /1/categories/{name}
func (h *V1Handlers) categoryPlugins(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r, "")
	docs, err := h.s.catalog.ListCategoryPlugins(r.Context(), "", httputil.PathVar(r, "name"), slugFields, params.sort)
	if err != nil {
		writeCatalogError(w, r, err, msgCategoryNotFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, slugs(catalog.Paginate(docs, params.window)))
}

// search handles GET /1/search/{field}/{action}/{value}
func (h *V1Handlers) search(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r, "")
	h.respondSearch(w, r, singleFilter(r), params)
}

// searchPost handles POST /1/search
func (h *V1Handlers) searchPost(w http.ResponseWriter, r *http.Request) {
	filters, params, err := parseSearchBody(r, "")
	if err != nil {
		h.s.metrics.RecordSearch("1", "invalid")
		writeCatalogError(w, r, err, msgPluginNotFound)
		return
	}
	h.respondSearch(w, r, filters, params)
}

func (h *V1Handlers) respondSearch(w http.ResponseWriter, r *http.Request, filters []catalog.Filter, params listParams) {
	params.fields = slugFields
	docs, err := h.s.search(r.Context(), "1", "", filters, params)
	if err != nil {
		writeCatalogError(w, r, err, msgPluginNotFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, slugs(docs))
}
