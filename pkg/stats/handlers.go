package stats

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bukget/pkg/catalog"
	"github.com/platinummonkey/bukget/pkg/httputil"
)

// Handlers serves the /stats endpoints
type Handlers struct {
	stats   *Service
	catalog *catalog.Service
}

// NewHandlers creates stats handlers. The catalog service is used to reject
// trends for plugins that do not exist.
func NewHandlers(stats *Service, catalog *catalog.Service) *Handlers {
	return &Handlers{stats: stats, catalog: catalog}
}

// RegisterRoutes registers the stats routes on a router mounted at /stats
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/todays_trends", h.todaysTrends).Methods("GET")
	r.HandleFunc("/trend/{days}", h.trend).Methods("GET")
	r.HandleFunc("/plugin/{server}/{slug}", h.pluginTrend).Methods("GET")
}

func (h *Handlers) todaysTrends(w http.ResponseWriter, r *http.Request) {
	trends, err := h.stats.TodaysTrends(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, trends)
}

func (h *Handlers) trend(w http.ResponseWriter, r *http.Request) {
	days, ok := httputil.ParsePathIntOrError(w, r, "days")
	if !ok {
		return
	}

	totals, err := h.stats.Trend(r.Context(), days)
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, totals)
}

func (h *Handlers) pluginTrend(w http.ResponseWriter, r *http.Request) {
	server := httputil.PathVar(r, "server")
	slug := httputil.PathVar(r, "slug")

	days, err := httputil.ParseQueryInt(r, "days", DefaultPluginTrendDays)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if h.catalog != nil {
		if _, err := h.catalog.PluginDetails(r.Context(), server, slug, "", catalog.Fields{"slug"}); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				httputil.WriteNotFoundError(w, "could not find plugin")
				return
			}
			httputil.WriteInternalError(w, r, err)
			return
		}
	}

	trend, err := h.stats.PluginTrend(r.Context(), server, slug, days)
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, trend)
}
