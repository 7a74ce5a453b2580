package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bukget/pkg/httputil"
)

// SyncHandlers holds the write endpoints used by the catalog generator. They are
// not implemented; catalogs are loaded with bukget-import instead.
type SyncHandlers struct{}

// NewSyncHandlers creates the sync handlers
func NewSyncHandlers() *SyncHandlers {
	return &SyncHandlers{}
}

// RegisterRoutes registers sync routes on a router mounted at /sync or /update
func (h *SyncHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/login", h.notImplemented).Methods("POST")
	r.HandleFunc("/plugin", h.notImplemented).Methods("PUT")
	r.HandleFunc("/gen", h.notImplemented).Methods("PUT")
}

func (h *SyncHandlers) notImplemented(w http.ResponseWriter, r *http.Request) {
	httputil.WriteNotImplemented(w)
}
