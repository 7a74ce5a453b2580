package api

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/bukget/pkg/httputil"
)

// registerGateway mounts the root redirect and the legacy /api and /api2 prefixes
func (s *Server) registerGateway() {
	s.router.HandleFunc("/", redirectTo("/3")).Methods("GET")

	s.router.HandleFunc("/api", legacyRedirect("/api", "/1/")).Methods("GET")
	s.router.HandleFunc("/api/{path:.*}", legacyRedirect("/api", "/1/")).Methods("GET")
	s.router.HandleFunc("/api2", legacyRedirect("/api2", "/2/")).Methods("GET")
	s.router.HandleFunc("/api2/{path:.*}", legacyRedirect("/api2", "/2/")).Methods("GET")
}

func redirectTo(location string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteRedirect(w, location)
	}
}

// legacyRedirect sends <from>/<path> to <to><path>. The path keeps its original
// escaping and the query string is passed through.
func legacyRedirect(from, to string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.EscapedPath(), from)
		location := to + strings.TrimPrefix(rest, "/")
		if r.URL.RawQuery != "" {
			location += "?" + r.URL.RawQuery
		}
		httputil.WriteRedirect(w, location)
	}
}
