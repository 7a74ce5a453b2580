package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bukget/pkg/catalog"
	"github.com/platinummonkey/bukget/pkg/httputil"
	"github.com/platinummonkey/bukget/pkg/observability"
	"github.com/platinummonkey/bukget/pkg/sanitize"
	"github.com/platinummonkey/bukget/pkg/stats"
)

// maxBodyBytes bounds POST search bodies
const maxBodyBytes = 1 << 20

// DownloadMirror serves mirrored plugin files. The boolean is false when the
// file has not been mirrored.
type DownloadMirror interface {
	DownloadURL(ctx context.Context, server, slug string, v catalog.Version) (string, bool, error)
}

// DownloadRecorder records a resolved download
type DownloadRecorder interface {
	Record(ctx context.Context, server, slug, version string) error
}

// Server represents our API server
type Server struct {
	router    *mux.Router
	handler   http.Handler
	catalog   *catalog.Service
	stats     *stats.Service
	recorder  DownloadRecorder
	mirror    DownloadMirror
	metrics   *observability.Metrics
	logger    *observability.Logger
	sanitizer *sanitize.Sanitizer
	tracing   string
}

// Option configures a Server
type Option func(*Server)

// WithStats serves /stats and records downloads through svc
func WithStats(svc *stats.Service) Option {
	return func(s *Server) {
		s.stats = svc
		if svc != nil {
			s.recorder = svc
		}
	}
}

// WithRecorder overrides the download recorder
func WithRecorder(recorder DownloadRecorder) Option {
	return func(s *Server) { s.recorder = recorder }
}

// WithMirror redirects downloads to mirrored files when available
func WithMirror(mirror DownloadMirror) Option {
	return func(s *Server) { s.mirror = mirror }
}

// WithMetrics instruments routes and downloads
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) { s.metrics = metrics }
}

// WithLogger sets the request logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithTracing wraps the server in otelhttp spans for service
func WithTracing(service string) Option {
	return func(s *Server) { s.tracing = service }
}

// NewServer creates a new API server
func NewServer(svc *catalog.Service, opts ...Option) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		catalog:   svc,
		sanitizer: sanitize.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s.setupRoutes()

	middlewares := []func(http.Handler) http.Handler{httputil.RequestIDMiddleware}
	if s.tracing != "" {
		middlewares = append(middlewares, observability.TracingMiddleware(s.tracing))
	}
	middlewares = append(middlewares,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware,
		httputil.JSONContentTypeMiddleware,
		httputil.CORSMiddleware([]string{"*"}),
		httputil.MaxBytesMiddleware(maxBodyBytes),
		trimTrailingSlash,
	)
	s.handler = httputil.Chain(middlewares...)(s.router)

	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}
	s.router.Use(s.sanitizer.Middleware)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.registerGateway()

	NewV1Handlers(s).RegisterRoutes(s.router.PathPrefix("/1").Subrouter())
	NewV2Handlers(s).RegisterRoutes(s.router.PathPrefix("/2").Subrouter())
	NewV3Handlers(s).RegisterRoutes(s.router.PathPrefix("/3").Subrouter())

	if s.stats != nil {
		stats.NewHandlers(s.stats, s.catalog).RegisterRoutes(s.router.PathPrefix("/stats").Subrouter())
	}

	syncHandlers := NewSyncHandlers()
	syncHandlers.RegisterRoutes(s.router.PathPrefix("/sync").Subrouter())
	syncHandlers.RegisterRoutes(s.router.PathPrefix("/update").Subrouter())
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the route table, mainly for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// trimTrailingSlash serves "/x/" as "/x" so every route accepts an optional
// trailing slash
func trimTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := r.URL.Path; len(p) > 1 && strings.HasSuffix(p, "/") {
			u := *r.URL
			u.Path = strings.TrimRight(p, "/")
			if u.Path == "" {
				u.Path = "/"
			}
			u.RawPath = ""
			r2 := r.Clone(r.Context())
			r2.URL = &u
			r = r2
		}
		next.ServeHTTP(w, r)
	})
}
