package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/platinummonkey/bukget/pkg/async"
	"github.com/platinummonkey/bukget/pkg/catalog"
	"github.com/platinummonkey/bukget/pkg/httputil"
	"github.com/platinummonkey/bukget/pkg/observability"
)

const recordTimeout = 5 * time.Second

// Error messages
const (
	msgPluginNotFound   = "could not find plugin"
	msgVersionNotFound  = "could not find version"
	msgAuthorNotFound   = "could not find author"
	msgCategoryNotFound = "could not find category"
	msgInvalidSearch    = "invalid search"
)

// writeCatalogError maps catalog errors to responses. notFound is the message
// for ErrNotFound.
func writeCatalogError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, catalog.ErrVersionNotFound):
		httputil.WriteNotFoundError(w, msgVersionNotFound)
	case errors.Is(err, catalog.ErrNotFound):
		httputil.WriteNotFoundError(w, notFound)
	case errors.Is(err, catalog.ErrInvalidQuery):
		httputil.WriteBadRequest(w, msgInvalidSearch)
	default:
		httputil.WriteInternalError(w, r, err)
	}
}

// download redirects to the file of {server}/{slug}/{version}, preferring the
// mirror, and records the download in the background
func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	server := httputil.PathVar(r, "server")
	slug := httputil.PathVar(r, "slug")
	version := httputil.PathVar(r, "version")

	v, err := s.catalog.ResolveDownload(r.Context(), server, slug, version)
	if err != nil {
		writeCatalogError(w, r, err, msgPluginNotFound)
		return
	}

	location, target := v.Download, "origin"
	if s.mirror != nil {
		url, ok, err := s.mirror.DownloadURL(r.Context(), server, slug, v)
		switch {
		case err != nil:
			observability.FromContext(r.Context()).WithError(err).Warn("Mirror lookup failed, using origin")
		case ok:
			location, target = url, "mirror"
		}
	}
	if location == "" {
		httputil.WriteNotFoundError(w, msgVersionNotFound)
		return
	}

	s.metrics.RecordDownload(server, target)
	if s.recorder != nil {
		async.SafeGo(r.Context(), recordTimeout, "record download", func(ctx context.Context) error {
			return s.recorder.Record(ctx, server, slug, v.Version)
		})
	}

	httputil.WriteRedirect(w, location)
}

// search runs filters for one API version and records the outcome
func (s *Server) search(ctx context.Context, apiVersion, server string, filters []catalog.Filter, params listParams) ([]catalog.Document, error) {
	docs, err := s.catalog.Search(ctx, server, filters, params.fields, params.sort)
	switch {
	case errors.Is(err, catalog.ErrInvalidQuery):
		s.metrics.RecordSearch(apiVersion, "invalid")
	case err != nil:
		s.metrics.RecordSearch(apiVersion, "error")
	default:
		s.metrics.RecordSearch(apiVersion, "ok")
	}
	if err != nil {
		return nil, err
	}
	return catalog.Paginate(docs, params.window), nil
}

func authorNames(authors []catalog.Author) []string {
	names := make([]string, len(authors))
	for i, a := range authors {
		names[i] = a.Name
	}
	return names
}

func categoryNames(categories []catalog.Category) []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names
}
