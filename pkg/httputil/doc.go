// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, docs)
//	httputil.WriteNotFoundError(w, "could not find plugin")
//	httputil.WriteBadRequest(w, "invalid search")
//	httputil.WriteInternalError(w, r, err) // logged, body is generic
//	httputil.WriteRedirect(w, version.Download)
//
// Every error body has the shape {"error": "..."}.
//
// # Request Parsing
//
//	days, ok := httputil.ParsePathIntOrError(w, r, "days")
//	server := httputil.PathVar(r, "server")
//	size, err := httputil.ParseQueryInt(r, "size", 0)
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.JSONContentTypeMiddleware,
//		httputil.CORSMiddleware([]string{"*"}),
//	)(router)
//
// RequestIDMiddleware must run before LoggingMiddleware so the request logger
// carries the id.
package httputil
