// Package api provides the HTTP REST API server for the bukget plugin catalog.
//
// # Overview
//
// Three incompatible API generations are served side by side from one catalog
// service. Each generation parses its own parameters, calls catalog.Service and
// reshapes the documents it gets back:
//
//   - /1: bukkit only. Listings return bare slugs, documents use the v1 envelope
//   - /2: server scoped. Listings return projected documents, documents use the v2 envelope
//   - /3: native documents, every listing takes fields, start, size and sort
//
// The legacy /api and /api2 prefixes redirect to /1 and /2, and "/" redirects to /3.
// /sync and /update hold the generator write endpoints, which answer 501.
//
// # Usage
//
//	svc := catalog.NewService(store)
//	server := api.NewServer(svc,
//		api.WithStats(statsService),
//		api.WithMirror(mirror),
//		api.WithMetrics(metrics),
//		api.WithLogger(logger),
//	)
//	http.ListenAndServe(":9132", server)
//
// # Request Handling
//
// Every request gets a request id, a request logger and JSON content type. A
// trailing slash is ignored. Query values and path variables are stripped of HTML
// before handlers read them.
//
// # Errors
//
// Errors are JSON objects with a single "error" key:
//
//	404 {"error": "could not find plugin"}
//	400 {"error": "invalid search"}
//
// # Downloads
//
// Download routes answer 302 to the mirrored copy of a file when WithMirror is set
// and the file has been mirrored, otherwise to the origin URL. Each redirect is
// recorded in the background through the DownloadRecorder.
package api
