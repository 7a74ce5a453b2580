// Package sanitize is the input boundary of the API. Every query value and route
// variable passes through a bluemonday strict policy once, before any handler
// reads it:
//
//	router.Use(sanitize.New().Middleware)
package sanitize
