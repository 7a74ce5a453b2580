// Package stats tracks plugin downloads and serves download trends.
//
// Every resolved download redirect is recorded as a raw event. A periodic rollup
// (cmd/bukget-aggregator) folds raw events into per-day aggregates, rewrites the
// popularity counters of every plugin and prunes raw events older than the
// retention window. Trend queries read the aggregates only.
//
//	svc := stats.NewService(store)
//	stats.NewHandlers(svc, catalogService).RegisterRoutes(router.PathPrefix("/stats").Subrouter())
//
// Days are UTC and keyed as YYYY-MM-DD.
package stats
