// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// This package handles goroutine lifecycle management with panic recovery, timeout
// enforcement and error collection. Failures are logged with the request-scoped
// logger found in the parent context.
//
// # Key Functions
//
// SafeGo: fire-and-forget work detached from the request that started it
//
//	async.SafeGo(r.Context(), 5*time.Second, "record download", func(ctx context.Context) error {
//		return recorder.Record(ctx, d)
//	})
//
// WorkerPool: bounded pool of workers
//
//	pool := async.NewWorkerPool(ctx, 4, "upsert plugin", 30*time.Second)
//	pool.Submit(task)
//	errs := pool.Wait()
//
// Batch: concurrent processing of a slice
//
//	errs := async.Batch(ctx, plugins, 4, "upsert plugin", 30*time.Second, upsert)
package async
