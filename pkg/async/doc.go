// Package async provides goroutine helpers with panic recovery and
// timeouts for background work.
//
// SafeGo runs one task detached from the caller, which is how search
// sessions evaluate submitted queries:
//
//	async.SafeGo(ctx, 30*time.Second, "session query", func(ctx context.Context) error {
//		return run(ctx)
//	})
//
// WorkerPool bounds concurrency for a stream of tasks, such as query history
// writes, and reports task errors on a channel:
//
//	pool := async.NewWorkerPool(ctx, 2, "history recording", 5*time.Second)
//	defer pool.Shutdown(5 * time.Second)
//	pool.Submit(func(ctx context.Context) error { return store.Record(ctx, e) })
//
// Batch fans a slice out over a pool and collects every error, which the
// indexer uses to convert many index files at once.
package async
