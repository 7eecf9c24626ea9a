// Package rollingfetch fetches many HTTP resources while keeping a fixed
// number of transfers in flight, trading total wall-clock time for bounded
// connection usage.
//
// The core is the rolling [Scheduler]: requests wait in a pending queue,
// up to the configured window of them are active on the transport at once,
// and each completion immediately pulls the next pending request into the
// window so it stays saturated. Completions arrive in completion order, not
// submission order, and failed transfers are completions like any other.
//
// Quick start:
//
//	s, err := rollingfetch.New(
//	    rollingfetch.WithWindow(5),
//	    rollingfetch.WithDefaultHeaders(map[string]string{"User-Agent": "rollingfetch"}),
//	    rollingfetch.WithCallback(func(req *rollingfetch.Request, q rollingfetch.Queue) {
//	        if req.Err() != nil {
//	            slog.Warn("fetch failed", "url", req.URL(), "error", req.Err())
//	            return
//	        }
//	        slog.Info("fetched", "url", req.URL(), "status", req.Info().StatusCode)
//	    }),
//	)
//	if err != nil {
//	    slog.Error("failed to create scheduler", "error", err)
//	    os.Exit(1)
//	}
//
//	for _, url := range urls {
//	    s.Get(url)
//	}
//	if err := s.Run(ctx); err != nil {
//	    slog.Error("run aborted", "error", err)
//	}
//
// The callback may enqueue more work through its [Queue] argument; requests
// added this way are admitted within the same run, which is the supported
// mechanism for recursive crawling:
//
//	rollingfetch.WithCallback(func(req *rollingfetch.Request, q rollingfetch.Queue) {
//	    for _, link := range extractLinks(req.ResponseBody()) {
//	        q.Get(link)
//	    }
//	    if q.CompletedCount() > 1000 {
//	        q.ClearCompleted() // bound memory on long crawls
//	    }
//	})
//
// Per-request behavior (redirect policy, timeouts, body caps) is layered
// through [Options]: hard-coded defaults, then the scheduler's base options,
// then per-request overrides, with the request winning on any collision.
//
// The scheduler runs on a single logical thread of control; concurrency
// lives entirely inside the [transport.Multiplexer] it drives. The built-in
// multiplexer is backed by net/http; swap it with [WithTransport] for
// testing or custom wire behavior. For multi-threaded fan-out, run
// independent Scheduler instances.
package rollingfetch
