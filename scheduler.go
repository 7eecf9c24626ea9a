package rollingfetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jpalmerr/rollingfetch/internal/httpmux"
	"github.com/jpalmerr/rollingfetch/transport"
)

// Callback is invoked once per completed request, failed or not.
//
// It runs synchronously on the run loop's goroutine, after the request has
// been moved to the completed set and the window has been refilled. The
// [Queue] argument is a bounded view of the scheduler: the callback may
// enqueue follow-up work or clear the completed set through it, but cannot
// touch the active window.
type Callback func(req *Request, q Queue)

// Queue is the bounded scheduler surface handed to callbacks.
//
// It exposes only the operations that are safe to call from inside the run
// loop: enqueueing more work and managing the completed set. Requests
// enqueued through a Queue become eligible for admission on a later refill
// within the same run.
type Queue interface {
	// Enqueue appends a request to the pending queue.
	Enqueue(req *Request)

	// Get, Post, Put, and Delete build and enqueue a request in one step.
	Get(url string, opts ...RequestOption)
	Post(url string, opts ...RequestOption)
	Put(url string, opts ...RequestOption)
	Delete(url string, opts ...RequestOption)

	// ClearCompleted discards the completed set to bound memory on long
	// runs; the monotonic completion counter is retained.
	ClearCompleted()

	// PendingCount, CompletedCount, and TotalCompleted mirror the
	// scheduler accessors of the same names.
	PendingCount() int
	CompletedCount() int
	TotalCompleted() uint64
}

// Scheduler is a rolling-window HTTP request scheduler.
//
// A Scheduler owns three sets of [Request]: pending (FIFO, unbounded),
// active (at most the configured window, keyed by transport handle), and
// completed (in completion order, not submission order). [Scheduler.Run]
// drives a [transport.Multiplexer] until both pending and active are empty,
// refilling the window immediately after every completion so it stays as
// full as possible at every instant.
//
// The typical lifecycle is:
//
//	s, err := rollingfetch.New(
//	    rollingfetch.WithWindow(5),
//	    rollingfetch.WithCallback(func(req *rollingfetch.Request, q rollingfetch.Queue) {
//	        fmt.Println(req.URL(), req.Info().StatusCode)
//	    }),
//	)
//	if err != nil {
//	    slog.Error("failed to create scheduler", "error", err)
//	    os.Exit(1)
//	}
//
//	s.Get("https://example.com/a").Get("https://example.com/b")
//	if err := s.Run(ctx); err != nil {
//	    slog.Error("run aborted", "error", err)
//	}
//
// All scheduler state transitions, option resolution, and callback
// invocations happen on the goroutine that calls Run; there is no internal
// locking. A Scheduler must not be used from multiple goroutines. For
// multi-threaded fan-out, run independent Scheduler instances.
type Scheduler struct {
	window       int
	waitTimeout  time.Duration
	baseOptions  Options
	headers      map[string]string
	callback     Callback
	newTransport func() transport.Multiplexer
	logger       *slog.Logger
	limiter      *rate.Limiter

	pending   []*Request
	active    map[transport.Handle]*Request
	completed []*Request
	total     uint64
}

// New creates a new [Scheduler] with the given options.
//
// All options have sensible defaults:
//   - Window: 10
//   - Wait timeout: 1 second
//   - Transport: the built-in net/http multiplexer
//
// Returns an error if any option is invalid.
func New(opts ...Option) (*Scheduler, error) {
	cfg := &schedConfig{
		window:      DefaultWindow,
		waitTimeout: defaultWaitTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	newTransport := cfg.newTransport
	if newTransport == nil {
		newTransport = func() transport.Multiplexer { return httpmux.New() }
	}

	return &Scheduler{
		window:       cfg.window,
		waitTimeout:  cfg.waitTimeout,
		baseOptions:  cfg.baseOptions,
		headers:      cfg.headers,
		callback:     cfg.callback,
		newTransport: newTransport,
		logger:       logger,
		limiter:      cfg.limiter,
		active:       make(map[transport.Handle]*Request),
	}, nil
}

// Enqueue appends a request to the pending queue. There is no limit on
// pending size. Returns the scheduler to allow chaining; nil requests are
// ignored.
func (s *Scheduler) Enqueue(req *Request) *Scheduler {
	if req == nil {
		return s
	}
	s.pending = append(s.pending, req)
	return s
}

// Get builds a GET request for the URL and enqueues it.
// Returns the scheduler to allow chaining.
func (s *Scheduler) Get(url string, opts ...RequestOption) *Scheduler {
	return s.enqueueNew(http.MethodGet, url, opts)
}

// Post builds a POST request for the URL and enqueues it. Attach a payload
// with [WithBody] or [WithForm]. Returns the scheduler to allow chaining.
func (s *Scheduler) Post(url string, opts ...RequestOption) *Scheduler {
	return s.enqueueNew(http.MethodPost, url, opts)
}

// Put builds a PUT request for the URL and enqueues it.
// Returns the scheduler to allow chaining.
func (s *Scheduler) Put(url string, opts ...RequestOption) *Scheduler {
	return s.enqueueNew(http.MethodPut, url, opts)
}

// Delete builds a DELETE request for the URL and enqueues it.
// Returns the scheduler to allow chaining.
func (s *Scheduler) Delete(url string, opts ...RequestOption) *Scheduler {
	return s.enqueueNew(http.MethodDelete, url, opts)
}

func (s *Scheduler) enqueueNew(method, url string, opts []RequestOption) *Scheduler {
	// the method is one of the known constants, so NewRequest cannot fail
	req, _ := NewRequest(method, url, opts...)
	return s.Enqueue(req)
}

// SetWindow changes the concurrency window for subsequent admissions.
//
// Returns [ErrInvalidArgument] for values below 2, leaving the previous
// window in place.
func (s *Scheduler) SetWindow(n int) error {
	if n < 2 {
		return fmt.Errorf("%w: window must be at least 2, got %d", ErrInvalidArgument, n)
	}
	s.window = n
	return nil
}

// SetWaitTimeout changes the per-round wait timeout.
//
// Returns [ErrInvalidArgument] for negative values, leaving the previous
// timeout in place.
func (s *Scheduler) SetWaitTimeout(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: wait timeout must not be negative, got %s", ErrInvalidArgument, d)
	}
	s.waitTimeout = d
	return nil
}

// SetBaseOptions replaces the scheduler's base option set.
// Returns the scheduler to allow chaining.
func (s *Scheduler) SetBaseOptions(o Options) *Scheduler {
	s.baseOptions = o
	return s
}

// MergeBaseOptions merges o into the scheduler's base option set; fields set
// in o win over existing values on collision. Returns the scheduler to allow
// chaining.
func (s *Scheduler) MergeBaseOptions(o Options) *Scheduler {
	s.baseOptions = s.baseOptions.Merge(o)
	return s
}

// SetDefaultHeaders replaces the scheduler's default headers.
// Returns the scheduler to allow chaining.
func (s *Scheduler) SetDefaultHeaders(headers map[string]string) *Scheduler {
	s.headers = copyMap(headers)
	return s
}

// SetCallback replaces the completion callback. A nil callback disables
// completion callbacks. Returns the scheduler to allow chaining.
func (s *Scheduler) SetCallback(cb Callback) *Scheduler {
	s.callback = cb
	return s
}

// Window returns the configured concurrency window.
func (s *Scheduler) Window() int {
	return s.window
}

// WaitTimeout returns the configured per-round wait timeout.
func (s *Scheduler) WaitTimeout() time.Duration {
	return s.waitTimeout
}

// BaseOptions returns the scheduler's base option set.
func (s *Scheduler) BaseOptions() Options {
	return s.baseOptions
}

// DefaultHeaders returns a copy of the scheduler's default headers.
func (s *Scheduler) DefaultHeaders() map[string]string {
	return copyMap(s.headers)
}

// PendingCount returns the number of requests waiting for admission.
func (s *Scheduler) PendingCount() int {
	return len(s.pending)
}

// ActiveCount returns the number of requests currently submitted to the
// transport and not yet completed.
func (s *Scheduler) ActiveCount() int {
	return len(s.active)
}

// CompletedCount returns the live length of the completed set. It drops back
// to zero after [Scheduler.ClearCompleted]; use [Scheduler.TotalCompleted]
// for the all-time count.
func (s *Scheduler) CompletedCount() int {
	return len(s.completed)
}

// TotalCompleted returns the monotonic count of completions across the
// scheduler's lifetime. Unlike [Scheduler.CompletedCount] it is unaffected
// by [Scheduler.ClearCompleted].
func (s *Scheduler) TotalCompleted() uint64 {
	return s.total
}

// Completed returns a copy of the completed set, in completion order.
func (s *Scheduler) Completed() []*Request {
	cp := make([]*Request, len(s.completed))
	copy(cp, s.completed)
	return cp
}

// ClearCompleted discards the completed set, retaining the monotonic
// counter. Callers processing thousands of requests should call this
// periodically, typically from inside the callback, to bound memory.
// Returns the scheduler to allow chaining.
func (s *Scheduler) ClearCompleted() *Scheduler {
	s.completed = nil
	return s
}

// Run executes all pending work and blocks until both the pending queue and
// the active window are empty, including work enqueued by the callback
// along the way.
//
// Run seeds the window from the pending queue, then repeatedly asks the
// transport for progress, drains every ready completion, and refills the
// window immediately after each individual completion, so the window stays
// saturated even when completions and callback side effects interleave.
//
// Per-request transfer failures are normal completions: they are recorded
// on the [Request], trigger the callback, and never stop the run. Run
// returns a non-nil error only for run-level failures: a transport
// progress/submit/wait error or context cancellation. After such an abort,
// requests still active or pending are left in place for inspection.
//
// Calling Run with nothing pending and nothing active is a no-op: it
// returns nil immediately without engaging the transport.
//
// After an aborted run, requests left in the active window are returned to
// the head of the pending queue when Run is called again: their handles
// belonged to the previous run's transport and died with it.
func (s *Scheduler) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(s.pending) == 0 && len(s.active) == 0 {
		return nil
	}

	s.requeueStranded()

	mux := s.newTransport()
	defer func() { _ = mux.Close() }()

	if s.active == nil {
		s.active = make(map[transport.Handle]*Request)
	}

	s.logger.Debug("run starting",
		"pending", len(s.pending),
		"window", s.window,
	)

	if err := s.fill(ctx, mux); err != nil {
		return err
	}

	for len(s.active) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := mux.Progress(); err != nil {
			return fmt.Errorf("transport progress: %w", err)
		}

		// drain every ready completion before waiting again; a single
		// progress tick may finish more than one transfer
		for _, c := range mux.PollCompleted() {
			if err := s.finish(ctx, mux, c); err != nil {
				return err
			}
		}

		// the callback of the final in-flight completion may have
		// enqueued more work; re-seed so it is not stranded
		if len(s.active) == 0 && len(s.pending) > 0 {
			if err := s.fill(ctx, mux); err != nil {
				return err
			}
			continue
		}

		if len(s.active) > 0 {
			if err := mux.Wait(ctx, s.waitTimeout); err != nil {
				return fmt.Errorf("transport wait: %w", err)
			}
		}
	}

	s.logger.Debug("run finished",
		"completed", len(s.completed),
		"total", s.total,
	)
	return nil
}

// requeueStranded moves requests abandoned by an aborted run from the
// active window back to the head of the pending queue, in submission order.
func (s *Scheduler) requeueStranded() {
	if len(s.active) == 0 {
		return
	}

	handles := make([]transport.Handle, 0, len(s.active))
	for h := range s.active {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	requeued := make([]*Request, 0, len(handles))
	for _, h := range handles {
		requeued = append(requeued, s.active[h])
	}
	s.pending = append(requeued, s.pending...)
	s.active = make(map[transport.Handle]*Request)

	s.logger.Debug("requeued requests stranded by an aborted run",
		"requeued", len(requeued),
	)
}

// finish processes one ready completion: records the result, refills the
// window, releases the handle, and invokes the callback.
func (s *Scheduler) finish(ctx context.Context, mux transport.Multiplexer, c transport.Completion) error {
	req, ok := s.active[c.Handle]
	if !ok {
		s.logger.Warn("completion for unknown handle", "handle", uint64(c.Handle))
		mux.Remove(c.Handle)
		return nil
	}

	req.complete(c.Body, c.Err, c.Info)
	delete(s.active, c.Handle)
	s.completed = append(s.completed, req)
	s.total++

	// refill before processing the next ready completion so the window
	// stays as full as possible at every instant
	if err := s.admit(ctx, mux); err != nil {
		return err
	}

	mux.Remove(c.Handle)

	if c.Err != nil {
		s.logger.Warn("transfer failed",
			"url", req.URL(),
			"error", c.Err,
			"duration_ms", c.Info.Duration.Milliseconds(),
		)
	} else {
		s.logger.Debug("transfer completed",
			"url", req.URL(),
			"status", c.Info.StatusCode,
			"duration_ms", c.Info.Duration.Milliseconds(),
		)
	}

	if s.callback != nil {
		s.invokeCallback(req)
	}
	return nil
}

// fill admits pending requests until the window is full or the pending
// queue is empty.
func (s *Scheduler) fill(ctx context.Context, mux transport.Multiplexer) error {
	for len(s.active) < s.window && len(s.pending) > 0 {
		if err := s.admit(ctx, mux); err != nil {
			return err
		}
	}
	return nil
}

// admit dequeues one pending request, resolves its options, and submits it
// to the transport. A no-op when the pending queue is empty or the window
// is already full. On failure the request is returned to the head of the
// pending queue, preserving the single-set invariant.
func (s *Scheduler) admit(ctx context.Context, mux transport.Multiplexer) error {
	if len(s.pending) == 0 || len(s.active) >= s.window {
		return nil
	}

	req := s.pending[0]
	s.pending = s.pending[1:]

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			s.pending = append([]*Request{req}, s.pending...)
			return err
		}
	}

	handle, err := mux.Submit(ctx, req.resolve(s.baseOptions, s.headers))
	if err != nil {
		s.pending = append([]*Request{req}, s.pending...)
		return fmt.Errorf("transport submit: %w", err)
	}
	s.active[handle] = req

	s.logger.Debug("request admitted",
		"url", req.URL(),
		"method", req.Method(),
		"active", len(s.active),
		"pending", len(s.pending),
	)
	return nil
}

// invokeCallback calls the completion callback with panic recovery.
// If the callback panics, the full stack trace is logged with a correlation
// ID and the run continues.
func (s *Scheduler) invokeCallback(req *Request) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("completion callback panicked",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
				"url", req.URL(),
			)
		}
	}()
	s.callback(req, callbackQueue{s: s})
}

// callbackQueue is the Queue implementation handed to callbacks. It forwards
// to the owning scheduler, exposing only the bounded surface.
type callbackQueue struct {
	s *Scheduler
}

func (q callbackQueue) Enqueue(req *Request) { q.s.Enqueue(req) }

func (q callbackQueue) Get(url string, opts ...RequestOption) { q.s.Get(url, opts...) }

func (q callbackQueue) Post(url string, opts ...RequestOption) { q.s.Post(url, opts...) }

func (q callbackQueue) Put(url string, opts ...RequestOption) { q.s.Put(url, opts...) }

func (q callbackQueue) Delete(url string, opts ...RequestOption) { q.s.Delete(url, opts...) }

func (q callbackQueue) ClearCompleted() { q.s.ClearCompleted() }

func (q callbackQueue) PendingCount() int { return q.s.PendingCount() }

func (q callbackQueue) CompletedCount() int { return q.s.CompletedCount() }

func (q callbackQueue) TotalCompleted() uint64 { return q.s.TotalCompleted() }
