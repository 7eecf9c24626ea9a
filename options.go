package rollingfetch

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/jpalmerr/rollingfetch/transport"
)

// DefaultWindow is the concurrency window used when [WithWindow] is not
// given.
const DefaultWindow = 10

const defaultWaitTimeout = time.Second

// schedConfig holds mutable state during Scheduler construction.
type schedConfig struct {
	window       int
	waitTimeout  time.Duration
	baseOptions  Options
	headers      map[string]string
	callback     Callback
	newTransport func() transport.Multiplexer
	logger       *slog.Logger
	limiter      *rate.Limiter
}

// Option is a function that configures a [Scheduler] during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithWindow], [WithWaitTimeout], [WithBaseOptions],
// [WithDefaultHeaders], [WithCallback], [WithTransport], [WithLogger],
// [WithRateLimit].
type Option func(*schedConfig) error

// WithWindow sets the concurrency window: the maximum number of requests
// submitted to the transport and not yet completed at any instant.
//
// Defaults to 10 if not specified. A window of 1 defeats the purpose of a
// rolling scheduler, so values below 2 are rejected.
//
// Example:
//
//	s, err := rollingfetch.New(
//	    rollingfetch.WithWindow(5),
//	)
//
// Returns [ErrInvalidArgument] if n is less than 2.
func WithWindow(n int) Option {
	return func(cfg *schedConfig) error {
		if n < 2 {
			return fmt.Errorf("%w: window must be at least 2, got %d", ErrInvalidArgument, n)
		}
		cfg.window = n
		return nil
	}
}

// WithWaitTimeout sets the upper bound on how long one round of the run loop
// blocks waiting for transfer progress before checking again.
//
// A smaller timeout makes the scheduler react faster to work enqueued from
// callbacks at the cost of more wake-ups; a larger one reduces busy-spinning
// while I/O is outstanding. Zero means every wait returns immediately.
// Defaults to 1 second.
//
// Returns [ErrInvalidArgument] if d is negative.
func WithWaitTimeout(d time.Duration) Option {
	return func(cfg *schedConfig) error {
		if d < 0 {
			return fmt.Errorf("%w: wait timeout must not be negative, got %s", ErrInvalidArgument, d)
		}
		cfg.waitTimeout = d
		return nil
	}
}

// WithBaseOptions sets the scheduler's base option set. Base options sit
// between the hard-coded defaults and per-request overrides in the
// resolution order; see [Options].
func WithBaseOptions(o Options) Option {
	return func(cfg *schedConfig) error {
		cfg.baseOptions = o
		return nil
	}
}

// WithDefaultHeaders sets the headers sent with every request that does not
// carry headers of its own. Request headers fully replace these defaults;
// the two sets are never merged.
func WithDefaultHeaders(headers map[string]string) Option {
	return func(cfg *schedConfig) error {
		cfg.headers = copyMap(headers)
		return nil
	}
}

// WithCallback sets the completion callback, invoked synchronously on the
// run loop's goroutine for every completed request, failed or not.
//
// The callback receives the completed [Request] and a [Queue] through which
// it may enqueue follow-up work; requests enqueued from a callback are
// admitted within the same run. This is the supported mechanism for dynamic
// or recursive crawling.
//
// IMPORTANT: the callback runs on the scheduler's single thread of control.
// A callback that blocks stalls the whole scheduler; dispatch long-running
// work to a separate goroutine. Panics within the callback are recovered
// and logged with a correlation ID; they do not abort the run.
func WithCallback(cb Callback) Option {
	return func(cfg *schedConfig) error {
		cfg.callback = cb
		return nil
	}
}

// WithTransport sets the factory used to create the transport multiplexer
// for each run. If not specified, the built-in net/http multiplexer is used.
//
// A fresh multiplexer is created when a run starts and closed when it
// returns, so the factory must produce an independent instance per call.
//
// Returns an error if the factory is nil.
func WithTransport(factory func() transport.Multiplexer) Option {
	return func(cfg *schedConfig) error {
		if factory == nil {
			return fmt.Errorf("%w: transport factory cannot be nil", ErrInvalidArgument)
		}
		cfg.newTransport = factory
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the scheduler.
//
// This allows SDK consumers to control where logs are written and in what
// format. If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *schedConfig) error {
		if logger == nil {
			return fmt.Errorf("%w: logger cannot be nil", ErrInvalidArgument)
		}
		cfg.logger = logger
		return nil
	}
}

// WithRateLimit caps the rate at which requests are admitted to the
// transport, across seeding and refills alike. Use this to avoid
// overwhelming target services independently of the concurrency window.
//
// rps is the sustained admissions-per-second rate; burst is the number of
// admissions allowed to proceed immediately. If not specified, admissions
// are not rate limited.
//
// Returns [ErrInvalidArgument] if rps is not positive or burst is less
// than 1.
func WithRateLimit(rps float64, burst int) Option {
	return func(cfg *schedConfig) error {
		if rps <= 0 {
			return fmt.Errorf("%w: rate limit must be positive, got %v", ErrInvalidArgument, rps)
		}
		if burst < 1 {
			return fmt.Errorf("%w: rate limit burst must be at least 1, got %d", ErrInvalidArgument, burst)
		}
		cfg.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}
