// Package transport defines the multiplexer contract consumed by the
// rollingfetch scheduler.
//
// A [Multiplexer] executes many HTTP transfers concurrently behind a
// non-blocking submit/poll/wait surface, while the scheduler itself stays on
// a single logical thread of control. The scheduler submits fully resolved
// requests, periodically asks the multiplexer to make progress, drains
// finished transfers via [Multiplexer.PollCompleted], and parks on
// [Multiplexer.Wait] while transfers are still outstanding.
//
// The default implementation lives in internal/httpmux and is built on
// net/http. Custom implementations (including test stubs) only need to honor
// the contract documented on [Multiplexer].
package transport

import (
	"context"
	"time"
)

// Handle identifies one in-flight transfer within a [Multiplexer].
//
// Handles are opaque to callers: the only supported operations are comparison
// and use as a map key. A handle is valid from the [Multiplexer.Submit] that
// produced it until it is released with [Multiplexer.Remove].
type Handle uint64

// Info carries per-transfer metadata reported alongside a completion.
type Info struct {
	// StatusCode is the HTTP status code of the final response.
	// Zero if the transfer failed before receiving a response.
	StatusCode int

	// FinalURL is the URL the response was ultimately served from,
	// after any redirects. Equal to the request URL when no redirect occurred.
	FinalURL string

	// Duration is the wall-clock time from submission to completion.
	Duration time.Duration

	// ReceivedAt is the timestamp when the transfer finished.
	ReceivedAt time.Time
}

// Request is a fully resolved transfer description.
//
// The scheduler performs all option and header layering before submission,
// so every field here is concrete: a multiplexer applies them as-is and
// never consults defaults of its own.
type Request struct {
	// Method is the HTTP method (GET, POST, ...). Always non-empty.
	Method string

	// URL is the target URL.
	URL string

	// Body is the request payload. nil or empty means no body is sent.
	Body []byte

	// Headers are the custom headers to send. May be nil.
	Headers map[string]string

	// FollowRedirects controls whether redirects are followed at all.
	FollowRedirects bool

	// MaxRedirects caps the number of redirects followed when
	// FollowRedirects is true. Exceeding the cap fails the transfer.
	MaxRedirects int

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration

	// Timeout bounds the whole transfer. Zero means no overall bound.
	Timeout time.Duration

	// MaxBodySize caps how many response bytes are retained.
	MaxBodySize int64
}

// Completion reports one finished transfer.
//
// A transfer-level failure (DNS error, refused connection, timeout) is a
// normal completion with Err set; it is never reported through
// [Multiplexer.Progress].
type Completion struct {
	// Handle is the transfer this completion belongs to.
	Handle Handle

	// Body is the response body, capped at the request's MaxBodySize.
	// nil when the transfer failed before a response was read.
	Body []byte

	// Err is the transfer-level failure, nil on success. A non-2xx status
	// is not an error; callers inspect Info.StatusCode for that.
	Err error

	// Info carries timing and response metadata.
	Info Info
}

// Multiplexer executes many transfers concurrently within one logical thread
// of control, from the caller's point of view.
//
// Implementations are driven by a single goroutine and are not required to
// be safe for concurrent use. Each completion is reported exactly once by
// PollCompleted.
type Multiplexer interface {
	// Submit starts a new transfer and returns its handle. An error from
	// Submit is a multiplexer-level failure, not a per-transfer one; the
	// scheduler treats it as fatal for the whole run.
	Submit(ctx context.Context, req *Request) (Handle, error)

	// Progress advances all in-flight transfers without blocking.
	// A non-nil error indicates a non-recoverable multiplexer failure.
	Progress() error

	// PollCompleted returns the transfers that finished since the last
	// call. Each completion is reported exactly once; the returned slice
	// is owned by the caller.
	PollCompleted() []Completion

	// Remove releases a handle and any resources held for it.
	Remove(h Handle)

	// Wait blocks until progress is possible or the timeout elapses,
	// whichever comes first. It returns early when a transfer finishes.
	// A ctx error is returned as-is when the context is cancelled.
	Wait(ctx context.Context, timeout time.Duration) error

	// Close releases the multiplexer's resources. In-flight transfers are
	// abandoned; their completions are discarded.
	Close() error
}
