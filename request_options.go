package rollingfetch

import (
	"net/url"
	"time"

	"github.com/jpalmerr/rollingfetch/transport"
)

// Hard-coded safe defaults, the lowest layer of option resolution.
// Everything above them (scheduler base options, then per-request overrides)
// wins on any field it sets.
const (
	defaultMaxRedirects   = 5
	defaultConnectTimeout = 30 * time.Second
	defaultTimeout        = 30 * time.Second
	defaultMaxBodySize    = 1 << 20 // 1MB
)

// Options is a layered option set for transfers.
//
// Every field is optional: a nil field means "inherit from the layer below".
// Resolution happens once per request at submission time, layering the
// hard-coded defaults, then the scheduler's base options, then the request's
// own overrides. Because fields are pointers, an explicit zero (for example
// MaxRedirects of 0) overrides a lower layer rather than being mistaken for
// "unset".
//
// Use the pointer helpers to build literals:
//
//	opts := rollingfetch.Options{
//	    MaxRedirects: rollingfetch.Int(0),
//	    Timeout:      rollingfetch.Duration(5 * time.Second),
//	}
type Options struct {
	// FollowRedirects controls whether redirects are followed at all.
	// Default: true.
	FollowRedirects *bool

	// MaxRedirects caps the number of redirects followed. Default: 5.
	// Zero means any redirect fails the transfer.
	MaxRedirects *int

	// ConnectTimeout bounds connection establishment. Default: 30s.
	ConnectTimeout *time.Duration

	// Timeout bounds the whole transfer. Default: 30s. Zero disables the
	// overall bound.
	Timeout *time.Duration

	// MaxBodySize caps how many response bytes are retained. Default: 1MB.
	MaxBodySize *int64
}

// Merge returns a copy of o with the set fields of over taking precedence.
// Unset (nil) fields of over leave o's values in place.
func (o Options) Merge(over Options) Options {
	if over.FollowRedirects != nil {
		o.FollowRedirects = over.FollowRedirects
	}
	if over.MaxRedirects != nil {
		o.MaxRedirects = over.MaxRedirects
	}
	if over.ConnectTimeout != nil {
		o.ConnectTimeout = over.ConnectTimeout
	}
	if over.Timeout != nil {
		o.Timeout = over.Timeout
	}
	if over.MaxBodySize != nil {
		o.MaxBodySize = over.MaxBodySize
	}
	return o
}

// apply writes the fully resolved option values onto a transport request,
// starting from the hard-coded defaults.
func (o Options) apply(tr *transport.Request) {
	tr.FollowRedirects = true
	tr.MaxRedirects = defaultMaxRedirects
	tr.ConnectTimeout = defaultConnectTimeout
	tr.Timeout = defaultTimeout
	tr.MaxBodySize = defaultMaxBodySize

	if o.FollowRedirects != nil {
		tr.FollowRedirects = *o.FollowRedirects
	}
	if o.MaxRedirects != nil {
		tr.MaxRedirects = *o.MaxRedirects
	}
	if o.ConnectTimeout != nil {
		tr.ConnectTimeout = *o.ConnectTimeout
	}
	if o.Timeout != nil {
		tr.Timeout = *o.Timeout
	}
	if o.MaxBodySize != nil {
		tr.MaxBodySize = *o.MaxBodySize
	}
}

// Bool returns a pointer to v, for building [Options] literals.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v, for building [Options] literals.
func Int(v int) *int { return &v }

// Int64 returns a pointer to v, for building [Options] literals.
func Int64(v int64) *int64 { return &v }

// Duration returns a pointer to v, for building [Options] literals.
func Duration(v time.Duration) *time.Duration { return &v }

// RequestOption is a function that configures a [Request] during
// construction with [NewRequest] or one of the scheduler's convenience
// enqueuers ([Scheduler.Get], [Scheduler.Post], ...).
type RequestOption func(*Request)

// WithBody sets the raw request payload. See [Request.SetBody].
func WithBody(body []byte) RequestOption {
	return func(r *Request) {
		r.SetBody(body)
	}
}

// WithForm sets a URL-encoded form payload. See [Request.SetForm].
func WithForm(values url.Values) RequestOption {
	return func(r *Request) {
		r.SetForm(values)
	}
}

// WithRequestHeaders sets the request's custom headers. When present they
// fully replace the scheduler's default headers. See [Request.SetHeaders].
func WithRequestHeaders(headers map[string]string) RequestOption {
	return func(r *Request) {
		r.SetHeaders(headers)
	}
}

// WithRequestOptions sets per-request option overrides, the highest layer of
// option resolution. See [Request.SetOptions].
func WithRequestOptions(o Options) RequestOption {
	return func(r *Request) {
		r.SetOptions(o)
	}
}
