package rollingfetch

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jpalmerr/rollingfetch/transport"
)

// Request describes one HTTP call and, after execution, its outcome.
//
// A Request is created with [NewRequest] (or implicitly by the scheduler's
// convenience enqueuers), optionally adjusted with its setters, and handed to
// [Scheduler.Enqueue]. The result accessors ([Request.ResponseBody],
// [Request.Err], [Request.Info]) return zero values until the scheduler has
// moved the request to its completed set; they are then populated together,
// exactly once.
//
// A Request belongs to at most one Scheduler at a time and must not be
// mutated after it has been enqueued.
type Request struct {
	method  string
	url     string
	body    []byte
	form    bool
	headers map[string]string
	options Options

	// result fields, written together when the transfer completes
	completed bool
	respBody  []byte
	err       error
	info      transport.Info
}

// NewRequest creates a [Request] for the given method and URL.
//
// The method must be one of GET, HEAD, POST, PUT, PATCH, DELETE, or OPTIONS
// (case-insensitive). The URL is not validated; a malformed URL surfaces as
// a per-request transfer error at run time, not here.
//
// Options are applied in order using the functional options pattern.
// See [WithBody], [WithForm], [WithRequestHeaders], and [WithRequestOptions].
//
// Example:
//
//	req, err := rollingfetch.NewRequest(http.MethodPost, "https://api.example.com/items",
//	    rollingfetch.WithBody([]byte(`{"name":"a"}`)),
//	    rollingfetch.WithRequestHeaders(map[string]string{"Content-Type": "application/json"}),
//	)
func NewRequest(method, rawURL string, opts ...RequestOption) (*Request, error) {
	method = strings.ToUpper(method)
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
	default:
		return nil, fmt.Errorf("%w: unsupported method %q", ErrInvalidArgument, method)
	}

	r := &Request{
		method: method,
		url:    rawURL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// SetBody sets the raw request payload. A nil or empty body means no payload
// is sent. Returns the request to allow chaining.
func (r *Request) SetBody(body []byte) *Request {
	r.body = body
	r.form = false
	return r
}

// SetForm sets a URL-encoded form payload. The values are encoded
// immediately; a Content-Type of application/x-www-form-urlencoded is added
// at submission time unless the request carries its own Content-Type header.
// Returns the request to allow chaining.
func (r *Request) SetForm(values url.Values) *Request {
	r.body = []byte(values.Encode())
	r.form = true
	return r
}

// SetHeaders replaces the request's custom headers. Request headers fully
// replace the scheduler's default headers at submission time; the two are
// never merged. Returns the request to allow chaining.
func (r *Request) SetHeaders(headers map[string]string) *Request {
	r.headers = copyMap(headers)
	return r
}

// SetOptions replaces the request's option overrides. Fields set here win
// over the scheduler's base options on any collision when the request is
// submitted. Returns the request to allow chaining.
func (r *Request) SetOptions(o Options) *Request {
	r.options = o
	return r
}

// Method returns the HTTP method.
func (r *Request) Method() string {
	return r.method
}

// URL returns the target URL.
func (r *Request) URL() string {
	return r.url
}

// Body returns a copy of the request payload, or nil if none is set.
func (r *Request) Body() []byte {
	return copyBytes(r.body)
}

// Headers returns a copy of the request's custom headers, or nil if none
// are set.
func (r *Request) Headers() map[string]string {
	return copyMap(r.headers)
}

// Options returns the request's option overrides.
func (r *Request) Options() Options {
	return r.options
}

// Completed reports whether the request has finished, successfully or not.
// A failed transfer is still a completed request.
func (r *Request) Completed() bool {
	return r.completed
}

// ResponseBody returns a copy of the response body. nil until the request
// completes, and nil for transfers that failed before a response was read.
func (r *Request) ResponseBody() []byte {
	return copyBytes(r.respBody)
}

// Err returns the transfer-level error, or nil if the transfer succeeded or
// has not completed yet. A non-2xx HTTP status is not an error; inspect
// [Request.Info] for the status code.
func (r *Request) Err() error {
	return r.err
}

// Info returns timing and response metadata. The zero value until the
// request completes.
func (r *Request) Info() transport.Info {
	return r.info
}

// complete writes the result fields. Called by the scheduler exactly once,
// when the transport reports the transfer finished.
func (r *Request) complete(body []byte, err error, info transport.Info) {
	r.respBody = body
	r.err = err
	r.info = info
	r.completed = true
}

// resolve layers the scheduler's base options and default headers under the
// request's own overrides and produces the concrete transfer description
// handed to the transport.
func (r *Request) resolve(base Options, defaultHeaders map[string]string) *transport.Request {
	tr := &transport.Request{
		Method: r.method,
		URL:    r.url,
	}
	base.Merge(r.options).apply(tr)

	// request headers fully replace scheduler defaults
	if len(r.headers) > 0 {
		tr.Headers = copyMap(r.headers)
	} else if len(defaultHeaders) > 0 {
		tr.Headers = copyMap(defaultHeaders)
	}

	if len(r.body) > 0 {
		tr.Body = copyBytes(r.body)
		// a payload turns a plain GET into the body-carrying method
		if tr.Method == http.MethodGet {
			tr.Method = http.MethodPost
		}
		if r.form && !hasHeader(tr.Headers, "Content-Type") {
			if tr.Headers == nil {
				tr.Headers = make(map[string]string, 1)
			}
			tr.Headers["Content-Type"] = "application/x-www-form-urlencoded"
		}
	}

	return tr
}

// hasHeader reports whether the header map contains the key, ignoring case.
func hasHeader(headers map[string]string, key string) bool {
	for k := range headers {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// copyBytes returns a copy of the byte slice, or nil if input is nil.
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
