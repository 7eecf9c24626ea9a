// Package httpmux implements the default transport multiplexer on top of
// net/http.
//
// Each submitted transfer runs in its own goroutine against a pooled
// http.Transport; finished transfers are funneled through a channel that the
// scheduler's single goroutine drains via Progress/PollCompleted and parks
// on via Wait. Per-transfer failures are reported as completions with Err
// set, never as multiplexer failures.
package httpmux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jpalmerr/rollingfetch/transport"
)

// connection pooling limits to prevent resource exhaustion when fetching
// many hosts
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second // conservative: matches common ALB defaults
)

// fallbackBodyLimit bounds response reads when a request arrives without a
// MaxBodySize. The scheduler always resolves one, so this is a backstop for
// direct users of the package.
const fallbackBodyLimit = 1 << 20 // 1MB

// Mux is the built-in [transport.Multiplexer] over net/http.
//
// Like the scheduler that drives it, a Mux is meant to be driven by a single
// goroutine: Submit, Progress, PollCompleted, Remove, and Wait must not be
// called concurrently with each other. The transfer goroutines it spawns
// are internal.
//
// Connections are pooled per distinct connect timeout, so requests sharing
// dial settings reuse each other's connections.
type Mux struct {
	pools map[time.Duration]*http.Transport

	next  uint64
	done  chan transport.Completion
	ready []transport.Completion

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a ready-to-use [Mux].
//
// No cleanup beyond [Mux.Close] is required when done.
func New() *Mux {
	return &Mux{
		pools:  make(map[time.Duration]*http.Transport),
		done:   make(chan transport.Completion),
		closed: make(chan struct{}),
	}
}

// Submit starts one transfer in a new goroutine and returns its handle.
// It fails only when the mux has been closed.
func (m *Mux) Submit(ctx context.Context, req *transport.Request) (transport.Handle, error) {
	select {
	case <-m.closed:
		return 0, errors.New("multiplexer is closed")
	default:
	}

	m.next++
	handle := transport.Handle(m.next)

	m.wg.Add(1)
	go m.transfer(ctx, handle, req, m.pool(req.ConnectTimeout))

	return handle, nil
}

// Progress drains any transfers that have finished since the last call,
// without blocking. net/http has no multiplexer-level failure mode, so
// Progress always returns nil.
func (m *Mux) Progress() error {
	for {
		select {
		case c := <-m.done:
			m.ready = append(m.ready, c)
		default:
			return nil
		}
	}
}

// PollCompleted returns the completions gathered since the last call, each
// exactly once.
func (m *Mux) PollCompleted() []transport.Completion {
	_ = m.Progress() // pick up anything that finished since the progress tick

	out := m.ready
	m.ready = nil
	return out
}

// Remove releases a handle. The mux keeps no per-handle state after a
// completion has been delivered, so this is bookkeeping-free.
func (m *Mux) Remove(transport.Handle) {}

// Wait blocks until a transfer finishes or the timeout elapses. It returns
// immediately when completions are already waiting to be polled.
func (m *Mux) Wait(ctx context.Context, timeout time.Duration) error {
	if len(m.ready) > 0 || timeout <= 0 {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c := <-m.done:
		m.ready = append(m.ready, c)
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close abandons any in-flight transfers, waits for their goroutines to
// exit, and releases pooled connections. Safe to call multiple times.
func (m *Mux) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	m.wg.Wait()

	for _, rt := range m.pools {
		rt.CloseIdleConnections()
	}
	return nil
}

// pool returns the shared http.Transport for the given connect timeout,
// creating it on first use.
func (m *Mux) pool(connectTimeout time.Duration) *http.Transport {
	if rt, ok := m.pools[connectTimeout]; ok {
		return rt
	}

	rt := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		MaxConnsPerHost:     defaultMaxConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
	}
	m.pools[connectTimeout] = rt
	return rt
}

// transfer performs one HTTP request and delivers its completion.
func (m *Mux) transfer(ctx context.Context, handle transport.Handle, req *transport.Request, rt *http.Transport) {
	defer m.wg.Done()

	start := time.Now()
	comp := transport.Completion{Handle: handle}
	comp.Info.FinalURL = req.URL

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		comp.Err = fmt.Errorf("failed to create request: %w", err)
		m.deliver(comp, start)
		return
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	// the redirect policy is per request, so the client is per transfer;
	// the pooled http.Transport underneath is shared
	client := &http.Client{
		Transport:     rt,
		CheckRedirect: redirectPolicy(req),
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		comp.Err = fmt.Errorf("request failed: %w", err)
		m.deliver(comp, start)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	comp.Info.StatusCode = resp.StatusCode
	if resp.Request != nil && resp.Request.URL != nil {
		comp.Info.FinalURL = resp.Request.URL.String()
	}

	limit := req.MaxBodySize
	if limit <= 0 {
		limit = fallbackBodyLimit
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		comp.Err = fmt.Errorf("failed to read response body: %w", err)
		m.deliver(comp, start)
		return
	}
	comp.Body = data

	m.deliver(comp, start)
}

// deliver stamps timing metadata and hands the completion to the draining
// goroutine. Completions are discarded once the mux is closed.
func (m *Mux) deliver(c transport.Completion, start time.Time) {
	c.Info.Duration = time.Since(start)
	c.Info.ReceivedAt = time.Now()

	select {
	case m.done <- c:
	case <-m.closed:
	}
}

// redirectPolicy translates the resolved redirect options into a net/http
// CheckRedirect function.
func redirectPolicy(req *transport.Request) func(*http.Request, []*http.Request) error {
	if !req.FollowRedirects {
		return func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	maxRedirects := req.MaxRedirects
	return func(r *http.Request, via []*http.Request) error {
		if len(via) > maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
}
