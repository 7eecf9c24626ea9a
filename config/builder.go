package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/jpalmerr/rollingfetch"
)

// BuildOptions converts a job's scheduler settings into SDK options.
//
// The returned slice can be extended (logger, callback, transport) before
// being passed to rollingfetch.New.
func BuildOptions(job Job) []rollingfetch.Option {
	var opts []rollingfetch.Option

	if job.Window != 0 {
		opts = append(opts, rollingfetch.WithWindow(job.Window))
	}
	if job.WaitTimeout != nil {
		opts = append(opts, rollingfetch.WithWaitTimeout(job.WaitTimeout.Duration()))
	}
	if job.RateLimit > 0 {
		burst := job.RateBurst
		if burst == 0 {
			burst = 1
		}
		opts = append(opts, rollingfetch.WithRateLimit(job.RateLimit, burst))
	}
	if base := buildRequestOptions(job.Options); !isZeroOptions(base) {
		opts = append(opts, rollingfetch.WithBaseOptions(base))
	}
	if len(job.Headers) > 0 {
		opts = append(opts, rollingfetch.WithDefaultHeaders(job.Headers))
	}

	return opts
}

// BuildRequests expands a job's requests and grids into SDK requests.
//
// Grid requests are generated in deterministic order: dimension names are
// sorted, and combinations iterate with the last dimension varying fastest.
func BuildRequests(job Job) ([]*rollingfetch.Request, error) {
	var requests []*rollingfetch.Request

	for i, rc := range job.Requests {
		req, err := buildRequest(rc)
		if err != nil {
			return nil, fmt.Errorf("requests[%d]: %w", i, err)
		}
		requests = append(requests, req)
	}

	for _, g := range job.Grids {
		expanded, err := expandGrid(g)
		if err != nil {
			return nil, fmt.Errorf("grid %q: %w", g.Name, err)
		}
		requests = append(requests, expanded...)
	}

	return requests, nil
}

// buildRequest converts one RequestConfig into an SDK request.
func buildRequest(rc RequestConfig) (*rollingfetch.Request, error) {
	method := strings.ToUpper(rc.Method)
	if method == "" {
		method = "GET"
	}

	req, err := rollingfetch.NewRequest(method, rc.URL)
	if err != nil {
		return nil, err
	}

	if rc.Body != "" {
		req.SetBody([]byte(rc.Body))
	}
	if len(rc.Form) > 0 {
		form := make(url.Values, len(rc.Form))
		for k, v := range rc.Form {
			form.Set(k, v)
		}
		req.SetForm(form)
	}
	if len(rc.Headers) > 0 {
		req.SetHeaders(rc.Headers)
	}
	req.SetOptions(buildRequestOptions(rc.Options))

	return req, nil
}

// expandGrid generates one request per combination of dimension values.
func expandGrid(g GridConfig) ([]*rollingfetch.Request, error) {
	tmpl, err := template.New(g.Name).Parse(g.URLTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse url_template: %w", err)
	}

	method := strings.ToUpper(g.Method)
	if method == "" {
		method = "GET"
	}
	gridOpts := buildRequestOptions(g.Options)

	combos := cartesianProduct(g.Dimensions)

	requests := make([]*rollingfetch.Request, 0, len(combos))
	for _, combo := range combos {
		var sb strings.Builder
		if err := tmpl.Execute(&sb, combo); err != nil {
			return nil, fmt.Errorf("execute url_template for %v: %w", combo, err)
		}

		req, err := rollingfetch.NewRequest(method, sb.String())
		if err != nil {
			return nil, err
		}
		if len(g.Headers) > 0 {
			req.SetHeaders(g.Headers)
		}
		req.SetOptions(gridOpts)
		requests = append(requests, req)
	}

	return requests, nil
}

// cartesianProduct generates all combinations of dimension values.
// Dimension names are sorted so output order is stable across runs.
// A missing or empty dimension makes the product empty, not a combo of
// nothing.
func cartesianProduct(dimensions map[string][]string) []map[string]string {
	if len(dimensions) == 0 {
		return nil
	}

	names := make([]string, 0, len(dimensions))
	for name := range dimensions {
		if len(dimensions[name]) == 0 {
			return nil
		}
		names = append(names, name)
	}
	sort.Strings(names)

	total := 1
	for _, name := range names {
		total *= len(dimensions[name])
	}

	combos := make([]map[string]string, 0, total)
	indices := make([]int, len(names))

	for {
		combo := make(map[string]string, len(names))
		for i, name := range names {
			combo[name] = dimensions[name][indices[i]]
		}
		combos = append(combos, combo)

		// advance indices like an odometer, last dimension fastest
		pos := len(names) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(dimensions[names[pos]]) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}

	return combos
}

// buildRequestOptions converts a YAML option block into SDK Options.
func buildRequestOptions(o OptionsConfig) rollingfetch.Options {
	var opts rollingfetch.Options

	if o.FollowRedirects != nil {
		opts.FollowRedirects = rollingfetch.Bool(*o.FollowRedirects)
	}
	if o.MaxRedirects != nil {
		opts.MaxRedirects = rollingfetch.Int(*o.MaxRedirects)
	}
	if o.ConnectTimeout != nil {
		opts.ConnectTimeout = rollingfetch.Duration(time.Duration(*o.ConnectTimeout))
	}
	if o.Timeout != nil {
		opts.Timeout = rollingfetch.Duration(time.Duration(*o.Timeout))
	}
	if o.MaxBodySize != nil {
		opts.MaxBodySize = rollingfetch.Int64(*o.MaxBodySize)
	}

	return opts
}

// isZeroOptions reports whether no option field is set.
func isZeroOptions(o rollingfetch.Options) bool {
	return o.FollowRedirects == nil &&
		o.MaxRedirects == nil &&
		o.ConnectTimeout == nil &&
		o.Timeout == nil &&
		o.MaxBodySize == nil
}
