package config

import (
	"fmt"
	"testing"
	"time"
)

// TestBuildRequestsSimple verifies direct request conversion.
func TestBuildRequestsSimple(t *testing.T) {
	job := Job{
		Requests: []RequestConfig{
			{URL: "https://example.com/a"},
			{URL: "https://example.com/b", Method: "post", Body: "payload"},
		},
	}

	reqs, err := BuildRequests(job)
	if err != nil {
		t.Fatalf("BuildRequests failed: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}

	if reqs[0].Method() != "GET" {
		t.Errorf("expected default GET, got %q", reqs[0].Method())
	}
	if reqs[1].Method() != "POST" {
		t.Errorf("expected uppercased POST, got %q", reqs[1].Method())
	}
	if string(reqs[1].Body()) != "payload" {
		t.Errorf("unexpected body %q", reqs[1].Body())
	}
}

// TestBuildRequestsForm verifies form payloads are URL-encoded.
func TestBuildRequestsForm(t *testing.T) {
	job := Job{
		Requests: []RequestConfig{
			{
				URL:    "https://example.com/search",
				Method: "POST",
				Form:   map[string]string{"q": "go http"},
			},
		},
	}

	reqs, err := BuildRequests(job)
	if err != nil {
		t.Fatalf("BuildRequests failed: %v", err)
	}
	if got := string(reqs[0].Body()); got != "q=go+http" {
		t.Errorf("unexpected encoded form %q", got)
	}
}

// TestBuildRequestsGrid verifies cartesian expansion in deterministic order.
func TestBuildRequestsGrid(t *testing.T) {
	job := Job{
		Grids: []GridConfig{
			{
				Name:        "matrix",
				URLTemplate: "https://{{.env}}.example.com/{{.svc}}",
				Dimensions: map[string][]string{
					"env": {"prod", "staging"},
					"svc": {"api", "web"},
				},
			},
		},
	}

	reqs, err := BuildRequests(job)
	if err != nil {
		t.Fatalf("BuildRequests failed: %v", err)
	}

	want := []string{
		"https://prod.example.com/api",
		"https://prod.example.com/web",
		"https://staging.example.com/api",
		"https://staging.example.com/web",
	}
	if len(reqs) != len(want) {
		t.Fatalf("expected %d requests, got %d", len(want), len(reqs))
	}
	for i, w := range want {
		if reqs[i].URL() != w {
			t.Errorf("request %d: expected %q, got %q", i, w, reqs[i].URL())
		}
	}
}

// TestBuildRequestsGridOptions verifies grid-level headers and options are
// applied to every generated request.
func TestBuildRequestsGridOptions(t *testing.T) {
	timeout := Duration(2 * time.Second)
	job := Job{
		Grids: []GridConfig{
			{
				Name:        "checks",
				URLTemplate: "https://{{.host}}/health",
				Dimensions:  map[string][]string{"host": {"a.example.com", "b.example.com"}},
				Headers:     map[string]string{"X-Probe": "1"},
				Options:     OptionsConfig{Timeout: &timeout},
			},
		},
	}

	reqs, err := BuildRequests(job)
	if err != nil {
		t.Fatalf("BuildRequests failed: %v", err)
	}
	for i, req := range reqs {
		if req.Headers()["X-Probe"] != "1" {
			t.Errorf("request %d: missing grid header", i)
		}
		opts := req.Options()
		if opts.Timeout == nil || *opts.Timeout != 2*time.Second {
			t.Errorf("request %d: missing grid timeout", i)
		}
	}
}

// TestCartesianProduct verifies combination counts for varying dimensions,
// including degenerate inputs that bypass config validation.
func TestCartesianProduct(t *testing.T) {
	tests := []struct {
		dims map[string][]string
		want int
	}{
		{map[string][]string{"a": {"1"}}, 1},
		{map[string][]string{"a": {"1", "2"}, "b": {"x", "y", "z"}}, 6},
		{map[string][]string{"a": {"1", "2"}, "b": {"x"}, "c": {"p", "q"}}, 4},
		{map[string][]string{}, 0},
		{nil, 0},
		{map[string][]string{"a": {"1", "2"}, "b": {}}, 0},
	}

	for i, tt := range tests {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			combos := cartesianProduct(tt.dims)
			if len(combos) != tt.want {
				t.Errorf("expected %d combinations, got %d", tt.want, len(combos))
			}
			seen := make(map[string]bool, len(combos))
			for _, combo := range combos {
				key := fmt.Sprint(combo)
				if seen[key] {
					t.Errorf("duplicate combination %v", combo)
				}
				seen[key] = true
			}
		})
	}
}

// TestBuildRequestsGridNoDimensions verifies a hand-built grid without
// dimensions expands to nothing rather than emitting the raw template URL.
func TestBuildRequestsGridNoDimensions(t *testing.T) {
	job := Job{
		Grids: []GridConfig{
			{
				Name:        "degenerate",
				URLTemplate: "https://{{.env}}.example.com/health",
			},
		},
	}

	reqs, err := BuildRequests(job)
	if err != nil {
		t.Fatalf("BuildRequests failed: %v", err)
	}
	if len(reqs) != 0 {
		t.Errorf("expected no requests, got %d (first: %q)", len(reqs), reqs[0].URL())
	}
}

// TestBuildOptions verifies job settings map onto SDK options without error.
func TestBuildOptions(t *testing.T) {
	wait := Duration(250 * time.Millisecond)
	follow := false
	job := Job{
		Window:      4,
		WaitTimeout: &wait,
		RateLimit:   10,
		Headers:     map[string]string{"User-Agent": "rollingfetch-test"},
		Options:     OptionsConfig{FollowRedirects: &follow},
	}

	opts := BuildOptions(job)
	if len(opts) != 5 {
		t.Fatalf("expected 5 options, got %d", len(opts))
	}
}

// TestBuildOptionsEmpty verifies an all-default job yields no options.
func TestBuildOptionsEmpty(t *testing.T) {
	if opts := BuildOptions(Job{}); len(opts) != 0 {
		t.Errorf("expected no options, got %d", len(opts))
	}
}
