package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestParseMinimal verifies a minimal single-request config parses with
// defaults applied.
func TestParseMinimal(t *testing.T) {
	cfg, err := Parse([]byte(`
requests:
  - url: https://example.com
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Job.Name != "default" {
		t.Errorf("expected default job name, got %q", cfg.Job.Name)
	}
	if cfg.Window != 0 {
		t.Errorf("expected unset window, got %d", cfg.Window)
	}
	if len(cfg.Requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(cfg.Requests))
	}
	if cfg.Requests[0].URL != "https://example.com" {
		t.Errorf("unexpected url %q", cfg.Requests[0].URL)
	}
	jobs := cfg.JobList()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
}

// TestParseFull verifies every top-level field round-trips from YAML.
func TestParseFull(t *testing.T) {
	cfg, err := Parse([]byte(`
window: 8
wait_timeout: 500ms
rate_limit: 20
rate_burst: 5
options:
  follow_redirects: false
  max_redirects: 3
  connect_timeout: 5s
  timeout: 10s
  max_body_size: 65536
headers:
  User-Agent: rollingfetch/1.0
requests:
  - url: https://example.com/a
  - url: https://example.com/b
    method: post
    form:
      q: golang
    options:
      timeout: 2s
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Window != 8 {
		t.Errorf("expected window 8, got %d", cfg.Window)
	}
	if cfg.WaitTimeout == nil || cfg.WaitTimeout.Duration() != 500*time.Millisecond {
		t.Errorf("unexpected wait_timeout %v", cfg.WaitTimeout)
	}
	if cfg.RateLimit != 20 || cfg.RateBurst != 5 {
		t.Errorf("unexpected rate settings %v/%d", cfg.RateLimit, cfg.RateBurst)
	}
	if cfg.Options.FollowRedirects == nil || *cfg.Options.FollowRedirects {
		t.Error("expected follow_redirects false")
	}
	if cfg.Options.MaxRedirects == nil || *cfg.Options.MaxRedirects != 3 {
		t.Error("expected max_redirects 3")
	}
	if cfg.Options.ConnectTimeout == nil || cfg.Options.ConnectTimeout.Duration() != 5*time.Second {
		t.Error("expected connect_timeout 5s")
	}
	if cfg.Options.MaxBodySize == nil || *cfg.Options.MaxBodySize != 65536 {
		t.Error("expected max_body_size 65536")
	}
	if ua := cfg.Headers["User-Agent"]; ua != "rollingfetch/1.0" {
		t.Errorf("unexpected User-Agent %q", ua)
	}

	second := cfg.Requests[1]
	if second.Method != "post" {
		t.Errorf("unexpected method %q", second.Method)
	}
	if second.Form["q"] != "golang" {
		t.Errorf("unexpected form %v", second.Form)
	}
	if second.Options.Timeout == nil || second.Options.Timeout.Duration() != 2*time.Second {
		t.Error("expected per-request timeout 2s")
	}
}

// TestParseJobs verifies named jobs parse alongside the top-level job.
func TestParseJobs(t *testing.T) {
	cfg, err := Parse([]byte(`
requests:
  - url: https://example.com
jobs:
  - name: mirrors
    window: 4
    requests:
      - url: https://mirror.example.com
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	jobs := cfg.JobList()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Name != "default" || jobs[1].Name != "mirrors" {
		t.Errorf("unexpected job names %q, %q", jobs[0].Name, jobs[1].Name)
	}
	if jobs[1].Window != 4 {
		t.Errorf("expected mirrors window 4, got %d", jobs[1].Window)
	}
}

// TestParseValidationErrors verifies invalid configs are rejected with
// descriptive errors.
func TestParseValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no work",
			yaml:    `window: 4`,
			wantErr: "at least one request",
		},
		{
			name: "window too small",
			yaml: `
window: 1
requests:
  - url: https://example.com
`,
			wantErr: "window must be at least 2",
		},
		{
			name: "negative wait timeout",
			yaml: `
wait_timeout: -1s
requests:
  - url: https://example.com
`,
			wantErr: "wait_timeout cannot be negative",
		},
		{
			name: "missing url",
			yaml: `
requests:
  - method: GET
`,
			wantErr: "url is required",
		},
		{
			name: "bad method",
			yaml: `
requests:
  - url: https://example.com
    method: FETCH
`,
			wantErr: "unsupported method",
		},
		{
			name: "body and form together",
			yaml: `
requests:
  - url: https://example.com
    method: POST
    body: raw
    form:
      a: b
`,
			wantErr: "mutually exclusive",
		},
		{
			name: "unnamed job",
			yaml: `
jobs:
  - requests:
      - url: https://example.com
`,
			wantErr: "name is required",
		},
		{
			name: "duplicate job name",
			yaml: `
jobs:
  - name: a
    requests:
      - url: https://example.com
  - name: a
    requests:
      - url: https://example.com
`,
			wantErr: "duplicate job name",
		},
		{
			name: "empty job",
			yaml: `
jobs:
  - name: empty
`,
			wantErr: "at least one request or grid",
		},
		{
			name: "grid without template",
			yaml: `
grids:
  - name: g
    dimensions:
      env: [prod]
`,
			wantErr: "url_template is required",
		},
		{
			name: "grid without dimensions",
			yaml: `
grids:
  - name: g
    url_template: "https://{{.env}}.example.com"
`,
			wantErr: "at least one dimension",
		},
		{
			name: "grid empty dimension",
			yaml: `
grids:
  - name: g
    url_template: "https://{{.env}}.example.com"
    dimensions:
      env: []
`,
			wantErr: "has no values",
		},
		{
			name: "grid duplicate dimension value",
			yaml: `
grids:
  - name: g
    url_template: "https://{{.env}}.example.com"
    dimensions:
      env: [prod, prod]
`,
			wantErr: "duplicate value",
		},
		{
			name: "grid bad template",
			yaml: `
grids:
  - name: g
    url_template: "https://{{.env.example.com"
    dimensions:
      env: [prod]
`,
			wantErr: "invalid url_template",
		},
		{
			name: "negative max_redirects",
			yaml: `
requests:
  - url: https://example.com
    options:
      max_redirects: -1
`,
			wantErr: "max_redirects cannot be negative",
		},
		{
			name: "zero connect_timeout",
			yaml: `
requests:
  - url: https://example.com
    options:
      connect_timeout: 0s
`,
			wantErr: "connect_timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

// TestEnvVarExpansion verifies ${VAR} and ${VAR:-default} substitution in
// URLs and header values.
func TestEnvVarExpansion(t *testing.T) {
	t.Setenv("RF_HOST", "api.example.com")
	t.Setenv("RF_TOKEN", "secret")

	cfg, err := Parse([]byte(`
headers:
  Authorization: "Bearer ${RF_TOKEN}"
requests:
  - url: "https://${RF_HOST}/v1/items"
  - url: "https://${RF_MISSING:-fallback.example.com}/v1/items"
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if got := cfg.Headers["Authorization"]; got != "Bearer secret" {
		t.Errorf("unexpected header %q", got)
	}
	if got := cfg.Requests[0].URL; got != "https://api.example.com/v1/items" {
		t.Errorf("unexpected url %q", got)
	}
	if got := cfg.Requests[1].URL; got != "https://fallback.example.com/v1/items" {
		t.Errorf("unexpected fallback url %q", got)
	}
}

// TestEnvVarMissing verifies a missing variable without a default fails.
func TestEnvVarMissing(t *testing.T) {
	os.Unsetenv("RF_DEFINITELY_UNSET")

	_, err := Parse([]byte(`
requests:
  - url: "https://${RF_DEFINITELY_UNSET}/v1"
`))
	if err == nil {
		t.Fatal("expected error for unset variable")
	}
	if !strings.Contains(err.Error(), "RF_DEFINITELY_UNSET") {
		t.Errorf("error %q does not name the variable", err)
	}
}

// TestLoad verifies reading a config from disk.
func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	data := []byte(`
window: 3
requests:
  - url: https://example.com
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Window != 3 {
		t.Errorf("expected window 3, got %d", cfg.Window)
	}
}

// TestLoadMissingFile verifies a useful error for a missing file.
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("unexpected error %q", err)
	}
}

// TestDurationUnmarshal verifies the Duration wrapper accepts Go duration
// strings and rejects garbage.
func TestDurationUnmarshal(t *testing.T) {
	cfg, err := Parse([]byte(`
wait_timeout: 1m30s
requests:
  - url: https://example.com
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.WaitTimeout.Duration() != 90*time.Second {
		t.Errorf("expected 90s, got %s", cfg.WaitTimeout.Duration())
	}

	_, err = Parse([]byte(`
wait_timeout: soon
requests:
  - url: https://example.com
`))
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("unexpected error %q", err)
	}
}
