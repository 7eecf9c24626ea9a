// Package config provides YAML configuration parsing for rollingfetch.
//
// This package enables running rollingfetch as a standalone binary with a
// job file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	window: 8
//	wait_timeout: 500ms
//
//	headers:
//	  User-Agent: rollingfetch/1.0
//
//	requests:
//	  - url: https://api.github.com
//	  - url: https://example.com/search
//	    method: POST
//	    form:
//	      q: golang
//
//	grids:
//	  - name: healthchecks
//	    url_template: "https://{{.env}}.example.com/health"
//	    dimensions:
//	      env: [prod, staging]
//
//	jobs:
//	  - name: mirrors
//	    window: 4
//	    requests:
//	      - url: https://mirror.example.com/index
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for rollingfetch.
//
// It maps directly to the YAML job file. The top-level request fields form
// an implicit default job; additional independent jobs, each run on its own
// scheduler, go under Jobs. Use [Load] or [Parse] to create a Config from
// YAML.
type Config struct {
	// Job holds the top-level (default) job fields, inlined in YAML.
	Job `yaml:",inline"`

	// Jobs defines additional independent jobs. Each job gets its own
	// scheduler; jobs run concurrently.
	Jobs []Job `yaml:"jobs"`
}

// Job describes one scheduler's worth of work.
type Job struct {
	// Name identifies the job in logs. The top-level job defaults to
	// "default"; explicit jobs must name themselves.
	Name string `yaml:"name"`

	// Window is the concurrency window. Zero means the SDK default (10);
	// explicit values must be at least 2.
	Window int `yaml:"window"`

	// WaitTimeout is the per-round wait timeout. Omitted means the SDK
	// default (1s); an explicit 0s disables blocking waits.
	WaitTimeout *Duration `yaml:"wait_timeout"`

	// RateLimit caps admissions per second. Zero means unlimited.
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the admission burst size when RateLimit is set.
	// Defaults to 1.
	RateBurst int `yaml:"rate_burst"`

	// Options is the job's base option set, layered under per-request
	// overrides.
	Options OptionsConfig `yaml:"options"`

	// Headers are the default headers for requests that carry none of
	// their own. Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Requests defines individual transfers.
	Requests []RequestConfig `yaml:"requests"`

	// Grids define request templates expanded via cartesian product.
	Grids []GridConfig `yaml:"grids"`
}

// RequestConfig defines a single transfer.
type RequestConfig struct {
	// URL is the target URL.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Method is the HTTP method. Defaults to GET.
	Method string `yaml:"method"`

	// Body is a raw request payload. Mutually exclusive with Form.
	Body string `yaml:"body"`

	// Form is a URL-encoded form payload. Mutually exclusive with Body.
	Form map[string]string `yaml:"form"`

	// Headers are custom headers for this request. When present they
	// fully replace the job's default headers.
	Headers map[string]string `yaml:"headers"`

	// Options are per-request option overrides.
	Options OptionsConfig `yaml:"options"`
}

// GridConfig defines a request template expanded via cartesian product.
//
// For example, with dimensions {env: [prod, staging], svc: [api, web]},
// the grid expands to 4 requests: prod/api, prod/web, staging/api,
// staging/web.
type GridConfig struct {
	// Name identifies the grid in error messages.
	Name string `yaml:"name"`

	// URLTemplate is a Go template for generating request URLs.
	// Dimension keys are available as template variables: {{.env}}, {{.svc}}
	// Supports environment variable substitution in the template.
	URLTemplate string `yaml:"url_template"`

	// Dimensions maps dimension names to their possible values.
	// The cartesian product of all dimensions generates the requests.
	Dimensions map[string][]string `yaml:"dimensions"`

	// Method is the HTTP method for all generated requests.
	Method string `yaml:"method"`

	// Headers are custom headers for all generated requests.
	Headers map[string]string `yaml:"headers"`

	// Options are option overrides for all generated requests.
	Options OptionsConfig `yaml:"options"`
}

// OptionsConfig mirrors the SDK's layered Options in YAML form.
// Omitted fields inherit from the layer below.
type OptionsConfig struct {
	FollowRedirects *bool     `yaml:"follow_redirects"`
	MaxRedirects    *int      `yaml:"max_redirects"`
	ConnectTimeout  *Duration `yaml:"connect_timeout"`
	Timeout         *Duration `yaml:"timeout"`
	MaxBodySize     *int64    `yaml:"max_body_size"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML job file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URLs, URL templates, and header
// values. The top-level job is named "default" unless it names itself.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Job.Name == "" {
		cfg.Job.Name = "default"
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// JobList returns every job carrying work: the top-level job (when it has
// any requests or grids) followed by the explicit jobs.
func (c *Config) JobList() []Job {
	var jobs []Job
	if len(c.Job.Requests) > 0 || len(c.Job.Grids) > 0 {
		jobs = append(jobs, c.Job)
	}
	jobs = append(jobs, c.Jobs...)
	return jobs
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if err := c.Job.expandAndValidate("job"); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Jobs)+1)
	seen[c.Job.Name] = true
	for i := range c.Jobs {
		job := &c.Jobs[i]
		label := fmt.Sprintf("jobs[%d]", i)

		if job.Name == "" {
			return fmt.Errorf("%s: name is required", label)
		}
		if seen[job.Name] {
			return fmt.Errorf("%s: duplicate job name %q", label, job.Name)
		}
		seen[job.Name] = true

		if len(job.Requests) == 0 && len(job.Grids) == 0 {
			return fmt.Errorf("%s (%s): at least one request or grid is required", label, job.Name)
		}

		if err := job.expandAndValidate(label); err != nil {
			return err
		}
	}

	if len(c.JobList()) == 0 {
		return errors.New("at least one request, grid, or job must be defined")
	}

	return nil
}

// expandAndValidate expands environment variables and validates one job.
func (j *Job) expandAndValidate(label string) error {
	if j.Window != 0 && j.Window < 2 {
		return fmt.Errorf("%s (%s): window must be at least 2, got %d", label, j.Name, j.Window)
	}
	if j.WaitTimeout != nil && j.WaitTimeout.Duration() < 0 {
		return fmt.Errorf("%s (%s): wait_timeout cannot be negative, got %s",
			label, j.Name, j.WaitTimeout.Duration())
	}
	if j.RateLimit < 0 {
		return fmt.Errorf("%s (%s): rate_limit cannot be negative, got %v", label, j.Name, j.RateLimit)
	}
	if j.RateBurst < 0 {
		return fmt.Errorf("%s (%s): rate_burst cannot be negative, got %d", label, j.Name, j.RateBurst)
	}

	for k, v := range j.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("%s (%s): headers[%s]: %w", label, j.Name, k, err)
		}
		j.Headers[k] = expanded
	}

	for i := range j.Requests {
		rc := &j.Requests[i]
		rcLabel := fmt.Sprintf("%s (%s): requests[%d]", label, j.Name, i)

		if rc.URL == "" {
			return fmt.Errorf("%s: url is required", rcLabel)
		}
		expanded, err := expandEnvVars(rc.URL)
		if err != nil {
			return fmt.Errorf("%s: url: %w", rcLabel, err)
		}
		rc.URL = expanded

		if err := validateMethod(rc.Method); err != nil {
			return fmt.Errorf("%s: %w", rcLabel, err)
		}

		if rc.Body != "" && len(rc.Form) > 0 {
			return fmt.Errorf("%s: body and form are mutually exclusive", rcLabel)
		}

		for k, v := range rc.Headers {
			expanded, err := expandEnvVars(v)
			if err != nil {
				return fmt.Errorf("%s: headers[%s]: %w", rcLabel, k, err)
			}
			rc.Headers[k] = expanded
		}

		if err := validateOptions(&rc.Options, rcLabel); err != nil {
			return err
		}
	}

	for i := range j.Grids {
		g := &j.Grids[i]
		gLabel := fmt.Sprintf("%s (%s): grids[%d]", label, j.Name, i)

		if g.Name == "" {
			return fmt.Errorf("%s: name is required", gLabel)
		}

		if g.URLTemplate == "" {
			return fmt.Errorf("%s (%s): url_template is required", gLabel, g.Name)
		}
		expanded, err := expandEnvVars(g.URLTemplate)
		if err != nil {
			return fmt.Errorf("%s (%s): url_template: %w", gLabel, g.Name, err)
		}
		g.URLTemplate = expanded

		// fail fast before the builder tries to use an invalid template
		if _, err := template.New("").Parse(g.URLTemplate); err != nil {
			return fmt.Errorf("%s (%s): invalid url_template: %w", gLabel, g.Name, err)
		}

		if len(g.Dimensions) == 0 {
			return fmt.Errorf("%s (%s): at least one dimension is required", gLabel, g.Name)
		}
		for dimName, dimValues := range g.Dimensions {
			if len(dimValues) == 0 {
				return fmt.Errorf("%s (%s): dimension %q has no values", gLabel, g.Name, dimName)
			}
			seen := make(map[string]struct{}, len(dimValues))
			for _, v := range dimValues {
				if _, exists := seen[v]; exists {
					return fmt.Errorf("%s (%s): dimension %q has duplicate value %q",
						gLabel, g.Name, dimName, v)
				}
				seen[v] = struct{}{}
			}
		}

		for k, v := range g.Headers {
			expanded, err := expandEnvVars(v)
			if err != nil {
				return fmt.Errorf("%s (%s): headers[%s]: %w", gLabel, g.Name, k, err)
			}
			g.Headers[k] = expanded
		}

		if err := validateMethod(g.Method); err != nil {
			return fmt.Errorf("%s (%s): %w", gLabel, g.Name, err)
		}

		if err := validateOptions(&g.Options, fmt.Sprintf("%s (%s)", gLabel, g.Name)); err != nil {
			return err
		}
	}

	return nil
}

// validateMethod checks the HTTP method against the set the SDK accepts.
// An empty method is valid and means GET.
func validateMethod(method string) error {
	switch strings.ToUpper(method) {
	case "", "GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS":
		return nil
	default:
		return fmt.Errorf("unsupported method %q", method)
	}
}

// validateOptions validates an option block.
func validateOptions(o *OptionsConfig, context string) error {
	if o.MaxRedirects != nil && *o.MaxRedirects < 0 {
		return fmt.Errorf("%s: max_redirects cannot be negative, got %d", context, *o.MaxRedirects)
	}
	if o.ConnectTimeout != nil && o.ConnectTimeout.Duration() <= 0 {
		return fmt.Errorf("%s: connect_timeout must be positive, got %s", context, o.ConnectTimeout.Duration())
	}
	if o.Timeout != nil && o.Timeout.Duration() < 0 {
		return fmt.Errorf("%s: timeout cannot be negative, got %s", context, o.Timeout.Duration())
	}
	if o.MaxBodySize != nil && *o.MaxBodySize <= 0 {
		return fmt.Errorf("%s: max_body_size must be positive, got %d", context, *o.MaxBodySize)
	}
	return nil
}
