package config

import (
	"fmt"
	"os"
	"strings"

	"schemaprof/internal/logging"
	"schemaprof/internal/parser"
)

// Severity grades a validation Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is the dotted option key.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string { return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message) }

// Issues is the result of Validate.
type Issues []Issue

// HasErrors reports whether any issue is an error.
func (is Issues) HasErrors() bool {
	for _, i := range is {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks o. Errors make the options unusable; warnings are advisory.
func (o Options) Validate() Issues {
	var is Issues
	add := func(sev Severity, path, format string, args ...any) {
		is = append(is, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if o.MaxSamples <= 0 {
		add(SeverityError, "max_samples", "must be > 0, got %d", o.MaxSamples)
	}
	if o.MaxDepth < 0 {
		add(SeverityError, "max_depth", "must be >= 0, got %d", o.MaxDepth)
	}
	if o.SampleCap <= 0 {
		add(SeverityError, "sample_cap", "must be > 0, got %d", o.SampleCap)
	} else if o.SampleCap > 100 {
		add(SeverityWarning, "sample_cap", "%d samples per field makes snapshots large", o.SampleCap)
	}
	thresholds := []struct {
		path string
		v    float64
	}{{"semantic_threshold", o.SemanticThreshold}, {"pii_threshold", o.PIIThreshold}}
	for _, th := range thresholds {
		if th.v <= 0 || th.v > 1 {
			add(SeverityError, th.path, "must be in (0, 1], got %g", th.v)
		}
	}
	if o.Workers < 0 {
		add(SeverityError, "workers", "must be >= 0, got %d", o.Workers)
	}
	if _, err := parser.ParseFormat(o.Format); err != nil {
		add(SeverityError, "format", "unknown format %q", o.Format)
	}

	if o.Storage.Kind != "" {
		switch NormalizeBackend(o.Storage.Kind) {
		case "postgres", "mssql", "sqlite":
			if strings.TrimSpace(o.Storage.DSN) == "" {
				add(SeverityError, "storage.dsn", "required when storage.kind is set")
			}
		default:
			add(SeverityError, "storage.kind", "unsupported backend %q (want postgres, mssql or sqlite)", o.Storage.Kind)
		}
	}

	switch strings.ToLower(o.Metrics.Backend) {
	case "", "none":
	case "datadog":
		if os.Getenv("DD_API_KEY") == "" {
			add(SeverityWarning, "metrics.backend", "DD_API_KEY is not set; submissions will be rejected")
		}
	default:
		add(SeverityError, "metrics.backend", "unsupported backend %q (want none or datadog)", o.Metrics.Backend)
	}
	if o.Metrics.FlushEvery < 0 {
		add(SeverityError, "metrics.flush_every", "must not be negative")
	}

	if _, err := logging.ParseLevel(o.Log.Level); err != nil {
		add(SeverityError, "log.level", "unknown level %q", o.Log.Level)
	}
	switch strings.ToLower(o.Log.Format) {
	case "", "console", "json":
	default:
		add(SeverityError, "log.format", "unknown format %q (want console or json)", o.Log.Format)
	}

	if o.Describe.CacheSize < 0 {
		add(SeverityError, "describe.cache_size", "must be >= 0, got %d", o.Describe.CacheSize)
	}
	return is
}
