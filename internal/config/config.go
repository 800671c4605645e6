// Package config loads and validates profiler options from a JSON or YAML file.
//
// Options returned by Default carry every default; Load decodes a file over
// them, so keys absent from the file keep their defaults. CLI flags are
// applied by the caller after loading.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"schemaprof/internal/diff"
	"schemaprof/internal/extract"
	"schemaprof/internal/semantic"
)

// Options is the complete profiler configuration.
type Options struct {
	MaxSamples int `json:"max_samples" yaml:"max_samples"`
	// MaxDepth 0 records root-level members only.
	MaxDepth  int `json:"max_depth" yaml:"max_depth"`
	SampleCap int `json:"sample_cap" yaml:"sample_cap"`

	SemanticThreshold      float64 `json:"semantic_threshold" yaml:"semantic_threshold"`
	PIIThreshold           float64 `json:"pii_threshold" yaml:"pii_threshold"`
	SemanticChangeBreaking bool    `json:"semantic_change_breaking" yaml:"semantic_change_breaking"`

	// Workers bounds concurrent field analyses; 0 means one per CPU.
	Workers int `json:"workers" yaml:"workers"`

	// Format is auto, json, csv, yaml or html.
	Format        string `json:"format" yaml:"format"`
	Envelope      string `json:"envelope,omitempty" yaml:"envelope,omitempty"`
	TableSelector string `json:"table_selector,omitempty" yaml:"table_selector,omitempty"`

	Storage  Storage  `json:"storage" yaml:"storage"`
	Metrics  Metrics  `json:"metrics" yaml:"metrics"`
	Log      Log      `json:"log" yaml:"log"`
	Describe Describe `json:"describe" yaml:"describe"`
}

// Storage selects the snapshot repository. An empty Kind disables it.
type Storage struct {
	Kind string `json:"kind" yaml:"kind"`
	DSN  string `json:"dsn" yaml:"dsn"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	Backend    string   `json:"backend" yaml:"backend"` // none | datadog
	Job        string   `json:"job" yaml:"job"`
	Tags       []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	FlushEvery Duration `json:"flush_every" yaml:"flush_every"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Describe configures field captioning.
type Describe struct {
	Enabled   bool `json:"enabled" yaml:"enabled"`
	CacheSize int  `json:"cache_size" yaml:"cache_size"`
}

// Default returns the default options.
func Default() Options {
	return Options{
		MaxSamples:        extract.DefaultMaxSamples,
		MaxDepth:          extract.DefaultMaxDepth,
		SampleCap:         extract.DefaultSampleCap,
		SemanticThreshold: semantic.DefaultThreshold,
		PIIThreshold:      semantic.DefaultThreshold,
		Format:            "auto",
		Metrics:           Metrics{Backend: "none", Job: "schemaprof", FlushEvery: Duration(time.Minute)},
		Log:               Log{Level: "info", Format: "console"},
		Describe:          Describe{Enabled: true, CacheSize: 1024},
	}
}

// Load reads path over the defaults. The extension picks the decoder;
// unknown keys are rejected.
func Load(path string) (Options, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	opts := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			return Options{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
			return Options{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	default:
		return Options{}, fmt.Errorf("config: %s: unsupported extension (want .json, .yaml or .yml)", path)
	}
	return opts, nil
}

// ExtractConfig maps the extraction bounds.
func (o Options) ExtractConfig() extract.Config {
	depth := o.MaxDepth
	if depth == 0 {
		depth = extract.RootOnly
	}
	return extract.Config{MaxSamples: o.MaxSamples, MaxDepth: depth, SampleCap: o.SampleCap}
}

// Policy maps the diff classification options.
func (o Options) Policy() diff.Policy {
	return diff.Policy{SemanticChangeBreaking: o.SemanticChangeBreaking}
}

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	return d.parse(s)
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.parse(n.Value)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(v)
	return nil
}
