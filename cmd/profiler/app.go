package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"schemaprof/internal/config"
	"schemaprof/internal/describe"
	"schemaprof/internal/logging"
	"schemaprof/internal/metrics"
	"schemaprof/internal/metrics/datadog"
	"schemaprof/internal/parser"
	"schemaprof/internal/profile"
	"schemaprof/internal/storage"
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath     string
	logLevel       string
	logFormat      string
	metricsBackend string
	storageKind    string
	dsn            string
}

// app holds what the subcommands share: the merged options, the logger and
// the lazily opened repository.
type app struct {
	stdout io.Writer
	stderr io.Writer

	flags rootFlags
	opts  config.Options
	log   *zap.Logger

	repo    storage.Repository
	closers []func()
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, opts: config.Default(), log: zap.NewNop()}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "profiler",
		Short:         "Infer, version and diff schemas of structured data files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (.json, .yaml or .yml)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "log format: console or json")
	pf.StringVar(&a.flags.metricsBackend, "metrics-backend", "", "metrics backend: none or datadog (overrides env METRICS_BACKEND)")
	pf.StringVar(&a.flags.storageKind, "storage", "", "snapshot storage backend: sqlite, postgres or mssql")
	pf.StringVar(&a.flags.dsn, "dsn", "", "storage DSN (overrides config and env DSN)")

	root.AddCommand(
		a.profileCommand(),
		a.hashCommand(),
		a.diffCommand(),
		a.versionsCommand(),
	)
	return root
}

// setup merges config file, environment and flags, validates the result and
// builds the logger and metrics backend.
func (a *app) setup(cmd *cobra.Command) error {
	if a.flags.configPath != "" {
		opts, err := config.Load(a.flags.configPath)
		if err != nil {
			return err
		}
		a.opts = opts
	}

	// Decide metrics backend: flag → env → config.
	if a.flags.metricsBackend != "" {
		a.opts.Metrics.Backend = a.flags.metricsBackend
	} else if v := os.Getenv("METRICS_BACKEND"); v != "" {
		a.opts.Metrics.Backend = v
	}
	if a.flags.logLevel != "" {
		a.opts.Log.Level = a.flags.logLevel
	}
	if a.flags.logFormat != "" {
		a.opts.Log.Format = a.flags.logFormat
	}
	if a.flags.storageKind != "" {
		a.opts.Storage.Kind = a.flags.storageKind
	}
	if a.opts.Storage.Kind != "" {
		dsn, ok, err := config.ResolveDSN(a.opts.Storage.Kind, a.flags.dsn, a.opts.Storage.DSN, os.Getenv)
		if err != nil {
			return err
		}
		if ok {
			a.opts.Storage.DSN = dsn
		}
	}

	issues := a.opts.Validate()
	for _, iss := range issues {
		fmt.Fprintf(a.stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if issues.HasErrors() {
		return fmt.Errorf("invalid configuration")
	}

	log, err := logging.New(logging.Options{Level: a.opts.Log.Level, Format: a.opts.Log.Format})
	if err != nil {
		return err
	}
	a.log = log
	a.closers = append(a.closers, func() { _ = log.Sync() })

	a.setupMetrics(cmd.Context())
	return nil
}

func (a *app) setupMetrics(ctx context.Context) {
	switch strings.ToLower(a.opts.Metrics.Backend) {
	case "datadog":
		tags := append(append([]string(nil), a.opts.Metrics.Tags...), datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))...)
		b, err := datadog.NewBackend(context.WithoutCancel(ctx), datadog.Options{
			JobName:    a.opts.Metrics.Job,
			Tags:       tags,
			FlushEvery: time.Duration(a.opts.Metrics.FlushEvery),
		})
		if err != nil {
			a.log.Warn("metrics: datadog backend unavailable; using nop", zap.Error(err))
			return
		}
		a.log.Debug("metrics: datadog enabled", zap.String("job", a.opts.Metrics.Job), zap.Strings("tags", tags))
		metrics.SetBackend(b)
		// Close stops the flush loop and submits what is still buffered.
		a.closers = append(a.closers, func() {
			if err := b.Close(); err != nil {
				a.log.Warn("metrics: datadog close/flush error", zap.Error(err))
			}
			metrics.SetBackend(nil)
		})
	default:
		a.log.Debug("metrics: disabled", zap.String("backend", a.opts.Metrics.Backend))
	}
}

// close runs the registered cleanups in reverse order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// repository opens the configured snapshot store once.
func (a *app) repository(ctx context.Context) (storage.Repository, error) {
	if a.repo != nil {
		return a.repo, nil
	}
	if a.opts.Storage.Kind == "" {
		return nil, fmt.Errorf("no snapshot storage configured (use --storage or storage.kind)")
	}
	kind := config.NormalizeBackend(a.opts.Storage.Kind)
	repo, err := storage.Open(ctx, storage.Config{Kind: kind, DSN: a.opts.Storage.DSN})
	if err != nil {
		return nil, err
	}
	a.repo = repo
	a.closers = append(a.closers, repo.Close)
	a.log.Debug("storage: opened", zap.String("kind", kind))
	return repo, nil
}

// profiler builds a Profiler from the merged options.
func (a *app) profiler(withDescriptions bool) (*profile.Profiler, error) {
	var d describe.Describer
	if withDescriptions && a.opts.Describe.Enabled {
		d = describe.Humanizer{}
		if a.opts.Describe.CacheSize > 0 {
			c, err := describe.NewCached(d, a.opts.Describe.CacheSize)
			if err != nil {
				return nil, err
			}
			d = c
		}
	}
	return profile.New(profile.Options{
		Extract:           a.opts.ExtractConfig(),
		SemanticThreshold: a.opts.SemanticThreshold,
		PIIThreshold:      a.opts.PIIThreshold,
		Workers:           a.opts.Workers,
		Describer:         d,
		Logger:            a.log,
	}), nil
}

func (a *app) parserOptions() (parser.Options, error) {
	f, err := parser.ParseFormat(a.opts.Format)
	if err != nil {
		return parser.Options{}, err
	}
	return parser.Options{Format: f, Envelope: a.opts.Envelope, TableSelector: a.opts.TableSelector}, nil
}

// extractFlags binds the extraction options shared by profile, hash and diff.
// Values are applied to a.opts only when the flag was set.
type extractFlags struct {
	format        string
	envelope      string
	tableSelector string
	maxSamples    int
	maxDepth      int
	sampleCap     int
	workers       int
}

func (e *extractFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&e.format, "format", "", "input format: auto, json, csv, yaml or html")
	f.StringVar(&e.envelope, "envelope", "", "JSON object key holding the record array")
	f.StringVar(&e.tableSelector, "table-selector", "", "CSS selector of the HTML table to read")
	f.IntVar(&e.maxSamples, "max-samples", 0, "maximum top-level records to read")
	f.IntVar(&e.maxDepth, "max-depth", 0, "maximum nesting depth to recurse into")
	f.IntVar(&e.sampleCap, "sample-cap", 0, "retained sample values per field")
	f.IntVar(&e.workers, "workers", 0, "concurrent field analyses (0 = one per CPU)")
}

func (e *extractFlags) apply(cmd *cobra.Command, o *config.Options) error {
	f := cmd.Flags()
	if f.Changed("format") {
		o.Format = e.format
	}
	if f.Changed("envelope") {
		o.Envelope = e.envelope
	}
	if f.Changed("table-selector") {
		o.TableSelector = e.tableSelector
	}
	if f.Changed("max-samples") {
		o.MaxSamples = e.maxSamples
	}
	if f.Changed("max-depth") {
		o.MaxDepth = e.maxDepth
	}
	if f.Changed("sample-cap") {
		o.SampleCap = e.sampleCap
	}
	if f.Changed("workers") {
		o.Workers = e.workers
	}
	if is := o.Validate(); is.HasErrors() {
		for _, iss := range is {
			if iss.Severity == config.SeverityError {
				return fmt.Errorf("%s", iss)
			}
		}
	}
	return nil
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

func checkOutput(s string) error {
	switch s {
	case "table", "json":
		return nil
	default:
		return fmt.Errorf("unknown --output %q (want table or json)", s)
	}
}
