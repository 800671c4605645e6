// Package profile runs a complete profiling pass: a sequential extraction over
// one record stream, then independent per-field analysis fanned out over a
// bounded worker pool, then a Snapshot in first-seen field order.
package profile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"schemaprof/internal/describe"
	"schemaprof/internal/extract"
	"schemaprof/internal/infer"
	"schemaprof/internal/metrics"
	"schemaprof/internal/parser"
	"schemaprof/internal/pii"
	"schemaprof/internal/quality"
	"schemaprof/internal/records"
	"schemaprof/internal/schema"
	"schemaprof/internal/semantic"
	"schemaprof/internal/value"
)

// Options configures a Profiler. Zero values take defaults.
type Options struct {
	Extract extract.Config

	SemanticThreshold float64
	PIIThreshold      float64

	// Workers bounds concurrent field analyses. <= 0 means runtime.NumCPU().
	Workers int

	// Describer captions fields. Nil skips captioning.
	Describer describe.Describer

	Logger *zap.Logger
}

// Meta labels the snapshot produced by a pass.
type Meta struct {
	Name   string
	Source string
	Format string
}

// Result is the outcome of one profiling pass.
type Result struct {
	Snapshot    schema.Snapshot
	RecordsRead int
	// Truncated reports that reading stopped at the record limit.
	Truncated bool
	Duration  time.Duration
}

// Profiler is safe for concurrent use; each pass owns its own state.
type Profiler struct {
	extractor *extract.Extractor
	semantic  *semantic.Detector
	pii       *pii.Detector
	describer describe.Describer
	workers   int
	log       *zap.Logger
}

// New builds a Profiler from opts.
func New(opts Options) *Profiler {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Profiler{
		extractor: extract.New(opts.Extract),
		semantic:  semantic.New(opts.SemanticThreshold),
		pii:       pii.New(opts.PIIThreshold),
		describer: opts.Describer,
		workers:   workers,
		log:       log,
	}
}

// ProfileFile opens path, picks a format (explicit, then extension, then
// sniffing) and profiles it.
func (p *Profiler) ProfileFile(ctx context.Context, path string, popts parser.Options, name string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("profile: open %s: %w", path, err)
	}
	defer f.Close()

	if popts.Format == "" || popts.Format == parser.FormatAuto {
		popts.Format = parser.FormatFromPath(path)
	}
	if popts.Comma == 0 && strings.EqualFold(filepath.Ext(path), ".tsv") {
		popts.Comma = '\t'
	}
	return p.ProfileReader(ctx, f, popts, Meta{Name: name, Source: path})
}

// ProfileReader profiles one document read from r.
func (p *Profiler) ProfileReader(ctx context.Context, r io.Reader, popts parser.Options, meta Meta) (Result, error) {
	rd, format, err := parser.Open(r, popts)
	if err != nil {
		p.record(string(format), "error", 0)
		return Result{}, fmt.Errorf("profile: %w", err)
	}
	meta.Format = string(format)
	return p.Profile(ctx, rd, meta)
}

// Profile runs extraction over r and analyzes every field.
//
// A parsing error or cancellation during extraction fails the whole pass and
// no fields are returned. Failures inside a single field's analysis only drop
// the affected sub-result, which is named in FieldRecord.Degraded.
func (p *Profiler) Profile(ctx context.Context, r records.Reader, meta Meta) (Result, error) {
	start := time.Now()
	log := p.log.With(zap.String("source", meta.Source), zap.String("format", meta.Format))
	log.Debug("profiling started")

	ex, err := p.extractor.Run(ctx, r)
	if err != nil {
		p.record(meta.Format, "error", time.Since(start))
		log.Error("profiling failed", zap.Error(err))
		return Result{}, fmt.Errorf("profile: %w", err)
	}

	fields := p.Analyze(ctx, ex.Fields)

	snap := schema.NewSnapshot(fields)
	snap.Name = meta.Name
	snap.Source = meta.Source
	snap.Format = meta.Format
	snap.Records = ex.Records

	degraded := 0
	for _, f := range fields {
		if f.DepthTruncated {
			log.Debug("depth truncated", zap.String("field", f.Path), zap.Int("level", f.Level))
		}
		if len(f.Degraded) > 0 {
			degraded++
		}
	}

	dur := time.Since(start)
	p.record(meta.Format, "ok", dur)
	labels := metrics.Labels{"format": formatLabel(meta.Format)}
	metrics.IncCounter(metrics.RecordsTotal, float64(ex.Records), labels)
	metrics.IncCounter(metrics.FieldsTotal, float64(len(fields)), labels)
	metrics.IncCounter(metrics.DegradedTotal, float64(degraded), labels)

	log.Info("profiling finished",
		zap.Int("records", ex.Records),
		zap.Int("fields", len(fields)),
		zap.Int("degraded", degraded),
		zap.Bool("truncated", ex.LimitReached),
		zap.String("hash", snap.Hash),
		zap.Duration("duration", dur.Truncate(time.Millisecond)),
	)

	return Result{Snapshot: snap, RecordsRead: ex.Records, Truncated: ex.LimitReached, Duration: dur}, nil
}

// Analyze turns finalized observations into field records. Fields are
// analyzed concurrently and written into a position-indexed slice, so the
// output keeps the input order.
func (p *Profiler) Analyze(ctx context.Context, obs []extract.Observation) []schema.FieldRecord {
	out := make([]schema.FieldRecord, len(obs))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i := range obs {
		i := i
		g.Go(func() error {
			out[i] = p.analyzeField(ctx, obs[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (p *Profiler) analyzeField(ctx context.Context, o extract.Observation) schema.FieldRecord {
	rec := schema.FieldRecord{
		Path:           o.Path,
		Name:           o.Name,
		Level:          o.Level,
		TypesSeen:      o.TypesSeen,
		NullCount:      o.NullCount,
		TotalCount:     o.TotalCount,
		Samples:        o.Samples,
		IsArray:        o.IsArray,
		ArrayItemTypes: o.ArrayItemTypes,
		DepthTruncated: o.DepthTruncated,
		DataType:       value.Null.String(),
		IsNullable:     o.NullCount > 0,
	}

	kind := value.Null
	p.guard(&rec, "data_type", func() {
		var conf float64
		kind, conf = infer.Type(o.TypesSeen)
		rec.DataType, rec.TypeConfidence = kind.String(), conf
		if o.IsArray && o.ArrayItemTypes.Total() > 0 {
			ik, ic := infer.ArrayItemType(o.ArrayItemTypes)
			rec.ArrayItemType, rec.ArrayItemConfidence = ik.String(), ic
		}
	})

	var sem semantic.Category
	p.guard(&rec, "semantic_type", func() {
		sem = p.semantic.Detect(o.Name, o.Samples, kind)
		rec.SemanticType = string(sem)
	})

	p.guard(&rec, "pii", func() {
		isPII, t := p.pii.Detect(o.Path, o.Name, sem, o.Samples)
		rec.IsPII, rec.PIIType = isPII, string(t)
	})

	p.guard(&rec, "quality", func() {
		m := quality.Analyze(o.Samples, o.TotalCount, o.NullCount, kind)
		rec.NullPercentage = m.NullPercentage
		rec.DistinctCount = m.DistinctCount
		rec.CardinalityRatio = m.CardinalityRatio
		rec.Min, rec.Max, rec.Mean, rec.Median = m.Min, m.Max, m.Mean, m.Median
		rec.StdDev = m.StdDev
		rec.Percentile25, rec.Percentile50, rec.Percentile75 = m.Percentile25, m.Percentile50, m.Percentile75
		rec.Degraded = append(rec.Degraded, m.Degraded...)
	})

	if p.describer != nil {
		p.describe(ctx, &rec)
	}

	if len(rec.Degraded) > 0 {
		p.log.Warn("field analysis degraded", zap.String("field", rec.Path), zap.Strings("omitted", rec.Degraded))
	}
	return rec
}

// guard runs one analysis stage. A panic inside it is recorded as a degraded
// sub-result of rec instead of crashing the pass.
func (p *Profiler) guard(rec *schema.FieldRecord, stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			rec.Degraded = append(rec.Degraded, stage)
			p.log.Debug("analysis stage panicked", zap.String("field", rec.Path), zap.String("stage", stage), zap.Any("panic", r))
		}
	}()
	fn()
}

func (p *Profiler) describe(ctx context.Context, rec *schema.FieldRecord) {
	var (
		out describe.Output
		err error
	)
	p.guard(rec, "description", func() {
		out, err = p.describer.Describe(ctx, describe.Input{
			FieldPath:    rec.Path,
			FieldName:    rec.Name,
			DataType:     rec.DataType,
			SemanticType: rec.SemanticType,
			Samples:      rec.Samples,
		})
	})
	if err != nil {
		p.log.Warn("describe failed", zap.String("field", rec.Path), zap.Error(err))
		return
	}
	rec.Description = out.Description
	rec.BusinessName = out.BusinessName
}

func (p *Profiler) record(format, status string, dur time.Duration) {
	labels := metrics.Labels{"format": formatLabel(format), "status": status}
	metrics.IncCounter(metrics.IngestTotal, 1, labels)
	metrics.ObserveHistogram(metrics.IngestDuration, dur.Seconds(), labels)
}

func formatLabel(f string) string {
	if f == "" {
		return "unknown"
	}
	return f
}
