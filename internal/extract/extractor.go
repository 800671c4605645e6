// Package extract walks record streams and folds every field occurrence into
// per-path observations.
//
// Paths are dot-joined key names. Arrays are transparent to naming: the items
// of an array at "a.b" are tallied on "a.b" itself, and members of object items
// continue as "a.b.<key>" one level deeper.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"

	"schemaprof/internal/records"
	"schemaprof/internal/value"
)

const (
	DefaultMaxSamples = 1000
	DefaultMaxDepth   = 10
	DefaultSampleCap  = 10

	// RootOnly as Config.MaxDepth stops recursion below root-level members.
	RootOnly = -1
)

// Config bounds the memory an extraction pass may use.
type Config struct {
	// MaxSamples caps the number of top-level records read.
	MaxSamples int
	// MaxDepth is the deepest nesting level that is recursed into. A value
	// whose members would sit deeper is kept as an opaque value and its field
	// is flagged DepthTruncated. RootOnly records root-level members only.
	MaxDepth int
	// SampleCap caps retained distinct samples per field.
	SampleCap int
}

// DefaultConfig returns the default bounds.
func DefaultConfig() Config {
	return Config{MaxSamples: DefaultMaxSamples, MaxDepth: DefaultMaxDepth, SampleCap: DefaultSampleCap}
}

func (c Config) withDefaults() Config {
	if c.MaxSamples <= 0 {
		c.MaxSamples = DefaultMaxSamples
	}
	switch {
	case c.MaxDepth == 0:
		c.MaxDepth = DefaultMaxDepth
	case c.MaxDepth < 0:
		c.MaxDepth = RootOnly
	}
	if c.SampleCap <= 0 {
		c.SampleCap = DefaultSampleCap
	}
	return c
}

// Result is the output of one extraction pass.
type Result struct {
	Fields []Observation
	// Records is the number of top-level records observed.
	Records int
	// LimitReached reports that reading stopped at MaxSamples with at least
	// one more record left in the input.
	LimitReached bool
}

// Extractor runs extraction passes. It is safe to reuse; each Run owns its
// own Accumulator.
type Extractor struct {
	cfg   Config
	depth int
}

// New returns an Extractor. Zero fields of cfg take their defaults.
func New(cfg Config) *Extractor {
	cfg = cfg.withDefaults()
	return &Extractor{cfg: cfg, depth: max(cfg.MaxDepth, 0)}
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config { return e.cfg }

// Run reads records from r until EOF or MaxSamples.
//
// Errors:
//   - a *records.ParsingError from r aborts the pass
//   - ctx cancellation is checked between records and aborts the pass
//
// On any error the partial observations are discarded and Result is zero.
func (e *Extractor) Run(ctx context.Context, r records.Reader) (Result, error) {
	acc := NewAccumulator(e.cfg.SampleCap)
	n := 0
	for n < e.cfg.MaxSamples {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("extract: %w", err)
		}
		rec, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("extract: record %d: %w", n+1, err)
		}
		e.walkObject(acc, "", rec, 0)
		n++
	}
	res := Result{Records: n}
	if n >= e.cfg.MaxSamples {
		res.LimitReached = e.more(ctx, r)
	}
	res.Fields = acc.Finalize()
	return res, nil
}

// more reads one record past the limit and discards it. Any outcome other
// than EOF means the input was not exhausted, even a malformed record, which
// is never observed.
func (e *Extractor) more(ctx context.Context, r records.Reader) bool {
	_, err := r.Next(ctx)
	return !errors.Is(err, io.EOF)
}

// ObserveRecord folds a single record into acc using e's depth bound.
func (e *Extractor) ObserveRecord(acc *Accumulator, rec value.Object) {
	e.walkObject(acc, "", rec, 0)
}

func (e *Extractor) walkObject(acc *Accumulator, prefix string, obj value.Object, level int) {
	for _, m := range obj {
		path := m.Key
		if prefix != "" {
			path = prefix + "." + m.Key
		}
		id := acc.field(path, m.Key, level)
		acc.observe(id, m.Value)

		switch v := m.Value.(type) {
		case value.Object:
			if len(v) == 0 {
				continue
			}
			if level+1 > e.depth {
				acc.markTruncated(id)
				continue
			}
			e.walkObject(acc, path, v, level+1)
		case []any:
			e.walkItems(acc, id, path, v, level, true)
		}
	}
}

// walkItems tallies the items of the array field id and recurses into object
// items. Nested arrays are flattened into the same path; only the outermost
// items are tallied.
func (e *Extractor) walkItems(acc *Accumulator, id int, path string, items []any, level int, tally bool) {
	for _, it := range items {
		if tally {
			acc.observeItem(id, it)
		}
		switch v := it.(type) {
		case value.Object:
			if len(v) == 0 {
				continue
			}
			if level+1 > e.depth {
				acc.markTruncated(id)
				continue
			}
			e.walkObject(acc, path, v, level+1)
		case []any:
			e.walkItems(acc, id, path, v, level, false)
		}
	}
}
