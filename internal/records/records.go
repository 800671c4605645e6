// Package records defines the pull-based record stream contract shared by the
// input adapters and the extractor.
package records

import (
	"context"
	"fmt"
	"io"

	"schemaprof/internal/value"
)

// Reader yields top-level records one at a time.
//
// Next returns io.EOF once the input is exhausted. Malformed input is reported
// as a *ParsingError. Implementations check ctx between records only.
type Reader interface {
	Next(ctx context.Context) (value.Object, error)
}

// ParsingError reports malformed or truncated input.
//
// Offset and Line are best-effort positions: adapters that read through a
// buffer report the position of the consumed input, which may run ahead of the
// exact failing byte. Line is 1-based; zero means unknown.
type ParsingError struct {
	Format string
	Offset int64
	Line   int
	Err    error
}

func (e *ParsingError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: parse error near line %d (byte %d): %v", e.Format, e.Line, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s: parse error near byte %d: %v", e.Format, e.Offset, e.Err)
}

func (e *ParsingError) Unwrap() error { return e.Err }

// CountingReader wraps an io.Reader and tracks how many bytes and newlines
// have been consumed from it.
type CountingReader struct {
	R     io.Reader
	N     int64
	Lines int
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.N += int64(n)
	for _, b := range p[:n] {
		if b == '\n' {
			c.Lines++
		}
	}
	return n, err
}

// Position returns the consumed byte count and the 1-based line number.
func (c *CountingReader) Position() (int64, int) {
	return c.N, c.Lines + 1
}

// Slice is an in-memory Reader over already materialized records.
type Slice struct {
	Records []value.Object
	pos     int
}

func (s *Slice) Next(ctx context.Context) (value.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.Records) {
		return nil, io.EOF
	}
	r := s.Records[s.pos]
	s.pos++
	return r, nil
}

// Drain reads r to exhaustion.
func Drain(ctx context.Context, r Reader) ([]value.Object, error) {
	var out []value.Object
	for {
		rec, err := r.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
