// Package csv adapts delimited text into records.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"schemaprof/internal/records"
	"schemaprof/internal/value"
)

// Options configures a Reader.
type Options struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// HeaderMap renames header cells (after trimming) before they become keys.
	HeaderMap map[string]string
	// KeepSpace disables trimming of surrounding whitespace in cells.
	KeepSpace bool
	// LazyQuotes relaxes quote handling (see encoding/csv).
	LazyQuotes bool
}

// Reader yields one record per data row, keyed by the header row.
//
// Cells are typed loosely: empty cells become null, then integer, float and
// boolean literals are recognized, and everything else stays a string. Short
// rows leave the missing columns absent; surplus cells are keyed column_N.
type Reader struct {
	cr      *csv.Reader
	header  []string
	opts    Options
	started bool
}

// NewReader returns a Reader consuming r. The first row must be the header.
func NewReader(r io.Reader, opts Options) *Reader {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = opts.LazyQuotes
	cr.ReuseRecord = true
	return &Reader{cr: cr, opts: opts}
}

func (r *Reader) Next(ctx context.Context) (value.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.started {
		r.started = true
		if err := r.readHeader(); err != nil {
			return nil, err
		}
	}

	for {
		rec, err := r.cr.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, r.fail(err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}

		obj := make(value.Object, 0, len(rec))
		for i, cell := range rec {
			key := fmt.Sprintf("column_%d", i+1)
			if i < len(r.header) {
				key = r.header[i]
			}
			if !r.opts.KeepSpace {
				cell = strings.TrimSpace(cell)
			}
			obj = append(obj, value.Member{Key: key, Value: TypeCell(cell)})
		}
		return obj, nil
	}
}

func (r *Reader) readHeader() error {
	hdr, err := r.cr.Read()
	if err == io.EOF {
		return io.EOF
	}
	if err != nil {
		return r.fail(fmt.Errorf("read header: %w", err))
	}
	r.header = make([]string, len(hdr))
	for i, h := range hdr {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		if mapped, ok := r.opts.HeaderMap[h]; ok {
			h = mapped
		}
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		r.header[i] = h
	}
	return nil
}

// TypeCell converts a raw cell into a typed value.
func TypeCell(s string) any {
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !strings.ContainsAny(s, "xXpP_") && !isSpecialFloat(s) {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

// isSpecialFloat rejects words ParseFloat accepts but data files mean as text.
func isSpecialFloat(s string) bool {
	switch strings.ToLower(strings.TrimLeft(s, "+-")) {
	case "inf", "infinity", "nan":
		return true
	}
	return false
}

func (r *Reader) fail(err error) error {
	pe := &records.ParsingError{Format: "csv", Offset: r.cr.InputOffset(), Err: err}
	var ce *csv.ParseError
	if errors.As(err, &ce) {
		pe.Line = ce.Line
	}
	return pe
}
