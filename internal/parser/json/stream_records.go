// Package json streams records out of JSON documents.
//
// Accepted layouts:
//   - a root array of objects, streamed one element at a time
//   - a single root object, emitted as one record
//   - an envelope: a root object whose first array-of-objects member holds
//     the records, as in {"data": [...], "meta": {...}}
//   - newline-delimited objects (and arrays) following any of the above
package json

import (
	"context"
	"errors"
	"fmt"
	"io"

	j "github.com/goccy/go-json"

	"schemaprof/internal/records"
	"schemaprof/internal/value"
)

// Options configures a Reader.
type Options struct {
	// Envelope names the root-object member whose array holds the records.
	// When empty, the first member whose array starts with an object is
	// used. Members before the envelope are discarded and members after it
	// are skipped without materializing them. A root object without an
	// envelope is emitted as a single record.
	Envelope string

	// MaxNesting bounds container nesting; deeper input is a parse error.
	// Zero means DefaultMaxNesting.
	MaxNesting int
}

// Reader is a records.Reader over a JSON byte stream.
//
// Only one record is materialized at a time. Null array elements are skipped.
// Any other non-object element aborts with a *records.ParsingError.
type Reader struct {
	dec   *j.Decoder
	pos   *records.CountingReader
	check *syntaxChecker
	opts  Options

	inArray    bool
	inEnvelope bool
	pending    value.Object
}

// NewReader returns a Reader consuming r.
func NewReader(r io.Reader, opts Options) *Reader {
	cr := &records.CountingReader{R: r}
	check := newSyntaxChecker(cr, opts.MaxNesting)
	dec := j.NewDecoder(check)
	dec.UseNumber()
	return &Reader{dec: dec, pos: cr, check: check, opts: opts}
}

// Next returns the next record or io.EOF.
func (r *Reader) Next(ctx context.Context) (value.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if obj := r.pending; obj != nil {
		r.pending = nil
		return obj, nil
	}

	for {
		tok, err := r.dec.Token()
		if err != nil {
			if ferr := r.check.failure(); ferr != nil {
				return nil, r.fail(ferr)
			}
		}
		if errors.Is(err, io.EOF) {
			if r.inArray {
				return nil, r.fail(io.ErrUnexpectedEOF)
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, r.fail(err)
		}

		if r.inArray {
			if tok == j.Delim(']') {
				r.inArray = false
				if r.inEnvelope {
					r.inEnvelope = false
					if err := r.skipMembers(); err != nil {
						return nil, err
					}
				}
				continue
			}
			v, err := r.readValue(tok)
			if err != nil {
				return nil, err
			}
			if v == nil {
				continue
			}
			obj, ok := v.(value.Object)
			if !ok {
				return nil, r.fail(fmt.Errorf("array element is %s, want object", value.KindOf(v)))
			}
			return obj, nil
		}

		d, ok := tok.(j.Delim)
		if !ok {
			return nil, r.fail(fmt.Errorf("unsupported root token %T (want object or array)", tok))
		}
		switch d {
		case '[':
			r.inArray = true
		case '{':
			obj, streaming, err := r.readRoot()
			if err != nil {
				return nil, err
			}
			if !streaming {
				return obj, nil
			}
			if r.pending != nil {
				obj, r.pending = r.pending, nil
				return obj, nil
			}
		default:
			return nil, r.fail(fmt.Errorf("unexpected delimiter %q", rune(d)))
		}
	}
}

// readRoot reads a root object after its '{'. It reports streaming=true when
// it stopped at the envelope array.
func (r *Reader) readRoot() (obj value.Object, streaming bool, err error) {
	obj = value.Object{}
	for {
		tok, err := r.token()
		if err != nil {
			return nil, false, err
		}
		if tok == j.Delim('}') {
			return obj, false, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, false, r.fail(fmt.Errorf("object key is %T, want string", tok))
		}
		vt, err := r.token()
		if err != nil {
			return nil, false, err
		}
		if vt == j.Delim('[') {
			switch {
			case r.opts.Envelope != "" && key == r.opts.Envelope:
				r.inArray, r.inEnvelope = true, true
				return nil, true, nil
			case r.opts.Envelope == "":
				first, items, err := r.probeEnvelope()
				if err != nil {
					return nil, false, err
				}
				if first != nil {
					r.inArray, r.inEnvelope = true, true
					r.pending = first
					return nil, true, nil
				}
				obj = append(obj, value.Member{Key: key, Value: items})
				continue
			}
		}
		v, err := r.readValue(vt)
		if err != nil {
			return nil, false, err
		}
		obj = append(obj, value.Member{Key: key, Value: v})
	}
}

// probeEnvelope reads the first non-null element of an array whose '[' was
// just consumed. An object element makes the array the envelope and is
// returned as first; otherwise the whole array is materialized into items.
func (r *Reader) probeEnvelope() (first value.Object, items []any, err error) {
	items = []any{}
	for {
		tok, err := r.token()
		if err != nil {
			return nil, nil, err
		}
		if tok == j.Delim(']') {
			return nil, items, nil
		}
		v, err := r.readValue(tok)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, v)
		if v == nil {
			continue
		}
		if obj, ok := v.(value.Object); ok {
			return obj, nil, nil
		}
		rest, err := r.readArray()
		if err != nil {
			return nil, nil, err
		}
		return nil, append(items, rest...), nil
	}
}

// readArray materializes array elements up to and including the closing ']'.
func (r *Reader) readArray() ([]any, error) {
	arr := []any{}
	for {
		it, err := r.token()
		if err != nil {
			return nil, err
		}
		if it == j.Delim(']') {
			return arr, nil
		}
		v, err := r.readValue(it)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
}

// readValue materializes the value whose first token is tok.
func (r *Reader) readValue(tok any) (any, error) {
	switch t := tok.(type) {
	case j.Delim:
		switch t {
		case '{':
			obj := value.Object{}
			for {
				kt, err := r.token()
				if err != nil {
					return nil, err
				}
				if kt == j.Delim('}') {
					return obj, nil
				}
				key, ok := kt.(string)
				if !ok {
					return nil, r.fail(fmt.Errorf("object key is %T, want string", kt))
				}
				vt, err := r.token()
				if err != nil {
					return nil, err
				}
				v, err := r.readValue(vt)
				if err != nil {
					return nil, err
				}
				obj = append(obj, value.Member{Key: key, Value: v})
			}
		case '[':
			return r.readArray()
		default:
			return nil, r.fail(fmt.Errorf("unexpected delimiter %q", rune(t)))
		}
	case j.Number:
		n, err := value.ParseNumber(string(t))
		if err != nil {
			return nil, r.fail(fmt.Errorf("number %q: %w", string(t), err))
		}
		return n, nil
	case float64:
		return t, nil
	case string, bool, nil:
		return t, nil
	default:
		return nil, r.fail(fmt.Errorf("unexpected token %T", tok))
	}
}

// skipMembers consumes the remaining members of the envelope object,
// including its closing '}'.
func (r *Reader) skipMembers() error {
	for {
		tok, err := r.token()
		if err != nil {
			return err
		}
		if tok == j.Delim('}') {
			return nil
		}
		vt, err := r.token()
		if err != nil {
			return err
		}
		if err := r.skipValue(vt); err != nil {
			return err
		}
	}
}

// skipValue consumes the value whose first token is tok without building it.
func (r *Reader) skipValue(tok any) error {
	depth := 0
	for {
		if d, ok := tok.(j.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
		if depth == 0 {
			return nil
		}
		var err error
		if tok, err = r.token(); err != nil {
			return err
		}
	}
}

// token reads the next token inside a value, where EOF is always premature.
func (r *Reader) token() (any, error) {
	tok, err := r.dec.Token()
	if err != nil {
		if ferr := r.check.failure(); ferr != nil {
			return nil, r.fail(ferr)
		}
	}
	if errors.Is(err, io.EOF) {
		return nil, r.fail(io.ErrUnexpectedEOF)
	}
	if err != nil {
		return nil, r.fail(err)
	}
	return tok, nil
}

func (r *Reader) fail(err error) error {
	var pe *records.ParsingError
	if errors.As(err, &pe) {
		return err
	}
	var se *syntaxError
	if errors.As(err, &se) {
		return &records.ParsingError{Format: "json", Offset: se.Offset, Line: se.Line, Err: err}
	}
	off, line := r.pos.Position()
	return &records.ParsingError{Format: "json", Offset: off, Line: line, Err: err}
}
