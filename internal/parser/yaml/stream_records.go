// Package yaml adapts YAML documents into records.
//
// A document holding a sequence yields one record per mapping item, a
// document holding a mapping yields one record, and multi-document streams
// are read document by document. Each document is materialized whole before
// its records are handed out.
package yaml

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"schemaprof/internal/records"
	"schemaprof/internal/value"
)

// Reader is a records.Reader over a YAML stream.
type Reader struct {
	dec     *yaml.Decoder
	pos     *records.CountingReader
	pending []value.Object
}

// NewReader returns a Reader consuming r.
func NewReader(r io.Reader) *Reader {
	cr := &records.CountingReader{R: r}
	return &Reader{dec: yaml.NewDecoder(cr), pos: cr}
}

func (r *Reader) Next(ctx context.Context) (value.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for len(r.pending) == 0 {
		var doc yaml.Node
		if err := r.dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, r.fail(0, err)
		}
		if err := r.load(&doc); err != nil {
			return nil, err
		}
	}
	rec := r.pending[0]
	r.pending[0] = nil
	r.pending = r.pending[1:]
	return rec, nil
}

func (r *Reader) load(doc *yaml.Node) error {
	root := doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil
		}
		root = root.Content[0]
	}
	v, err := convert(root)
	if err != nil {
		return r.fail(root.Line, err)
	}
	switch t := v.(type) {
	case nil:
		return nil
	case value.Object:
		r.pending = append(r.pending, t)
	case []any:
		for i, it := range t {
			if it == nil {
				continue
			}
			obj, ok := it.(value.Object)
			if !ok {
				line := 0
				if i < len(root.Content) {
					line = root.Content[i].Line
				}
				return r.fail(line, fmt.Errorf("sequence item is %s, want mapping", value.KindOf(it)))
			}
			r.pending = append(r.pending, obj)
		}
	default:
		return r.fail(root.Line, fmt.Errorf("document root is %s, want mapping or sequence", value.KindOf(v)))
	}
	return nil
}

func convert(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return convert(n.Content[0])
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, fmt.Errorf("unresolved alias %q", n.Value)
		}
		return convert(n.Alias)
	case yaml.MappingNode:
		obj := make(value.Object, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := convert(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj = append(obj, value.Member{Key: n.Content[i].Value, Value: v})
		}
		return obj, nil
	case yaml.SequenceNode:
		arr := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := convert(c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.ScalarNode:
		return scalar(n)
	default:
		return nil, fmt.Errorf("unsupported node kind %d", n.Kind)
	}
}

func scalar(n *yaml.Node) (any, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return b, nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return i, nil
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return f, nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return f, nil
	default:
		return n.Value, nil
	}
}

func (r *Reader) fail(line int, err error) error {
	off, l := r.pos.Position()
	if line == 0 {
		line = l
	}
	return &records.ParsingError{Format: "yaml", Offset: off, Line: line, Err: err}
}
