package json

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"schemaprof/internal/records"
	"schemaprof/internal/value"
)

// readAll drains a Reader built over input and returns every record.
func readAll(t *testing.T, input string, opts Options) ([]value.Object, error) {
	t.Helper()
	r := NewReader(strings.NewReader(input), opts)
	var out []value.Object
	for {
		rec, err := r.Next(context.Background())
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

func obj(kv ...any) value.Object {
	o := value.Object{}
	for i := 0; i+1 < len(kv); i += 2 {
		o = append(o, value.Member{Key: kv[i].(string), Value: kv[i+1]})
	}
	return o
}

//
// Next
//

func TestNextLayouts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		opts  Options
		want  []value.Object
	}{
		{
			name:  "root array",
			input: `[{"b":1,"a":"x"},null,{"c":true}]`,
			want:  []value.Object{obj("b", int64(1), "a", "x"), obj("c", true)},
		},
		{
			name:  "single object",
			input: `{"id":7,"tags":["a","b"],"geo":{"lat":1.5}}`,
			want: []value.Object{obj(
				"id", int64(7),
				"tags", []any{"a", "b"},
				"geo", obj("lat", 1.5),
			)},
		},
		{
			name:  "ndjson",
			input: "{\"a\":1}\n{\"a\":null}\n",
			want:  []value.Object{obj("a", int64(1)), obj("a", nil)},
		},
		{
			name:  "envelope",
			input: `{"meta":{"n":2},"data":[{"a":1},{"a":2}],"next":{"deep":[1,[2]]}}`,
			opts:  Options{Envelope: "data"},
			want:  []value.Object{obj("a", int64(1)), obj("a", int64(2))},
		},
		{
			name:  "envelope missing falls back to single record",
			input: `{"items":[1,2]}`,
			opts:  Options{Envelope: "data"},
			want:  []value.Object{obj("items", []any{int64(1), int64(2)})},
		},
		{
			name:  "envelope detected",
			input: `{"meta":{"n":2},"data":[null,{"a":1},{"a":2}],"next":{"deep":[1,[2]]}}`,
			want:  []value.Object{obj("a", int64(1)), obj("a", int64(2))},
		},
		{
			name:  "scalar arrays stay members",
			input: `{"id":1,"tags":[null,"x"],"grid":[[{"a":1}]],"none":[]}`,
			want: []value.Object{obj(
				"id", int64(1),
				"tags", []any{nil, "x"},
				"grid", []any{[]any{obj("a", int64(1))}},
				"none", []any{},
			)},
		},
		{
			name:  "named envelope overrides detection",
			input: `{"lines":[{"sku":"a"}],"data":[{"a":1}]}`,
			opts:  Options{Envelope: "data"},
			want:  []value.Object{obj("a", int64(1))},
		},
		{
			name:  "strings with separators",
			input: `[{"a":"x, y: [z]}","b\"":"{"}]`,
			want:  []value.Object{obj("a", "x, y: [z]}", "b\"", "{")},
		},
		{
			name:  "empty input",
			input: "  ",
			want:  nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := readAll(t, tt.input, tt.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("records = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestNextMalformed(t *testing.T) {
	t.Parallel()

	inputs := map[string]string{
		"unterminated array":    `[{"a":1},`,
		"unterminated object":   `[{"a":`,
		"scalar element":        `[{"a":1},5]`,
		"scalar root":           `42`,
		"garbage":               `[{"a" 1}]`,
		"missing colon":         `{"a" 1}`,
		"missing comma":         `{"a":1 "b":2}`,
		"missing element comma": `[{"a":1} {"a":2}]`,
		"doubled comma":         `{"a":1,,"b":2}`,
		"scalar list no commas": `{"a":[1 2 3]}`,
		"trailing array comma":  `[{"a":1},]`,
		"trailing object comma": `{"a":1,}`,
		"stray colon":           `[{"a":1}:{"a":2}]`,
		"mismatched close":      `[{"a":1]}`,
		"comma between lines":   "{\"a\":1}\n,{\"a\":2}",
		"too deep":              strings.Repeat("[", DefaultMaxNesting+1),
	}

	for name, in := range inputs {
		in := in
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := readAll(t, in, Options{})
			var pe *records.ParsingError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *records.ParsingError", err)
			}
			if pe.Format != "json" {
				t.Fatalf("Format = %q, want json", pe.Format)
			}
		})
	}
}

func TestNextSyntaxErrorPosition(t *testing.T) {
	t.Parallel()

	_, err := readAll(t, "[{\"a\":1},\n {\"a\" 2}]", Options{})
	var pe *records.ParsingError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *records.ParsingError", err)
	}
	if pe.Line != 2 || pe.Offset != 16 {
		t.Fatalf("position = line %d byte %d, want line 2 byte 16", pe.Line, pe.Offset)
	}
}

func TestNextNestingLimit(t *testing.T) {
	t.Parallel()

	in := strings.Repeat(`{"a":`, 5) + "1" + strings.Repeat("}", 5)
	if _, err := readAll(t, in, Options{MaxNesting: 5}); err != nil {
		t.Fatalf("5 levels with MaxNesting 5: %v", err)
	}
	_, err := readAll(t, in, Options{MaxNesting: 4})
	var pe *records.ParsingError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *records.ParsingError", err)
	}
}

func TestNextHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	r := NewReader(strings.NewReader(`[{"a":1},{"a":2}]`), Options{})
	if _, err := r.Next(ctx); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	cancel()
	if _, err := r.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Next after cancel = %v, want context.Canceled", err)
	}
}
