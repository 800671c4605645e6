package storage

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"schemaprof/internal/schema"
	"schemaprof/internal/value"
)

// EncodeSnapshot serializes s for storage.
func EncodeSnapshot(s schema.Snapshot) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

// DecodeSnapshot parses a stored snapshot. Numeric samples come back as
// int64 or float64 the same way the input readers produce them; nested
// object samples come back as unordered maps.
func DecodeSnapshot(b []byte) (schema.Snapshot, error) {
	var s schema.Snapshot
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&s); err != nil {
		return schema.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	for i := range s.Fields {
		for j, v := range s.Fields[i].Samples {
			s.Fields[i].Samples[j] = numbers(v)
		}
	}
	return s, nil
}

func numbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := value.ParseNumber(string(t)); err == nil {
			return n
		}
		return string(t)
	case []any:
		for i := range t {
			t[i] = numbers(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = numbers(t[k])
		}
		return t
	default:
		return v
	}
}
