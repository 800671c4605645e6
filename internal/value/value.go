// Package value defines the normalized value tree every input adapter produces
// and the profiler consumes.
//
// A value is one of:
//
//	nil       null
//	bool      boolean
//	int64     integer
//	float64   float
//	string    string
//	Object    object (ordered key/value members)
//	[]any     array
//
// Adapters must convert their native representations into these types. Other
// Go types are classified as strings by KindOf so that a misbehaving adapter
// degrades the profile instead of crashing it.
package value

import (
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Kind is the primitive type tag of a value.
type Kind uint8

const (
	Null Kind = iota
	Boolean
	Integer
	Float
	String
	ObjectKind
	Array
)

// Kinds lists every tag in declaration order.
var Kinds = [...]Kind{Null, Boolean, Integer, Float, String, ObjectKind, Array}

var kindNames = [...]string{
	Null:       "null",
	Boolean:    "boolean",
	Integer:    "integer",
	Float:      "float",
	String:     "string",
	ObjectKind: "object",
	Array:      "array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind maps a tag name back to its Kind.
func ParseKind(s string) (Kind, bool) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), true
		}
	}
	return Null, false
}

// Member is one key/value pair of an Object.
type Member struct {
	Key   string
	Value any
}

// Object is an object value with its members in document order.
type Object []Member

// Get returns the value of the first member named key.
func (o Object) Get(key string) (any, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// MarshalJSON encodes o as a JSON object preserving member order.
func (o Object) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, 16*len(o)+2)
	b = append(b, '{')
	for i, m := range o {
		if i > 0 {
			b = append(b, ',')
		}
		k, err := json.Marshal(m.Key)
		if err != nil {
			return nil, err
		}
		b = append(b, k...)
		b = append(b, ':')
		v, err := json.Marshal(m.Value)
		if err != nil {
			return nil, err
		}
		b = append(b, v...)
	}
	return append(b, '}'), nil
}

// KindOf classifies v.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return Null
	case bool:
		return Boolean
	case int64, int, int32:
		return Integer
	case float64, float32:
		return Float
	case Object:
		return ObjectKind
	case []any:
		return Array
	default:
		return String
	}
}

// Number converts v to float64.
//
// Integers and floats convert directly. Strings convert when the whole
// trimmed string parses as a float. NaN and infinities, however spelled,
// report false, as does everything else.
func Number(v any) (float64, bool) {
	f, ok := number(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ParseNumber converts a JSON number literal into int64 when it is an
// integer literal that fits, and into float64 otherwise.
func ParseNumber(lit string) (any, error) {
	if !strings.ContainsAny(lit, ".eE") {
		if n, err := strconv.ParseInt(lit, 10, 64); err == nil {
			return n, nil
		}
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return nil, err
	}
	return f, nil
}
