package value

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Key returns a canonical encoding of v suitable as a map key.
// Two values have the same Key exactly when they are structurally equal.
func Key(v any) string {
	return string(AppendCanonical(nil, v))
}

// Equal reports structural equality. Object member order is ignored.
func Equal(a, b any) bool {
	return Key(a) == Key(b)
}

// AppendCanonical appends a type-tagged canonical encoding of v to b.
//
// Rules:
//   - every value starts with a one-byte tag so 1, 1.0 and "1" differ
//   - strings are length-prefixed so no separator can collide with content
//   - object members are sorted by key
//   - floats use the shortest round-trip representation
func AppendCanonical(b []byte, v any) []byte {
	switch t := v.(type) {
	case nil:
		return append(b, 'n')
	case bool:
		if t {
			return append(b, 't')
		}
		return append(b, 'f')
	case int64:
		b = append(b, 'i')
		return strconv.AppendInt(b, t, 10)
	case int:
		b = append(b, 'i')
		return strconv.AppendInt(b, int64(t), 10)
	case int32:
		b = append(b, 'i')
		return strconv.AppendInt(b, int64(t), 10)
	case float64:
		return appendFloat(b, t)
	case float32:
		return appendFloat(b, float64(t))
	case string:
		return appendString(b, 's', t)
	case Object:
		idx := make([]int, len(t))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(i, j int) bool { return t[idx[i]].Key < t[idx[j]].Key })
		b = append(b, 'o')
		b = strconv.AppendInt(b, int64(len(t)), 10)
		b = append(b, '{')
		for _, i := range idx {
			b = appendString(b, 'k', t[i].Key)
			b = AppendCanonical(b, t[i].Value)
		}
		return append(b, '}')
	case []any:
		b = append(b, 'a')
		b = strconv.AppendInt(b, int64(len(t)), 10)
		b = append(b, '[')
		for _, it := range t {
			b = AppendCanonical(b, it)
		}
		return append(b, ']')
	default:
		return appendString(b, 's', fmt.Sprint(t))
	}
}

func appendString(b []byte, tag byte, s string) []byte {
	b = append(b, tag)
	b = strconv.AppendInt(b, int64(len(s)), 10)
	b = append(b, ':')
	return append(b, s...)
}

func appendFloat(b []byte, f float64) []byte {
	b = append(b, 'd')
	switch {
	case math.IsNaN(f):
		return append(b, "NaN"...)
	case math.IsInf(f, 1):
		return append(b, "+Inf"...)
	case math.IsInf(f, -1):
		return append(b, "-Inf"...)
	}
	return strconv.AppendFloat(b, f, 'g', -1, 64)
}
