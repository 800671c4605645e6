// Package infer reduces a per-kind tally to one primary type.
package infer

import (
	"math"

	"schemaprof/internal/value"
)

// precedence breaks ties between equal tallies, strongest first. Strings win
// because a mixed field is most safely carried as text downstream.
var precedence = [...]value.Kind{
	value.String,
	value.Float,
	value.Integer,
	value.Boolean,
	value.ObjectKind,
	value.Array,
}

// Type picks the primary type of a field from its observed-type tally.
//
// Nulls never vote. When integers and floats were both seen they are merged
// into one float tally. The largest tally wins, ties go to the kind listed
// first in precedence, and confidence is the winner's share of the non-null
// observations as a percentage rounded to one decimal.
//
// An all-null or empty tally yields (value.Null, 0).
func Type(t value.Tally) (value.Kind, float64) {
	t[value.Null] = 0
	total := t.Total()
	if total == 0 {
		return value.Null, 0
	}
	if t[value.Integer] > 0 && t[value.Float] > 0 {
		t[value.Float] += t[value.Integer]
		t[value.Integer] = 0
	}

	winner := value.Null
	best := 0
	for _, k := range precedence {
		if t[k] > best {
			winner, best = k, t[k]
		}
	}
	return winner, round1(float64(best) * 100 / float64(total))
}

// ArrayItemType applies Type to the array item tally of a field.
func ArrayItemType(items value.Tally) (value.Kind, float64) {
	return Type(items)
}

// TypeOf is Type over a tally keyed by kind name.
func TypeOf(m map[string]int) (string, float64) {
	k, c := Type(value.TallyFromMap(m))
	return k.String(), c
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
