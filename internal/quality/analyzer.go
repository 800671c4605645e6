// Package quality computes completeness, cardinality and descriptive
// statistics for one field.
//
// Distinct counts are taken over the retained samples, which are capped per
// field, so for high-cardinality fields DistinctCount and CardinalityRatio
// are lower bounds rather than exact figures.
package quality

import (
	"math"
	"sort"

	"schemaprof/internal/value"
)

// Metrics is the quality profile of a field. Numeric statistics are nil when
// the field is not numeric, when no sample coerces to a number, or when the
// individual statistic could not be computed.
type Metrics struct {
	NullPercentage   float64
	DistinctCount    int
	CardinalityRatio float64

	Min          *float64
	Max          *float64
	Mean         *float64
	Median       *float64
	StdDev       *float64
	Percentile25 *float64
	Percentile50 *float64
	Percentile75 *float64

	// Degraded names the statistics that were dropped because they did not
	// produce a finite value.
	Degraded []string
}

// Analyze profiles a field from its retained samples and counts.
func Analyze(samples []any, totalCount, nullCount int, dataType value.Kind) Metrics {
	var m Metrics
	if totalCount > 0 {
		m.NullPercentage = round(float64(nullCount)*100/float64(totalCount), 2)
	}

	seen := make(map[string]struct{}, len(samples))
	for _, s := range samples {
		seen[value.Key(s)] = struct{}{}
	}
	m.DistinctCount = len(seen)
	if totalCount > 0 {
		m.CardinalityRatio = float64(m.DistinctCount) / float64(totalCount)
	}

	if dataType != value.Integer && dataType != value.Float {
		return m
	}
	nums := make([]float64, 0, len(samples))
	for _, s := range samples {
		if f, ok := value.Number(s); ok {
			nums = append(nums, f)
		}
	}
	if len(nums) == 0 {
		return m
	}
	sort.Float64s(nums)

	mean := Mean(nums)
	stats := []struct {
		name string
		dst  **float64
		v    float64
	}{
		{"min", &m.Min, nums[0]},
		{"max", &m.Max, nums[len(nums)-1]},
		{"mean", &m.Mean, mean},
		{"median", &m.Median, Percentile(nums, 50)},
		{"std_dev", &m.StdDev, StdDev(nums, mean)},
		{"percentile_25", &m.Percentile25, Percentile(nums, 25)},
		{"percentile_50", &m.Percentile50, Percentile(nums, 50)},
		{"percentile_75", &m.Percentile75, Percentile(nums, 75)},
	}
	for _, s := range stats {
		if math.IsNaN(s.v) || math.IsInf(s.v, 0) {
			m.Degraded = append(m.Degraded, s.name)
			continue
		}
		v := s.v
		*s.dst = &v
	}
	return m
}

// Mean is the arithmetic mean of xs.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev is the population standard deviation of xs around mean.
func StdDev(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// Percentile returns the p-th percentile of sorted xs using linear
// interpolation between closest ranks.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}
