// Package metrics is the narrow metrics facade used by the profiler.
//
// Core code records through the package-level functions; the CLI installs a
// concrete Backend (Datadog, or nothing) once at startup with SetBackend.
package metrics

import "sync"

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names. Labels noted per metric.
const (
	// IngestTotal counts profiling runs. Labels: format, status.
	IngestTotal = "profiler_ingest_total"
	// IngestDuration observes run duration in seconds. Labels: format, status.
	IngestDuration = "profiler_ingest_duration_seconds"
	// RecordsTotal counts sampled top-level records. Labels: format.
	RecordsTotal = "profiler_records_total"
	// FieldsTotal counts profiled fields. Labels: format.
	FieldsTotal = "profiler_fields_total"
	// DegradedTotal counts fields with omitted sub-results. Labels: format.
	DegradedTotal = "profiler_degraded_total"
	// BreakingTotal counts breaking changes found by diffs.
	BreakingTotal = "profiler_diff_breaking_total"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. A nil b restores the no-op backend.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter forwards to the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush flushes the installed backend.
func Flush() error {
	return current().Flush()
}

// Memory is an in-process Backend that keeps totals. Tests install it to
// assert on emitted metrics.
type Memory struct {
	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{counters: map[string]float64{}, samples: map[string][]float64{}}
}

func (m *Memory) IncCounter(name string, delta float64, _ Labels) {
	m.mu.Lock()
	m.counters[name] += delta
	m.mu.Unlock()
}

func (m *Memory) ObserveHistogram(name string, v float64, _ Labels) {
	m.mu.Lock()
	m.samples[name] = append(m.samples[name], v)
	m.mu.Unlock()
}

func (m *Memory) Flush() error { return nil }

// Counter returns the running total of name.
func (m *Memory) Counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// Samples returns a copy of the observations of name.
func (m *Memory) Samples(name string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.samples[name]...)
}
