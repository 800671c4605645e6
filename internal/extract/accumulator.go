package extract

import (
	"strings"

	"schemaprof/internal/value"
)

// Observation is the accumulated state of one field path.
//
// Invariants: TotalCount == TypesSeen.Total(), NullCount <= TotalCount, and
// Samples holds at most the configured cap of non-null, structurally distinct
// values in first-seen order.
type Observation struct {
	ID             int
	Path           string
	Name           string
	Level          int
	TypesSeen      value.Tally
	NullCount      int
	TotalCount     int
	Samples        []any
	IsArray        bool
	ArrayItemTypes value.Tally
	DepthTruncated bool
}

// Accumulator holds one Observation per distinct field path.
//
// Each path gets a dense integer id at first sight; ids double as the
// first-seen order. An Accumulator is single-use: Finalize hands its state
// over and any later Observe panics.
type Accumulator struct {
	sampleCap int
	ids       map[string]int
	obs       []Observation
	seen      []map[string]struct{}
	done      bool
}

// NewAccumulator returns an empty Accumulator keeping up to sampleCap samples
// per field. A non-positive cap means DefaultSampleCap.
func NewAccumulator(sampleCap int) *Accumulator {
	if sampleCap <= 0 {
		sampleCap = DefaultSampleCap
	}
	return &Accumulator{sampleCap: sampleCap, ids: make(map[string]int)}
}

// Len reports how many distinct paths have been seen.
func (a *Accumulator) Len() int { return len(a.obs) }

// Observe folds one value into the field at path. The field name is the last
// dot-separated segment of path.
func (a *Accumulator) Observe(path string, level int, v any) {
	name := path
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		name = path[i+1:]
	}
	a.observe(a.field(path, name, level), v)
}

func (a *Accumulator) field(path, name string, level int) int {
	if a.done {
		panic("extract: Accumulator used after Finalize")
	}
	if id, ok := a.ids[path]; ok {
		return id
	}
	id := len(a.obs)
	a.ids[path] = id
	a.obs = append(a.obs, Observation{ID: id, Path: path, Name: name, Level: level})
	a.seen = append(a.seen, make(map[string]struct{}))
	return id
}

func (a *Accumulator) observe(id int, v any) {
	o := &a.obs[id]
	k := value.KindOf(v)
	o.TypesSeen.Add(k)
	o.TotalCount++
	switch k {
	case value.Null:
		o.NullCount++
		return
	case value.Array:
		o.IsArray = true
	}

	seen := a.seen[id]
	if seen == nil || len(o.Samples) >= a.sampleCap {
		return
	}
	key := value.Key(v)
	if _, dup := seen[key]; dup {
		return
	}
	seen[key] = struct{}{}
	o.Samples = append(o.Samples, v)
	if len(o.Samples) >= a.sampleCap {
		a.seen[id] = nil
	}
}

func (a *Accumulator) observeItem(id int, item any) {
	a.obs[id].ArrayItemTypes.Add(value.KindOf(item))
}

func (a *Accumulator) markTruncated(id int) {
	a.obs[id].DepthTruncated = true
}

// Finalize returns the observations in first-seen order and retires the
// Accumulator. The returned slice shares nothing with later accumulator use.
func (a *Accumulator) Finalize() []Observation {
	if a.done {
		return nil
	}
	out := a.obs
	a.done = true
	a.obs = nil
	a.ids = nil
	a.seen = nil
	return out
}
