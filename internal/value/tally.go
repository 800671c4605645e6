package value

import json "github.com/goccy/go-json"

const kindCount = 7

// Tally counts observations per Kind.
type Tally [kindCount]int

// Add counts one observation of k.
func (t *Tally) Add(k Kind) { t[k]++ }

// Total is the sum over every kind, nulls included.
func (t Tally) Total() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}

// Map returns the non-zero counts keyed by kind name.
func (t Tally) Map() map[string]int {
	m := make(map[string]int)
	for k, c := range t {
		if c > 0 {
			m[Kind(k).String()] = c
		}
	}
	return m
}

// TallyFromMap builds a Tally from kind names. Unknown names are ignored.
func TallyFromMap(m map[string]int) Tally {
	var t Tally
	for name, c := range m {
		if k, ok := ParseKind(name); ok {
			t[k] += c
		}
	}
	return t
}

func (t Tally) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Map())
}

func (t *Tally) UnmarshalJSON(b []byte) error {
	var m map[string]int
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*t = TallyFromMap(m)
	return nil
}
