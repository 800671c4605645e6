package metrics

import "testing"

func TestSetBackendRoutesCalls(t *testing.T) {
	m := NewMemory()
	SetBackend(m)
	t.Cleanup(func() { SetBackend(nil) })

	IncCounter(FieldsTotal, 3, Labels{"format": "json"})
	IncCounter(FieldsTotal, 2, nil)
	ObserveHistogram(IngestDuration, 0.25, nil)

	if got := m.Counter(FieldsTotal); got != 5 {
		t.Fatalf("Counter(%s) = %v, want 5", FieldsTotal, got)
	}
	if got := m.Samples(IngestDuration); len(got) != 1 || got[0] != 0.25 {
		t.Fatalf("Samples(%s) = %v, want [0.25]", IngestDuration, got)
	}
	if err := Flush(); err != nil {
		t.Fatalf("Flush() = %v", err)
	}
}

func TestNilBackendIsNoop(t *testing.T) {
	SetBackend(nil)
	IncCounter(IngestTotal, 1, nil)
	if err := Flush(); err != nil {
		t.Fatalf("Flush() = %v", err)
	}
}
