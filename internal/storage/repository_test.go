package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"schemaprof/internal/schema"
)

func TestRegisterAndOpen(t *testing.T) {
	calls := 0
	Register("fake-open", func(ctx context.Context, cfg Config) (Repository, error) {
		calls++
		if cfg.DSN != "dsn" {
			t.Fatalf("DSN=%q, want dsn", cfg.DSN)
		}
		return nil, errors.New("not really")
	})

	if _, err := Open(context.Background(), Config{Kind: "fake-open", DSN: "dsn"}); err == nil || err.Error() != "not really" {
		t.Fatalf("Open err=%v, want factory error", err)
	}
	if calls != 1 {
		t.Fatalf("factory calls=%d, want 1", calls)
	}

	found := false
	for _, k := range Kinds() {
		found = found || k == "fake-open"
	}
	if !found {
		t.Fatalf("Kinds()=%v missing fake-open", Kinds())
	}
}

func TestOpenRejectsMissingOrUnknownKind(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
	_, err := Open(context.Background(), Config{Kind: "nope"})
	if err == nil || !strings.Contains(err.Error(), "unsupported kind=nope") {
		t.Fatalf("Open err=%v", err)
	}
}

func TestRegisterPanics(t *testing.T) {
	f := func(ctx context.Context, cfg Config) (Repository, error) { return nil, nil }
	Register("fake-dup", f)

	tests := []struct {
		name string
		kind string
		f    Factory
	}{
		{"empty kind", "", f},
		{"nil factory", "fake-nil", nil},
		{"duplicate", "fake-dup", f},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			Register(tc.kind, tc.f)
		})
	}
}

func TestDecodeSnapshotRestoresNumbers(t *testing.T) {
	t.Parallel()

	in := schema.NewSnapshot([]schema.FieldRecord{{
		Path:     "a",
		DataType: "integer",
		Samples:  []any{int64(7), 2.5, "x", []any{int64(1)}, map[string]any{"n": int64(3)}},
	}})
	b, err := EncodeSnapshot(in)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}
	out, err := DecodeSnapshot(b)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	got := out.Fields[0].Samples
	if got[0] != int64(7) || got[1] != 2.5 || got[2] != "x" {
		t.Fatalf("samples=%#v", got)
	}
	if inner := got[3].([]any); inner[0] != int64(1) {
		t.Fatalf("nested array sample=%#v", got[3])
	}
	if m := got[4].(map[string]any); m["n"] != int64(3) {
		t.Fatalf("nested object sample=%#v", got[4])
	}
	if out.Hash != in.Hash || out.ID != in.ID {
		t.Fatalf("identity lost: %+v", out)
	}
}

// fakeConn records statements and serves canned rows.
type fakeConn struct {
	execs     []string
	latest    []any // version, hash; nil means no rows
	insertErr error
	commits   int
	rollbacks int
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.vals == nil {
		return ErrNoRows
	}
	*(dest[0].(*int)) = r.vals[0].(int)
	*(dest[1].(*string)) = r.vals[1].(string)
	return nil
}

func (c *fakeConn) Exec(ctx context.Context, q string, args ...any) error {
	c.execs = append(c.execs, q)
	if q == "INSERT" {
		return c.insertErr
	}
	return nil
}
func (c *fakeConn) QueryRow(ctx context.Context, q string, args ...any) Row {
	return fakeRow{vals: c.latest}
}
func (c *fakeConn) Query(ctx context.Context, q string, args ...any) (Rows, error) {
	return nil, errors.New("unused")
}
func (c *fakeConn) Begin(ctx context.Context) (Tx, error) { return fakeTx{c}, nil }
func (c *fakeConn) Close()                                {}

type fakeTx struct{ c *fakeConn }

func (t fakeTx) Exec(ctx context.Context, q string, args ...any) error { return t.c.Exec(ctx, q, args...) }
func (t fakeTx) QueryRow(ctx context.Context, q string, args ...any) Row {
	return t.c.QueryRow(ctx, q, args...)
}
func (t fakeTx) Commit(context.Context) error   { t.c.commits++; return nil }
func (t fakeTx) Rollback(context.Context) error { t.c.rollbacks++; return nil }

var fakeStatements = Statements{Create: []string{"DDL"}, Lock: "LOCK", Latest: "LATEST", Insert: "INSERT"}

func TestStoreSaveFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	snap := schema.NewSnapshot(nil)

	t.Run("first version", func(t *testing.T) {
		c := &fakeConn{}
		s, err := NewStore(ctx, c, fakeStatements)
		if err != nil {
			t.Fatalf("NewStore: %v", err)
		}
		v, err := s.Save(ctx, "n", snap)
		if err != nil || v != 1 {
			t.Fatalf("Save=(%d,%v), want (1,nil)", v, err)
		}
		want := []string{"DDL", "LOCK", "INSERT"}
		if strings.Join(c.execs, ",") != strings.Join(want, ",") {
			t.Fatalf("execs=%v, want %v", c.execs, want)
		}
		if c.commits != 1 || c.rollbacks != 0 {
			t.Fatalf("commits=%d rollbacks=%d", c.commits, c.rollbacks)
		}
	})

	t.Run("same hash", func(t *testing.T) {
		c := &fakeConn{latest: []any{4, snap.Hash}}
		s, _ := NewStore(ctx, c, fakeStatements)
		v, err := s.Save(ctx, "n", snap)
		if err != nil || v != 4 {
			t.Fatalf("Save=(%d,%v), want (4,nil)", v, err)
		}
		for _, q := range c.execs {
			if q == "INSERT" {
				t.Fatalf("unexpected insert for unchanged hash")
			}
		}
	})

	t.Run("insert failure rolls back", func(t *testing.T) {
		c := &fakeConn{latest: []any{1, "other"}, insertErr: errors.New("dup")}
		s, _ := NewStore(ctx, c, fakeStatements)
		if _, err := s.Save(ctx, "n", snap); err == nil || !strings.Contains(err.Error(), "v2: insert: dup") {
			t.Fatalf("Save err=%v", err)
		}
		if c.commits != 0 || c.rollbacks != 1 {
			t.Fatalf("commits=%d rollbacks=%d", c.commits, c.rollbacks)
		}
	})
}
