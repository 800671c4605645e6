package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"schemaprof/internal/schema"
)

// ErrNoRows is what Row.Scan must return when a query matched nothing.
// Adapters translate their driver's sentinel into it.
var ErrNoRows = errors.New("storage: no rows")

// Row is a single-row query result.
type Row interface {
	Scan(dest ...any) error
}

// Rows is a multi-row query result.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Tx is the transactional slice of a connection that Save needs.
type Tx interface {
	Exec(ctx context.Context, query string, args ...any) error
	QueryRow(ctx context.Context, query string, args ...any) Row
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Conn is a narrow seam over a database handle so one Store serves every
// backend: database/sql drivers through SQLConn and pgx through its own
// adapter.
type Conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Begin(ctx context.Context) (Tx, error)
	Close()
}

// Statements is the backend-specific SQL used by Store. Columns and argument
// order are fixed:
//
//	Latest:     (name)                  -> version, schema_hash
//	Insert:     (name, version, id, schema_hash, source, format, records,
//	             field_count, created_at, body)
//	Load:       (name, version)         -> body
//	LoadLatest: (name)                  -> body
//	Versions:   (name)                  -> version, id, schema_hash, records,
//	                                       field_count, created_at
type Statements struct {
	// Create is run once on open; each statement must be idempotent.
	Create []string
	// Lock, when set, runs first inside Save's transaction with (name).
	Lock       string
	Latest     string
	Insert     string
	Load       string
	LoadLatest string
	Versions   string
}

// Store is a Repository over any Conn.
type Store struct {
	conn  Conn
	stmts Statements
	now   func() time.Time
}

// NewStore runs the Create statements and returns a ready Store.
func NewStore(ctx context.Context, conn Conn, stmts Statements) (*Store, error) {
	for _, ddl := range stmts.Create {
		if err := conn.Exec(ctx, ddl); err != nil {
			return nil, fmt.Errorf("storage: ensure schema: %w", err)
		}
	}
	return &Store{conn: conn, stmts: stmts, now: time.Now}, nil
}

// Save implements Repository.
func (s *Store) Save(ctx context.Context, name string, snap schema.Snapshot) (version int, err error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("storage: save: empty name")
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("storage: save %s: begin: %w", name, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if s.stmts.Lock != "" {
		if err := tx.Exec(ctx, s.stmts.Lock, name); err != nil {
			return 0, fmt.Errorf("storage: save %s: lock: %w", name, err)
		}
	}

	var (
		latest     int
		latestHash string
	)
	err = tx.QueryRow(ctx, s.stmts.Latest, name).Scan(&latest, &latestHash)
	switch {
	case errors.Is(err, ErrNoRows):
		latest = 0
	case err != nil:
		return 0, fmt.Errorf("storage: save %s: latest: %w", name, err)
	}

	if latest > 0 && latestHash == snap.Hash {
		if err := tx.Commit(ctx); err != nil {
			return 0, fmt.Errorf("storage: save %s: commit: %w", name, err)
		}
		committed = true
		return latest, nil
	}

	version = latest + 1
	snap.Name = name
	snap.Version = version
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.now().UTC()
	}
	body, err := EncodeSnapshot(snap)
	if err != nil {
		return 0, fmt.Errorf("storage: save %s: %w", name, err)
	}

	err = tx.Exec(ctx, s.stmts.Insert,
		name, version, snap.ID.String(), snap.Hash, snap.Source, snap.Format,
		snap.Records, len(snap.Fields), snap.CreatedAt.UTC().Format(time.RFC3339Nano), string(body),
	)
	if err != nil {
		return 0, fmt.Errorf("storage: save %s v%d: insert: %w", name, version, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("storage: save %s v%d: commit: %w", name, version, err)
	}
	committed = true
	return version, nil
}

// Load implements Repository.
func (s *Store) Load(ctx context.Context, name string, version int) (schema.Snapshot, error) {
	var body string
	err := s.conn.QueryRow(ctx, s.stmts.Load, name, version).Scan(&body)
	if errors.Is(err, ErrNoRows) {
		return schema.Snapshot{}, fmt.Errorf("storage: load %s v%d: %w", name, version, ErrSnapshotNotFound)
	}
	if err != nil {
		return schema.Snapshot{}, fmt.Errorf("storage: load %s v%d: %w", name, version, err)
	}
	return DecodeSnapshot([]byte(body))
}

// Latest implements Repository.
func (s *Store) Latest(ctx context.Context, name string) (schema.Snapshot, error) {
	var body string
	err := s.conn.QueryRow(ctx, s.stmts.LoadLatest, name).Scan(&body)
	if errors.Is(err, ErrNoRows) {
		return schema.Snapshot{}, fmt.Errorf("storage: latest %s: %w", name, ErrSnapshotNotFound)
	}
	if err != nil {
		return schema.Snapshot{}, fmt.Errorf("storage: latest %s: %w", name, err)
	}
	return DecodeSnapshot([]byte(body))
}

// Versions implements Repository. An unknown name is ErrSnapshotNotFound.
func (s *Store) Versions(ctx context.Context, name string) ([]VersionInfo, error) {
	rows, err := s.conn.Query(ctx, s.stmts.Versions, name)
	if err != nil {
		return nil, fmt.Errorf("storage: versions %s: %w", name, err)
	}
	defer rows.Close()

	var out []VersionInfo
	for rows.Next() {
		var (
			vi      VersionInfo
			created string
		)
		if err := rows.Scan(&vi.Version, &vi.ID, &vi.Hash, &vi.Records, &vi.Fields, &created); err != nil {
			return nil, fmt.Errorf("storage: versions %s: scan: %w", name, err)
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			vi.CreatedAt = t
		}
		out = append(out, vi)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: versions %s: %w", name, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("storage: versions %s: %w", name, ErrSnapshotNotFound)
	}
	return out, nil
}

// Close implements Repository.
func (s *Store) Close() { s.conn.Close() }

var _ Repository = (*Store)(nil)
