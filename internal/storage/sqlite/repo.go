// Package sqlite stores snapshots in a SQLite file through modernc.org/sqlite.
//
// SQLite has no native timestamp type, so created_at is stored as an
// RFC3339Nano string for reliable round-trips and easy debugging.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"schemaprof/internal/storage"
)

const table = `"schema_snapshots"`

// Statements is the SQLite dialect of the snapshot store.
var Statements = storage.Statements{
	Create: []string{
		`CREATE TABLE IF NOT EXISTS ` + table + ` (
	name        TEXT    NOT NULL,
	version     INTEGER NOT NULL,
	id          TEXT    NOT NULL,
	schema_hash TEXT    NOT NULL,
	source      TEXT    NOT NULL DEFAULT '',
	format      TEXT    NOT NULL DEFAULT '',
	records     INTEGER NOT NULL,
	field_count INTEGER NOT NULL,
	created_at  TEXT    NOT NULL,
	body        TEXT    NOT NULL,
	PRIMARY KEY (name, version)
)`,
	},
	Latest:     `SELECT version, schema_hash FROM ` + table + ` WHERE name = ? ORDER BY version DESC LIMIT 1`,
	Insert:     `INSERT INTO ` + table + ` (name, version, id, schema_hash, source, format, records, field_count, created_at, body) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	Load:       `SELECT body FROM ` + table + ` WHERE name = ? AND version = ?`,
	LoadLatest: `SELECT body FROM ` + table + ` WHERE name = ? ORDER BY version DESC LIMIT 1`,
	Versions:   `SELECT version, id, schema_hash, records, field_count, created_at FROM ` + table + ` WHERE name = ? ORDER BY version`,
}

func init() {
	storage.Register("sqlite", New)
}

// New opens the database at cfg.DSN (a file path, "file:" URI or ":memory:").
//
// The pool is limited to one connection: SQLite serializes writers anyway,
// and an in-memory database exists only on the connection that created it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	store, err := storage.NewStore(ctx, storage.SQLConn{DB: db}, Statements)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return store, nil
}
