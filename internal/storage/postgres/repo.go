// Package postgres stores snapshots in PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"schemaprof/internal/storage"
)

// DefaultTable is used when the DSN does not name one.
const DefaultTable = "public.schema_snapshots"

func init() {
	storage.Register("postgres", New)
}

// New connects to cfg.DSN and ensures the snapshot table exists.
//
// A non-standard table may be chosen with a "table" query parameter on a URL
// DSN (postgres://.../db?table=meta.snapshots); it is stripped before the DSN
// reaches pgx.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	dsn, tbl := splitTableParam(cfg.DSN)
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	store, err := storage.NewStore(ctx, poolConn{pool}, Statements(tbl))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return store, nil
}

// Statements renders the Postgres dialect for a (possibly schema-qualified)
// table name.
//
// Save serializes writers per dataset name with a transaction-scoped
// advisory lock, so two concurrent saves cannot claim the same version.
func Statements(table string) storage.Statements {
	if table == "" {
		table = DefaultTable
	}
	schemaName, _ := splitQualifiedName(table)
	t := pgTableIdent(table)

	var create []string
	if schemaName != "" {
		create = append(create, "CREATE SCHEMA IF NOT EXISTS "+pgIdent(schemaName))
	}
	create = append(create, `CREATE TABLE IF NOT EXISTS `+t+` (
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
)`)

	return storage.Statements{
		Create:     create,
		Lock:       `SELECT pg_advisory_xact_lock(hashtext($1))`,
		Latest:     `SELECT version, schema_hash FROM ` + t + ` WHERE name = $1 ORDER BY version DESC LIMIT 1`,
		Insert:     `INSERT INTO ` + t + ` (name, version, id, schema_hash, source, format, records, field_count, created_at, body) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		Load:       `SELECT body FROM ` + t + ` WHERE name = $1 AND version = $2`,
		LoadLatest: `SELECT body FROM ` + t + ` WHERE name = $1 ORDER BY version DESC LIMIT 1`,
		Versions:   `SELECT version, id, schema_hash, records, field_count, created_at FROM ` + t + ` WHERE name = $1 ORDER BY version`,
	}
}

// splitTableParam removes a "table" query parameter from a URL-form DSN.
func splitTableParam(dsn string) (rest, table string) {
	q := strings.IndexByte(dsn, '?')
	if q < 0 {
		return dsn, ""
	}
	base, params := dsn[:q], strings.Split(dsn[q+1:], "&")
	kept := params[:0]
	for _, p := range params {
		if v, ok := strings.CutPrefix(p, "table="); ok {
			table = v
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return base, table
	}
	return base + "?" + strings.Join(kept, "&"), table
}

func splitQualifiedName(name string) (schema string, table string) {
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// pgTableIdent quotes each part of a schema-qualified name.
func pgTableIdent(name string) string {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgIdent(table)
	}
	return pgIdent(schema) + "." + pgIdent(table)
}

// poolConn adapts *pgxpool.Pool to storage.Conn.
type poolConn struct{ pool *pgxpool.Pool }

func (c poolConn) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.pool.Exec(ctx, query, args...)
	return err
}

func (c poolConn) QueryRow(ctx context.Context, query string, args ...any) storage.Row {
	return pgRow{c.pool.QueryRow(ctx, query, args...)}
}

func (c poolConn) Query(ctx context.Context, query string, args ...any) (storage.Rows, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c poolConn) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return pgTx{tx}, nil
}

func (c poolConn) Close() { c.pool.Close() }

type pgRow struct{ row pgx.Row }

func (r pgRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNoRows
	}
	return err
}

type pgTx struct{ tx pgx.Tx }

func (t pgTx) Exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.Exec(ctx, query, args...)
	return err
}

func (t pgTx) QueryRow(ctx context.Context, query string, args ...any) storage.Row {
	return pgRow{t.tx.QueryRow(ctx, query, args...)}
}

func (t pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }
