// Package mssql stores snapshots in Microsoft SQL Server via go-mssqldb.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"schemaprof/internal/storage"
)

// DefaultTable is used when none is configured.
const DefaultTable = "dbo.schema_snapshots"

func init() {
	storage.Register("mssql", New)
}

// New opens cfg.DSN with the "sqlserver" driver, validates connectivity and
// ensures the snapshot table exists.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}

	store, err := storage.NewStore(ctx, storage.SQLConn{DB: db}, Statements(DefaultTable))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: %w", err)
	}
	return store, nil
}

// Statements renders the SQL Server dialect for a schema-qualified table.
//
// Latest reads with UPDLOCK + HOLDLOCK so concurrent saves of the same name
// serialize on the key range instead of racing for the next version.
func Statements(table string) storage.Statements {
	t := mssqlTableIdent(table)
	return storage.Statements{
		Create: []string{wrapCreateIfMissing(table, `name NVARCHAR(400) NOT NULL,
	version INT NOT NULL,
	id NVARCHAR(36) NOT NULL,
	schema_hash NVARCHAR(64) NOT NULL,
	source NVARCHAR(1024) NOT NULL DEFAULT '',
	format NVARCHAR(16) NOT NULL DEFAULT '',
	records INT NOT NULL,
	field_count INT NOT NULL,
	created_at NVARCHAR(40) NOT NULL,
	body NVARCHAR(MAX) NOT NULL,
	CONSTRAINT ` + mssqlIdent("pk_"+unqualified(table)) + ` PRIMARY KEY (name, version)`)},
		Latest:     `SELECT TOP 1 version, schema_hash FROM ` + t + ` WITH (UPDLOCK, HOLDLOCK) WHERE name = @p1 ORDER BY version DESC`,
		Insert:     `INSERT INTO ` + t + ` (name, version, id, schema_hash, source, format, records, field_count, created_at, body) VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9, @p10)`,
		Load:       `SELECT body FROM ` + t + ` WHERE name = @p1 AND version = @p2`,
		LoadLatest: `SELECT TOP 1 body FROM ` + t + ` WHERE name = @p1 ORDER BY version DESC`,
		Versions:   `SELECT version, id, schema_hash, records, field_count, created_at FROM ` + t + ` WHERE name = @p1 ORDER BY version`,
	}
}

// wrapCreateIfMissing wraps a CREATE TABLE statement in an OBJECT_ID guard.
//
// This keeps table creation idempotent without requiring IF NOT EXISTS syntax.
func wrapCreateIfMissing(tableName string, innerDefs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(tableName, "'", "''"),
		mssqlTableIdent(tableName),
		innerDefs,
	)
}

func unqualified(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.schema_snapshots" -> [dbo].[schema_snapshots]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}
