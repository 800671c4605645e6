// Package all registers every snapshot storage backend.
package all

import (
	_ "schemaprof/internal/storage/mssql"
	_ "schemaprof/internal/storage/postgres"
	_ "schemaprof/internal/storage/sqlite"
)
