// Package migrations embeds the SQL schema migrations applied by pkg/database.Migrate.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var migrationsFS embed.FS

// FS returns the embedded migration files (NNN_name.up.sql / NNN_name.down.sql).
func FS() fs.FS {
	return migrationsFS
}
