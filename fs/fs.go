package appfs

import "embed"

// FS holds the SQL migrations (one directory per dialect) and the static assets.
//go:embed migrations all:assets
var FS embed.FS

// MigrationsDir returns the embedded migrations directory of the given database engine.
func MigrationsDir(engine string) string {
	return "migrations/" + engine
}
