package credits

import (
	"embed"
	"io/fs"
)

// migrationsFS holds the credits schema for postgres with sqlite
// alternatives under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the full embedded migration tree.
func GetMigrationsFS() fs.FS {
	return migrationsFS
}

// GetCoreMigrationsFS returns the registry and marketplace schema tree.
func GetCoreMigrationsFS() fs.FS {
	return migrationsFS
}
