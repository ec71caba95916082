package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	credits "github.com/goliatone/go-credits"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// Source is the embedded credits schema for one dialect. Versions lists the
// migration names in apply order, without the up/down suffix.
type Source struct {
	Dialect  string
	Path     string
	FS       fs.FS
	Versions []string
}

// DialectFor maps a bun dialect or driver name onto a migration dialect.
func DialectFor(name string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "pg", "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: unsupported dialect %q", name)
	}
}

// Sources resolves the postgres and sqlite schema trees. Every up migration
// needs a down migration, and both dialects must carry the same versions so
// the registry and marketplace tables never drift between backends.
func Sources() ([]Source, error) {
	root, err := fs.Sub(credits.GetCoreMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve schema root: %w", err)
	}
	sqliteFS, err := fs.Sub(root, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite schema: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: "data/sql/migrations", FS: root},
		{Dialect: DialectSQLite, Path: "data/sql/migrations/sqlite", FS: sqliteFS},
	}
	for i := range sources {
		if sources[i].Versions, err = versions(sources[i]); err != nil {
			return nil, err
		}
	}
	if !slices.Equal(sources[0].Versions, sources[1].Versions) {
		return nil, fmt.Errorf("migrations: postgres versions %v differ from sqlite versions %v",
			sources[0].Versions, sources[1].Versions)
	}
	return sources, nil
}

func versions(src Source) ([]string, error) {
	ups, err := fs.Glob(src.FS, "*"+upSuffix)
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", src.Path, err)
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("migrations: %s has no %s files", src.Path, upSuffix)
	}
	out := make([]string, 0, len(ups))
	for _, up := range ups {
		version := strings.TrimSuffix(up, upSuffix)
		if _, err := fs.Stat(src.FS, version+downSuffix); err != nil {
			return nil, fmt.Errorf("migrations: %s/%s has no rollback: %w", src.Path, version, err)
		}
		out = append(out, version)
	}
	slices.Sort(out)
	return out, nil
}

// Register hands the schema for dialect to apply, typically
// persistence.Client.RegisterSQLMigrations.
func Register(_ context.Context, dialect string, apply func(fsys fs.FS)) (Source, error) {
	if apply == nil {
		return Source{}, fmt.Errorf("migrations: apply function is required")
	}
	target, err := DialectFor(dialect)
	if err != nil {
		return Source{}, err
	}
	sources, err := Sources()
	if err != nil {
		return Source{}, err
	}
	for _, src := range sources {
		if src.Dialect == target {
			apply(src.FS)
			return src, nil
		}
	}
	return Source{}, fmt.Errorf("migrations: no schema for %s", target)
}
