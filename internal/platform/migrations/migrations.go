// Package migrations embeds the storefront schema for PostgreSQL and SQLite.
// Apply runs the idempotent up files at boot; NewMigrator exposes the same
// files to golang-migrate for operator driven up/down runs.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/postgres/*.sql sql/sqlite/*.sql
var files embed.FS

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

func dir(dialect string) (string, error) {
	switch dialect {
	case DialectPostgres, DialectSQLite:
		return path.Join("sql", dialect), nil
	}
	return "", fmt.Errorf("unsupported dialect %q", dialect)
}

// UpFiles lists the up migrations for dialect in version order.
func UpFiles(dialect string) ([]string, error) {
	root, err := dir(dialect)
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(files, root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, path.Join(root, e.Name()))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Apply executes every up migration for dialect. The files use IF NOT EXISTS
// so repeated boots are safe.
func Apply(ctx context.Context, db *sql.DB, dialect string) error {
	names, err := UpFiles(dialect)
	if err != nil {
		return err
	}
	for _, name := range names {
		body, err := files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply %s: %w", path.Base(name), err)
		}
	}
	return nil
}

// NewMigrator wraps db in a golang-migrate instance reading the embedded files.
func NewMigrator(db *sql.DB, dialect string) (*migrate.Migrate, error) {
	root, err := dir(dialect)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(files, root)
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}

	var driver migratedb.Driver
	switch dialect {
	case DialectPostgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	case DialectSQLite:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("open migration driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", src, dialect, driver)
}
