package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// RunMigrations applies the embedded migrations for dialect to db.
// A goose Provider is used instead of the package-level goose state so
// SQLite and PostgreSQL stores can be migrated from the same process.
// Running it twice is a no-op.
func RunMigrations(ctx context.Context, db *sql.DB, dialect database.Dialect) error {
	dir := "migrations/sqlite"
	if dialect == database.DialectPostgres {
		dir = "migrations/postgres"
	}

	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
