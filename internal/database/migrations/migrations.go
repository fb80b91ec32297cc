// Package migrations creates and upgrades the sustainability store schema
// using goose with SQL files embedded per dialect.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/koustreak/greeny/internal/database"
	"github.com/koustreak/greeny/internal/errs"
)

//go:embed postgres/*.sql mysql/*.sql
var migrations embed.FS

// goose keeps its dialect and filesystem in package globals.
var mu sync.Mutex

func configure(d database.Dialect) (string, error) {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	dir := d.String()
	if err := goose.SetDialect(dir); err != nil {
		return "", fmt.Errorf("failed to set dialect: %w", err)
	}
	return dir, nil
}

// Up applies every pending migration.
func Up(ctx context.Context, db *sql.DB, d database.Dialect) error {
	mu.Lock()
	defer mu.Unlock()

	dir, err := configure(d)
	if err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, "failed to run migrations", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, db *sql.DB, d database.Dialect) error {
	mu.Lock()
	defer mu.Unlock()

	dir, err := configure(d)
	if err != nil {
		return err
	}
	if err := goose.DownContext(ctx, db, dir); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, "failed to roll back migration", err)
	}
	return nil
}

// Version returns the current schema version.
func Version(ctx context.Context, db *sql.DB, d database.Dialect) (int64, error) {
	mu.Lock()
	defer mu.Unlock()

	if _, err := configure(d); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, errs.Wrap(errs.ErrKindQueryFailed, "failed to read migration version", err)
	}
	return v, nil
}
