package database

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"

	"github.com/kc-reserve/hut-api/migrations"
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB, dir string) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if dir == "" {
		dir = "."
	}
	return gooseUpContext(ctx, db, dir)
}
