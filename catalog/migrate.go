package catalog

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"

	"github.com/draftdesk/scriptstore/catalog/migrations"
)

// RunMigrations applies the embedded goose migrations to the database.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}
