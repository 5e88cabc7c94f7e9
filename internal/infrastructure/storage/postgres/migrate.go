package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"invoicenum/migrations"
	"invoicenum/pkg/logger"
)

// Migrate applies all pending embedded migrations.
func Migrate(ctx context.Context, pool *Pool) error {
	db := stdlib.OpenDBFromPool(pool.Pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err == nil {
		logger.Info(ctx, "database migrated", "version", version)
	}
	return nil
}
