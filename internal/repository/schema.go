package repository

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

//go:embed schema.sql
var schema string

// Migrate применяет схему; повторный запуск ничего не меняет
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	const op = "repository.Migrate"

	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
