// Package postgres — queries.go применяет встроенные SQL-миграции.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplyMigration применяет одну миграцию: SQL и запись версии
// в schema_migrations идут одной транзакцией, поэтому упавшая
// миграция не оставляет после себя половины схемы. Уже применённая
// версия пропускается, что делает запуск при старте идемпотентным.
func ApplyMigration(ctx context.Context, pool *pgxpool.Pool, version int, sql string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var applied bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
	).Scan(&applied)
	if err != nil {
		return fmt.Errorf("ошибка проверки версии %d: %w", version, err)
	}
	if applied {
		return nil
	}

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("ошибка выполнения миграции %d: %w", version, err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1)", version,
	); err != nil {
		return fmt.Errorf("ошибка записи версии %d: %w", version, err)
	}

	return tx.Commit(ctx)
}
