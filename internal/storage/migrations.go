package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Migration is one named, ordered schema change. Each runs inside a single
// transaction and is recorded in schema_migrations in that same transaction,
// so a partially applied migration cannot be observed.
type Migration struct {
	Up   func(*sql.Tx) error
	Name string
}

var migrations = []Migration{
	{
		Name: "001_initial_schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					amount REAL NOT NULL,
					category TEXT NOT NULL,
					date_iso TEXT NOT NULL,
					notes TEXT NOT NULL DEFAULT '',
					type TEXT NOT NULL,
					synced INTEGER NOT NULL DEFAULT 0,
					updated_at INTEGER NOT NULL,
					deleted INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, date_iso DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_user_type ON transactions(user_id, type)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_user_updated ON transactions(user_id, updated_at)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_user_deleted ON transactions(user_id, deleted)`,

				`CREATE TABLE IF NOT EXISTS sync_state (
					user_id TEXT PRIMARY KEY,
					last_pull_cursor TEXT NOT NULL DEFAULT '',
					last_pull_ms INTEGER NOT NULL DEFAULT 0,
					last_push_ms INTEGER NOT NULL DEFAULT 0
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Name: "002_aggregate_summaries",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS user_summary (
					user_id TEXT PRIMARY KEY,
					total_income REAL NOT NULL DEFAULT 0,
					total_expense REAL NOT NULL DEFAULT 0
				)`,
				`CREATE TABLE IF NOT EXISTS monthly_summary (
					user_id TEXT NOT NULL,
					year INTEGER NOT NULL,
					month INTEGER NOT NULL,
					income REAL NOT NULL DEFAULT 0,
					expense REAL NOT NULL DEFAULT 0,
					PRIMARY KEY (user_id, year, month)
				)`,

				// Delta triggers keep the summaries consistent with row-level
				// changes. A row contributes nothing while deleted = 1. The
				// update trigger subtracts the OLD contribution then adds the
				// NEW one, because type, amount and date can all change.
				`CREATE TRIGGER IF NOT EXISTS transactions_summary_insert
				AFTER INSERT ON transactions
				BEGIN
					INSERT INTO user_summary (user_id, total_income, total_expense)
					VALUES (
						NEW.user_id,
						CASE WHEN NEW.deleted = 0 AND NEW.type = 'income' THEN NEW.amount ELSE 0 END,
						CASE WHEN NEW.deleted = 0 AND NEW.type = 'expense' THEN NEW.amount ELSE 0 END
					)
					ON CONFLICT(user_id) DO UPDATE SET
						total_income = total_income + CASE WHEN NEW.deleted = 0 AND NEW.type = 'income' THEN NEW.amount ELSE 0 END,
						total_expense = total_expense + CASE WHEN NEW.deleted = 0 AND NEW.type = 'expense' THEN NEW.amount ELSE 0 END;

					INSERT INTO monthly_summary (user_id, year, month, income, expense)
					VALUES (
						NEW.user_id,
						CAST(substr(NEW.date_iso, 1, 4) AS INTEGER),
						CAST(substr(NEW.date_iso, 6, 2) AS INTEGER),
						CASE WHEN NEW.deleted = 0 AND NEW.type = 'income' THEN NEW.amount ELSE 0 END,
						CASE WHEN NEW.deleted = 0 AND NEW.type = 'expense' THEN NEW.amount ELSE 0 END
					)
					ON CONFLICT(user_id, year, month) DO UPDATE SET
						income = income + CASE WHEN NEW.deleted = 0 AND NEW.type = 'income' THEN NEW.amount ELSE 0 END,
						expense = expense + CASE WHEN NEW.deleted = 0 AND NEW.type = 'expense' THEN NEW.amount ELSE 0 END;
				END`,

				`CREATE TRIGGER IF NOT EXISTS transactions_summary_update
				AFTER UPDATE ON transactions
				BEGIN
					UPDATE user_summary SET
						total_income = total_income - CASE WHEN OLD.deleted = 0 AND OLD.type = 'income' THEN OLD.amount ELSE 0 END,
						total_expense = total_expense - CASE WHEN OLD.deleted = 0 AND OLD.type = 'expense' THEN OLD.amount ELSE 0 END
					WHERE user_id = OLD.user_id;

					INSERT INTO user_summary (user_id, total_income, total_expense)
					VALUES (
						NEW.user_id,
						CASE WHEN NEW.deleted = 0 AND NEW.type = 'income' THEN NEW.amount ELSE 0 END,
						CASE WHEN NEW.deleted = 0 AND NEW.type = 'expense' THEN NEW.amount ELSE 0 END
					)
					ON CONFLICT(user_id) DO UPDATE SET
						total_income = total_income + CASE WHEN NEW.deleted = 0 AND NEW.type = 'income' THEN NEW.amount ELSE 0 END,
						total_expense = total_expense + CASE WHEN NEW.deleted = 0 AND NEW.type = 'expense' THEN NEW.amount ELSE 0 END;

					UPDATE monthly_summary SET
						income = income - CASE WHEN OLD.deleted = 0 AND OLD.type = 'income' THEN OLD.amount ELSE 0 END,
						expense = expense - CASE WHEN OLD.deleted = 0 AND OLD.type = 'expense' THEN OLD.amount ELSE 0 END
					WHERE user_id = OLD.user_id
						AND year = CAST(substr(OLD.date_iso, 1, 4) AS INTEGER)
						AND month = CAST(substr(OLD.date_iso, 6, 2) AS INTEGER);

					INSERT INTO monthly_summary (user_id, year, month, income, expense)
					VALUES (
						NEW.user_id,
						CAST(substr(NEW.date_iso, 1, 4) AS INTEGER),
						CAST(substr(NEW.date_iso, 6, 2) AS INTEGER),
						CASE WHEN NEW.deleted = 0 AND NEW.type = 'income' THEN NEW.amount ELSE 0 END,
						CASE WHEN NEW.deleted = 0 AND NEW.type = 'expense' THEN NEW.amount ELSE 0 END
					)
					ON CONFLICT(user_id, year, month) DO UPDATE SET
						income = income + CASE WHEN NEW.deleted = 0 AND NEW.type = 'income' THEN NEW.amount ELSE 0 END,
						expense = expense + CASE WHEN NEW.deleted = 0 AND NEW.type = 'expense' THEN NEW.amount ELSE 0 END;
				END`,

				`CREATE TRIGGER IF NOT EXISTS transactions_summary_delete
				AFTER DELETE ON transactions
				BEGIN
					UPDATE user_summary SET
						total_income = total_income - CASE WHEN OLD.deleted = 0 AND OLD.type = 'income' THEN OLD.amount ELSE 0 END,
						total_expense = total_expense - CASE WHEN OLD.deleted = 0 AND OLD.type = 'expense' THEN OLD.amount ELSE 0 END
					WHERE user_id = OLD.user_id;

					UPDATE monthly_summary SET
						income = income - CASE WHEN OLD.deleted = 0 AND OLD.type = 'income' THEN OLD.amount ELSE 0 END,
						expense = expense - CASE WHEN OLD.deleted = 0 AND OLD.type = 'expense' THEN OLD.amount ELSE 0 END
					WHERE user_id = OLD.user_id
						AND year = CAST(substr(OLD.date_iso, 1, 4) AS INTEGER)
						AND month = CAST(substr(OLD.date_iso, 6, 2) AS INTEGER);
				END`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Name: "003_pending_deletes",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS pending_deletes (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					queued_at INTEGER NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_pending_deletes_user ON pending_deletes(user_id, queued_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending migrations. Already-applied migrations are
// skipped, so re-running is a no-op.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}
	for rows.Next() {
		var name string
		if scanErr := rows.Scan(&name); scanErr != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan migration name: %w", scanErr)
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("failed to iterate applied migrations: %w", err)
	}
	_ = rows.Close()

	for _, migration := range migrations {
		if applied[migration.Name] {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s failed: %w", migration.Name, upErr)
		}

		if _, execErr := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
			migration.Name, time.Now().UTC()); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", migration.Name, execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %s: %w", migration.Name, commitErr)
		}

		slog.Info("Applied migration", "name", migration.Name)
	}

	return nil
}
