package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ledgerlite/ledgerlite/internal/common"
	"github.com/ledgerlite/ledgerlite/internal/model"
	"github.com/ledgerlite/ledgerlite/internal/service"
)

const transactionColumns = `id, user_id, amount, category, date_iso, notes, type, synced, updated_at, deleted`

// UpsertTransaction inserts or replaces a row by id. Used for new local
// writes; the conflict arm fires the UPDATE trigger so aggregates track the
// final state only.
func (s *SQLiteStorage) UpsertTransaction(ctx context.Context, txn model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactionRow(&txn); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			amount = excluded.amount,
			category = excluded.category,
			date_iso = excluded.date_iso,
			notes = excluded.notes,
			type = excluded.type,
			synced = excluded.synced,
			updated_at = excluded.updated_at,
			deleted = excluded.deleted
	`, txn.ID, txn.UserID, txn.Amount, txn.Category, txn.DateISO, txn.Notes,
		string(txn.Type), boolToInt(txn.Synced), txn.UpdatedAt, boolToInt(txn.Deleted))
	if err != nil {
		return fmt.Errorf("failed to upsert transaction %s: %w", txn.ID, err)
	}

	return nil
}

// UpsertFromRemote merges a pulled remote row into the local store. The
// conflict arm carries a synced = 1 guard: an unsynced local row is
// authoritative user intent and must not be clobbered (local-wins).
func (s *SQLiteStorage) UpsertFromRemote(ctx context.Context, txn model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactionRow(&txn); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			amount = excluded.amount,
			category = excluded.category,
			date_iso = excluded.date_iso,
			notes = excluded.notes,
			type = excluded.type,
			synced = 1,
			updated_at = excluded.updated_at,
			deleted = excluded.deleted
		WHERE synced = 1
	`, txn.ID, txn.UserID, txn.Amount, txn.Category, txn.DateISO, txn.Notes,
		string(txn.Type), txn.UpdatedAt, boolToInt(txn.Deleted))
	if err != nil {
		return fmt.Errorf("failed to merge remote transaction %s: %w", txn.ID, err)
	}

	return nil
}

// UpdateTransaction applies a partial update. An empty patch is a no-op; any
// applied patch stamps updated_at and clears the synced flag.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, id string, patch service.TransactionPatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return nil
	}

	sets := make([]string, 0, 7)
	args := make([]any, 0, 8)

	if patch.Amount != nil {
		sets = append(sets, "amount = ?")
		args = append(args, *patch.Amount)
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *patch.Category)
	}
	if patch.DateISO != nil {
		sets = append(sets, "date_iso = ?")
		args = append(args, *patch.DateISO)
	}
	if patch.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *patch.Notes)
	}
	if patch.Type != nil {
		sets = append(sets, "type = ?")
		args = append(args, string(*patch.Type))
	}

	sets = append(sets, "synced = 0", "updated_at = ?")
	args = append(args, nowMillis(), id)

	result, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}

	return nil
}

// SoftDeleteTransaction marks a row as a tombstone. The row stays local until
// the remote delete is confirmed. Deleting an unknown id is not an error.
func (s *SQLiteStorage) SoftDeleteTransaction(ctx context.Context, id string, updatedAt int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET deleted = 1, synced = 0, updated_at = ?
		WHERE id = ?
	`, updatedAt, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete transaction %s: %w", id, err)
	}

	return nil
}

// PurgeTransaction physically removes a row. Safe only after the remote
// delete has been confirmed.
func (s *SQLiteStorage) PurgeTransaction(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to purge transaction %s: %w", id, err)
	}

	return nil
}

// GetTransaction retrieves a single row by id, tombstones included.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)

	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return txn, nil
}

// PageTransactions returns one page of non-deleted rows in strict
// (date_iso DESC, id DESC) order, starting strictly after the cursor. The
// next cursor is the last returned row, or nil on the final page.
func (s *SQLiteStorage) PageTransactions(ctx context.Context, userID string, pageSize int, cursor *service.PageCursor) (*service.TransactionPage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		return nil, ErrInvalidPageSize
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = ? AND deleted = 0`
	args := []any{userID}

	if cursor != nil {
		query += ` AND (date_iso < ? OR (date_iso = ? AND id < ?))`
		args = append(args, cursor.DateISO, cursor.DateISO, cursor.ID)
	}

	query += ` ORDER BY date_iso DESC, id DESC LIMIT ?`
	args = append(args, pageSize)

	transactions, err := queryTransactions(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction page: %w", err)
	}

	page := &service.TransactionPage{Transactions: transactions}
	if len(transactions) == pageSize {
		last := transactions[len(transactions)-1]
		page.Next = &service.PageCursor{DateISO: last.DateISO, ID: last.ID}
	}

	return page, nil
}

// SearchTransactions does a bounded, case-insensitive prefix match on
// category, excluding tombstones.
func (s *SQLiteStorage) SearchTransactions(ctx context.Context, userID, term string, limit int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	transactions, err := queryTransactions(ctx, s.db, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = ? AND deleted = 0 AND category LIKE ? ESCAPE '\' COLLATE NOCASE
		ORDER BY date_iso DESC, id DESC
		LIMIT ?
	`, userID, escapeLike(term)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search transactions: %w", err)
	}

	return transactions, nil
}

// GetUnsyncedTransactions returns all non-deleted rows awaiting push.
func (s *SQLiteStorage) GetUnsyncedTransactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	transactions, err := queryTransactions(ctx, s.db, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = ? AND synced = 0 AND deleted = 0
		ORDER BY updated_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsynced transactions: %w", err)
	}

	return transactions, nil
}

// MarkTransactionsSynced flips the synced flag for the given ids in a single
// transaction, after a confirmed remote push.
func (s *SQLiteStorage) MarkTransactionsSynced(ctx context.Context, ids []string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE transactions SET synced = 1 WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, id); err != nil {
				return fmt.Errorf("failed to mark transaction %s synced: %w", id, err)
			}
		}
		return nil
	})
}

// CountUnsynced reports how many rows (tombstones included) still need to
// reach the remote store.
func (s *SQLiteStorage) CountUnsynced(ctx context.Context, userID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions WHERE user_id = ? AND synced = 0
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unsynced transactions: %w", err)
	}

	return count, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var typ string
	var synced, deleted int

	err := row.Scan(
		&txn.ID,
		&txn.UserID,
		&txn.Amount,
		&txn.Category,
		&txn.DateISO,
		&txn.Notes,
		&typ,
		&synced,
		&txn.UpdatedAt,
		&deleted,
	)
	if err != nil {
		return nil, err
	}

	txn.Type = model.TransactionType(typ)
	txn.Synced = synced != 0
	txn.Deleted = deleted != 0

	return &txn, nil
}

// queryTransactions runs a transaction-shaped query against a *sql.DB or an
// open *sql.Tx.
func queryTransactions(ctx context.Context, q queryable, query string, args ...any) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(term string) string {
	term = strings.ReplaceAll(term, `\`, `\\`)
	term = strings.ReplaceAll(term, `%`, `\%`)
	term = strings.ReplaceAll(term, `_`, `\_`)
	return term
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
