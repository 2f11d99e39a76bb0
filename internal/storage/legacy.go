package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlite/ledgerlite/internal/model"
)

// legacyRecord is the flat key-value shape the app stored before the
// relational schema existed.
type legacyRecord struct {
	ID       string  `json:"id"`
	UserID   string  `json:"userId"`
	Category string  `json:"category"`
	Date     string  `json:"date"`
	Notes    string  `json:"notes"`
	Type     string  `json:"type"`
	Amount   float64 `json:"amount"`
}

// ImportLegacyFile performs the one-time import of legacy flat records into
// the relational store. The whole batch runs in one transaction, and the
// legacy file is removed only after full success: a partial failure leaves it
// intact so the import can be retried without losing records.
//
// Defaults for incomplete records: unknown type becomes expense, a missing
// owner becomes the local sentinel, a missing id gets a fresh one. Returns
// the number of imported rows.
func (s *SQLiteStorage) ImportLegacyFile(ctx context.Context, path, userID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(path, "path"); err != nil {
		return 0, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read legacy file: %w", err)
	}

	var records []legacyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, fmt.Errorf("failed to parse legacy records: %w", err)
	}
	if len(records) == 0 {
		if err := os.Remove(path); err != nil {
			return 0, fmt.Errorf("failed to clear legacy file: %w", err)
		}
		return 0, nil
	}

	now := time.Now().UnixMilli()

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transactions (`+transactionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, 0)
			ON CONFLICT(id) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i, rec := range records {
			txn := legacyToTransaction(rec, userID, now)
			if _, err := stmt.ExecContext(ctx,
				txn.ID, txn.UserID, txn.Amount, txn.Category, txn.DateISO,
				txn.Notes, string(txn.Type), txn.UpdatedAt); err != nil {
				return fmt.Errorf("failed to import legacy record %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := os.Remove(path); err != nil {
		return 0, fmt.Errorf("imported %d records but failed to clear legacy file: %w", len(records), err)
	}

	slog.Info("Imported legacy records", "count", len(records), "path", path)
	return len(records), nil
}

func legacyToTransaction(rec legacyRecord, fallbackUser string, updatedAt int64) model.Transaction {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	owner := rec.UserID
	if owner == "" {
		owner = fallbackUser
	}
	if owner == "" {
		owner = model.LocalUserID
	}

	typ := model.TransactionType(strings.ToLower(strings.TrimSpace(rec.Type)))
	if typ != model.TypeIncome {
		typ = model.TypeExpense
	}

	category := strings.TrimSpace(rec.Category)
	if category == "" {
		category = "Uncategorized"
	}

	dateISO := rec.Date
	if dateISO == "" {
		dateISO = time.UnixMilli(updatedAt).UTC().Format(time.RFC3339)
	}

	return model.Transaction{
		ID:        id,
		UserID:    owner,
		Amount:    rec.Amount,
		Category:  category,
		DateISO:   dateISO,
		Notes:     rec.Notes,
		Type:      typ,
		UpdatedAt: updatedAt,
	}
}
