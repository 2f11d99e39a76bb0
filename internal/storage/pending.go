package storage

import (
	"context"
	"fmt"

	"github.com/ledgerlite/ledgerlite/internal/model"
)

// EnqueuePendingDelete records a transaction id whose remote deletion has not
// been confirmed yet. Re-enqueueing an already-queued id is a no-op.
func (s *SQLiteStorage) EnqueuePendingDelete(ctx context.Context, userID, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_deletes (id, user_id, queued_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, userID, nowMillis())
	if err != nil {
		return fmt.Errorf("failed to enqueue pending delete %s: %w", id, err)
	}

	return nil
}

// ListPendingDeletes returns the queue in enqueue order.
func (s *SQLiteStorage) ListPendingDeletes(ctx context.Context, userID string) ([]model.PendingDelete, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, queued_at
		FROM pending_deletes
		WHERE user_id = ?
		ORDER BY queued_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deletes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pending []model.PendingDelete
	for rows.Next() {
		var p model.PendingDelete
		if err := rows.Scan(&p.ID, &p.UserID, &p.QueuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending delete: %w", err)
		}
		pending = append(pending, p)
	}

	return pending, rows.Err()
}

// RemovePendingDelete clears a queue entry after the remote delete succeeded.
func (s *SQLiteStorage) RemovePendingDelete(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_deletes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove pending delete %s: %w", id, err)
	}

	return nil
}
