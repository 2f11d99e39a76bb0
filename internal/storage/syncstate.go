package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ledgerlite/ledgerlite/internal/common"
	"github.com/ledgerlite/ledgerlite/internal/model"
	"github.com/ledgerlite/ledgerlite/internal/service"
)

// GetSyncState reads a user's sync cursor state. common.ErrNotFound before
// the first sync attempt.
func (s *SQLiteStorage) GetSyncState(ctx context.Context, userID string) (*model.SyncState, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	var state model.SyncState
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, last_pull_cursor, last_pull_ms, last_push_ms
		FROM sync_state
		WHERE user_id = ?
	`, userID).Scan(&state.UserID, &state.LastPullCursor, &state.LastPullMs, &state.LastPushMs)

	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	return &state, nil
}

// UpsertSyncState merges the patch into the user's sync state; only supplied
// fields overwrite. The row is created on first use.
func (s *SQLiteStorage) UpsertSyncState(ctx context.Context, userID string, patch service.SyncStatePatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (user_id, last_pull_cursor, last_pull_ms, last_push_ms)
		VALUES (?, COALESCE(?, ''), COALESCE(?, 0), COALESCE(?, 0))
		ON CONFLICT(user_id) DO UPDATE SET
			last_pull_cursor = COALESCE(?, last_pull_cursor),
			last_pull_ms = COALESCE(?, last_pull_ms),
			last_push_ms = COALESCE(?, last_push_ms)
	`, userID,
		patch.LastPullCursor, patch.LastPullMs, patch.LastPushMs,
		patch.LastPullCursor, patch.LastPullMs, patch.LastPushMs)
	if err != nil {
		return fmt.Errorf("failed to upsert sync state: %w", err)
	}

	return nil
}
