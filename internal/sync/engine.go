// Package sync reconciles the local store with the remote document store:
// pending-delete drain, then push, then pull, in that fixed order.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerlite/ledgerlite/internal/common"
	"github.com/ledgerlite/ledgerlite/internal/model"
	"github.com/ledgerlite/ledgerlite/internal/service"
)

// DefaultPullPageSize bounds one remote query during pull.
const DefaultPullPageSize = 100

// Result summarizes one sync cycle.
type Result struct {
	DeletesConfirmed int
	DeletesPending   int
	Pushed           int
	Pulled           int
}

// Engine reconciles local and remote state without losing unsynced local
// intent. It reads and writes sync-state but never originates transaction
// content. Safe to re-run at any point; every phase is idempotent.
type Engine struct {
	storage      service.Storage
	remote       service.RemoteStore
	connectivity service.Connectivity
	retryOpts    service.RetryOptions
	pullPageSize int
}

// New creates a sync engine. Zero-valued retry options fall back to the
// 5-attempt doubling backoff contract.
func New(storage service.Storage, remote service.RemoteStore, connectivity service.Connectivity, retryOpts service.RetryOptions) *Engine {
	if retryOpts.MaxAttempts <= 0 {
		retryOpts = common.DefaultRetryOptions()
	}
	return &Engine{
		storage:      storage,
		remote:       remote,
		connectivity: connectivity,
		retryOpts:    retryOpts,
		pullPageSize: DefaultPullPageSize,
	}
}

// Sync runs one full cycle for the user: drain queued deletes, push unsynced
// rows, pull new remote rows. Deletions reconcile first so a row deleted
// remotely cannot be resurrected by a following push.
//
// Offline is an expected condition: the engine exits immediately without
// touching sync-state. Transient remote failures exhaust their retries and
// surface as a recoverable error; local rows stay unsynced or queued and the
// next cycle resumes from where this one left off.
func (e *Engine) Sync(ctx context.Context, userID string) (*Result, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userID", common.ErrMissingConfig)
	}
	if !e.connectivity.Online() {
		return nil, common.ErrOffline
	}

	result := &Result{}
	var failures []error

	if err := e.drainDeletes(ctx, userID, result); err != nil {
		failures = append(failures, err)
	}
	if err := e.push(ctx, userID, result); err != nil {
		failures = append(failures, err)
	}
	if err := e.pull(ctx, userID, result); err != nil {
		failures = append(failures, err)
	}

	if len(failures) > 0 {
		return result, fmt.Errorf("sync incomplete: %w", errors.Join(failures...))
	}
	return result, nil
}

// drainDeletes attempts every queued remote deletion. One id's exhausted
// retries never abort the remaining ids; failures stay queued for the next
// cycle.
func (e *Engine) drainDeletes(ctx context.Context, userID string, result *Result) error {
	pending, err := e.storage.ListPendingDeletes(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list pending deletes: %w", err)
	}

	var failed int
	for _, p := range pending {
		deleteErr := common.WithRetry(ctx, func() error {
			return e.remote.Delete(ctx, userID, p.ID)
		}, e.retryOpts)

		if deleteErr != nil {
			slog.Warn("Remote delete still failing, leaving queued",
				"id", p.ID, "error", deleteErr)
			result.DeletesPending++
			failed++
			continue
		}

		if err := e.storage.RemovePendingDelete(ctx, p.ID); err != nil {
			return fmt.Errorf("failed to dequeue confirmed delete %s: %w", p.ID, err)
		}
		if err := e.storage.PurgeTransaction(ctx, p.ID); err != nil {
			return fmt.Errorf("failed to purge deleted transaction %s: %w", p.ID, err)
		}
		result.DeletesConfirmed++
	}

	if failed > 0 {
		return fmt.Errorf("%d pending deletes still unconfirmed", failed)
	}
	return nil
}

// push uploads all unsynced, non-deleted rows as one merged batch and marks
// them synced on confirmed success.
func (e *Engine) push(ctx context.Context, userID string, result *Result) error {
	unsynced, err := e.storage.GetUnsyncedTransactions(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load unsynced transactions: %w", err)
	}
	if len(unsynced) == 0 {
		return nil
	}

	docs := make([]service.RemoteDocument, 0, len(unsynced))
	ids := make([]string, 0, len(unsynced))
	for _, txn := range unsynced {
		docs = append(docs, toDocument(txn))
		ids = append(ids, txn.ID)
	}

	if err := common.WithRetry(ctx, func() error {
		return e.remote.UpsertBatch(ctx, docs)
	}, e.retryOpts); err != nil {
		return fmt.Errorf("push failed, %d rows remain unsynced: %w", len(docs), err)
	}

	if err := e.storage.MarkTransactionsSynced(ctx, ids); err != nil {
		return fmt.Errorf("failed to mark transactions synced: %w", err)
	}

	pushMs := time.Now().UnixMilli()
	if err := e.storage.UpsertSyncState(ctx, userID, service.SyncStatePatch{LastPushMs: &pushMs}); err != nil {
		return fmt.Errorf("failed to record push time: %w", err)
	}

	result.Pushed = len(ids)
	slog.Info("Pushed unsynced transactions", "user", userID, "count", len(ids))
	return nil
}

// pull merges new remote rows, resuming strictly after the stored cursor.
// The cursor is the last-seen server-assigned timestamp; an unsynced local
// row is never overwritten (local-wins).
func (e *Engine) pull(ctx context.Context, userID string, result *Result) error {
	cursor := ""
	state, err := e.storage.GetSyncState(ctx, userID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("failed to read sync state: %w", err)
	}
	if state != nil {
		cursor = state.LastPullCursor
	}

	for {
		var docs []service.RemoteDocument
		if err := common.WithRetry(ctx, func() error {
			var queryErr error
			docs, queryErr = e.remote.Query(ctx, userID, cursor, e.pullPageSize)
			return queryErr
		}, e.retryOpts); err != nil {
			return fmt.Errorf("pull query failed: %w", err)
		}
		if len(docs) == 0 {
			break
		}

		for _, doc := range docs {
			if err := e.applyRemote(ctx, doc); err != nil {
				return err
			}
			if doc.Timestamp != "" {
				cursor = doc.Timestamp
			}
			result.Pulled++
		}

		if len(docs) < e.pullPageSize {
			break
		}
	}

	pullMs := time.Now().UnixMilli()
	patch := service.SyncStatePatch{LastPullMs: &pullMs}
	if cursor != "" {
		patch.LastPullCursor = &cursor
	}
	if err := e.storage.UpsertSyncState(ctx, userID, patch); err != nil {
		return fmt.Errorf("failed to advance pull cursor: %w", err)
	}

	return nil
}

// applyRemote merges one remote document into the local store.
func (e *Engine) applyRemote(ctx context.Context, doc service.RemoteDocument) error {
	if doc.Deleted {
		local, err := e.storage.GetTransaction(ctx, doc.ID)
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load local row %s: %w", doc.ID, err)
		}
		// An unsynced local row is user intent not yet transmitted.
		if !local.Synced {
			return nil
		}
		if err := e.storage.PurgeTransaction(ctx, doc.ID); err != nil {
			return fmt.Errorf("failed to apply remote tombstone %s: %w", doc.ID, err)
		}
		return nil
	}

	if err := e.storage.UpsertFromRemote(ctx, fromDocument(doc)); err != nil {
		return fmt.Errorf("failed to merge remote row %s: %w", doc.ID, err)
	}
	return nil
}

// PushOne pushes a single row right after a local add, to minimize the
// latency to the synced state. Best effort: any failure leaves the row
// unsynced for the next bulk cycle.
func (e *Engine) PushOne(ctx context.Context, userID, id string) error {
	if !e.connectivity.Online() {
		return common.ErrOffline
	}

	txn, err := e.storage.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load transaction %s: %w", id, err)
	}
	if txn.Synced || txn.Deleted {
		return nil
	}

	if err := common.WithRetry(ctx, func() error {
		return e.remote.UpsertBatch(ctx, []service.RemoteDocument{toDocument(*txn)})
	}, e.retryOpts); err != nil {
		return fmt.Errorf("single-row push failed: %w", err)
	}

	if err := e.storage.MarkTransactionsSynced(ctx, []string{id}); err != nil {
		return fmt.Errorf("failed to mark transaction synced: %w", err)
	}

	pushMs := time.Now().UnixMilli()
	if err := e.storage.UpsertSyncState(ctx, userID, service.SyncStatePatch{LastPushMs: &pushMs}); err != nil {
		return fmt.Errorf("failed to record push time: %w", err)
	}

	return nil
}

// DeleteRemote attempts one immediate remote deletion and, on confirmed
// success, purges the local tombstone. The caller queues the id on failure.
func (e *Engine) DeleteRemote(ctx context.Context, userID, id string) error {
	if !e.connectivity.Online() {
		return common.ErrOffline
	}

	if err := common.WithRetry(ctx, func() error {
		return e.remote.Delete(ctx, userID, id)
	}, e.retryOpts); err != nil {
		return fmt.Errorf("remote delete failed: %w", err)
	}

	if err := e.storage.PurgeTransaction(ctx, id); err != nil {
		return fmt.Errorf("failed to purge transaction %s: %w", id, err)
	}
	return nil
}

func toDocument(txn model.Transaction) service.RemoteDocument {
	return service.RemoteDocument{
		ID:       txn.ID,
		UserID:   txn.UserID,
		Amount:   txn.Amount,
		Category: txn.Category,
		Date:     txn.DateISO,
		Notes:    txn.Notes,
		Type:     string(txn.Type),
		Deleted:  txn.Deleted,
	}
}

func fromDocument(doc service.RemoteDocument) model.Transaction {
	return model.Transaction{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Amount:    doc.Amount,
		Category:  doc.Category,
		DateISO:   doc.Date,
		Notes:     doc.Notes,
		Type:      model.TransactionType(doc.Type),
		Synced:    true,
		UpdatedAt: time.Now().UnixMilli(),
		Deleted:   doc.Deleted,
	}
}
