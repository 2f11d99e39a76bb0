// Package coordinator is the single entry point for creating and removing
// transactions from the presentation layer. It owns the in-memory mirror of
// the store, the offline delete queue, and sync scheduling.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ledgerlite/ledgerlite/internal/common"
	"github.com/ledgerlite/ledgerlite/internal/model"
	"github.com/ledgerlite/ledgerlite/internal/service"
	syncengine "github.com/ledgerlite/ledgerlite/internal/sync"
)

// DefaultCooldown is the minimum gap between connectivity-triggered syncs.
const DefaultCooldown = 30 * time.Second

// mirrorPageSize is the page size used to rebuild the in-memory mirror.
const mirrorPageSize = 200

// Config tunes coordinator behavior.
type Config struct {
	// AutoSync triggers a full sync when connectivity returns.
	AutoSync bool
	// Cooldown suppresses connectivity-triggered syncs this soon after the
	// previous attempt, to avoid sync storms from flapping links.
	Cooldown time.Duration
	// NotifyWindow is the dedupe window for repeated identical toasts.
	NotifyWindow time.Duration
}

// Coordinator serializes add/delete operations and schedules syncs. The
// mirror it keeps is a read-through cache over storage, never a second
// source of truth: it is rebuilt from the store after every mutation and
// every successful sync.
type Coordinator struct {
	storage      service.Storage
	engine       *syncengine.Engine
	connectivity service.Connectivity
	identity     service.Identity
	notifier     *dedupingNotifier
	unsubscribe  func()
	now          func() time.Time

	mu              sync.Mutex
	mirror          []model.Transaction
	lastSyncAttempt time.Time

	syncing  atomic.Bool
	cooldown time.Duration
	autoSync bool
}

// New wires a coordinator and subscribes it to connectivity transitions.
// Call Close to unsubscribe.
func New(storage service.Storage, engine *syncengine.Engine, connectivity service.Connectivity, identity service.Identity, notifier service.Notifier, cfg Config) *Coordinator {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}

	c := &Coordinator{
		storage:      storage,
		engine:       engine,
		connectivity: connectivity,
		identity:     identity,
		notifier:     newDedupingNotifier(notifier, cfg.NotifyWindow),
		cooldown:     cfg.Cooldown,
		autoSync:     cfg.AutoSync,
		now:          time.Now,
	}

	c.unsubscribe = connectivity.Subscribe(c.onConnectivityChange)
	return c
}

// Close unsubscribes from connectivity notifications.
func (c *Coordinator) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// userID resolves the current owner, falling back to the local sentinel when
// signed out.
func (c *Coordinator) userID() string {
	if c.identity != nil {
		if id := c.identity.CurrentUserID(); id != "" {
			return id
		}
	}
	return model.LocalUserID
}

// Add validates and persists a new transaction, updates the mirror
// immediately, and then attempts a best-effort single-row push so the row
// reaches the synced state with minimal latency. A push failure is advisory;
// the row stays queued for the next bulk sync.
func (c *Coordinator) Add(ctx context.Context, amount float64, category string, date time.Time, notes string, typ model.TransactionType) (*model.Transaction, error) {
	txn := model.NewTransaction(c.userID(), amount, category, date, notes, typ)
	if err := txn.Validate(); err != nil {
		return nil, err
	}

	if err := c.storage.UpsertTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	if err := c.refreshMirror(ctx); err != nil {
		slog.Warn("Failed to refresh mirror after add", "error", err)
	}

	if err := c.engine.PushOne(ctx, txn.UserID, txn.ID); err != nil {
		if errors.Is(err, common.ErrOffline) {
			c.notifier.Notify(service.NotifyInfo, "Saved offline", "Will sync when back online")
		} else {
			slog.Warn("Best-effort push failed", "id", txn.ID, "error", err)
			c.notifier.Notify(service.NotifyWarning, "Sync pending", "Transaction saved locally")
		}
		return &txn, nil
	}

	txn.Synced = true
	return &txn, nil
}

// Delete removes a transaction optimistically: the tombstone and mirror
// update happen first, then an immediate remote delete is attempted. On
// failure the id is queued for retry on the next sync cycle. Deleting an
// unknown id is treated as already deleted.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	user := c.userID()

	if err := c.storage.SoftDeleteTransaction(ctx, id, c.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	if err := c.refreshMirror(ctx); err != nil {
		slog.Warn("Failed to refresh mirror after delete", "error", err)
	}

	if err := c.engine.DeleteRemote(ctx, user, id); err != nil {
		if queueErr := c.storage.EnqueuePendingDelete(ctx, user, id); queueErr != nil {
			return fmt.Errorf("failed to queue pending delete: %w", queueErr)
		}
		slog.Info("Remote delete deferred", "id", id, "error", err)
		c.notifier.Notify(service.NotifyInfo, "Delete pending", "Will remove from the server when back online")
	}

	return nil
}

// SyncAll runs one full sync cycle: delete-queue drain, push, then pull. A
// second call while one is in flight is a no-op (nil result). Failures are
// converted into advisory notifications and never propagate.
func (c *Coordinator) SyncAll(ctx context.Context) *syncengine.Result {
	if !c.syncing.CompareAndSwap(false, true) {
		slog.Debug("Sync already in progress, skipping")
		return nil
	}
	defer c.syncing.Store(false)

	c.mu.Lock()
	c.lastSyncAttempt = c.now()
	c.mu.Unlock()

	user := c.userID()
	c.notifier.Notify(service.NotifyInfo, "Sync started", "")

	result, err := c.engine.Sync(ctx, user)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrOffline):
			c.notifier.Notify(service.NotifyInfo, "Offline", "Changes will sync when back online")
		default:
			slog.Warn("Sync incomplete", "user", user, "error", err)
			c.notifier.Notify(service.NotifyWarning, "Sync incomplete", "Some changes have not reached the server yet")
		}
		return result
	}

	if err := c.refreshMirror(ctx); err != nil {
		slog.Warn("Failed to refresh mirror after sync", "error", err)
	}

	c.notifier.Notify(service.NotifySuccess, "Sync complete",
		fmt.Sprintf("%d pushed, %d pulled", result.Pushed, result.Pulled))
	return result
}

// onConnectivityChange triggers an auto-sync when the link comes back,
// unless a sync ran within the cooldown window.
func (c *Coordinator) onConnectivityChange(online bool) {
	if !online {
		c.notifier.Notify(service.NotifyInfo, "Offline", "Changes will sync when back online")
		return
	}
	if !c.autoSync {
		return
	}

	c.mu.Lock()
	sinceLast := c.now().Sub(c.lastSyncAttempt)
	c.mu.Unlock()

	if sinceLast < c.cooldown {
		slog.Debug("Skipping auto-sync inside cooldown window", "since_last", sinceLast)
		return
	}

	c.SyncAll(context.Background())
}

// Transactions returns a copy of the mirrored list, newest first.
func (c *Coordinator) Transactions() []model.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Transaction, len(c.mirror))
	copy(out, c.mirror)
	return out
}

// RefreshMirror rebuilds the mirror from storage; exposed for initial load.
func (c *Coordinator) RefreshMirror(ctx context.Context) error {
	return c.refreshMirror(ctx)
}

func (c *Coordinator) refreshMirror(ctx context.Context) error {
	user := c.userID()

	var all []model.Transaction
	var cursor *service.PageCursor
	for {
		page, err := c.storage.PageTransactions(ctx, user, mirrorPageSize, cursor)
		if err != nil {
			return err
		}
		all = append(all, page.Transactions...)
		if page.Next == nil {
			break
		}
		cursor = page.Next
	}

	c.mu.Lock()
	c.mirror = all
	c.mu.Unlock()
	return nil
}

// UnsyncedCount reports how many local changes still await the remote store.
func (c *Coordinator) UnsyncedCount(ctx context.Context) (int, error) {
	return c.storage.CountUnsynced(ctx, c.userID())
}

// PageByCursor exposes paginated history for presentation layers.
func (c *Coordinator) PageByCursor(ctx context.Context, pageSize int, cursor *service.PageCursor) (*service.TransactionPage, error) {
	return c.storage.PageTransactions(ctx, c.userID(), pageSize, cursor)
}

// SearchByTerm exposes bounded category prefix search.
func (c *Coordinator) SearchByTerm(ctx context.Context, term string, limit int) ([]model.Transaction, error) {
	return c.storage.SearchTransactions(ctx, c.userID(), term, limit)
}

// Summary returns the current user's running totals.
func (c *Coordinator) Summary(ctx context.Context) (*model.Summary, error) {
	return c.storage.GetSummary(ctx, c.userID())
}

// MonthlySummaries returns the per-month breakdown.
func (c *Coordinator) MonthlySummaries(ctx context.Context) ([]model.MonthlySummary, error) {
	return c.storage.GetMonthlySummaries(ctx, c.userID())
}

// ExpensesByCategory returns expense totals grouped by category.
func (c *Coordinator) ExpensesByCategory(ctx context.Context) ([]model.CategoryTotal, error) {
	return c.storage.GetExpensesByCategory(ctx, c.userID())
}
