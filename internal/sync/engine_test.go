package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlite/ledgerlite/internal/common"
	"github.com/ledgerlite/ledgerlite/internal/model"
	"github.com/ledgerlite/ledgerlite/internal/service"
	"github.com/ledgerlite/ledgerlite/internal/storage"
	"github.com/ledgerlite/ledgerlite/internal/testutil"
)

const testUser = "user-1"

func fastRetry(attempts int) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func newTestEngine(t *testing.T, online bool) (*Engine, *storage.SQLiteStorage, *MockRemote) {
	t.Helper()

	store := testutil.SetupTestDB(t)
	remote := NewMockRemote()
	engine := New(store, remote, NewMockConnectivity(online), fastRetry(3))
	return engine, store, remote
}

func localTransaction(id string, amount float64, typ model.TransactionType, date string) model.Transaction {
	return model.Transaction{
		ID:        id,
		UserID:    testUser,
		Amount:    amount,
		Category:  "Food",
		DateISO:   date,
		Type:      typ,
		UpdatedAt: time.Now().UnixMilli(),
	}
}

func TestSync_OfflineIsImmediateNoOp(t *testing.T) {
	engine, store, remote := newTestEngine(t, false)
	ctx := context.Background()

	require.NoError(t, store.UpsertTransaction(ctx, localTransaction("txn-1", 10, model.TypeExpense, "2026-01-01T10:00:00Z")))

	result, err := engine.Sync(ctx, testUser)
	assert.ErrorIs(t, err, common.ErrOffline)
	assert.Nil(t, result)
	assert.Equal(t, 0, remote.UpsertCalls, "offline sync must not touch the remote")

	_, err = store.GetSyncState(ctx, testUser)
	assert.ErrorIs(t, err, common.ErrNotFound, "offline sync must not touch sync state")
}

func TestSync_PushMarksRowsSynced(t *testing.T) {
	engine, store, remote := newTestEngine(t, true)
	ctx := context.Background()

	require.NoError(t, store.UpsertTransaction(ctx, localTransaction("txn-1", 10, model.TypeExpense, "2026-01-01T10:00:00Z")))
	require.NoError(t, store.UpsertTransaction(ctx, localTransaction("txn-2", 20, model.TypeIncome, "2026-01-02T10:00:00Z")))

	result, err := engine.Sync(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pushed)

	for _, id := range []string{"txn-1", "txn-2"} {
		got, err := store.GetTransaction(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Synced, "row %s should be marked synced", id)

		_, ok := remote.Get(id)
		assert.True(t, ok, "row %s should exist remotely", id)
	}

	state, err := store.GetSyncState(ctx, testUser)
	require.NoError(t, err)
	assert.Greater(t, state.LastPushMs, int64(0))
}

func TestSync_PushFailureLeavesRowsUnsynced(t *testing.T) {
	engine, store, remote := newTestEngine(t, true)
	ctx := context.Background()

	require.NoError(t, store.UpsertTransaction(ctx, localTransaction("txn-1", 10, model.TypeExpense, "2026-01-01T10:00:00Z")))
	remote.FailUpserts = -1

	result, err := engine.Sync(ctx, testUser)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync incomplete")
	assert.Equal(t, 0, result.Pushed)
	assert.Equal(t, 3, remote.UpsertCalls, "one attempt per configured retry, no more")

	got, err := store.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.False(t, got.Synced, "a failed push must leave the row queued for the next cycle")
}

func TestSync_PullInsertsRemoteRowsAsSynced(t *testing.T) {
	engine, store, remote := newTestEngine(t, true)
	ctx := context.Background()

	remote.Seed(service.RemoteDocument{
		ID: "remote-1", UserID: testUser, Amount: 55, Category: "Rent",
		Date: "2026-01-05T10:00:00Z", Type: "expense",
	})
	remote.Seed(service.RemoteDocument{
		ID: "remote-2", UserID: testUser, Amount: 1000, Category: "Salary",
		Date: "2026-01-06T10:00:00Z", Type: "income",
	})
	remote.Seed(service.RemoteDocument{
		ID: "other-users", UserID: "someone-else", Amount: 1, Category: "X",
		Date: "2026-01-06T10:00:00Z", Type: "expense",
	})

	result, err := engine.Sync(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pulled)

	got, err := store.GetTransaction(ctx, "remote-1")
	require.NoError(t, err)
	assert.True(t, got.Synced)
	assert.Equal(t, 55.0, got.Amount)

	_, err = store.GetTransaction(ctx, "other-users")
	assert.ErrorIs(t, err, common.ErrNotFound)

	// Cursor advanced to the newest seen server timestamp; the next sync
	// pulls nothing.
	state, err := store.GetSyncState(ctx, testUser)
	require.NoError(t, err)
	assert.NotEmpty(t, state.LastPullCursor)

	result, err = engine.Sync(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Pulled, "already-seen rows must not be pulled again")
}

func TestSync_PullPaginates(t *testing.T) {
	engine, store, remote := newTestEngine(t, true)
	engine.pullPageSize = 2
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		remote.Seed(service.RemoteDocument{
			ID: fmt.Sprintf("remote-%d", i), UserID: testUser, Amount: float64(i + 1),
			Category: "Food", Date: "2026-01-05T10:00:00Z", Type: "expense",
		})
	}

	result, err := engine.Sync(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Pulled)
	assert.Equal(t, 3, remote.QueryCalls, "two full pages plus the final short page")

	page, err := store.PageTransactions(ctx, testUser, 10, nil)
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 5)
}

func TestSync_LocalWinsOverPulledRow(t *testing.T) {
	engine, store, remote := newTestEngine(t, true)
	ctx := context.Background()

	// The remote holds an older copy of a row the user has since edited
	// locally and not yet pushed.
	remote.Seed(service.RemoteDocument{
		ID: "txn-1", UserID: testUser, Amount: 10, Category: "Food",
		Date: "2026-01-01T10:00:00Z", Type: "expense", Notes: "remote copy",
	})

	local := localTransaction("txn-1", 99, model.TypeExpense, "2026-01-01T10:00:00Z")
	local.Notes = "local edit"
	require.NoError(t, store.UpsertTransaction(ctx, local))

	// Make the push phase a no-op so the pull phase sees the conflict.
	remote.FailUpserts = -1

	result, err := engine.Sync(ctx, testUser)
	require.Error(t, err, "push phase fails, pull still runs")
	assert.Equal(t, 1, result.Pulled)

	got, err := store.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, 99.0, got.Amount, "unsynced local edit survives the pull")
	assert.Equal(t, "local edit", got.Notes)
	assert.False(t, got.Synced)
}

func TestSync_RemoteTombstonePurgesSyncedRow(t *testing.T) {
	engine, store, remote := newTestEngine(t, true)
	ctx := context.Background()

	synced := localTransaction("txn-1", 10, model.TypeExpense, "2026-01-01T10:00:00Z")
	synced.Synced = true
	require.NoError(t, store.UpsertTransaction(ctx, synced))

	remote.Seed(service.RemoteDocument{
		ID: "txn-1", UserID: testUser, Amount: 10, Category: "Food",
		Date: "2026-01-01T10:00:00Z", Type: "expense", Deleted: true,
	})

	_, err := engine.Sync(ctx, testUser)
	require.NoError(t, err)

	_, err = store.GetTransaction(ctx, "txn-1")
	assert.ErrorIs(t, err, common.ErrNotFound, "a confirmed remote tombstone removes the local row")
}

func TestSync_RemoteTombstoneSparesUnsyncedRow(t *testing.T) {
	engine, store, remote := newTestEngine(t, true)
	ctx := context.Background()

	remote.Seed(service.RemoteDocument{
		ID: "txn-1", UserID: testUser, Amount: 10, Category: "Food",
		Date: "2026-01-01T10:00:00Z", Type: "expense", Deleted: true,
	})

	edited := localTransaction("txn-1", 42, model.TypeExpense, "2026-01-01T10:00:00Z")
	require.NoError(t, store.UpsertTransaction(ctx, edited))
	remote.FailUpserts = -1 // keep the row unsynced through the cycle

	_, err := engine.Sync(ctx, testUser)
	require.Error(t, err)

	got, err := store.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, 42.0, got.Amount, "unsynced local intent outranks a remote tombstone")
}

func TestSync_DrainsDeleteQueue(t *testing.T) {
	engine, store, remote := newTestEngine(t, true)
	ctx := context.Background()

	for _, id := range []string{"txn-1", "txn-2"} {
		txn := localTransaction(id, 10, model.TypeExpense, "2026-01-01T10:00:00Z")
		require.NoError(t, store.UpsertTransaction(ctx, txn))
		require.NoError(t, store.SoftDeleteTransaction(ctx, id, time.Now().UnixMilli()))
		require.NoError(t, store.EnqueuePendingDelete(ctx, testUser, id))
		remote.Seed(service.RemoteDocument{ID: id, UserID: testUser, Amount: 10,
			Category: "Food", Date: "2026-01-01T10:00:00Z", Type: "expense"})
	}

	result, err := engine.Sync(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 2, result.DeletesConfirmed)
	assert.Equal(t, 0, result.DeletesPending)

	pending, err := store.ListPendingDeletes(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, pending)

	for _, id := range []string{"txn-1", "txn-2"} {
		_, err := store.GetTransaction(ctx, id)
		assert.ErrorIs(t, err, common.ErrNotFound, "confirmed delete purges the tombstone")
	}
	assert.Equal(t, 0, remote.Len())
}

func TestSync_FailedDeleteStaysQueuedWithoutBlockingOthers(t *testing.T) {
	engine, store, remote := newTestEngine(t, true)
	ctx := context.Background()

	for _, id := range []string{"txn-a", "txn-b"} {
		txn := localTransaction(id, 10, model.TypeExpense, "2026-01-01T10:00:00Z")
		require.NoError(t, store.UpsertTransaction(ctx, txn))
		require.NoError(t, store.SoftDeleteTransaction(ctx, id, time.Now().UnixMilli()))
		require.NoError(t, store.EnqueuePendingDelete(ctx, testUser, id))
	}

	// The first id exhausts its three retries; the fourth call, belonging to
	// the second id, succeeds.
	remote.FailDeletes = 3

	result, err := engine.Sync(ctx, testUser)
	require.Error(t, err)
	assert.Equal(t, 1, result.DeletesConfirmed)
	assert.Equal(t, 1, result.DeletesPending)

	pending, err := store.ListPendingDeletes(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "txn-a", pending[0].ID, "the failed id stays queued for the next cycle")
}

func TestPushOne(t *testing.T) {
	engine, store, remote := newTestEngine(t, true)
	ctx := context.Background()

	txn := localTransaction("txn-1", 10, model.TypeExpense, "2026-01-01T10:00:00Z")
	require.NoError(t, store.UpsertTransaction(ctx, txn))

	require.NoError(t, engine.PushOne(ctx, testUser, "txn-1"))

	got, err := store.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.True(t, got.Synced)
	_, ok := remote.Get("txn-1")
	assert.True(t, ok)

	// Pushing an already-synced row is a no-op.
	calls := remote.UpsertCalls
	require.NoError(t, engine.PushOne(ctx, testUser, "txn-1"))
	assert.Equal(t, calls, remote.UpsertCalls)
}

func TestPushOne_Offline(t *testing.T) {
	engine, store, _ := newTestEngine(t, false)
	ctx := context.Background()

	txn := localTransaction("txn-1", 10, model.TypeExpense, "2026-01-01T10:00:00Z")
	require.NoError(t, store.UpsertTransaction(ctx, txn))

	err := engine.PushOne(ctx, testUser, "txn-1")
	assert.ErrorIs(t, err, common.ErrOffline)

	got, err := store.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.False(t, got.Synced)
}

func TestDeleteRemote(t *testing.T) {
	engine, store, remote := newTestEngine(t, true)
	ctx := context.Background()

	txn := localTransaction("txn-1", 10, model.TypeExpense, "2026-01-01T10:00:00Z")
	require.NoError(t, store.UpsertTransaction(ctx, txn))
	require.NoError(t, store.SoftDeleteTransaction(ctx, "txn-1", time.Now().UnixMilli()))
	remote.Seed(service.RemoteDocument{ID: "txn-1", UserID: testUser, Amount: 10,
		Category: "Food", Date: "2026-01-01T10:00:00Z", Type: "expense"})

	require.NoError(t, engine.DeleteRemote(ctx, testUser, "txn-1"))

	_, err := store.GetTransaction(ctx, "txn-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, 0, remote.Len())
}

func TestDeleteRemote_FailureKeepsTombstone(t *testing.T) {
	engine, store, remote := newTestEngine(t, true)
	ctx := context.Background()

	txn := localTransaction("txn-1", 10, model.TypeExpense, "2026-01-01T10:00:00Z")
	require.NoError(t, store.UpsertTransaction(ctx, txn))
	require.NoError(t, store.SoftDeleteTransaction(ctx, "txn-1", time.Now().UnixMilli()))
	remote.FailDeletes = -1

	err := engine.DeleteRemote(ctx, testUser, "txn-1")
	require.Error(t, err)

	got, err := store.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.True(t, got.Deleted, "the tombstone survives until the remote confirms")
}

func TestSync_EmptyUserID(t *testing.T) {
	engine, _, _ := newTestEngine(t, true)

	_, err := engine.Sync(context.Background(), "")
	assert.Error(t, err)
}
