package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlite/ledgerlite/internal/common"
	"github.com/ledgerlite/ledgerlite/internal/service"
)

func TestGetSyncState_BeforeFirstSync(t *testing.T) {
	store := createTestStorage(t)

	_, err := store.GetSyncState(context.Background(), "user-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpsertSyncState_MergesPatchFields(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	cursor := "00000000000000000042"
	pullMs := int64(1700000000000)
	require.NoError(t, store.UpsertSyncState(ctx, "user-1", service.SyncStatePatch{
		LastPullCursor: &cursor,
		LastPullMs:     &pullMs,
	}))

	state, err := store.GetSyncState(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, cursor, state.LastPullCursor)
	assert.Equal(t, pullMs, state.LastPullMs)
	assert.Equal(t, int64(0), state.LastPushMs)

	// A push-only patch must not disturb the pull cursor.
	pushMs := int64(1700000001000)
	require.NoError(t, store.UpsertSyncState(ctx, "user-1", service.SyncStatePatch{
		LastPushMs: &pushMs,
	}))

	state, err = store.GetSyncState(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, cursor, state.LastPullCursor)
	assert.Equal(t, pullMs, state.LastPullMs)
	assert.Equal(t, pushMs, state.LastPushMs)
}

func TestUpsertSyncState_CreatesRowWithDefaults(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	pushMs := int64(123)
	require.NoError(t, store.UpsertSyncState(ctx, "user-1", service.SyncStatePatch{LastPushMs: &pushMs}))

	state, err := store.GetSyncState(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "", state.LastPullCursor)
	assert.Equal(t, int64(0), state.LastPullMs)
	assert.Equal(t, int64(123), state.LastPushMs)
}
