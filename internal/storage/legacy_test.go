package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlite/ledgerlite/internal/model"
)

func writeLegacyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transactions.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestImportLegacyFile(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	path := writeLegacyFile(t, `[
		{"id": "legacy-1", "userId": "user-1", "amount": 42.50, "category": "Food", "date": "2024-06-01T12:00:00Z", "type": "expense"},
		{"id": "legacy-2", "userId": "user-1", "amount": 1500, "category": "Salary", "date": "2024-06-02T12:00:00Z", "type": "income"},
		{"amount": 7.25, "type": "EXPENSE"}
	]`)

	imported, err := store.ImportLegacyFile(ctx, path, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, imported)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "legacy file is removed after a successful import")

	got, err := store.GetTransaction(ctx, "legacy-1")
	require.NoError(t, err)
	assert.Equal(t, 42.50, got.Amount)
	assert.False(t, got.Synced, "imported rows start unsynced")

	// Records missing fields get defaults rather than being dropped.
	page, err := store.PageTransactions(ctx, "user-1", 10, nil)
	require.NoError(t, err)
	require.Len(t, page.Transactions, 3)

	var defaulted *model.Transaction
	for i := range page.Transactions {
		if page.Transactions[i].ID != "legacy-1" && page.Transactions[i].ID != "legacy-2" {
			defaulted = &page.Transactions[i]
		}
	}
	require.NotNil(t, defaulted)
	assert.NotEmpty(t, defaulted.ID)
	assert.Equal(t, "Uncategorized", defaulted.Category)
	assert.Equal(t, model.TypeExpense, defaulted.Type)
	assert.NotEmpty(t, defaulted.DateISO)

	// Aggregates picked up the imported rows.
	summary, err := store.GetSummary(ctx, "user-1")
	require.NoError(t, err)
	assert.InDelta(t, 1500.00, summary.TotalIncome, 1e-9)
	assert.InDelta(t, 49.75, summary.TotalExpense, 1e-9)
}

func TestImportLegacyFile_MissingFile(t *testing.T) {
	store := createTestStorage(t)

	imported, err := store.ImportLegacyFile(context.Background(),
		filepath.Join(t.TempDir(), "nope.json"), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, imported)
}

func TestImportLegacyFile_EmptyFileIsConsumed(t *testing.T) {
	store := createTestStorage(t)

	path := writeLegacyFile(t, `[]`)
	imported, err := store.ImportLegacyFile(context.Background(), path, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, imported)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestImportLegacyFile_MalformedFileIsKept(t *testing.T) {
	store := createTestStorage(t)

	path := writeLegacyFile(t, `{not json`)
	_, err := store.ImportLegacyFile(context.Background(), path, "user-1")
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "a failed import must leave the legacy file intact")
}

func TestImportLegacyFile_ExistingRowsAreNotOverwritten(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	existing := testTransaction("legacy-1", "user-1", 999.00, model.TypeExpense, "2026-01-01T00:00:00Z")
	require.NoError(t, store.UpsertTransaction(ctx, existing))

	path := writeLegacyFile(t, `[
		{"id": "legacy-1", "userId": "user-1", "amount": 1.00, "category": "Food", "date": "2024-06-01T12:00:00Z", "type": "expense"}
	]`)

	imported, err := store.ImportLegacyFile(ctx, path, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, imported)

	got, err := store.GetTransaction(ctx, "legacy-1")
	require.NoError(t, err)
	assert.Equal(t, 999.00, got.Amount, "the relational row wins over the legacy record")
}
