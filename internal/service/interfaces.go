// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/ledgerlite/ledgerlite/internal/model"
)

// PageCursor marks the last-read position in the (date_iso DESC, id DESC)
// transaction ordering. The id tie-break keeps the cursor stable when several
// rows share a timestamp.
type PageCursor struct {
	DateISO string
	ID      string
}

// TransactionPage is one page of a cursor-paginated history query.
type TransactionPage struct {
	Transactions []model.Transaction
	Next         *PageCursor
}

// TransactionPatch is a partial update; nil fields are left untouched.
// Applying a patch always stamps updated_at and clears the synced flag.
type TransactionPatch struct {
	Amount   *float64
	Category *string
	DateISO  *string
	Notes    *string
	Type     *model.TransactionType
}

// IsEmpty reports whether the patch would change nothing.
func (p TransactionPatch) IsEmpty() bool {
	return p.Amount == nil && p.Category == nil && p.DateISO == nil && p.Notes == nil && p.Type == nil
}

// SyncStatePatch merges into a user's sync state; nil fields are preserved.
type SyncStatePatch struct {
	LastPullCursor *string
	LastPullMs     *int64
	LastPushMs     *int64
}

// Storage defines the contract for the local persistence layer. It is the
// only component permitted to issue raw statements to the store.
type Storage interface {
	// Transaction rows
	UpsertTransaction(ctx context.Context, txn model.Transaction) error
	UpsertFromRemote(ctx context.Context, txn model.Transaction) error
	UpdateTransaction(ctx context.Context, id string, patch TransactionPatch) error
	SoftDeleteTransaction(ctx context.Context, id string, updatedAt int64) error
	PurgeTransaction(ctx context.Context, id string) error
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	PageTransactions(ctx context.Context, userID string, pageSize int, cursor *PageCursor) (*TransactionPage, error)
	SearchTransactions(ctx context.Context, userID, term string, limit int) ([]model.Transaction, error)
	GetUnsyncedTransactions(ctx context.Context, userID string) ([]model.Transaction, error)
	MarkTransactionsSynced(ctx context.Context, ids []string) error
	CountUnsynced(ctx context.Context, userID string) (int, error)

	// Sync cursor state
	GetSyncState(ctx context.Context, userID string) (*model.SyncState, error)
	UpsertSyncState(ctx context.Context, userID string, patch SyncStatePatch) error

	// Pending remote deletions
	EnqueuePendingDelete(ctx context.Context, userID, id string) error
	ListPendingDeletes(ctx context.Context, userID string) ([]model.PendingDelete, error)
	RemovePendingDelete(ctx context.Context, id string) error

	// Derived aggregates
	GetSummary(ctx context.Context, userID string) (*model.Summary, error)
	GetMonthlySummaries(ctx context.Context, userID string) ([]model.MonthlySummary, error)
	GetExpensesByCategory(ctx context.Context, userID string) ([]model.CategoryTotal, error)

	// Database management
	Migrate(ctx context.Context) error
	ImportLegacyFile(ctx context.Context, path, userID string) (int, error)
	Close() error
}

// RemoteDocument is the wire shape of a transaction in the remote document
// store. Timestamp is server-assigned and is the sole pull-cursor source.
type RemoteDocument struct {
	ID        string  `json:"id"`
	UserID    string  `json:"userId"`
	Category  string  `json:"category"`
	Date      string  `json:"date"`
	Notes     string  `json:"notes,omitempty"`
	Type      string  `json:"type"`
	Timestamp string  `json:"timestamp,omitempty"`
	Amount    float64 `json:"amount"`
	Deleted   bool    `json:"deleted,omitempty"`
}

// RemoteStore is the authoritative remote document collection. Writes use
// merge semantics keyed by document id; the store never originates new
// transaction content.
type RemoteStore interface {
	UpsertBatch(ctx context.Context, docs []RemoteDocument) error
	Delete(ctx context.Context, userID, id string) error
	Query(ctx context.Context, userID, startAfter string, limit int) ([]RemoteDocument, error)
}

// Connectivity exposes current network reachability and change
// notifications. Subscribe returns an unsubscribe func.
type Connectivity interface {
	Online() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Identity is an opaque identity source: the current user id (empty when
// signed out) and a change subscription.
type Identity interface {
	CurrentUserID() string
	Subscribe(fn func(userID string)) (unsubscribe func())
}

// NotificationKind classifies advisory notifications.
type NotificationKind string

// Notification kinds emitted by sync and mutation flows.
const (
	NotifyInfo    NotificationKind = "info"
	NotifySuccess NotificationKind = "success"
	NotifyWarning NotificationKind = "warning"
	NotifyError   NotificationKind = "error"
)

// Notifier is a fire-and-forget sink for user-facing toasts. Implementations
// must never block or panic; notifications are advisory and never gate
// correctness.
type Notifier interface {
	Notify(kind NotificationKind, title, detail string)
}

// RetryOptions configures retry behavior for remote operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
