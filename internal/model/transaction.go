// Package model defines the core domain types shared across the application.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalUserID is the sentinel owner for rows created before sign-in.
const LocalUserID = "__local__"

// TransactionType distinguishes money in from money out.
type TransactionType string

// Valid transaction types.
const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Validation errors surfaced at the mutation boundary.
var (
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	ErrEmptyCategory = errors.New("category cannot be empty")
	ErrInvalidType   = errors.New("type must be income or expense")
	ErrInvalidDate   = errors.New("date must be a valid ISO-8601 timestamp")
)

// Transaction is a single financial transaction owned by a user.
//
// Synced reports whether the remote store holds an up-to-date copy; an
// unsynced row is the authoritative version and must never be clobbered by a
// pull. Deleted rows are tombstones retained until the remote delete is
// confirmed.
type Transaction struct {
	ID        string
	UserID    string
	Category  string
	DateISO   string
	Notes     string
	Type      TransactionType
	Amount    float64
	UpdatedAt int64
	Synced    bool
	Deleted   bool
}

// NewTransaction builds a transaction with a fresh id and mutation stamp.
// The caller still owns validation via Validate.
func NewTransaction(userID string, amount float64, category string, date time.Time, notes string, typ TransactionType) Transaction {
	if userID == "" {
		userID = LocalUserID
	}
	return Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Category:  strings.TrimSpace(category),
		DateISO:   date.UTC().Format(time.RFC3339),
		Notes:     notes,
		Type:      typ,
		UpdatedAt: time.Now().UnixMilli(),
	}
}

// Validate checks the fields a user can get wrong. Rows are validated before
// they are constructed for storage, not by the store itself.
func (t *Transaction) Validate() error {
	if t.Amount <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidAmount, t.Amount)
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	switch t.Type {
	case TypeIncome, TypeExpense:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidType, t.Type)
	}
	if _, err := time.Parse(time.RFC3339, t.DateISO); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, t.DateISO)
	}
	return nil
}

// Date parses the stored ISO timestamp.
func (t *Transaction) Date() (time.Time, error) {
	return time.Parse(time.RFC3339, t.DateISO)
}

// SyncState tracks a user's sync cursor and the times of the last push and
// pull, in epoch milliseconds. Created lazily on first sync.
type SyncState struct {
	UserID         string
	LastPullCursor string
	LastPullMs     int64
	LastPushMs     int64
}

// Summary holds a user's running totals, maintained by storage triggers.
type Summary struct {
	UserID       string
	TotalIncome  float64
	TotalExpense float64
}

// Balance is income minus expense.
func (s Summary) Balance() float64 {
	return s.TotalIncome - s.TotalExpense
}

// MonthlySummary is the per-(year, month) aggregate breakdown.
type MonthlySummary struct {
	UserID  string
	Year    int
	Month   int
	Income  float64
	Expense float64
}

// CategoryTotal is an amount aggregated by category name.
type CategoryTotal struct {
	Category string
	Amount   float64
}

// PendingDelete is a queued remote deletion awaiting confirmation.
type PendingDelete struct {
	ID       string
	UserID   string
	QueuedAt int64
}
