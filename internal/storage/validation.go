// Package storage provides the SQLite persistence layer: the durable local
// store, the typed repository over it, and the migration runner.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerlite/ledgerlite/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidPageSize    = errors.New("page size must be positive")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactionRow checks the structural fields the store depends on.
// Business validation (positive amount, known type) belongs to the mutation
// boundary, not here.
func validateTransactionRow(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidTransaction)
	}
	if txn.DateISO == "" {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	return nil
}
