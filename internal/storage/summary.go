package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ledgerlite/ledgerlite/internal/model"
)

// GetSummary reads the trigger-maintained running totals for a user. A user
// with no rows yet gets a zero summary.
func (s *SQLiteStorage) GetSummary(ctx context.Context, userID string) (*model.Summary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	summary := model.Summary{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT total_income, total_expense
		FROM user_summary
		WHERE user_id = ?
	`, userID).Scan(&summary.TotalIncome, &summary.TotalExpense)

	if err == sql.ErrNoRows {
		return &summary, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	return &summary, nil
}

// GetMonthlySummaries returns the per-month breakdown, newest first.
func (s *SQLiteStorage) GetMonthlySummaries(ctx context.Context, userID string) ([]model.MonthlySummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, year, month, income, expense
		FROM monthly_summary
		WHERE user_id = ? AND (income != 0 OR expense != 0)
		ORDER BY year DESC, month DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []model.MonthlySummary
	for rows.Next() {
		var m model.MonthlySummary
		if err := rows.Scan(&m.UserID, &m.Year, &m.Month, &m.Income, &m.Expense); err != nil {
			return nil, fmt.Errorf("failed to scan monthly summary: %w", err)
		}
		summaries = append(summaries, m)
	}

	return summaries, rows.Err()
}

// GetExpensesByCategory groups non-deleted expense rows by category, largest
// total first.
func (s *SQLiteStorage) GetExpensesByCategory(ctx context.Context, userID string) ([]model.CategoryTotal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, SUM(amount) AS total
		FROM transactions
		WHERE user_id = ? AND deleted = 0 AND type = 'expense'
		GROUP BY category
		ORDER BY total DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses by category: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var totals []model.CategoryTotal
	for rows.Next() {
		var ct model.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan category total: %w", err)
		}
		totals = append(totals, ct)
	}

	return totals, rows.Err()
}
