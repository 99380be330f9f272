package storage

import (
	"context"
	"fmt"

	"github.com/centavobot/centavo/internal/common"
	"github.com/centavobot/centavo/internal/model"
)

// SetBudget creates or replaces the budget for one category and month.
func (s *SQLiteStorage) SetBudget(ctx context.Context, budget *model.Budget) error {
	if budget == nil {
		return fmt.Errorf("%w: budget", ErrNilParameter)
	}
	if err := validateString(budget.UserID, "userID"); err != nil {
		return err
	}
	if err := validateString(budget.Category, "category"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category, month, amount) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, category, month) DO UPDATE SET amount = excluded.amount`,
		budget.UserID, budget.Category, budget.Month, budget.Amount)
	if err != nil {
		return fmt.Errorf("failed to set budget: %w", err)
	}
	return nil
}

// GetBudgets returns the user's budgets for one month.
func (s *SQLiteStorage) GetBudgets(ctx context.Context, userID, month string) ([]model.Budget, error) {
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, category, month, amount FROM budgets
		 WHERE user_id = ? AND month = ? ORDER BY category`,
		userID, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var budgets []model.Budget
	for rows.Next() {
		var budget model.Budget
		if err := rows.Scan(&budget.UserID, &budget.Category, &budget.Month, &budget.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, budget)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate budgets: %w", err)
	}
	return budgets, nil
}

// SaveRecurring inserts a recurring payment.
func (s *SQLiteStorage) SaveRecurring(ctx context.Context, payment *model.RecurringPayment) error {
	if payment == nil {
		return fmt.Errorf("%w: payment", ErrNilParameter)
	}
	if err := validateString(payment.ID, "id"); err != nil {
		return err
	}
	if err := validateString(payment.UserID, "userID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recurring_payments (id, user_id, description, category, amount, day_of_month, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		payment.ID, payment.UserID, payment.Description, payment.Category,
		payment.Amount, payment.DayOfMonth, payment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save recurring payment: %w", err)
	}
	return nil
}

// ListRecurring returns the user's recurring payments ordered by day of
// month.
func (s *SQLiteStorage) ListRecurring(ctx context.Context, userID string) ([]model.RecurringPayment, error) {
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, description, category, amount, day_of_month, created_at
		 FROM recurring_payments WHERE user_id = ? ORDER BY day_of_month`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring payments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var payments []model.RecurringPayment
	for rows.Next() {
		var payment model.RecurringPayment
		if err := rows.Scan(&payment.ID, &payment.UserID, &payment.Description,
			&payment.Category, &payment.Amount, &payment.DayOfMonth, &payment.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recurring payment: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recurring payments: %w", err)
	}
	return payments, nil
}

// DeleteRecurring removes one recurring payment.
func (s *SQLiteStorage) DeleteRecurring(ctx context.Context, id string) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM recurring_payments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recurring payment: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("recurring payment %s: %w", id, common.ErrNotFound)
	}
	return nil
}
