package storage

import (
	"context"
	"fmt"
	"strings"
)

// GetCategories returns the user's known categories, alphabetically.
func (s *SQLiteStorage) GetCategories(ctx context.Context, userID string) ([]string, error) {
	return s.listNames(ctx, "categories", userID)
}

// AddCategory records a category for the user. Adding an existing
// category is a no-op.
func (s *SQLiteStorage) AddCategory(ctx context.Context, userID, name string) error {
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(name, "name"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO categories (user_id, name) VALUES (?, ?)`,
		userID, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return fmt.Errorf("failed to add category: %w", err)
	}
	return nil
}

// GetPaymentMethods returns the user's known payment methods,
// alphabetically.
func (s *SQLiteStorage) GetPaymentMethods(ctx context.Context, userID string) ([]string, error) {
	return s.listNames(ctx, "payment_methods", userID)
}

func (s *SQLiteStorage) listNames(ctx context.Context, table, userID string) ([]string, error) {
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM `+table+` WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", table, err)
	}
	return names, nil
}
