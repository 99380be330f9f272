package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/centavobot/centavo/internal/common"
	"github.com/centavobot/centavo/internal/model"
	"github.com/centavobot/centavo/internal/service"
)

const entryColumns = `id, user_id, direction, amount, description, category, payment_method, installments, date, created_at`

// SaveEntry inserts a new financial entry. The entry's category and
// payment method are learned as a side effect so later lookups and model
// prompts see them.
func (s *SQLiteStorage) SaveEntry(ctx context.Context, entry *model.Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Direction, entry.Amount, entry.Description,
		entry.Category, entry.PaymentMethod, entry.Installments, entry.Date, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}

	if entry.Category != "" {
		_, _ = s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO categories (user_id, name) VALUES (?, ?)`,
			entry.UserID, entry.Category)
	}
	if entry.PaymentMethod != "" {
		_, _ = s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO payment_methods (user_id, name) VALUES (?, ?)`,
			entry.UserID, entry.PaymentMethod)
	}
	return nil
}

// GetEntryByID fetches one entry.
func (s *SQLiteStorage) GetEntryByID(ctx context.Context, id string) (*model.Entry, error) {
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

// UpdateEntry rewrites an existing entry.
func (s *SQLiteStorage) UpdateEntry(ctx context.Context, entry *model.Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE entries SET direction = ?, amount = ?, description = ?, category = ?,
			payment_method = ?, installments = ?, date = ?
		 WHERE id = ?`,
		entry.Direction, entry.Amount, entry.Description, entry.Category,
		entry.PaymentMethod, entry.Installments, entry.Date, entry.ID)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("entry %s: %w", entry.ID, common.ErrNotFound)
	}
	return nil
}

// DeleteEntry removes one entry.
func (s *SQLiteStorage) DeleteEntry(ctx context.Context, id string) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("entry %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// RecentEntries returns the user's entries of one direction created at or
// after since, newest first. The duplicate screen depends on that order.
func (s *SQLiteStorage) RecentEntries(ctx context.Context, userID string, direction model.EntryDirection, since time.Time, limit int) ([]model.Entry, error) {
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries
		 WHERE user_id = ? AND direction = ? AND created_at >= ?
		 ORDER BY created_at DESC LIMIT ?`,
		userID, direction, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectEntries(rows)
}

// ListEntries returns the user's latest entries across both directions.
func (s *SQLiteStorage) ListEntries(ctx context.Context, userID string, limit int) ([]model.Entry, error) {
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries
		 WHERE user_id = ?
		 ORDER BY date DESC, created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectEntries(rows)
}

// MonthlySummary aggregates a user's entries dated inside [start, end).
func (s *SQLiteStorage) MonthlySummary(ctx context.Context, userID string, start, end time.Time) (*service.Summary, error) {
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT direction, category, amount FROM entries
		 WHERE user_id = ? AND date >= ? AND date < ?`,
		userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summary := &service.Summary{
		Start:      start,
		End:        end,
		ByCategory: make(map[string]float64),
	}
	for rows.Next() {
		var direction, category string
		var amount float64
		if err := rows.Scan(&direction, &category, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summary.EntryCount++
		if model.EntryDirection(direction) == model.DirectionIncome {
			summary.TotalIncome += amount
		} else {
			summary.TotalExpenses += amount
			summary.ByCategory[category] += amount
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate summary rows: %w", err)
	}
	return summary, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*model.Entry, error) {
	var entry model.Entry
	var paymentMethod sql.NullString
	err := row.Scan(&entry.ID, &entry.UserID, &entry.Direction, &entry.Amount,
		&entry.Description, &entry.Category, &paymentMethod, &entry.Installments,
		&entry.Date, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	entry.PaymentMethod = paymentMethod.String
	return &entry, nil
}

func collectEntries(rows *sql.Rows) ([]model.Entry, error) {
	var entries []model.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return entries, nil
}
