package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/centavobot/centavo/internal/model"
)

// GetOrCreate returns the user's session, creating a fresh unauthenticated
// one on first contact. The session's last-seen time is bumped either way.
func (s *SQLiteStorage) GetOrCreate(ctx context.Context, userID string) (*model.Session, error) {
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &model.Session{UserID: userID}
	var authenticated, firstSeen int

	row := s.db.QueryRowContext(ctx,
		`SELECT payment_mode, authenticated, first_seen, created_at, last_seen_at
		 FROM sessions WHERE user_id = ?`, userID)
	err := row.Scan(&session.PaymentMode, &authenticated, &firstSeen, &session.CreatedAt, &session.LastSeenAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO sessions (user_id, created_at, last_seen_at) VALUES (?, ?, ?)`,
			userID, now, now)
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		session.CreatedAt = now
		session.LastSeenAt = now
		session.FirstSeen = true
		return session, nil
	case err != nil:
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session.Authenticated = authenticated != 0
	session.FirstSeen = firstSeen != 0
	session.LastSeenAt = now

	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET last_seen_at = ? WHERE user_id = ?`, now, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to touch session: %w", err)
	}
	return session, nil
}

// MarkAuthenticated flags the user's session as logged in.
func (s *SQLiteStorage) MarkAuthenticated(ctx context.Context, userID string) error {
	return s.updateSessionFlag(ctx, userID, `authenticated = 1`)
}

// MarkGreeted clears the first-seen flag after the one-time greeting.
func (s *SQLiteStorage) MarkGreeted(ctx context.Context, userID string) error {
	return s.updateSessionFlag(ctx, userID, `first_seen = 0`)
}

// SetPaymentMode sets the user's default payment method.
func (s *SQLiteStorage) SetPaymentMode(ctx context.Context, userID, mode string) error {
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET payment_mode = ? WHERE user_id = ?`, mode, userID)
	if err != nil {
		return fmt.Errorf("failed to set payment mode: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) updateSessionFlag(ctx context.Context, userID, assignment string) error {
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET `+assignment+` WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}
