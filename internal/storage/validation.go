package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/centavobot/centavo/internal/model"
)

// Validation errors.
var (
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrInvalidEntry = errors.New("invalid entry")
)

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateEntry validates a single entry before it touches the database.
func validateEntry(entry *model.Entry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if entry.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidEntry)
	}
	if entry.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidEntry)
	}
	if entry.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidEntry)
	}
	if entry.Direction != model.DirectionExpense && entry.Direction != model.DirectionIncome {
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidEntry, entry.Direction)
	}
	return nil
}
