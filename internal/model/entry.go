package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// EntryDirection distinguishes money leaving from money arriving.
type EntryDirection string

// Entry directions.
const (
	DirectionExpense EntryDirection = "expense"
	DirectionIncome  EntryDirection = "income"
)

// Entry is a single financial record owned by a user.
type Entry struct {
	Date          time.Time
	CreatedAt     time.Time
	ID            string
	UserID        string
	Description   string
	Category      string
	PaymentMethod string
	Direction     EntryDirection
	Amount        float64
	Installments  int // >1 when the expense is split across months
}

// GenerateHash creates a stable hash for exact-duplicate detection.
func (e *Entry) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%.2f:%s:%s",
		e.UserID,
		e.Date.Format("2006-01-02"),
		e.Amount,
		e.Description,
		e.Category)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// TransactionCandidate is one extracted transaction from a receipt or
// statement image, supplied by the OCR collaborator awaiting confirmation.
type TransactionCandidate struct {
	Date          time.Time
	Description   string
	Category      string
	PaymentMethod string
	Direction     EntryDirection
	Amount        float64
}

// RecurringPayment is a payment repeated on a fixed day of the month.
type RecurringPayment struct {
	CreatedAt   time.Time
	ID          string
	UserID      string
	Description string
	Category    string
	Amount      float64
	DayOfMonth  int
}

// Budget caps spending for one category in one calendar month.
type Budget struct {
	UserID   string
	Category string
	Month    string // YYYY-MM
	Amount   float64
}
