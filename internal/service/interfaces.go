// Package service defines the interfaces for all engine collaborators.
package service

import (
	"context"
	"time"

	"github.com/centavobot/centavo/internal/model"
)

// Storage defines the contract for the persistence collaborator.
type Storage interface {
	// Entry operations
	SaveEntry(ctx context.Context, entry *model.Entry) error
	GetEntryByID(ctx context.Context, id string) (*model.Entry, error)
	UpdateEntry(ctx context.Context, entry *model.Entry) error
	DeleteEntry(ctx context.Context, id string) error
	RecentEntries(ctx context.Context, userID string, direction model.EntryDirection, since time.Time, limit int) ([]model.Entry, error)
	ListEntries(ctx context.Context, userID string, limit int) ([]model.Entry, error)

	// Category and payment-method lookups
	GetCategories(ctx context.Context, userID string) ([]string, error)
	AddCategory(ctx context.Context, userID, name string) error
	GetPaymentMethods(ctx context.Context, userID string) ([]string, error)

	// Budgets
	SetBudget(ctx context.Context, budget *model.Budget) error
	GetBudgets(ctx context.Context, userID, month string) ([]model.Budget, error)

	// Recurring payments
	SaveRecurring(ctx context.Context, payment *model.RecurringPayment) error
	ListRecurring(ctx context.Context, userID string) ([]model.RecurringPayment, error)
	DeleteRecurring(ctx context.Context, id string) error

	// Reporting
	MonthlySummary(ctx context.Context, userID string, start, end time.Time) (*Summary, error)

	// Metrics sink
	SaveParseMetric(ctx context.Context, metric *ParseMetric) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Sessions looks up or creates per-user conversation sessions.
type Sessions interface {
	GetOrCreate(ctx context.Context, userID string) (*model.Session, error)
	MarkAuthenticated(ctx context.Context, userID string) error
	MarkGreeted(ctx context.Context, userID string) error
	SetPaymentMode(ctx context.Context, userID, mode string) error
}

// UserContext is the lightweight per-user context sent alongside a
// free-form message to the external model.
type UserContext struct {
	UserID         string
	Categories     []string
	PaymentMethods []string
}

// ModelClient is the external language-model collaborator used as the
// parser's last layer. Malformed output is an error, never a guess.
type ModelClient interface {
	Parse(ctx context.Context, text string, userCtx UserContext, quotedText string) (model.Intent, error)
}

// ParseMetric is the per-message observability record.
type ParseMetric struct {
	Timestamp          time.Time
	UserID             string
	ErrorMessage       string
	PermissionRequired string
	Strategy           model.ParseStrategy
	IntentAction       model.IntentAction
	Confidence         float64
	LatencyMs          int64
	Success            bool
	CacheHit           bool
	PermissionGranted  bool
}

// Metrics records one ParseMetric per inbound message. Implementations
// must never fail the message path; sink errors are logged and dropped.
type Metrics interface {
	Record(ctx context.Context, metric ParseMetric)
}

// AuthResult is the outcome of a permission check.
type AuthResult struct {
	Permissions map[string]bool
	Authorized  bool
}

// Allows reports whether the result grants the named permission.
func (r AuthResult) Allows(permission string) bool {
	if !r.Authorized {
		return false
	}
	if permission == "" {
		return true
	}
	return r.Permissions[permission]
}

// Authorizer is the permission-check collaborator.
type Authorizer interface {
	CheckAuthorization(ctx context.Context, userID string) (AuthResult, error)
}

// Summary aggregates one user's entries over a period for reports.
type Summary struct {
	ByCategory    map[string]float64
	Start         time.Time
	End           time.Time
	TotalExpenses float64
	TotalIncome   float64
	EntryCount    int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
