package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centavobot/centavo/internal/common"
	"github.com/centavobot/centavo/internal/model"
	"github.com/centavobot/centavo/internal/service"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "centavo.db")
	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testEntry(id, userID string, amount float64) *model.Entry {
	now := time.Now().UTC().Truncate(time.Second)
	return &model.Entry{
		ID:            id,
		UserID:        userID,
		Direction:     model.DirectionExpense,
		Amount:        amount,
		Description:   "lunch",
		Category:      "food",
		PaymentMethod: "pix",
		Date:          now,
		CreatedAt:     now,
	}
}

func TestEntryLifecycle(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	entry := testEntry("e1", "u1", 50)
	require.NoError(t, store.SaveEntry(ctx, entry))

	t.Run("get", func(t *testing.T) {
		got, err := store.GetEntryByID(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, entry.Amount, got.Amount)
		assert.Equal(t, entry.Description, got.Description)
		assert.Equal(t, entry.Direction, got.Direction)
	})

	t.Run("save learns category and payment method", func(t *testing.T) {
		categories, err := store.GetCategories(ctx, "u1")
		require.NoError(t, err)
		assert.Contains(t, categories, "food")

		methods, err := store.GetPaymentMethods(ctx, "u1")
		require.NoError(t, err)
		assert.Contains(t, methods, "pix")
	})

	t.Run("update", func(t *testing.T) {
		updated := *entry
		updated.Amount = 75
		require.NoError(t, store.UpdateEntry(ctx, &updated))

		got, err := store.GetEntryByID(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, 75.0, got.Amount)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.DeleteEntry(ctx, "e1"))

		_, err := store.GetEntryByID(ctx, "e1")
		assert.True(t, errors.Is(err, common.ErrNotFound))
		assert.True(t, errors.Is(store.DeleteEntry(ctx, "e1"), common.ErrNotFound))
	})
}

func TestRecentEntriesOrderAndWindow(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := testEntry("old", "u1", 10)
	old.CreatedAt = now.Add(-48 * time.Hour)
	require.NoError(t, store.SaveEntry(ctx, old))

	first := testEntry("first", "u1", 20)
	first.CreatedAt = now.Add(-2 * time.Hour)
	require.NoError(t, store.SaveEntry(ctx, first))

	second := testEntry("second", "u1", 30)
	second.CreatedAt = now.Add(-time.Hour)
	require.NoError(t, store.SaveEntry(ctx, second))

	income := testEntry("income", "u1", 40)
	income.Direction = model.DirectionIncome
	income.CreatedAt = now
	require.NoError(t, store.SaveEntry(ctx, income))

	entries, err := store.RecentEntries(ctx, "u1", model.DirectionExpense, now.Add(-24*time.Hour), 50)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].ID, "newest first")
	assert.Equal(t, "first", entries[1].ID)
}

func TestMonthlySummary(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	monthStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	inMonth := testEntry("a", "u1", 100)
	inMonth.Date = monthStart.AddDate(0, 0, 10)
	require.NoError(t, store.SaveEntry(ctx, inMonth))

	salary := testEntry("b", "u1", 3000)
	salary.Direction = model.DirectionIncome
	salary.Category = "salary"
	salary.Date = monthStart.AddDate(0, 0, 5)
	require.NoError(t, store.SaveEntry(ctx, salary))

	outside := testEntry("c", "u1", 999)
	outside.Date = monthStart.AddDate(0, 1, 1)
	require.NoError(t, store.SaveEntry(ctx, outside))

	summary, err := store.MonthlySummary(ctx, "u1", monthStart, monthStart.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.EntryCount)
	assert.Equal(t, 100.0, summary.TotalExpenses)
	assert.Equal(t, 3000.0, summary.TotalIncome)
	assert.Equal(t, 100.0, summary.ByCategory["food"])
}

func TestBudgetsAndRecurring(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SetBudget(ctx, &model.Budget{
		UserID: "u1", Category: "food", Month: "2026-08", Amount: 800,
	}))
	require.NoError(t, store.SetBudget(ctx, &model.Budget{
		UserID: "u1", Category: "food", Month: "2026-08", Amount: 900,
	}), "setting again replaces")

	budgets, err := store.GetBudgets(ctx, "u1", "2026-08")
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, 900.0, budgets[0].Amount)

	payment := &model.RecurringPayment{
		ID: "r1", UserID: "u1", Description: "internet",
		Amount: 99.9, DayOfMonth: 5, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveRecurring(ctx, payment))

	payments, err := store.ListRecurring(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "internet", payments[0].Description)

	require.NoError(t, store.DeleteRecurring(ctx, "r1"))
	assert.True(t, errors.Is(store.DeleteRecurring(ctx, "r1"), common.ErrNotFound))
}

func TestSessions(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	session, err := store.GetOrCreate(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, session.FirstSeen)
	assert.False(t, session.Authenticated)

	require.NoError(t, store.MarkAuthenticated(ctx, "u1"))
	require.NoError(t, store.MarkGreeted(ctx, "u1"))
	require.NoError(t, store.SetPaymentMode(ctx, "u1", "credito"))

	session, err = store.GetOrCreate(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, session.FirstSeen)
	assert.True(t, session.Authenticated)
	assert.Equal(t, "credito", session.PaymentMode)
}

func TestSaveParseMetric(t *testing.T) {
	store := newTestStorage(t)

	metric := &service.ParseMetric{
		Timestamp:    time.Now().UTC(),
		UserID:       "u1",
		Strategy:     model.StrategyCommand,
		IntentAction: model.ActionAddExpense,
		Confidence:   0.95,
		LatencyMs:    3,
		Success:      true,
	}
	require.NoError(t, store.SaveParseMetric(context.Background(), metric))
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestStorage(t)
	require.NoError(t, store.Migrate(context.Background()))
}
