package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centavobot/centavo/internal/model"
)

func extractedCandidates() []model.TransactionCandidate {
	return []model.TransactionCandidate{
		{Amount: 12.5, Description: "coffee", Category: "food"},
		{Amount: 30, Description: "market", Category: "food"},
	}
}

func TestSubmitExtractedCandidates(t *testing.T) {
	env := newTestEnv(t)
	env.authenticate("u1")

	t.Run("empty extraction", func(t *testing.T) {
		messages := env.engine.SubmitExtractedCandidates(context.Background(), "u1", nil)
		require.Len(t, messages, 1)
		assert.Contains(t, messages[0], "couldn't find any transactions")
		assert.Empty(t, env.pending.Live("u1"))
	})

	t.Run("candidates are parked and presented", func(t *testing.T) {
		messages := env.engine.SubmitExtractedCandidates(context.Background(), "u1", extractedCandidates())
		require.Len(t, messages, 1)
		assert.Contains(t, messages[0], "2 transaction")
		assert.Contains(t, messages[0], "coffee")
		assert.Contains(t, messages[0], "market")
		assert.Contains(t, env.pending.Live("u1"), model.PendingOCRConfirm)
	})
}

func TestOCRConfirmFlow(t *testing.T) {
	t.Run("confirm all writes every candidate", func(t *testing.T) {
		env := newTestEnv(t)
		env.authenticate("u1")
		env.engine.SubmitExtractedCandidates(context.Background(), "u1", extractedCandidates())

		messages := env.send("u1", "yes")
		require.Len(t, messages, 2)
		assert.Equal(t, 2, env.storage.entryCount("u1"))
		assert.Empty(t, env.pending.Live("u1"))
	})

	t.Run("cancel discards every candidate", func(t *testing.T) {
		env := newTestEnv(t)
		env.authenticate("u1")
		env.engine.SubmitExtractedCandidates(context.Background(), "u1", extractedCandidates())

		messages := env.send("u1", "no")
		require.Len(t, messages, 1)
		assert.Contains(t, messages[0], "discarded")
		assert.Equal(t, 0, env.storage.entryCount("u1"))
		assert.Empty(t, env.pending.Live("u1"))
	})

	t.Run("edit then confirm applies the change", func(t *testing.T) {
		env := newTestEnv(t)
		env.authenticate("u1")
		env.engine.SubmitExtractedCandidates(context.Background(), "u1", extractedCandidates())

		messages := env.send("u1", "edit 2")
		require.Len(t, messages, 1)
		assert.Contains(t, messages[0], "Editing 2")

		messages = env.send("u1", "amount: 80")
		require.Len(t, messages, 1)
		assert.Contains(t, messages[0], "R$ 80.00")

		env.send("u1", "yes")
		amounts := map[float64]bool{}
		for _, entry := range env.storage.entriesFor("u1") {
			amounts[entry.Amount] = true
		}
		assert.True(t, amounts[12.5])
		assert.True(t, amounts[80])
	})

	t.Run("field edit without index targets the single candidate", func(t *testing.T) {
		env := newTestEnv(t)
		env.authenticate("u1")
		env.engine.SubmitExtractedCandidates(context.Background(), "u1", extractedCandidates()[:1])

		messages := env.send("u1", "category: groceries")
		require.Len(t, messages, 1)
		assert.Contains(t, messages[0], "groceries")

		env.send("u1", "yes")
		entries := env.storage.entriesFor("u1")
		require.Len(t, entries, 1)
		assert.Equal(t, "groceries", entries[0].Category)
	})

	t.Run("field edit with several candidates needs an index", func(t *testing.T) {
		env := newTestEnv(t)
		env.authenticate("u1")
		env.engine.SubmitExtractedCandidates(context.Background(), "u1", extractedCandidates())

		messages := env.send("u1", "amount: 80")
		require.Len(t, messages, 1)
		assert.Contains(t, messages[0], "edit 2")
	})

	t.Run("unrecognized reply re-shows the candidates", func(t *testing.T) {
		env := newTestEnv(t)
		env.authenticate("u1")
		env.engine.SubmitExtractedCandidates(context.Background(), "u1", extractedCandidates())

		messages := env.send("u1", "hmm")
		require.Len(t, messages, 1)
		assert.Contains(t, messages[0], "2 transaction")
		assert.Contains(t, env.pending.Live("u1"), model.PendingOCRConfirm)
	})

	t.Run("write failure restores the unsaved remainder", func(t *testing.T) {
		env := newTestEnv(t)
		env.authenticate("u1")
		env.engine.SubmitExtractedCandidates(context.Background(), "u1", extractedCandidates())

		env.storage.mu.Lock()
		env.storage.failSave = errors.New("disk full")
		env.storage.mu.Unlock()

		messages := env.send("u1", "yes")
		require.Len(t, messages, 1)
		assert.Contains(t, messages[0], "Something went wrong")
		assert.Contains(t, env.pending.Live("u1"), model.PendingOCRConfirm)

		env.storage.mu.Lock()
		env.storage.failSave = nil
		env.storage.mu.Unlock()

		env.send("u1", "yes")
		assert.Equal(t, 2, env.storage.entryCount("u1"))
	})
}

func TestPickOption(t *testing.T) {
	options := []string{"credito nubank", "debit"}

	tests := []struct {
		name   string
		text   string
		want   string
		picked bool
	}{
		{"by number", "1", "credito nubank", true},
		{"by exact name", "debit", "debit", true},
		{"by substring", "nubank", "credito nubank", true},
		{"number out of range", "3", "", false},
		{"no match", "pix", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, picked := pickOption(tt.text, options)
			assert.Equal(t, tt.picked, picked)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEditDate(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Time
		ok    bool
	}{
		{"iso", "2026-01-02", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"slash full year", "02/01/2026", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"day and month", "02/01", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"garbage", "soon", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseEditDate(tt.value, now)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Equal(tt.want))
			}
		})
	}
}
