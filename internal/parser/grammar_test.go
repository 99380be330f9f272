package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centavobot/centavo/internal/model"
)

func TestGrammarParse(t *testing.T) {
	grammar := NewGrammar([]string{"pix", "cartão", "dinheiro"})

	t.Run("not a command", func(t *testing.T) {
		_, ok := grammar.Parse("gastei 50 em comida")
		assert.False(t, ok)
	})

	t.Run("add expense with category and payment", func(t *testing.T) {
		intent, ok := grammar.Parse("/add 50,30 almoço no centro #comida pix")
		require.True(t, ok)
		assert.Equal(t, model.ActionAddExpense, intent.Action)
		assert.Equal(t, CommandConfidence, intent.Confidence)

		amount, found := intent.Amount()
		require.True(t, found)
		assert.InDelta(t, 50.30, amount, 1e-9)
		assert.Equal(t, "comida", intent.StringEntity("category"))
		assert.Equal(t, "pix", intent.StringEntity("payment_method"))
		assert.Equal(t, "almoço no centro", intent.StringEntity("description"))
	})

	t.Run("add with date token", func(t *testing.T) {
		intent, ok := grammar.Parse("/add 20 café 3/4/2026")
		require.True(t, ok)
		assert.Equal(t, "2026-04-03", intent.StringEntity("date"))
	})

	t.Run("add income", func(t *testing.T) {
		intent, ok := grammar.Parse("/income 3000 salário #renda")
		require.True(t, ok)
		assert.Equal(t, model.ActionAddIncome, intent.Action)

		intent, ok = grammar.Parse("/add income 3000 salário")
		require.True(t, ok)
		assert.Equal(t, model.ActionAddIncome, intent.Action)
	})

	t.Run("add without amount is unknown at low confidence", func(t *testing.T) {
		intent, ok := grammar.Parse("/add almoço")
		require.True(t, ok)
		assert.Equal(t, model.ActionUnknown, intent.Action)
		assert.Less(t, intent.Confidence, 0.5)
	})

	t.Run("budget", func(t *testing.T) {
		intent, ok := grammar.Parse("/budget comida 800")
		require.True(t, ok)
		assert.Equal(t, model.ActionSetBudget, intent.Action)
		assert.Equal(t, "comida", intent.StringEntity("category"))
		amount, _ := intent.Amount()
		assert.InDelta(t, 800, amount, 1e-9)
	})

	t.Run("recurring add with day", func(t *testing.T) {
		intent, ok := grammar.Parse("/recurring add 99,90 internet dia 5 #casa")
		require.True(t, ok)
		assert.Equal(t, model.ActionAddRecurring, intent.Action)
		assert.Equal(t, "internet", intent.StringEntity("description"))
		assert.Equal(t, 5, intent.Entities["day_of_month"])
	})

	t.Run("recurring bare lists", func(t *testing.T) {
		intent, ok := grammar.Parse("/recurring")
		require.True(t, ok)
		assert.Equal(t, model.ActionListRecurring, intent.Action)
	})

	t.Run("report with month", func(t *testing.T) {
		intent, ok := grammar.Parse("/report 3/2026")
		require.True(t, ok)
		assert.Equal(t, model.ActionReport, intent.Action)
		assert.Equal(t, "2026-03", intent.StringEntity("month"))
	})

	t.Run("list with count", func(t *testing.T) {
		intent, ok := grammar.Parse("/list 10")
		require.True(t, ok)
		assert.Equal(t, model.ActionListEntries, intent.Action)
		assert.Equal(t, 10, intent.Entities["count"])
	})

	t.Run("settings mode", func(t *testing.T) {
		intent, ok := grammar.Parse("/settings mode credito")
		require.True(t, ok)
		assert.Equal(t, model.ActionSettings, intent.Action)
		assert.Equal(t, "credito", intent.StringEntity("mode"))
	})

	t.Run("settings payoff", func(t *testing.T) {
		intent, ok := grammar.Parse("/settings payoff")
		require.True(t, ok)
		assert.Equal(t, model.ActionSettings, intent.Action)
		assert.Equal(t, true, intent.Entities["payoff"])
	})

	t.Run("help and undo", func(t *testing.T) {
		intent, ok := grammar.Parse("/help")
		require.True(t, ok)
		assert.Equal(t, model.ActionHelp, intent.Action)

		intent, ok = grammar.Parse("/undo")
		require.True(t, ok)
		assert.Equal(t, model.ActionUndo, intent.Action)
	})

	t.Run("unknown verb", func(t *testing.T) {
		intent, ok := grammar.Parse("/frobnicate 12")
		require.True(t, ok)
		assert.Equal(t, model.ActionUnknown, intent.Action)
	})
}
