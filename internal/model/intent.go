package model

import (
	"strconv"
	"time"
)

// IntentAction identifies the financial action a message resolved to.
type IntentAction string

// All actions the engine can resolve a message to.
const (
	ActionAddExpense      IntentAction = "add_expense"
	ActionAddIncome       IntentAction = "add_income"
	ActionDeleteEntry     IntentAction = "delete_entry"
	ActionEditEntry       IntentAction = "edit_entry"
	ActionSetBudget       IntentAction = "set_budget"
	ActionAddRecurring    IntentAction = "add_recurring"
	ActionListRecurring   IntentAction = "list_recurring"
	ActionRemoveRecurring IntentAction = "remove_recurring"
	ActionReport          IntentAction = "report"
	ActionListEntries     IntentAction = "list_entries"
	ActionCategories      IntentAction = "categories"
	ActionSettings        IntentAction = "settings"
	ActionHelp            IntentAction = "help"
	ActionLogin           IntentAction = "login"
	ActionUndo            IntentAction = "undo"
	ActionUnknown         IntentAction = "unknown"
)

var knownActions = map[IntentAction]struct{}{
	ActionAddExpense:      {},
	ActionAddIncome:       {},
	ActionDeleteEntry:     {},
	ActionEditEntry:       {},
	ActionSetBudget:       {},
	ActionAddRecurring:    {},
	ActionListRecurring:   {},
	ActionRemoveRecurring: {},
	ActionReport:          {},
	ActionListEntries:     {},
	ActionCategories:      {},
	ActionSettings:        {},
	ActionHelp:            {},
	ActionLogin:           {},
	ActionUndo:            {},
	ActionUnknown:         {},
}

// Valid reports whether a is one of the actions the engine understands.
// The model client uses this to reject phantom actions from the LLM.
func (a IntentAction) Valid() bool {
	_, ok := knownActions[a]
	return ok
}

// Intent is the structured result of parsing one message.
// Confidence gates execution and cache writes; it is never persisted.
type Intent struct {
	Entities   map[string]any
	Action     IntentAction
	Confidence float64
}

// ParseStrategy names the parser layer that produced an intent.
type ParseStrategy string

// Parser layers in increasing cost order.
const (
	StrategyCommand ParseStrategy = "command"
	StrategyCache   ParseStrategy = "cache"
	StrategyModel   ParseStrategy = "model"
	StrategyNone    ParseStrategy = "none"
)

// Amount returns the "amount" entity as a float, coping with the
// numeric types JSON decoding and the command grammar produce.
func (i Intent) Amount() (float64, bool) {
	return i.floatEntity("amount")
}

// StringEntity returns a string-typed entity by name.
func (i Intent) StringEntity(name string) string {
	if v, ok := i.Entities[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// DateEntity returns the "date" entity, defaulting to now when absent.
func (i Intent) DateEntity(now time.Time) time.Time {
	switch v := i.Entities["date"].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t
		}
	}
	return now
}

func (i Intent) floatEntity(name string) (float64, bool) {
	switch v := i.Entities[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
