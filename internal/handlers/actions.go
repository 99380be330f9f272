// Package handlers executes resolved intents against the persistence
// collaborator. Handlers format their own success text but never touch
// engine state; the router owns pending records, undo and permissions.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/centavobot/centavo/internal/common"
	"github.com/centavobot/centavo/internal/model"
	"github.com/centavobot/centavo/internal/service"
)

const defaultListCount = 10

// Registry dispatches resolved intents to their handlers.
type Registry struct {
	storage  service.Storage
	sessions service.Sessions
	logger   *slog.Logger
	now      func() time.Time
}

// NewRegistry creates the handler set.
func NewRegistry(storage service.Storage, sessions service.Sessions, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		storage:  storage,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// Dispatch executes one resolved intent.
func (r *Registry) Dispatch(ctx context.Context, req service.ActionRequest) (service.ActionResult, error) {
	switch req.Intent.Action {
	case model.ActionAddExpense:
		return r.addEntry(ctx, req, model.DirectionExpense)
	case model.ActionAddIncome:
		return r.addEntry(ctx, req, model.DirectionIncome)
	case model.ActionDeleteEntry:
		return r.deleteEntry(ctx, req)
	case model.ActionEditEntry:
		return r.editEntry(ctx, req)
	case model.ActionSetBudget:
		return r.setBudget(ctx, req)
	case model.ActionAddRecurring:
		return r.addRecurring(ctx, req)
	case model.ActionListRecurring:
		return r.listRecurring(ctx, req)
	case model.ActionRemoveRecurring:
		return r.removeRecurring(ctx, req)
	case model.ActionReport:
		return r.report(ctx, req)
	case model.ActionListEntries:
		return r.listEntries(ctx, req)
	case model.ActionCategories:
		return r.categories(ctx, req)
	case model.ActionSettings:
		return r.settings(ctx, req)
	case model.ActionHelp:
		return respond(helpText), nil
	case model.ActionLogin:
		return r.login(ctx, req)
	default:
		return respond("I didn't understand that. Try /help for the commands I know."), nil
	}
}

// Compensate applies the inverse of a previously recorded mutation.
// Failure is terminal for the undo attempt; the caller never retries.
func (r *Registry) Compensate(ctx context.Context, record model.UndoRecord) (string, error) {
	switch record.Action {
	case model.UndoAdd:
		if err := r.storage.DeleteEntry(ctx, record.EntryID); err != nil {
			return "", fmt.Errorf("undo add: %w", err)
		}
		return "Undone: the entry was removed.", nil

	case model.UndoDelete:
		var entry model.Entry
		if err := json.Unmarshal(record.Prior, &entry); err != nil {
			return "", fmt.Errorf("undo delete: decode snapshot: %w", err)
		}
		if err := r.storage.SaveEntry(ctx, &entry); err != nil {
			return "", fmt.Errorf("undo delete: %w", err)
		}
		return fmt.Sprintf("Undone: restored %s. %s", describeEntry(&entry), model.EntryRef(entry.ID)), nil

	case model.UndoEdit:
		var entry model.Entry
		if err := json.Unmarshal(record.Prior, &entry); err != nil {
			return "", fmt.Errorf("undo edit: decode snapshot: %w", err)
		}
		if err := r.storage.UpdateEntry(ctx, &entry); err != nil {
			return "", fmt.Errorf("undo edit: %w", err)
		}
		return fmt.Sprintf("Undone: reverted %s. %s", describeEntry(&entry), model.EntryRef(entry.ID)), nil

	default:
		return "", fmt.Errorf("unknown undo action %q", record.Action)
	}
}

// EntryFromIntent builds the entry an add intent describes, without
// writing it. The router uses this for the duplicate gate.
func (r *Registry) EntryFromIntent(req service.ActionRequest, direction model.EntryDirection) (*model.Entry, error) {
	amount, ok := req.Intent.Amount()
	if !ok || amount <= 0 {
		return nil, common.NewUserError("I need an amount for that. Example: /add 50 lunch #food", nil)
	}

	description := req.Intent.StringEntity("description")
	if description == "" {
		description = string(direction)
	}

	category := req.Intent.StringEntity("category")
	if category == "" {
		category = "uncategorized"
	}

	installments := 0
	if v, ok := req.Intent.Entities["installments"]; ok {
		switch n := v.(type) {
		case int:
			installments = n
		case float64:
			installments = int(n)
		}
	}

	now := r.now()
	return &model.Entry{
		ID:            uuid.NewString(),
		UserID:        req.OwnerID,
		Direction:     direction,
		Amount:        amount,
		Description:   description,
		Category:      category,
		PaymentMethod: strings.ToLower(req.Intent.StringEntity("payment_method")),
		Installments:  installments,
		Date:          req.Intent.DateEntity(now),
		CreatedAt:     now,
	}, nil
}

// SaveEntry persists an already-built entry and produces the result the
// user sees. Split out so confirmation flows can finish an add later.
func (r *Registry) SaveEntry(ctx context.Context, entry *model.Entry) (service.ActionResult, error) {
	if err := r.storage.SaveEntry(ctx, entry); err != nil {
		return service.ActionResult{}, fmt.Errorf("save entry: %w", err)
	}

	verb := "Expense"
	if entry.Direction == model.DirectionIncome {
		verb = "Income"
	}
	message := fmt.Sprintf("%s added: %s %s", verb, describeEntry(entry), model.EntryRef(entry.ID))
	if entry.Installments > 1 {
		message = fmt.Sprintf("%s added in %dx: %s %s", verb, entry.Installments, describeEntry(entry), model.EntryRef(entry.ID))
	}

	return service.ActionResult{
		Messages: []string{message},
		Entry:    entry,
		Undo: &service.UndoHint{
			Action:  model.UndoAdd,
			EntryID: entry.ID,
		},
	}, nil
}

func (r *Registry) addEntry(ctx context.Context, req service.ActionRequest, direction model.EntryDirection) (service.ActionResult, error) {
	entry, err := r.EntryFromIntent(req, direction)
	if err != nil {
		return service.ActionResult{}, err
	}
	return r.SaveEntry(ctx, entry)
}

func (r *Registry) deleteEntry(ctx context.Context, req service.ActionRequest) (service.ActionResult, error) {
	id := req.Intent.StringEntity("entry_id")
	if id == "" {
		return service.ActionResult{}, common.NewUserError("Reply to the entry you want to delete, or use /list to find it.", nil)
	}

	entry, err := r.storage.GetEntryByID(ctx, id)
	if err != nil {
		return service.ActionResult{}, fmt.Errorf("load entry: %w", err)
	}
	if entry.UserID != req.OwnerID {
		return service.ActionResult{}, common.NewUserError("That entry isn't yours to delete.", nil)
	}

	prior, err := json.Marshal(entry)
	if err != nil {
		return service.ActionResult{}, fmt.Errorf("snapshot entry: %w", err)
	}

	if err := r.storage.DeleteEntry(ctx, id); err != nil {
		return service.ActionResult{}, fmt.Errorf("delete entry: %w", err)
	}

	return service.ActionResult{
		Messages: []string{fmt.Sprintf("Deleted %s.", describeEntry(entry))},
		Undo: &service.UndoHint{
			Action:  model.UndoDelete,
			EntryID: id,
			Prior:   prior,
		},
	}, nil
}

func (r *Registry) editEntry(ctx context.Context, req service.ActionRequest) (service.ActionResult, error) {
	id := req.Intent.StringEntity("entry_id")
	if id == "" {
		return service.ActionResult{}, common.NewUserError("Reply to the entry you want to change, or use /list to find it.", nil)
	}

	entry, err := r.storage.GetEntryByID(ctx, id)
	if err != nil {
		return service.ActionResult{}, fmt.Errorf("load entry: %w", err)
	}
	if entry.UserID != req.OwnerID {
		return service.ActionResult{}, common.NewUserError("That entry isn't yours to change.", nil)
	}

	prior, err := json.Marshal(entry)
	if err != nil {
		return service.ActionResult{}, fmt.Errorf("snapshot entry: %w", err)
	}

	updated := *entry
	changed := false
	if amount, ok := req.Intent.Amount(); ok && amount > 0 {
		updated.Amount = amount
		changed = true
	}
	if v := req.Intent.StringEntity("description"); v != "" {
		updated.Description = v
		changed = true
	}
	if v := req.Intent.StringEntity("category"); v != "" {
		updated.Category = v
		changed = true
	}
	if v := req.Intent.StringEntity("payment_method"); v != "" {
		updated.PaymentMethod = strings.ToLower(v)
		changed = true
	}
	if !changed {
		return respond("Nothing to change. Tell me the new amount, description or category."), nil
	}

	if err := r.storage.UpdateEntry(ctx, &updated); err != nil {
		return service.ActionResult{}, fmt.Errorf("update entry: %w", err)
	}

	return service.ActionResult{
		Messages: []string{fmt.Sprintf("Updated: %s %s", describeEntry(&updated), model.EntryRef(updated.ID))},
		Entry:    &updated,
		Undo: &service.UndoHint{
			Action:  model.UndoEdit,
			EntryID: id,
			Prior:   prior,
		},
	}, nil
}

func (r *Registry) setBudget(ctx context.Context, req service.ActionRequest) (service.ActionResult, error) {
	amount, ok := req.Intent.Amount()
	if !ok || amount <= 0 {
		return service.ActionResult{}, common.NewUserError("I need a budget amount. Example: /budget food 800", nil)
	}
	category := req.Intent.StringEntity("category")
	if category == "" {
		return service.ActionResult{}, common.NewUserError("Which category is that budget for? Example: /budget food 800", nil)
	}

	month := req.Intent.StringEntity("month")
	if month == "" {
		month = r.now().Format("2006-01")
	}

	budget := &model.Budget{
		UserID:   req.OwnerID,
		Category: strings.ToLower(category),
		Month:    month,
		Amount:   amount,
	}
	if err := r.storage.SetBudget(ctx, budget); err != nil {
		return service.ActionResult{}, fmt.Errorf("set budget: %w", err)
	}

	return respond(fmt.Sprintf("Budget for %s set to %s for %s.", budget.Category, formatAmount(amount), month)), nil
}

func (r *Registry) addRecurring(ctx context.Context, req service.ActionRequest) (service.ActionResult, error) {
	amount, ok := req.Intent.Amount()
	if !ok || amount <= 0 {
		return service.ActionResult{}, common.NewUserError("I need an amount for the recurring payment.", nil)
	}
	description := req.Intent.StringEntity("description")
	if description == "" {
		return service.ActionResult{}, common.NewUserError("What is this recurring payment for?", nil)
	}

	day := 1
	if v, ok := req.Intent.Entities["day_of_month"]; ok {
		switch n := v.(type) {
		case int:
			day = n
		case float64:
			day = int(n)
		}
	}
	if day < 1 || day > 31 {
		day = 1
	}

	payment := &model.RecurringPayment{
		ID:          uuid.NewString(),
		UserID:      req.OwnerID,
		Description: description,
		Category:    strings.ToLower(req.Intent.StringEntity("category")),
		Amount:      amount,
		DayOfMonth:  day,
		CreatedAt:   r.now(),
	}
	if err := r.storage.SaveRecurring(ctx, payment); err != nil {
		return service.ActionResult{}, fmt.Errorf("save recurring: %w", err)
	}

	return respond(fmt.Sprintf("Recurring payment saved: %s %s on day %d of each month.",
		description, formatAmount(amount), day)), nil
}

func (r *Registry) listRecurring(ctx context.Context, req service.ActionRequest) (service.ActionResult, error) {
	payments, err := r.storage.ListRecurring(ctx, req.OwnerID)
	if err != nil {
		return service.ActionResult{}, fmt.Errorf("list recurring: %w", err)
	}
	if len(payments) == 0 {
		return respond("No recurring payments yet. Add one with /recurring add 99.90 internet day 5."), nil
	}

	lines := []string{"Your recurring payments:"}
	for _, p := range payments {
		lines = append(lines, fmt.Sprintf("• %s — %s on day %d", p.Description, formatAmount(p.Amount), p.DayOfMonth))
	}
	return respond(strings.Join(lines, "\n")), nil
}

func (r *Registry) removeRecurring(ctx context.Context, req service.ActionRequest) (service.ActionResult, error) {
	target := strings.ToLower(req.Intent.StringEntity("target"))
	if target == "" {
		return service.ActionResult{}, common.NewUserError("Which recurring payment should I remove?", nil)
	}

	payments, err := r.storage.ListRecurring(ctx, req.OwnerID)
	if err != nil {
		return service.ActionResult{}, fmt.Errorf("list recurring: %w", err)
	}
	for _, p := range payments {
		if p.ID == target || strings.Contains(strings.ToLower(p.Description), target) {
			if err := r.storage.DeleteRecurring(ctx, p.ID); err != nil {
				return service.ActionResult{}, fmt.Errorf("delete recurring: %w", err)
			}
			return respond(fmt.Sprintf("Removed recurring payment %q.", p.Description)), nil
		}
	}
	return respond(fmt.Sprintf("I couldn't find a recurring payment matching %q.", target)), nil
}

func (r *Registry) report(ctx context.Context, req service.ActionRequest) (service.ActionResult, error) {
	month := req.Intent.StringEntity("month")
	start := r.now()
	if month != "" {
		parsed, err := time.Parse("2006-01", month)
		if err != nil {
			return service.ActionResult{}, common.NewUserError("I couldn't read that month. Example: /report 3/2026", nil)
		}
		start = parsed
	}
	monthStart := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	summary, err := r.storage.MonthlySummary(ctx, req.OwnerID, monthStart, monthEnd)
	if err != nil {
		return service.ActionResult{}, fmt.Errorf("monthly summary: %w", err)
	}

	budgets, err := r.storage.GetBudgets(ctx, req.OwnerID, monthStart.Format("2006-01"))
	if err != nil {
		return service.ActionResult{}, fmt.Errorf("load budgets: %w", err)
	}
	budgetByCategory := make(map[string]float64, len(budgets))
	for _, b := range budgets {
		budgetByCategory[b.Category] = b.Amount
	}

	lines := []string{
		fmt.Sprintf("Report for %s:", monthStart.Format("January 2006")),
		fmt.Sprintf("Income: %s", formatAmount(summary.TotalIncome)),
		fmt.Sprintf("Expenses: %s", formatAmount(summary.TotalExpenses)),
		fmt.Sprintf("Net: %s", formatAmount(summary.TotalIncome-summary.TotalExpenses)),
	}

	if len(summary.ByCategory) > 0 || len(budgetByCategory) > 0 {
		lines = append(lines, "By category:")
		categories := make([]string, 0, len(summary.ByCategory))
		for category := range summary.ByCategory {
			categories = append(categories, category)
		}
		sort.Slice(categories, func(i, j int) bool {
			return summary.ByCategory[categories[i]] > summary.ByCategory[categories[j]]
		})
		for _, category := range categories {
			lines = append(lines, categoryLine(category, summary.ByCategory[category], budgetByCategory))
			delete(budgetByCategory, category)
		}

		// Budgeted categories with no spending yet still show up.
		untouched := make([]string, 0, len(budgetByCategory))
		for category := range budgetByCategory {
			untouched = append(untouched, category)
		}
		sort.Strings(untouched)
		for _, category := range untouched {
			lines = append(lines, fmt.Sprintf("• %s: %s of %s budget",
				category, formatAmount(0), formatAmount(budgetByCategory[category])))
		}
	}

	return respond(strings.Join(lines, "\n")), nil
}

// categoryLine formats one report row, flagging spending against the
// category's budget when one is set for the month.
func categoryLine(category string, spent float64, budgets map[string]float64) string {
	budget, ok := budgets[category]
	if !ok {
		return fmt.Sprintf("• %s: %s", category, formatAmount(spent))
	}
	if spent > budget {
		return fmt.Sprintf("• %s: %s of %s budget (over by %s)",
			category, formatAmount(spent), formatAmount(budget), formatAmount(spent-budget))
	}
	return fmt.Sprintf("• %s: %s of %s budget",
		category, formatAmount(spent), formatAmount(budget))
}

func (r *Registry) listEntries(ctx context.Context, req service.ActionRequest) (service.ActionResult, error) {
	count := defaultListCount
	if v, ok := req.Intent.Entities["count"]; ok {
		switch n := v.(type) {
		case int:
			count = n
		case float64:
			count = int(n)
		}
	}
	if count <= 0 || count > 50 {
		count = defaultListCount
	}

	entries, err := r.storage.ListEntries(ctx, req.OwnerID, count)
	if err != nil {
		return service.ActionResult{}, fmt.Errorf("list entries: %w", err)
	}
	if len(entries) == 0 {
		return respond("No entries yet. Add one with /add 50 lunch #food, or just tell me what you spent."), nil
	}

	lines := []string{fmt.Sprintf("Your last %d entries:", len(entries))}
	for _, entry := range entries {
		sign := "-"
		if entry.Direction == model.DirectionIncome {
			sign = "+"
		}
		lines = append(lines, fmt.Sprintf("%s %s %s (%s) %s %s",
			sign,
			formatAmount(entry.Amount),
			entry.Description,
			entry.Category,
			entry.Date.Format("02/01"),
			model.EntryRef(entry.ID)))
	}
	return respond(strings.Join(lines, "\n")), nil
}

func (r *Registry) categories(ctx context.Context, req service.ActionRequest) (service.ActionResult, error) {
	if name := req.Intent.StringEntity("name"); name != "" {
		if err := r.storage.AddCategory(ctx, req.OwnerID, strings.ToLower(name)); err != nil {
			return service.ActionResult{}, fmt.Errorf("add category: %w", err)
		}
		return respond(fmt.Sprintf("Category %q added.", strings.ToLower(name))), nil
	}

	categories, err := r.storage.GetCategories(ctx, req.OwnerID)
	if err != nil {
		return service.ActionResult{}, fmt.Errorf("get categories: %w", err)
	}
	if len(categories) == 0 {
		return respond("No categories yet. Add one with /categories add food."), nil
	}
	return respond("Your categories: " + strings.Join(categories, ", ")), nil
}

func (r *Registry) settings(ctx context.Context, req service.ActionRequest) (service.ActionResult, error) {
	session, err := r.sessions.GetOrCreate(ctx, req.OwnerID)
	if err != nil {
		return service.ActionResult{}, fmt.Errorf("load session: %w", err)
	}

	mode := session.PaymentMode
	if mode == "" {
		mode = "not set"
	}
	return respond(fmt.Sprintf("Settings:\n• default payment mode: %s\nChange it with /settings mode <name>.", mode)), nil
}

func (r *Registry) login(ctx context.Context, req service.ActionRequest) (service.ActionResult, error) {
	if req.Intent.StringEntity("code") == "" {
		return respond("Send /login <code> with the code from your invite."), nil
	}

	if err := r.sessions.MarkAuthenticated(ctx, req.SenderID); err != nil {
		return service.ActionResult{}, fmt.Errorf("mark authenticated: %w", err)
	}
	return respond("You're in. Tell me what you spent, or use /help to see the commands."), nil
}

func respond(messages ...string) service.ActionResult {
	return service.ActionResult{Messages: messages}
}

func describeEntry(entry *model.Entry) string {
	return fmt.Sprintf("%s — %s (%s)", formatAmount(entry.Amount), entry.Description, entry.Category)
}

func formatAmount(amount float64) string {
	return fmt.Sprintf("R$ %.2f", amount)
}

const helpText = `Here's what I can do:
/add 50 lunch #food — record an expense
/income 3000 salary — record income
/list 10 — your latest entries
/report 3/2026 — monthly report
/budget food 800 — set a category budget
/recurring add 99.90 internet day 5 — recurring payments
/categories — list or add categories
/settings — your preferences
/undo — reverse your last change
Or just tell me in your own words: "spent 50 on food".`
