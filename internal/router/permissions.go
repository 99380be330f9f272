package router

import (
	"context"

	"github.com/centavobot/centavo/internal/model"
	"github.com/centavobot/centavo/internal/service"
)

// Permissions gating intent execution.
const (
	PermEntriesWrite   = "entries.write"
	PermEntriesRead    = "entries.read"
	PermBudgetsWrite   = "budgets.write"
	PermRecurringWrite = "recurring.write"
	PermSettingsWrite  = "settings.write"
)

// AllPermissions lists every permission the engine checks.
var AllPermissions = []string{
	PermEntriesWrite,
	PermEntriesRead,
	PermBudgetsWrite,
	PermRecurringWrite,
	PermSettingsWrite,
}

// requiredPermission maps an intent action to the permission it needs.
// An empty string means the action is ungated.
func requiredPermission(action model.IntentAction) string {
	switch action {
	case model.ActionAddExpense, model.ActionAddIncome,
		model.ActionDeleteEntry, model.ActionEditEntry, model.ActionUndo:
		return PermEntriesWrite
	case model.ActionListEntries, model.ActionReport, model.ActionCategories:
		return PermEntriesRead
	case model.ActionSetBudget:
		return PermBudgetsWrite
	case model.ActionAddRecurring, model.ActionListRecurring, model.ActionRemoveRecurring:
		return PermRecurringWrite
	case model.ActionSettings:
		return PermSettingsWrite
	default:
		return ""
	}
}

// requiresAuth reports whether the action needs an authenticated session.
func requiresAuth(action model.IntentAction) bool {
	switch action {
	case model.ActionHelp, model.ActionLogin, model.ActionUnknown:
		return false
	default:
		return true
	}
}

// AllowAll grants every permission to every user. It is the default
// authorizer for single-tenant deployments.
type AllowAll struct{}

// CheckAuthorization implements service.Authorizer.
func (AllowAll) CheckAuthorization(_ context.Context, _ string) (service.AuthResult, error) {
	permissions := make(map[string]bool, len(AllPermissions))
	for _, p := range AllPermissions {
		permissions[p] = true
	}
	return service.AuthResult{Authorized: true, Permissions: permissions}, nil
}
