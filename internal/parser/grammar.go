// Package parser maps raw message text to a resolved intent using the
// cheapest sufficient strategy: a deterministic command grammar, a
// per-user semantic cache, then the external model.
package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/centavobot/centavo/internal/model"
)

// CommandPrefix marks a message as an explicit command.
const CommandPrefix = "/"

// CommandConfidence is the fixed confidence for a successfully parsed
// command.
const CommandConfidence = 0.95

// unknownConfidence applies when a recognized command fails to parse.
const unknownConfidence = 0.2

// Grammar is the deterministic command layer. Parsing is total and
// synchronous; a recognized but unparseable command yields an unknown
// intent at low confidence rather than an error.
type Grammar struct {
	paymentMethods map[string]struct{}
	now            func() time.Time
}

// NewGrammar creates a grammar that recognizes the given payment-method
// tokens in command arguments.
func NewGrammar(paymentMethods []string) *Grammar {
	methods := make(map[string]struct{}, len(paymentMethods))
	for _, m := range paymentMethods {
		methods[strings.ToLower(m)] = struct{}{}
	}
	return &Grammar{paymentMethods: methods, now: time.Now}
}

// IsCommand reports whether text carries the explicit command prefix.
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), CommandPrefix)
}

// Parse resolves a command message. ok is false when text does not carry
// the command prefix at all.
func (g *Grammar) Parse(text string) (model.Intent, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, CommandPrefix) {
		return model.Intent{}, false
	}

	fields := strings.Fields(strings.TrimPrefix(trimmed, CommandPrefix))
	if len(fields) == 0 {
		return unknownIntent(), true
	}

	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "add", "gasto", "expense":
		return g.parseAdd(args, model.DirectionExpense), true
	case "income", "receita":
		return g.parseAdd(args, model.DirectionIncome), true
	case "budget", "orcamento":
		return g.parseBudget(args), true
	case "recurring", "recorrente":
		return g.parseRecurring(args), true
	case "report", "relatorio":
		return g.parseReport(args), true
	case "list", "lista":
		return g.parseList(args), true
	case "categories", "categorias":
		return g.parseCategories(args), true
	case "settings", "config":
		return g.parseSettings(args), true
	case "help", "ajuda":
		return command(model.ActionHelp, nil), true
	case "login":
		return g.parseLogin(args), true
	case "undo", "desfazer":
		return command(model.ActionUndo, nil), true
	default:
		return unknownIntent(), true
	}
}

func (g *Grammar) parseAdd(args []string, direction model.EntryDirection) model.Intent {
	if len(args) > 0 && (strings.EqualFold(args[0], "income") || strings.EqualFold(args[0], "receita")) {
		direction = model.DirectionIncome
		args = args[1:]
	}

	entities := map[string]any{}
	var description []string
	amountSeen := false

	for _, token := range args {
		switch {
		case !amountSeen && isAmount(token):
			amount, _ := parseAmount(token)
			entities["amount"] = amount
			amountSeen = true
		case strings.HasPrefix(token, "#"):
			entities["category"] = strings.TrimPrefix(token, "#")
		case isDateToken(token):
			if date, ok := g.parseDate(token); ok {
				entities["date"] = date.Format("2006-01-02")
			}
		case g.isPaymentMethod(token):
			entities["payment_method"] = strings.ToLower(token)
		default:
			description = append(description, token)
		}
	}

	if !amountSeen {
		return unknownIntent()
	}
	if len(description) > 0 {
		entities["description"] = strings.Join(description, " ")
	}

	action := model.ActionAddExpense
	if direction == model.DirectionIncome {
		action = model.ActionAddIncome
	}
	return command(action, entities)
}

func (g *Grammar) parseBudget(args []string) model.Intent {
	if len(args) < 2 {
		return unknownIntent()
	}

	// Amount may come first or last; the other tokens name the category.
	var amount float64
	var category []string
	found := false
	for _, token := range args {
		if !found && isAmount(token) {
			amount, _ = parseAmount(token)
			found = true
			continue
		}
		category = append(category, strings.TrimPrefix(token, "#"))
	}

	if !found || len(category) == 0 {
		return unknownIntent()
	}
	return command(model.ActionSetBudget, map[string]any{
		"category": strings.Join(category, " "),
		"amount":   amount,
	})
}

func (g *Grammar) parseRecurring(args []string) model.Intent {
	if len(args) == 0 {
		return command(model.ActionListRecurring, nil)
	}

	switch strings.ToLower(args[0]) {
	case "list", "lista":
		return command(model.ActionListRecurring, nil)
	case "remove", "remover", "delete":
		if len(args) < 2 {
			return unknownIntent()
		}
		return command(model.ActionRemoveRecurring, map[string]any{
			"target": strings.Join(args[1:], " "),
		})
	case "add", "adicionar":
		args = args[1:]
	}

	entities := map[string]any{}
	var description []string
	amountSeen := false
	for i := 0; i < len(args); i++ {
		token := args[i]
		switch {
		case !amountSeen && isAmount(token):
			amount, _ := parseAmount(token)
			entities["amount"] = amount
			amountSeen = true
		case (strings.EqualFold(token, "day") || strings.EqualFold(token, "dia")) && i+1 < len(args):
			if day, err := strconv.Atoi(args[i+1]); err == nil && day >= 1 && day <= 31 {
				entities["day_of_month"] = day
				i++
			}
		case strings.HasPrefix(token, "#"):
			entities["category"] = strings.TrimPrefix(token, "#")
		default:
			description = append(description, token)
		}
	}

	if !amountSeen || len(description) == 0 {
		return unknownIntent()
	}
	entities["description"] = strings.Join(description, " ")
	return command(model.ActionAddRecurring, entities)
}

func (g *Grammar) parseReport(args []string) model.Intent {
	entities := map[string]any{}
	if len(args) > 0 {
		if month, ok := parseMonthToken(args[0], g.now()); ok {
			entities["month"] = month
		} else {
			return unknownIntent()
		}
	}
	return command(model.ActionReport, entities)
}

func (g *Grammar) parseList(args []string) model.Intent {
	entities := map[string]any{}
	if len(args) > 0 {
		count, err := strconv.Atoi(args[0])
		if err != nil || count <= 0 {
			return unknownIntent()
		}
		entities["count"] = count
	}
	return command(model.ActionListEntries, entities)
}

func (g *Grammar) parseCategories(args []string) model.Intent {
	entities := map[string]any{}
	if len(args) >= 2 && (strings.EqualFold(args[0], "add") || strings.EqualFold(args[0], "adicionar")) {
		entities["name"] = strings.Join(args[1:], " ")
	} else if len(args) > 0 {
		return unknownIntent()
	}
	return command(model.ActionCategories, entities)
}

func (g *Grammar) parseSettings(args []string) model.Intent {
	entities := map[string]any{}
	if len(args) >= 2 && (strings.EqualFold(args[0], "mode") || strings.EqualFold(args[0], "modo")) {
		entities["mode"] = strings.ToLower(strings.Join(args[1:], " "))
	} else if len(args) == 1 && (strings.EqualFold(args[0], "payoff") || strings.EqualFold(args[0], "fatura")) {
		entities["payoff"] = true
	} else if len(args) > 0 {
		return unknownIntent()
	}
	return command(model.ActionSettings, entities)
}

func (g *Grammar) parseLogin(args []string) model.Intent {
	entities := map[string]any{}
	if len(args) > 0 {
		entities["code"] = args[0]
	}
	return command(model.ActionLogin, entities)
}

func (g *Grammar) isPaymentMethod(token string) bool {
	_, ok := g.paymentMethods[strings.ToLower(token)]
	return ok
}

// parseDate accepts D/M and D/M/YYYY tokens.
func (g *Grammar) parseDate(token string) (time.Time, bool) {
	parts := strings.Split(token, "/")
	if len(parts) != 2 && len(parts) != 3 {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, false
	}

	year := g.now().Year()
	if len(parts) == 3 {
		year, err = strconv.Atoi(parts[2])
		if err != nil {
			return time.Time{}, false
		}
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

func parseMonthToken(token string, now time.Time) (string, bool) {
	parts := strings.Split(token, "/")
	if len(parts) != 1 && len(parts) != 2 {
		return "", false
	}

	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return "", false
	}

	year := now.Year()
	if len(parts) == 2 {
		year, err = strconv.Atoi(parts[1])
		if err != nil {
			return "", false
		}
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01"), true
}

func isDateToken(token string) bool {
	return strings.Count(token, "/") >= 1 && !strings.ContainsAny(token, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
}

func isAmount(token string) bool {
	_, ok := parseAmount(token)
	return ok
}

// parseAmount accepts 50, 50.30 and 50,30 forms, with an optional
// currency prefix (R$, $).
func parseAmount(token string) (float64, bool) {
	cleaned := strings.TrimPrefix(strings.TrimPrefix(strings.ToUpper(token), "R$"), "$")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		return 0, false
	}

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}

// ParseAmount exposes amount lexing for flows that accept a bare amount
// reply.
func ParseAmount(token string) (float64, bool) {
	return parseAmount(token)
}

func command(action model.IntentAction, entities map[string]any) model.Intent {
	if entities == nil {
		entities = map[string]any{}
	}
	return model.Intent{Action: action, Confidence: CommandConfidence, Entities: entities}
}

func unknownIntent() model.Intent {
	return model.Intent{Action: model.ActionUnknown, Confidence: unknownConfidence, Entities: map[string]any{}}
}
