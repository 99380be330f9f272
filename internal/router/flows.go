package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/centavobot/centavo/internal/model"
	"github.com/centavobot/centavo/internal/parser"
)

var yesWords = map[string]struct{}{
	"yes": {}, "y": {}, "sim": {}, "s": {}, "confirm": {}, "confirmar": {}, "ok": {},
}

var noWords = map[string]struct{}{
	"no": {}, "n": {}, "nao": {}, "não": {}, "cancel": {}, "cancelar": {},
}

func isYes(text string) bool {
	_, ok := yesWords[text]
	return ok
}

func isNo(text string) bool {
	_, ok := noWords[text]
	return ok
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// pickOption resolves a reply against a numbered option list, accepting
// the number, the exact name or a substring of it.
func pickOption(text string, options []string) (string, bool) {
	if text == "" {
		return "", false
	}
	if n, err := strconv.Atoi(text); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1], true
		}
		return "", false
	}
	for _, option := range options {
		if strings.EqualFold(option, text) || strings.Contains(strings.ToLower(option), text) {
			return option, true
		}
	}
	return "", false
}

func numberedList(options []string) string {
	lines := make([]string, len(options))
	for i, option := range options {
		lines[i] = fmt.Sprintf("%d. %s", i+1, option)
	}
	return strings.Join(lines, "\n")
}

// SubmitExtractedCandidates receives transactions extracted from a
// receipt or statement image and parks them behind a confirmation. The
// returned messages present the candidates to the user.
func (e *Engine) SubmitExtractedCandidates(ctx context.Context, userID string, candidates []model.TransactionCandidate) []string {
	_ = ctx

	unlock := e.lockOwner(userID)
	defer unlock()

	if len(candidates) == 0 {
		return []string{"I couldn't find any transactions in that image."}
	}

	e.pending.Put(userID, model.PendingOCRConfirm, model.OCRConfirmPayload{Candidates: candidates}, OCRConfirmTTL)
	return ocrSummary(candidates)
}

// continueOCR interprets a reply while extracted transactions await
// confirmation: confirm all, cancel all, select a candidate to edit, or
// a field: value edit. Anything else re-shows the candidates.
func (e *Engine) continueOCR(ctx context.Context, msg model.InboundMessage, _ *model.Session, rec model.PendingRecord) ([]string, bool, error) {
	payload, ok := rec.Payload.(model.OCRConfirmPayload)
	if !ok {
		e.pending.Delete(rec.UserID, rec.Kind)
		return nil, false, nil
	}

	owner := msg.OwnerID()
	text := normalize(msg.Text)

	switch {
	case isYes(text) || text == "all" || text == "todas":
		if _, claimed := e.pending.ClaimByID(owner, rec.Kind, rec.ID); !claimed {
			return nil, false, nil
		}
		return e.confirmCandidates(ctx, owner, rec, payload)

	case isNo(text):
		e.pending.ClaimByID(owner, rec.Kind, rec.ID)
		return []string{"Okay, discarded the extracted transactions."}, true, nil
	}

	if fields := strings.Fields(text); len(fields) == 2 && (fields[0] == "edit" || fields[0] == "editar") {
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > len(payload.Candidates) {
			return []string{fmt.Sprintf("Pick one with edit 1 through edit %d.", len(payload.Candidates))}, true, nil
		}
		payload.EditIndex = n
		e.pending.Put(owner, rec.Kind, payload, OCRConfirmTTL)
		return []string{fmt.Sprintf(
			"Editing %d: %s\nSend field: value to change it, like amount: 50 or category: food.",
			n, describeCandidate(payload.Candidates[n-1]))}, true, nil
	}

	if field, value, found := strings.Cut(msg.Text, ":"); found {
		messages := e.editCandidate(owner, rec, payload,
			strings.ToLower(strings.TrimSpace(field)), strings.TrimSpace(value))
		return messages, true, nil
	}

	return ocrSummary(payload.Candidates), true, nil
}

// confirmCandidates writes every candidate. On a storage failure the
// unsaved remainder is restored so a retry does not re-add what went
// through.
func (e *Engine) confirmCandidates(ctx context.Context, owner string, rec model.PendingRecord, payload model.OCRConfirmPayload) ([]string, bool, error) {
	now := e.now()
	var messages []string
	for i, candidate := range payload.Candidates {
		entry := entryFromCandidate(owner, candidate, now)
		result, err := e.dispatcher.SaveEntry(ctx, entry)
		if err != nil {
			remaining := payload
			remaining.Candidates = payload.Candidates[i:]
			remaining.EditIndex = 0
			rec.Payload = remaining
			e.pending.Restore(rec)
			return nil, true, fmt.Errorf("save extracted entry: %w", err)
		}
		e.recordUndo(owner, result.Undo)
		messages = append(messages, result.Messages...)
	}
	return messages, true, nil
}

func (e *Engine) editCandidate(owner string, rec model.PendingRecord, payload model.OCRConfirmPayload, field, value string) []string {
	index := payload.EditIndex
	if index == 0 {
		if len(payload.Candidates) != 1 {
			return []string{"Tell me which one first, like edit 2."}
		}
		index = 1
	}
	candidate := &payload.Candidates[index-1]

	switch field {
	case "amount", "valor":
		amount, ok := parser.ParseAmount(value)
		if !ok {
			return []string{fmt.Sprintf("I couldn't read %q as an amount.", value)}
		}
		candidate.Amount = amount
	case "description", "descricao", "descrição":
		candidate.Description = value
	case "category", "categoria":
		candidate.Category = strings.ToLower(value)
	case "payment", "payment method", "pagamento":
		candidate.PaymentMethod = strings.ToLower(value)
	case "date", "data":
		date, ok := parseEditDate(value, e.now())
		if !ok {
			return []string{fmt.Sprintf("I couldn't read %q as a date. Use 02/01/2026 or 2026-01-02.", value)}
		}
		candidate.Date = date
	default:
		return []string{"I can change amount, description, category, payment or date."}
	}

	payload.EditIndex = index
	e.pending.Put(owner, rec.Kind, payload, OCRConfirmTTL)
	return []string{fmt.Sprintf("Updated %d: %s\nReply yes when everything looks right.", index, describeCandidate(*candidate))}
}

// continueCreditMode interprets the single-charge-or-installments choice
// for a credit-card expense.
func (e *Engine) continueCreditMode(ctx context.Context, msg model.InboundMessage, _ *model.Session, rec model.PendingRecord) ([]string, bool, error) {
	payload, ok := rec.Payload.(model.CreditModePayload)
	if !ok {
		e.pending.Delete(rec.UserID, rec.Kind)
		return nil, false, nil
	}

	owner := msg.OwnerID()
	text := normalize(msg.Text)

	switch {
	case text == "1" || text == "single" || text == "vista" || text == "a vista" || text == "à vista" || text == "avista":
		if _, claimed := e.pending.ClaimByID(owner, rec.Kind, rec.ID); !claimed {
			return nil, false, nil
		}
		entry := payload.Proposed
		messages, err := e.addWithDuplicateGate(ctx, owner, &entry)
		return messages, true, err

	case text == "2" || text == "installments" || text == "parcelado" || text == "parcelar" || text == "parcelas":
		if _, claimed := e.pending.ClaimByID(owner, rec.Kind, rec.ID); !claimed {
			return nil, false, nil
		}
		cards, err := e.storage.GetPaymentMethods(ctx, owner)
		if err != nil {
			e.logger.Warn("payment method lookup failed", "user_id", owner, "error", err)
		}
		if len(cards) <= 1 {
			e.pending.Put(owner, model.PendingInstallmentCard, model.InstallmentCardPayload{
				Proposed: payload.Proposed,
				Card:     payload.Proposed.PaymentMethod,
				Stage:    model.StageSelectCount,
			}, 0)
			return []string{"How many installments? (2 to 24)"}, true, nil
		}
		e.pending.Put(owner, model.PendingInstallmentCard, model.InstallmentCardPayload{
			Proposed: payload.Proposed,
			Cards:    cards,
			Stage:    model.StageSelectCard,
		}, 0)
		return []string{"Which card?\n" + numberedList(cards)}, true, nil

	case isNo(text):
		e.pending.ClaimByID(owner, rec.Kind, rec.ID)
		return []string{"Okay, discarded."}, true, nil

	default:
		return []string{"Reply 1 for a single charge or 2 for installments."}, true, nil
	}
}

// continueInstallment walks the card choice and installment count for a
// split purchase.
func (e *Engine) continueInstallment(ctx context.Context, msg model.InboundMessage, _ *model.Session, rec model.PendingRecord) ([]string, bool, error) {
	payload, ok := rec.Payload.(model.InstallmentCardPayload)
	if !ok {
		e.pending.Delete(rec.UserID, rec.Kind)
		return nil, false, nil
	}

	owner := msg.OwnerID()
	text := normalize(msg.Text)

	if isNo(text) {
		e.pending.ClaimByID(owner, rec.Kind, rec.ID)
		return []string{"Okay, discarded."}, true, nil
	}

	switch payload.Stage {
	case model.StageSelectCard:
		card, picked := pickOption(text, payload.Cards)
		if !picked {
			return []string{"Which card?\n" + numberedList(payload.Cards)}, true, nil
		}
		payload.Card = card
		payload.Stage = model.StageSelectCount
		e.pending.Put(owner, rec.Kind, payload, 0)
		return []string{fmt.Sprintf("How many installments on %s? (2 to 24)", card)}, true, nil

	default: // StageSelectCount
		count, err := strconv.Atoi(strings.TrimSuffix(text, "x"))
		if err != nil || count < 2 || count > 24 {
			return []string{"Give me a number of installments between 2 and 24."}, true, nil
		}
		if _, claimed := e.pending.ClaimByID(owner, rec.Kind, rec.ID); !claimed {
			return nil, false, nil
		}
		entry := payload.Proposed
		entry.Installments = count
		if payload.Card != "" {
			entry.PaymentMethod = strings.ToLower(payload.Card)
		}
		messages, err := e.addWithDuplicateGate(ctx, owner, &entry)
		return messages, true, err
	}
}

// continuePayoff walks the card choice and final confirmation for a
// card-bill payoff, computing the amount from this month's charges.
func (e *Engine) continuePayoff(ctx context.Context, msg model.InboundMessage, _ *model.Session, rec model.PendingRecord) ([]string, bool, error) {
	payload, ok := rec.Payload.(model.PayoffPayload)
	if !ok {
		e.pending.Delete(rec.UserID, rec.Kind)
		return nil, false, nil
	}

	owner := msg.OwnerID()
	text := normalize(msg.Text)

	if isNo(text) {
		e.pending.ClaimByID(owner, rec.Kind, rec.ID)
		return []string{"Okay, no payoff recorded."}, true, nil
	}

	if payload.Card == "" {
		card, picked := pickOption(text, payload.Cards)
		if !picked {
			return []string{"Which card do you want to pay off?\n" + numberedList(payload.Cards)}, true, nil
		}
		amount, err := e.cardMonthTotal(ctx, owner, card)
		if err != nil {
			return nil, true, err
		}
		if amount <= 0 {
			e.pending.ClaimByID(owner, rec.Kind, rec.ID)
			return []string{fmt.Sprintf("No charges on %s this month, nothing to pay off.", card)}, true, nil
		}
		payload.Card = card
		payload.Amount = amount
		e.pending.Put(owner, rec.Kind, payload, 0)
		return []string{fmt.Sprintf(
			"Your %s bill this month is R$ %.2f. Record the payoff? Reply yes or no.",
			card, amount)}, true, nil
	}

	if isYes(text) {
		if _, claimed := e.pending.ClaimByID(owner, rec.Kind, rec.ID); !claimed {
			return nil, false, nil
		}
		now := e.now()
		entry := &model.Entry{
			ID:            uuid.NewString(),
			UserID:        owner,
			Direction:     model.DirectionExpense,
			Amount:        payload.Amount,
			Description:   "card payoff " + payload.Card,
			Category:      "payoff",
			PaymentMethod: strings.ToLower(payload.Card),
			Date:          now,
			CreatedAt:     now,
		}
		messages, err := e.saveWithUndo(ctx, owner, entry)
		return messages, true, err
	}

	return []string{fmt.Sprintf(
		"Reply yes to record the R$ %.2f payoff on %s, or no to cancel.",
		payload.Amount, payload.Card)}, true, nil
}

// continueModeSwitch applies or cancels a warned default-payment-mode
// change. An unrelated message leaves the warning pending.
func (e *Engine) continueModeSwitch(ctx context.Context, msg model.InboundMessage, _ *model.Session, rec model.PendingRecord) ([]string, bool, error) {
	payload, ok := rec.Payload.(model.ModeSwitchPayload)
	if !ok {
		e.pending.Delete(rec.UserID, rec.Kind)
		return nil, false, nil
	}

	owner := msg.OwnerID()
	text := normalize(msg.Text)

	switch {
	case isYes(text):
		if _, claimed := e.pending.ClaimByID(owner, rec.Kind, rec.ID); !claimed {
			return nil, false, nil
		}
		if err := e.sessions.SetPaymentMode(ctx, owner, payload.NewMode); err != nil {
			return nil, true, fmt.Errorf("set payment mode: %w", err)
		}
		return []string{fmt.Sprintf("Default payment mode is now %s.", payload.NewMode)}, true, nil

	case isNo(text):
		e.pending.ClaimByID(owner, rec.Kind, rec.ID)
		return []string{fmt.Sprintf("Keeping %s as your default.", payload.CurrentMode)}, true, nil

	default:
		return nil, false, nil
	}
}

// continueDuplicatePending handles a bare yes/no while a duplicate
// confirmation is live. Anything else falls through to normal parsing so
// the user can keep talking; the record expires on its own.
func (e *Engine) continueDuplicatePending(ctx context.Context, msg model.InboundMessage, _ *model.Session, rec model.PendingRecord) ([]string, bool, error) {
	text := normalize(msg.Text)
	if !isYes(text) && !isNo(text) {
		return nil, false, nil
	}

	owner := msg.OwnerID()
	claimed, ok := e.pending.ClaimByID(owner, rec.Kind, rec.ID)
	if !ok {
		return nil, false, nil
	}
	messages, err := e.continueDuplicate(ctx, owner, msg.Text, claimed)
	return messages, true, err
}

// continueDuplicate resolves an already-claimed duplicate confirmation.
// The confirmed entry is written without re-running the duplicate gate.
func (e *Engine) continueDuplicate(ctx context.Context, owner, text string, rec model.PendingRecord) ([]string, error) {
	payload, ok := rec.Payload.(model.DuplicateConfirmPayload)
	if !ok {
		return []string{"That confirmation is no longer valid."}, nil
	}

	switch normalized := normalize(text); {
	case isYes(normalized):
		entry := payload.Proposed
		return e.saveWithUndo(ctx, owner, &entry)
	case isNo(normalized):
		return []string{"Okay, discarded."}, nil
	default:
		e.pending.Restore(rec)
		return []string{"Reply yes to add it anyway or no to discard it."}, nil
	}
}

// startModeSwitch warns before changing an established default payment
// mode; a first-time choice applies immediately.
func (e *Engine) startModeSwitch(ctx context.Context, owner string, session *model.Session, mode string) ([]string, error) {
	if session.PaymentMode == mode {
		return []string{fmt.Sprintf("%s is already your default payment mode.", mode)}, nil
	}
	if session.PaymentMode == "" {
		if err := e.sessions.SetPaymentMode(ctx, owner, mode); err != nil {
			return nil, fmt.Errorf("set payment mode: %w", err)
		}
		return []string{fmt.Sprintf("Default payment mode is now %s.", mode)}, nil
	}

	e.pending.Put(owner, model.PendingModeSwitch, model.ModeSwitchPayload{
		CurrentMode: session.PaymentMode,
		NewMode:     mode,
	}, 0)
	return []string{fmt.Sprintf(
		"Switch your default payment mode from %s to %s? New expenses without an explicit method will use it. Reply yes to confirm.",
		session.PaymentMode, mode)}, nil
}

// startPayoff opens the card-payoff flow with a card choice.
func (e *Engine) startPayoff(ctx context.Context, owner string) ([]string, error) {
	cards, err := e.storage.GetPaymentMethods(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load payment methods: %w", err)
	}
	if len(cards) == 0 {
		return []string{"You don't have any payment methods saved yet."}, nil
	}

	e.pending.Put(owner, model.PendingPayoff, model.PayoffPayload{Cards: cards}, 0)
	return []string{"Which card do you want to pay off?\n" + numberedList(cards)}, nil
}

// cardMonthTotal sums this month's expenses on one payment method,
// excluding prior payoff entries.
func (e *Engine) cardMonthTotal(ctx context.Context, owner, card string) (float64, error) {
	now := e.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	entries, err := e.storage.RecentEntries(ctx, owner, model.DirectionExpense, monthStart, 500)
	if err != nil {
		return 0, fmt.Errorf("load card charges: %w", err)
	}

	var total float64
	for _, entry := range entries {
		if strings.EqualFold(entry.PaymentMethod, card) && entry.Category != "payoff" {
			total += entry.Amount
		}
	}
	return total, nil
}

func entryFromCandidate(owner string, candidate model.TransactionCandidate, now time.Time) *model.Entry {
	direction := candidate.Direction
	if direction == "" {
		direction = model.DirectionExpense
	}
	date := candidate.Date
	if date.IsZero() {
		date = now
	}
	description := candidate.Description
	if description == "" {
		description = string(direction)
	}
	category := candidate.Category
	if category == "" {
		category = "uncategorized"
	}

	return &model.Entry{
		ID:            uuid.NewString(),
		UserID:        owner,
		Direction:     direction,
		Amount:        candidate.Amount,
		Description:   description,
		Category:      category,
		PaymentMethod: strings.ToLower(candidate.PaymentMethod),
		Date:          date,
		CreatedAt:     now,
	}
}

func ocrSummary(candidates []model.TransactionCandidate) []string {
	lines := []string{fmt.Sprintf("I found %d transaction(s):", len(candidates))}
	for i, candidate := range candidates {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, describeCandidate(candidate)))
	}
	lines = append(lines, "Reply yes to add them all, no to discard, or edit 2 to fix one.")
	return []string{strings.Join(lines, "\n")}
}

func describeCandidate(candidate model.TransactionCandidate) string {
	described := fmt.Sprintf("R$ %.2f %s (%s)", candidate.Amount, candidate.Description, candidate.Category)
	if !candidate.Date.IsZero() {
		described += " on " + candidate.Date.Format("02/01/2006")
	}
	return described
}

func parseEditDate(value string, now time.Time) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse("02/01", value); err == nil {
		return time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}
