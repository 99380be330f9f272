// Package router owns message resolution: it serializes each user's
// conversation, runs pending multi-turn flows before parsing, gates
// execution on authentication and permissions, and screens new entries
// for duplicates before they are written.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/centavobot/centavo/internal/common"
	"github.com/centavobot/centavo/internal/dupe"
	"github.com/centavobot/centavo/internal/model"
	"github.com/centavobot/centavo/internal/parser"
	"github.com/centavobot/centavo/internal/pending"
	"github.com/centavobot/centavo/internal/service"
	"github.com/centavobot/centavo/internal/undo"
)

const (
	// dupWindow bounds how far back the duplicate screen looks.
	dupWindow = 24 * time.Hour
	// dupRecentLimit caps how many recent entries the screen scores.
	dupRecentLimit = 50
	// OCRConfirmTTL is the extended window for confirming extracted
	// transactions; reviewing a long receipt takes a while.
	OCRConfirmTTL = 10 * time.Minute
)

const greetingText = "Hi! I'm Centavo. Tell me what you spent, like \"gastei 50 em comida\", or use /help to see the commands."

// Dispatcher executes resolved intents. The two entry helpers let the
// engine build an entry, screen it for duplicates, and only then write.
type Dispatcher interface {
	service.ActionDispatcher
	EntryFromIntent(req service.ActionRequest, direction model.EntryDirection) (*model.Entry, error)
	SaveEntry(ctx context.Context, entry *model.Entry) (service.ActionResult, error)
}

// pendingCheck pairs a pending kind with its continuation. The engine
// consults checks strictly in slice order; the first live record whose
// continuation handles the message wins.
type pendingCheck struct {
	kind   model.PendingKind
	handle func(ctx context.Context, msg model.InboundMessage, session *model.Session, rec model.PendingRecord) ([]string, bool, error)
}

// Deps carries the engine's collaborators.
type Deps struct {
	Pending    *pending.Store
	Undo       *undo.Stack
	Pipeline   *parser.Pipeline
	Dispatcher Dispatcher
	Storage    service.Storage
	Sessions   service.Sessions
	Authorizer service.Authorizer
	Metrics    service.Metrics
	Logger     *slog.Logger
}

// Engine resolves inbound messages into actions and response messages.
type Engine struct {
	pending    *pending.Store
	undo       *undo.Stack
	pipeline   *parser.Pipeline
	dispatcher Dispatcher
	storage    service.Storage
	sessions   service.Sessions
	auth       service.Authorizer
	metrics    service.Metrics
	logger     *slog.Logger
	chain      []pendingCheck
	locks      sync.Map // owner id -> *sync.Mutex
	now        func() time.Time
}

// New creates the engine. Authorizer defaults to AllowAll and Metrics to
// a log-plus-storage Recorder when nil.
func New(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auth := deps.Authorizer
	if auth == nil {
		auth = AllowAll{}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewRecorder(deps.Storage, logger)
	}

	e := &Engine{
		pending:    deps.Pending,
		undo:       deps.Undo,
		pipeline:   deps.Pipeline,
		dispatcher: deps.Dispatcher,
		storage:    deps.Storage,
		sessions:   deps.Sessions,
		auth:       auth,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
	e.chain = []pendingCheck{
		{model.PendingOCRConfirm, e.continueOCR},
		{model.PendingCreditMode, e.continueCreditMode},
		{model.PendingInstallmentCard, e.continueInstallment},
		{model.PendingPayoff, e.continuePayoff},
		{model.PendingModeSwitch, e.continueModeSwitch},
		{model.PendingDuplicateConfirm, e.continueDuplicatePending},
	}
	return e
}

// Resolve handles one inbound message and returns the responses to send.
// It never returns an error; failures become user-facing messages and a
// failed metric. Messages from the same conversation are serialized.
func (e *Engine) Resolve(ctx context.Context, msg model.InboundMessage) []string {
	owner := msg.OwnerID()
	unlock := e.lockOwner(owner)
	defer unlock()

	start := e.now()
	metric := service.ParseMetric{
		Timestamp: start,
		UserID:    msg.UserID,
		Strategy:  model.StrategyNone,
	}

	session, err := e.sessions.GetOrCreate(ctx, owner)
	if err != nil {
		err = fmt.Errorf("load session: %w", err)
	}

	var messages []string
	if err == nil {
		messages, err = e.safeResolve(ctx, msg, session, &metric)
	}

	metric.LatencyMs = e.now().Sub(start).Milliseconds()
	metric.Success = err == nil
	if err != nil {
		metric.ErrorMessage = err.Error()
		// A missing login is a normal part of the conversation, not an
		// application failure.
		if errors.Is(err, common.ErrAuthRequired) {
			e.logger.Debug("authentication required",
				"user_id", msg.UserID)
		} else {
			e.logger.Warn("message resolution failed",
				"user_id", msg.UserID,
				"error", err)
		}
		messages = errorMessages(err)
	} else if session.FirstSeen {
		if greetErr := e.sessions.MarkGreeted(ctx, owner); greetErr != nil {
			e.logger.Warn("mark greeted failed", "user_id", owner, "error", greetErr)
		} else {
			messages = append([]string{greetingText}, messages...)
		}
	}

	e.metrics.Record(ctx, metric)
	return messages
}

// safeResolve confines a panic in any collaborator to the one message
// that triggered it.
func (e *Engine) safeResolve(ctx context.Context, msg model.InboundMessage, session *model.Session, metric *service.ParseMetric) (messages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("message resolution panicked",
				"user_id", msg.UserID,
				"panic", r,
				"stack", string(debug.Stack()))
			messages = nil
			err = fmt.Errorf("resolve panicked: %v", r)
		}
	}()
	return e.resolve(ctx, msg, session, metric)
}

func (e *Engine) resolve(ctx context.Context, msg model.InboundMessage, session *model.Session, metric *service.ParseMetric) ([]string, error) {
	owner := msg.OwnerID()
	reply := model.ExtractReplyContext(msg.QuotedText)

	// A reply quoting a duplicate warning is scoped to that exact record.
	// A stale reference falls through and the message is treated as fresh.
	if reply.DuplicateID != "" {
		if rec, ok := e.pending.ClaimByID(owner, model.PendingDuplicateConfirm, reply.DuplicateID); ok {
			return e.continueDuplicate(ctx, owner, msg.Text, rec)
		}
	}

	// A reply quoting a saved entry names its own target; the OCR
	// confirmation prompt must not swallow it. A stale reference
	// carries no target and the chain runs as usual.
	entryScoped := reply.EntryID != "" && e.entryBelongsTo(ctx, reply.EntryID, owner)

	for _, check := range e.chain {
		if entryScoped && check.kind == model.PendingOCRConfirm {
			continue
		}
		rec, ok := e.pending.Get(owner, check.kind)
		if !ok {
			continue
		}
		messages, handled, err := check.handle(ctx, msg, session, rec)
		if handled || err != nil {
			return messages, err
		}
	}

	if parser.IsCommand(msg.Text) {
		result, err := e.pipeline.ParseCommand(msg.Text)
		if err != nil {
			return nil, err
		}
		metric.Strategy = result.Strategy
		metric.IntentAction = result.Intent.Action
		metric.Confidence = result.Intent.Confidence

		if requiresAuth(result.Intent.Action) && !session.Authenticated {
			return nil, common.ErrAuthRequired
		}
		return e.execute(ctx, msg, session, result.Intent, reply, metric)
	}

	if !session.Authenticated {
		return nil, common.ErrAuthRequired
	}

	result, err := e.pipeline.Parse(ctx, owner, msg.Text, msg.QuotedText, e.userContext(ctx, owner))
	metric.Strategy = result.Strategy
	metric.CacheHit = result.CacheHit
	if err != nil {
		return nil, err
	}
	metric.IntentAction = result.Intent.Action
	metric.Confidence = result.Intent.Confidence

	return e.execute(ctx, msg, session, result.Intent, reply, metric)
}

func (e *Engine) execute(ctx context.Context, msg model.InboundMessage, session *model.Session, intent model.Intent, reply model.ReplyContext, metric *service.ParseMetric) ([]string, error) {
	owner := msg.OwnerID()

	// A reply quoting an entry names the target the message omits.
	if reply.EntryID != "" && intent.StringEntity("entry_id") == "" {
		switch intent.Action {
		case model.ActionDeleteEntry, model.ActionEditEntry:
			intent.Entities["entry_id"] = reply.EntryID
		}
	}

	permission := requiredPermission(intent.Action)
	metric.PermissionRequired = permission
	if permission == "" {
		metric.PermissionGranted = true
	} else {
		authResult, err := e.auth.CheckAuthorization(ctx, msg.UserID)
		if err != nil {
			return nil, fmt.Errorf("check authorization: %w", err)
		}
		metric.PermissionGranted = authResult.Allows(permission)
		if !metric.PermissionGranted {
			return nil, common.NewUserError("You don't have permission to do that here.", common.ErrPermissionDenied)
		}
	}

	req := service.ActionRequest{Intent: intent, OwnerID: owner, SenderID: msg.UserID}

	switch intent.Action {
	case model.ActionUndo:
		return e.handleUndo(ctx, owner)

	case model.ActionAddExpense:
		return e.handleAdd(ctx, req, session, model.DirectionExpense)

	case model.ActionAddIncome:
		return e.handleAdd(ctx, req, session, model.DirectionIncome)

	case model.ActionSettings:
		if mode := intent.StringEntity("mode"); mode != "" {
			return e.startModeSwitch(ctx, owner, session, mode)
		}
		if _, ok := intent.Entities["payoff"]; ok {
			return e.startPayoff(ctx, owner)
		}
		result, err := e.dispatcher.Dispatch(ctx, req)
		if err != nil {
			return nil, err
		}
		e.recordUndo(owner, result.Undo)
		messages := append(result.Messages, fmt.Sprintf(
			"You have %d free-form messages left today.", e.pipeline.QuotaRemaining(owner)))
		return messages, nil
	}

	result, err := e.dispatcher.Dispatch(ctx, req)
	if err != nil {
		return nil, err
	}
	e.recordUndo(owner, result.Undo)
	return result.Messages, nil
}

// handleAdd builds the entry, routes credit-card expenses with no
// explicit installment count through the credit-mode flow, and screens
// everything else for duplicates before writing.
func (e *Engine) handleAdd(ctx context.Context, req service.ActionRequest, session *model.Session, direction model.EntryDirection) ([]string, error) {
	entry, err := e.dispatcher.EntryFromIntent(req, direction)
	if err != nil {
		return nil, err
	}
	if entry.PaymentMethod == "" && session.PaymentMode != "" {
		entry.PaymentMethod = session.PaymentMode
	}

	if direction == model.DirectionExpense && entry.Installments == 0 && isCreditMethod(entry.PaymentMethod) {
		e.pending.Put(req.OwnerID, model.PendingCreditMode, model.CreditModePayload{
			Proposed: *entry,
			Options:  []string{"single charge", "installments"},
		}, 0)
		return []string{fmt.Sprintf(
			"%s on %s. How should I record it?\n1. Single charge\n2. Installments",
			describeEntry(*entry), entry.PaymentMethod)}, nil
	}

	return e.addWithDuplicateGate(ctx, req.OwnerID, entry)
}

// addWithDuplicateGate scores the entry against the owner's recent
// entries of the same direction. A near-certain duplicate is blocked
// outright; a probable one is parked behind a confirmation.
func (e *Engine) addWithDuplicateGate(ctx context.Context, owner string, entry *model.Entry) ([]string, error) {
	since := e.now().Add(-dupWindow)
	recent, err := e.storage.RecentEntries(ctx, owner, entry.Direction, since, dupRecentLimit)
	if err != nil {
		return nil, fmt.Errorf("load recent entries: %w", err)
	}

	match, found := dupe.FindBestMatch(*entry, recent)
	if found && match.AutoBlock {
		return []string{fmt.Sprintf(
			"That looks identical to %s recorded at %s, so I didn't add it again. %s",
			describeEntry(match.Existing),
			match.Existing.CreatedAt.Format("15:04"),
			model.EntryRef(match.Existing.ID))}, nil
	}
	if found {
		rec := e.pending.Put(owner, model.PendingDuplicateConfirm, model.DuplicateConfirmPayload{
			Proposed:   *entry,
			ExistingID: match.Existing.ID,
			Confidence: match.Confidence,
		}, 0)
		return []string{fmt.Sprintf(
			"This looks a lot like %s recorded at %s. Add it anyway? Reply yes or no. %s",
			describeEntry(match.Existing),
			match.Existing.CreatedAt.Format("15:04"),
			model.DupRef(rec.ID))}, nil
	}

	return e.saveWithUndo(ctx, owner, entry)
}

func (e *Engine) saveWithUndo(ctx context.Context, owner string, entry *model.Entry) ([]string, error) {
	result, err := e.dispatcher.SaveEntry(ctx, entry)
	if err != nil {
		return nil, err
	}
	e.recordUndo(owner, result.Undo)
	return result.Messages, nil
}

// handleUndo pops the most recent reversible action and applies its
// compensation. The record is consumed even when compensation fails.
func (e *Engine) handleUndo(ctx context.Context, owner string) ([]string, error) {
	record, ok := e.undo.Pop(owner)
	if !ok {
		return []string{"Nothing to undo."}, nil
	}

	message, err := e.dispatcher.Compensate(ctx, record)
	if err != nil {
		e.logger.Error("undo compensation failed",
			"user_id", owner,
			"action", record.Action,
			"entry_id", record.EntryID,
			"error", err)
		return nil, common.NewUserError("I couldn't undo that. The change may still be in place; check with /list.", err)
	}
	return []string{message}, nil
}

func (e *Engine) recordUndo(owner string, hint *service.UndoHint) {
	if hint == nil {
		return
	}
	e.undo.Record(owner, hint.Action, hint.EntryID, hint.Prior)
}

// userContext collects categories and payment methods for the model
// prompt. Lookup failures degrade to an empty context.
func (e *Engine) userContext(ctx context.Context, owner string) service.UserContext {
	userCtx := service.UserContext{UserID: owner}
	if categories, err := e.storage.GetCategories(ctx, owner); err == nil {
		userCtx.Categories = categories
	}
	if methods, err := e.storage.GetPaymentMethods(ctx, owner); err == nil {
		userCtx.PaymentMethods = methods
	}
	return userCtx
}

func (e *Engine) entryBelongsTo(ctx context.Context, entryID, owner string) bool {
	entry, err := e.storage.GetEntryByID(ctx, entryID)
	return err == nil && entry.UserID == owner
}

func (e *Engine) lockOwner(owner string) func() {
	v, _ := e.locks.LoadOrStore(owner, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// errorMessages maps an internal failure to what the user sees.
func errorMessages(err error) []string {
	var userErr *common.UserError
	switch {
	case errors.As(err, &userErr):
		return []string{userErr.UserMessage}
	case errors.Is(err, common.ErrAuthRequired):
		return []string{"Please log in first: send /login <code> with the code from your invite."}
	case errors.Is(err, common.ErrQuotaExceeded):
		return []string{"You've hit today's limit for free-form messages. Explicit commands still work, like /add 50 lunch #food."}
	case errors.Is(err, common.ErrModelTimeout), errors.Is(err, common.ErrParseFailed):
		return []string{"I couldn't work that out. Try an explicit command, like /add 50 lunch #food."}
	default:
		return []string{"Something went wrong on my side. Please try again."}
	}
}

func isCreditMethod(method string) bool {
	lower := strings.ToLower(method)
	return strings.Contains(lower, "credit") || strings.Contains(lower, "credito") || strings.Contains(lower, "crédito")
}

func describeEntry(entry model.Entry) string {
	return fmt.Sprintf("R$ %.2f — %s (%s)", entry.Amount, entry.Description, entry.Category)
}
