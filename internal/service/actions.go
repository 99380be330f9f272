package service

import (
	"context"
	"encoding/json"

	"github.com/centavobot/centavo/internal/model"
)

// ActionRequest is a resolved intent handed to an action handler.
// OwnerID is the user whose records are mutated; SenderID is who asked.
type ActionRequest struct {
	Intent   model.Intent
	OwnerID  string
	SenderID string
}

// UndoHint tells the engine how to snapshot a completed mutation so it
// can be reversed. Prior is opaque to everything but the handler set.
type UndoHint struct {
	Action  model.UndoActionKind
	EntryID string
	Prior   json.RawMessage
}

// ActionResult is what a handler produced for the user.
type ActionResult struct {
	Undo     *UndoHint
	Entry    *model.Entry
	Messages []string
}

// ActionDispatcher executes resolved intents and compensating undo
// operations. Handlers receive already-resolved intents and never reach
// back into engine state.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, req ActionRequest) (ActionResult, error)
	Compensate(ctx context.Context, record model.UndoRecord) (string, error)
}
