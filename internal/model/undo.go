package model

import (
	"encoding/json"
	"time"
)

// UndoActionKind selects the compensating operation for an undo record.
type UndoActionKind string

// Reversible action kinds.
const (
	UndoAdd    UndoActionKind = "add"
	UndoDelete UndoActionKind = "delete"
	UndoEdit   UndoActionKind = "edit"
)

// UndoRecord snapshots one reversible mutation. Prior holds whatever the
// handler that performed the mutation needs to reverse it; the undo stack
// never inspects it.
type UndoRecord struct {
	CreatedAt time.Time
	UserID    string
	Action    UndoActionKind
	EntryID   string
	Prior     json.RawMessage
}
