package model

import "time"

// InboundMessage is a single chat message arriving at the engine.
type InboundMessage struct {
	ReceivedAt   time.Time
	UserID       string
	Text         string
	QuotedText   string // body of the bot message this one replies to, if any
	GroupOwnerID string
	IsGroup      bool
}

// OwnerID returns the user whose financial records this message operates on.
// In a group conversation that is the group owner, not the sender.
func (m InboundMessage) OwnerID() string {
	if m.IsGroup && m.GroupOwnerID != "" {
		return m.GroupOwnerID
	}
	return m.UserID
}
