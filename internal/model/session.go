package model

import "time"

// Session is the per-user conversation session. FirstSeen stays true until
// the first successful interaction so the router can send a one-time
// greeting.
type Session struct {
	CreatedAt     time.Time
	LastSeenAt    time.Time
	UserID        string
	PaymentMode   string // default payment method for ambiguous expenses
	Authenticated bool
	FirstSeen     bool
}
