package model

import "time"

// PendingKind names one kind of unfinished multi-turn exchange.
type PendingKind string

// Pending record kinds, in the router's resolution precedence order.
const (
	PendingOCRConfirm       PendingKind = "ocr_confirm"
	PendingCreditMode       PendingKind = "credit_mode"
	PendingInstallmentCard  PendingKind = "installment_card"
	PendingPayoff           PendingKind = "payoff"
	PendingModeSwitch       PendingKind = "mode_switch"
	PendingDuplicateConfirm PendingKind = "duplicate_confirm"
)

// PendingRecord is one ephemeral per-user record awaiting a follow-up
// message. At most one record per kind may be live for a user.
type PendingRecord struct {
	CreatedAt time.Time
	Payload   any
	ID        string
	UserID    string
	Kind      PendingKind
	TTL       time.Duration
}

// Expired reports whether the record's TTL has elapsed at now.
func (r PendingRecord) Expired(now time.Time) bool {
	return now.Sub(r.CreatedAt) > r.TTL
}

// OCRConfirmPayload holds extracted transaction candidates awaiting
// confirm-all / cancel / per-index edits. EditIndex is the 1-based
// candidate a bare "field: value" reply applies to; 0 means unset.
type OCRConfirmPayload struct {
	Candidates []TransactionCandidate
	EditIndex  int
}

// DuplicateConfirmPayload holds an entry withheld because it resembles a
// recent one. ExistingID identifies the matched prior entry.
type DuplicateConfirmPayload struct {
	Proposed   Entry
	ExistingID string
	Confidence float64
}

// CreditModePayload holds an expense awaiting a credit-or-debit choice.
type CreditModePayload struct {
	Proposed Entry
	Options  []string
}

// InstallmentCardStage tracks progress through the installment sub-flow.
type InstallmentCardStage int

// Installment sub-flow stages.
const (
	StageSelectCard InstallmentCardStage = iota
	StageSelectCount
)

// InstallmentCardPayload holds an installment purchase awaiting a card
// choice and then an installment count.
type InstallmentCardPayload struct {
	Proposed Entry
	Cards    []string
	Card     string
	Stage    InstallmentCardStage
}

// PayoffPayload holds a card-payoff flow awaiting a card choice and a
// final amount confirmation.
type PayoffPayload struct {
	Cards     []string
	Card      string
	Amount    float64
	Confirmed bool
}

// ModeSwitchPayload warns before switching the default payment mode.
type ModeSwitchPayload struct {
	CurrentMode string
	NewMode     string
}
