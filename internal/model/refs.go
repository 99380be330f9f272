package model

import (
	"fmt"
	"regexp"
)

// Bot messages embed opaque reference tags so a later reply that quotes
// them can be scoped to the record they describe.

var (
	entryRefPattern = regexp.MustCompile(`\[ref:entry:([0-9a-fA-F-]+)\]`)
	dupRefPattern   = regexp.MustCompile(`\[ref:dup:([0-9a-fA-F-]+)\]`)
)

// EntryRef renders the reference tag for a financial entry.
func EntryRef(id string) string {
	return fmt.Sprintf("[ref:entry:%s]", id)
}

// DupRef renders the reference tag for a duplicate-confirmation record.
func DupRef(id string) string {
	return fmt.Sprintf("[ref:dup:%s]", id)
}

// ReplyContext is what a quoted bot message resolves to.
type ReplyContext struct {
	EntryID     string
	DuplicateID string
}

// ExtractReplyContext pulls reference tags out of a quoted message.
func ExtractReplyContext(quotedText string) ReplyContext {
	var ctx ReplyContext
	if m := entryRefPattern.FindStringSubmatch(quotedText); m != nil {
		ctx.EntryID = m[1]
	}
	if m := dupRefPattern.FindStringSubmatch(quotedText); m != nil {
		ctx.DuplicateID = m[1]
	}
	return ctx
}
