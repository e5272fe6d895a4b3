package models

import "time"

// ModerationStatus is the moderation state of a content item or reaction
type ModerationStatus string

const (
	ModerationApproved     ModerationStatus = "approved"
	ModerationPending      ModerationStatus = "pending"
	ModerationManualReview ModerationStatus = "manual_review"
)

// ContentItem represents a posted item that others react to
type ContentItem struct {
	ID                  int64
	AccountID           int64
	Title               string
	SharePath           string
	PasscodeHash        string // empty when the item is not passcode protected
	Media               *MediaReference
	MaxReactionsAllowed *int // nullable - nil means unlimited
	ModerationStatus    ModerationStatus
	HasReply            bool
	CreatedAt           time.Time
}

// IsPasscodeProtected returns true if a passcode hash is set
func (c *ContentItem) IsPasscodeProtected() bool {
	return c.PasscodeHash != ""
}
