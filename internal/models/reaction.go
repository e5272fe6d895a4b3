package models

import (
	"errors"
	"time"
)

// ReactionState is the lifecycle state of a reaction
type ReactionState string

const (
	// ReactionPending is a placeholder row created before media is attached
	ReactionPending ReactionState = "pending"
	// ReactionComplete has its media attached
	ReactionComplete ReactionState = "complete"
)

// ErrAlreadyComplete is returned when media is attached to a reaction that already has it
var ErrAlreadyComplete = errors.New("reaction already complete")

// Reaction is a media-bearing response attached to a content item
type Reaction struct {
	ID               int64
	ContentID        int64
	ClientSessionID  string // empty for direct reactions
	SenderAccountID  *int64 // set for direct reactions from authenticated accounts
	Media            *MediaReference
	ModerationStatus ModerationStatus
	State            ReactionState
	CreatedAt        time.Time
}

// Complete moves a pending reaction to complete with the given media.
// This is the only transition of the reaction state machine.
func (r *Reaction) Complete(ref MediaReference) error {
	if r.State == ReactionComplete {
		return ErrAlreadyComplete
	}
	r.Media = &ref
	r.State = ReactionComplete
	return nil
}

// Reply is a text or media response owned by a reaction
type Reply struct {
	ID         int64
	ReactionID int64
	Text       string
	Media      *MediaReference
	CreatedAt  time.Time
}
