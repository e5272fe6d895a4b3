package repository

import (
	"context"

	"github.com/fjmerc/reactshare/internal/models"
)

// ReactionRepository defines the interface for reaction and reply operations.
type ReactionRepository interface {
	// CreatePending inserts a pending reaction for (contentID, sessionID).
	// Returns ErrDuplicateKey if a reaction for the pair already exists.
	CreatePending(ctx context.Context, contentID int64, sessionID string) (*models.Reaction, error)

	// CreateComplete inserts a reaction that already carries its media,
	// without a client session.
	CreateComplete(ctx context.Context, contentID int64, senderID int64, ref models.MediaReference) (*models.Reaction, error)

	// GetByID retrieves a reaction.
	// Returns ErrNotFound if the reaction does not exist.
	GetByID(ctx context.Context, id int64) (*models.Reaction, error)

	// GetBySession retrieves the reaction for (contentID, sessionID).
	// Returns ErrNotFound if none exists.
	GetBySession(ctx context.Context, contentID int64, sessionID string) (*models.Reaction, error)

	// CountByContent counts the reactions of an item, in any state.
	CountByContent(ctx context.Context, contentID int64) (int, error)

	// ListByContent returns the reactions of an item in creation order.
	ListByContent(ctx context.Context, contentID int64) ([]models.Reaction, error)

	// Complete attaches media to a pending reaction, marks it complete and sets
	// has_reply on the parent item, in one transaction.
	// Returns ErrNotFound if the reaction does not exist and
	// models.ErrAlreadyComplete if it is not pending.
	Complete(ctx context.Context, reactionID int64, ref models.MediaReference) error

	// CreateReply inserts a reply and sets its ID and CreatedAt.
	// Returns ErrNotFound if the parent reaction does not exist.
	CreateReply(ctx context.Context, reply *models.Reply) error

	// ListReplies returns the replies of a reaction in creation order.
	ListReplies(ctx context.Context, reactionID int64) ([]models.Reply, error)
}
