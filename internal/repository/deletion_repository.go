package repository

import (
	"context"

	"github.com/fjmerc/reactshare/internal/models"
)

// DeletedGraph describes what a cascading deletion removed from the database.
type DeletedGraph struct {
	ContentItems int
	Reactions    int
	Replies      int

	// Media lists every media reference held by a removed row.
	// The rows are gone once the transaction commits; the objects are not.
	Media []models.MediaReference
}

// Children returns the number of removed reactions plus replies.
func (g *DeletedGraph) Children() int {
	return g.Reactions + g.Replies
}

// DeletionRepository removes content graphs in a single transaction.
// Rows are deleted bottom-up: replies, then reactions, then items, then the account.
// Any database error rolls the whole transaction back.
type DeletionRepository interface {
	// DeleteContentGraph removes an item with all its reactions and their replies.
	// Returns ErrNotFound if the item does not exist.
	DeleteContentGraph(ctx context.Context, contentID int64) (*DeletedGraph, error)

	// DeleteAccountGraph removes every item the account owns, their reactions
	// and replies, and finally the account row. The account's profile picture
	// is included in the returned media.
	// Returns ErrNotFound if the account does not exist.
	DeleteAccountGraph(ctx context.Context, accountID int64) (*DeletedGraph, error)
}
