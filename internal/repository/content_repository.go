package repository

import (
	"context"

	"github.com/fjmerc/reactshare/internal/models"
)

// ContentRepository defines the interface for content item operations.
type ContentRepository interface {
	// Create inserts a content item and sets its ID and CreatedAt.
	// When SharePath is empty a random URL-safe path is generated.
	// Returns ErrDuplicateKey if an explicit share path is already used.
	Create(ctx context.Context, item *models.ContentItem) error

	// GetByID retrieves a content item.
	// Returns ErrNotFound if the item does not exist.
	GetByID(ctx context.Context, id int64) (*models.ContentItem, error)

	// GetBySharePath retrieves a content item by its public share path.
	// Returns ErrNotFound if no item uses the path.
	GetBySharePath(ctx context.Context, sharePath string) (*models.ContentItem, error)

	// ListByAccount returns an account's items, newest first, and the total count.
	ListByAccount(ctx context.Context, accountID int64, opts PaginationOptions) ([]models.ContentItem, int, error)

	// Stats returns row counts across the content graph.
	Stats(ctx context.Context) (*ContentStats, error)
}
