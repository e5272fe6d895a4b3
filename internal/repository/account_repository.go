package repository

import (
	"context"
	"time"

	"github.com/fjmerc/reactshare/internal/models"
)

// AccountRepository defines the interface for account and usage block operations.
// All methods must be safe for concurrent use.
type AccountRepository interface {
	// Create inserts a new account and sets its ID and CreatedAt.
	// Returns ErrDuplicateKey if the username or email is taken.
	Create(ctx context.Context, account *models.Account) error

	// GetByID retrieves an account including its usage block.
	// Returns ErrNotFound if the account does not exist.
	GetByID(ctx context.Context, id int64) (*models.Account, error)

	// GetUsage retrieves only the usage block of an account.
	// Returns ErrNotFound if the account does not exist.
	GetUsage(ctx context.Context, id int64) (*models.Usage, error)

	// ResetUsageIfStale zeroes both monthly counters and sets last_usage_reset_at = now
	// when the last reset is null or earlier than the start of now's calendar month (UTC).
	// The check and the write are one conditional statement, so a second caller in
	// the same month matches no row and cannot clobber a later increment.
	// Returns the current usage block and whether this call performed the reset.
	// Returns ErrNotFound if the account does not exist.
	ResetUsageIfStale(ctx context.Context, id int64, now time.Time) (*models.Usage, bool, error)

	// IncrementContentCount atomically adds one to content_count_this_month.
	// Returns ErrNotFound if the account does not exist.
	IncrementContentCount(ctx context.Context, id int64) error

	// IncrementReactionsReceived atomically adds one to reactions_received_this_month.
	// Returns ErrNotFound if the account does not exist.
	IncrementReactionsReceived(ctx context.Context, id int64) error

	// UpdateLimits replaces the three nullable limits of the usage block.
	// Returns ErrNotFound if the account does not exist.
	UpdateLimits(ctx context.Context, id int64, limits models.Limits) error

	// UpdateLastLogin records a successful authentication.
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error

	// SetBlocked sets or clears the blocked flag.
	SetBlocked(ctx context.Context, id int64, blocked bool) error

	// SetPicture replaces the profile picture reference and returns the previous one (or nil).
	SetPicture(ctx context.Context, id int64, ref *models.MediaReference) (*models.MediaReference, error)

	// ListInactive returns the IDs of non-admin accounts whose last login, or
	// creation time when they never logged in, is before cutoff. Ordered by ID.
	ListInactive(ctx context.Context, cutoff time.Time) ([]int64, error)
}
