package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/repository"
)

const contentColumns = `id, account_id, title, share_path, passcode_hash, media_key, media_kind,
	max_reactions_allowed, moderation_status, has_reply, created_at`

// sharePathAttempts bounds retries on a generated share path collision.
const sharePathAttempts = 3

// ContentRepository implements repository.ContentRepository for SQLite.
type ContentRepository struct {
	db *sql.DB
}

// NewContentRepository creates a new SQLite content repository.
func NewContentRepository(db *sql.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// Create inserts a content item, generating a share path when none is given.
func (r *ContentRepository) Create(ctx context.Context, item *models.ContentItem) error {
	if item.ModerationStatus == "" {
		item.ModerationStatus = models.ModerationApproved
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	generated := item.SharePath == ""
	for attempt := 0; attempt < sharePathAttempts; attempt++ {
		if generated {
			path, err := generateSharePath()
			if err != nil {
				return err
			}
			item.SharePath = path
		}

		err := r.insert(ctx, item)
		if err == nil {
			return nil
		}
		if !isUniqueConstraintError(err) {
			return fmt.Errorf("failed to create content item: %w", err)
		}
		if !generated {
			return repository.ErrDuplicateKey
		}
	}

	return fmt.Errorf("failed to generate unique share path after %d attempts", sharePathAttempts)
}

func (r *ContentRepository) insert(ctx context.Context, item *models.ContentItem) error {
	query := `
		INSERT INTO content_items (account_id, title, share_path, passcode_hash, media_key, media_kind,
			max_reactions_allowed, moderation_status, has_reply, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		item.AccountID,
		item.Title,
		item.SharePath,
		nullString(item.PasscodeHash),
		nullString(item.Media.KeyOrEmpty()),
		nullString(item.Media.KindOrEmpty()),
		nullInt(item.MaxReactionsAllowed),
		string(item.ModerationStatus),
		boolToInt(item.HasReply),
		formatTime(item.CreatedAt),
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get content ID: %w", err)
	}
	item.ID = id
	return nil
}

// GetByID retrieves a content item.
func (r *ContentRepository) GetByID(ctx context.Context, id int64) (*models.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE id = ?`
	return scanContent(r.db.QueryRowContext(ctx, query, id))
}

// GetBySharePath retrieves a content item by share path.
func (r *ContentRepository) GetBySharePath(ctx context.Context, sharePath string) (*models.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE share_path = ?`
	return scanContent(r.db.QueryRowContext(ctx, query, sharePath))
}

// ListByAccount returns a page of the account's items, newest first.
func (r *ContentRepository) ListByAccount(ctx context.Context, accountID int64, opts repository.PaginationOptions) ([]models.ContentItem, int, error) {
	opts = opts.Normalize()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_items WHERE account_id = ?`, accountID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count content items: %w", err)
	}

	query := `SELECT ` + contentColumns + ` FROM content_items WHERE account_id = ? ORDER BY id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, accountID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query content items: %w", err)
	}
	defer rows.Close()

	var items []models.ContentItem
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating content items: %w", err)
	}

	return items, total, nil
}

// Stats returns row counts across the content graph.
func (r *ContentRepository) Stats(ctx context.Context) (*repository.ContentStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM accounts),
			(SELECT COUNT(*) FROM content_items),
			(SELECT COUNT(*) FROM reactions),
			(SELECT COUNT(*) FROM reactions WHERE state = 'pending'),
			(SELECT COUNT(*) FROM replies)
	`
	var stats repository.ContentStats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Accounts,
		&stats.ContentItems,
		&stats.Reactions,
		&stats.PendingReactions,
		&stats.Replies,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query content stats: %w", err)
	}
	return &stats, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (*models.ContentItem, error) {
	var item models.ContentItem
	var passcodeHash, mediaKey, mediaKind sql.NullString
	var maxReactions sql.NullInt64
	var moderation, createdAt string
	var hasReply int

	err := row.Scan(
		&item.ID,
		&item.AccountID,
		&item.Title,
		&item.SharePath,
		&passcodeHash,
		&mediaKey,
		&mediaKind,
		&maxReactions,
		&moderation,
		&hasReply,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan content item: %w", err)
	}

	item.PasscodeHash = passcodeHash.String
	item.Media = models.NewMediaReference(mediaKey.String, mediaKind.String)
	item.MaxReactionsAllowed = intFromNull(maxReactions)
	item.ModerationStatus = models.ModerationStatus(moderation)
	item.HasReply = hasReply != 0

	item.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return &item, nil
}

var _ repository.ContentRepository = (*ContentRepository)(nil)
