package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/repository"
)

const contentColumns = `id, account_id, title, share_path, passcode_hash, media_key, media_kind,
	max_reactions_allowed, moderation_status, has_reply, created_at`

const sharePathAttempts = 3

// ContentRepository implements repository.ContentRepository for PostgreSQL.
type ContentRepository struct {
	pool *Pool
}

// NewContentRepository creates a new PostgreSQL content repository.
func NewContentRepository(pool *Pool) *ContentRepository {
	return &ContentRepository{pool: pool}
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

		err := r.pool.QueryRow(ctx, `
			INSERT INTO content_items (account_id, title, share_path, passcode_hash, media_key, media_kind,
				max_reactions_allowed, moderation_status, has_reply, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`,
			item.AccountID,
			item.Title,
			item.SharePath,
			nullString(item.PasscodeHash),
			nullString(item.Media.KeyOrEmpty()),
			nullString(item.Media.KindOrEmpty()),
			nullInt(item.MaxReactionsAllowed),
			string(item.ModerationStatus),
			item.HasReply,
			item.CreatedAt,
		).Scan(&item.ID)
		if err == nil {
			return nil
		}
		if isForeignKeyViolation(err) {
			return repository.ErrNotFound
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("failed to create content item: %w", err)
		}
		if !generated {
			return repository.ErrDuplicateKey
		}
	}

	return fmt.Errorf("failed to generate unique share path after %d attempts", sharePathAttempts)
}

// GetByID retrieves a content item.
func (r *ContentRepository) GetByID(ctx context.Context, id int64) (*models.ContentItem, error) {
	return scanContent(r.pool.QueryRow(ctx, `SELECT `+contentColumns+` FROM content_items WHERE id = $1`, id))
}

// GetBySharePath retrieves a content item by share path.
func (r *ContentRepository) GetBySharePath(ctx context.Context, sharePath string) (*models.ContentItem, error) {
	return scanContent(r.pool.QueryRow(ctx, `SELECT `+contentColumns+` FROM content_items WHERE share_path = $1`, sharePath))
}

// ListByAccount returns a page of the account's items, newest first.
func (r *ContentRepository) ListByAccount(ctx context.Context, accountID int64, opts repository.PaginationOptions) ([]models.ContentItem, int, error) {
	opts = opts.Normalize()

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM content_items WHERE account_id = $1`, accountID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count content items: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+contentColumns+` FROM content_items WHERE account_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		accountID, opts.Limit, opts.Offset)
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
	var stats repository.ContentStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM accounts),
			(SELECT COUNT(*) FROM content_items),
			(SELECT COUNT(*) FROM reactions),
			(SELECT COUNT(*) FROM reactions WHERE state = 'pending'),
			(SELECT COUNT(*) FROM replies)
	`).Scan(
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

func scanContent(row rowScanner) (*models.ContentItem, error) {
	var item models.ContentItem
	var passcodeHash, mediaKey, mediaKind sql.NullString
	var maxReactions sql.NullInt64
	var moderation string

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
		&item.HasReply,
		&item.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan content item: %w", err)
	}

	item.PasscodeHash = passcodeHash.String
	item.Media = models.NewMediaReference(mediaKey.String, mediaKind.String)
	item.MaxReactionsAllowed = scanNullableInt(maxReactions)
	item.ModerationStatus = models.ModerationStatus(moderation)
	item.CreatedAt = item.CreatedAt.UTC()
	return &item, nil
}

var _ repository.ContentRepository = (*ContentRepository)(nil)
