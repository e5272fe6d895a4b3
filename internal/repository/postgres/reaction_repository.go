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

const reactionColumns = `id, content_id, client_session_id, sender_account_id, media_key, media_kind,
	moderation_status, state, created_at`

// ReactionRepository implements repository.ReactionRepository for PostgreSQL.
type ReactionRepository struct {
	pool *Pool
}

// NewReactionRepository creates a new PostgreSQL reaction repository.
func NewReactionRepository(pool *Pool) *ReactionRepository {
	return &ReactionRepository{pool: pool}
}

// CreatePending inserts a pending reaction keyed by (content, session).
func (r *ReactionRepository) CreatePending(ctx context.Context, contentID int64, sessionID string) (*models.Reaction, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", repository.ErrInvalidInput)
	}

	reaction := &models.Reaction{
		ContentID:        contentID,
		ClientSessionID:  sessionID,
		ModerationStatus: models.ModerationPending,
		State:            models.ReactionPending,
		CreatedAt:        time.Now().UTC(),
	}
	if err := r.insert(ctx, reaction); err != nil {
		return nil, err
	}
	return reaction, nil
}

// CreateComplete inserts a reaction that already has media.
func (r *ReactionRepository) CreateComplete(ctx context.Context, contentID int64, senderID int64, ref models.MediaReference) (*models.Reaction, error) {
	reaction := &models.Reaction{
		ContentID:        contentID,
		SenderAccountID:  &senderID,
		Media:            &ref,
		ModerationStatus: models.ModerationPending,
		State:            models.ReactionComplete,
		CreatedAt:        time.Now().UTC(),
	}
	if err := r.insert(ctx, reaction); err != nil {
		return nil, err
	}
	return reaction, nil
}

func (r *ReactionRepository) insert(ctx context.Context, reaction *models.Reaction) error {
	var sender sql.NullInt64
	if reaction.SenderAccountID != nil {
		sender = sql.NullInt64{Int64: *reaction.SenderAccountID, Valid: true}
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO reactions (content_id, client_session_id, sender_account_id, media_key, media_kind,
			moderation_status, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		reaction.ContentID,
		nullString(reaction.ClientSessionID),
		sender,
		nullString(reaction.Media.KeyOrEmpty()),
		nullString(reaction.Media.KindOrEmpty()),
		string(reaction.ModerationStatus),
		string(reaction.State),
		reaction.CreatedAt,
	).Scan(&reaction.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		if isForeignKeyViolation(err) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("failed to create reaction: %w", err)
	}
	return nil
}

// GetByID retrieves a reaction.
func (r *ReactionRepository) GetByID(ctx context.Context, id int64) (*models.Reaction, error) {
	return scanReaction(r.pool.QueryRow(ctx, `SELECT `+reactionColumns+` FROM reactions WHERE id = $1`, id))
}

// GetBySession retrieves the reaction for (content, session).
func (r *ReactionRepository) GetBySession(ctx context.Context, contentID int64, sessionID string) (*models.Reaction, error) {
	return scanReaction(r.pool.QueryRow(ctx,
		`SELECT `+reactionColumns+` FROM reactions WHERE content_id = $1 AND client_session_id = $2`,
		contentID, sessionID))
}

// CountByContent counts the reactions on an item.
func (r *ReactionRepository) CountByContent(ctx context.Context, contentID int64) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reactions WHERE content_id = $1`, contentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reactions: %w", err)
	}
	return count, nil
}

// ListByContent returns the reactions on an item in creation order.
func (r *ReactionRepository) ListByContent(ctx context.Context, contentID int64) ([]models.Reaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+reactionColumns+` FROM reactions WHERE content_id = $1 ORDER BY id`, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reactions: %w", err)
	}
	defer rows.Close()

	var reactions []models.Reaction
	for rows.Next() {
		reaction, err := scanReaction(rows)
		if err != nil {
			return nil, err
		}
		reactions = append(reactions, *reaction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reactions: %w", err)
	}
	return reactions, nil
}

// Complete attaches media to a pending reaction and flags the parent item.
// The reaction row is locked so concurrent completions see a consistent state.
func (r *ReactionRepository) Complete(ctx context.Context, reactionID int64, ref models.MediaReference) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	var contentID int64
	var state string
	err = tx.QueryRow(ctx, `SELECT content_id, state FROM reactions WHERE id = $1 FOR UPDATE`, reactionID).Scan(&contentID, &state)
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get reaction: %w", err)
	}
	if models.ReactionState(state) != models.ReactionPending {
		return models.ErrAlreadyComplete
	}

	if _, err := tx.Exec(ctx,
		`UPDATE reactions SET media_key = $1, media_kind = $2, state = $3 WHERE id = $4`,
		ref.Key, string(ref.Kind), string(models.ReactionComplete), reactionID,
	); err != nil {
		return fmt.Errorf("failed to complete reaction: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE content_items SET has_reply = TRUE WHERE id = $1`, contentID); err != nil {
		return fmt.Errorf("failed to flag content item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateReply inserts a reply under a reaction.
func (r *ReactionRepository) CreateReply(ctx context.Context, reply *models.Reply) error {
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = time.Now().UTC()
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO replies (reaction_id, body, media_key, media_kind, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		reply.ReactionID,
		reply.Text,
		nullString(reply.Media.KeyOrEmpty()),
		nullString(reply.Media.KindOrEmpty()),
		reply.CreatedAt,
	).Scan(&reply.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("failed to create reply: %w", err)
	}
	return nil
}

// ListReplies returns the replies of a reaction.
func (r *ReactionRepository) ListReplies(ctx context.Context, reactionID int64) ([]models.Reply, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, reaction_id, body, media_key, media_kind, created_at FROM replies WHERE reaction_id = $1 ORDER BY id`,
		reactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query replies: %w", err)
	}
	defer rows.Close()

	var replies []models.Reply
	for rows.Next() {
		var reply models.Reply
		var mediaKey, mediaKind sql.NullString
		if err := rows.Scan(&reply.ID, &reply.ReactionID, &reply.Text, &mediaKey, &mediaKind, &reply.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reply: %w", err)
		}
		reply.Media = models.NewMediaReference(mediaKey.String, mediaKind.String)
		reply.CreatedAt = reply.CreatedAt.UTC()
		replies = append(replies, reply)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating replies: %w", err)
	}
	return replies, nil
}

func scanReaction(row rowScanner) (*models.Reaction, error) {
	var reaction models.Reaction
	var sessionID, mediaKey, mediaKind sql.NullString
	var sender sql.NullInt64
	var moderation, state string

	err := row.Scan(
		&reaction.ID,
		&reaction.ContentID,
		&sessionID,
		&sender,
		&mediaKey,
		&mediaKind,
		&moderation,
		&state,
		&reaction.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan reaction: %w", err)
	}

	reaction.ClientSessionID = sessionID.String
	if sender.Valid {
		id := sender.Int64
		reaction.SenderAccountID = &id
	}
	reaction.Media = models.NewMediaReference(mediaKey.String, mediaKind.String)
	reaction.ModerationStatus = models.ModerationStatus(moderation)
	reaction.State = models.ReactionState(state)
	reaction.CreatedAt = reaction.CreatedAt.UTC()
	return &reaction, nil
}

var _ repository.ReactionRepository = (*ReactionRepository)(nil)
