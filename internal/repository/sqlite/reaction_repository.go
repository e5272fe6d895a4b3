package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/repository"
)

const reactionColumns = `id, content_id, client_session_id, sender_account_id, media_key, media_kind,
	moderation_status, state, created_at`

// ReactionRepository implements repository.ReactionRepository for SQLite.
type ReactionRepository struct {
	db *sql.DB
}

// NewReactionRepository creates a new SQLite reaction repository.
func NewReactionRepository(db *sql.DB) *ReactionRepository {
	return &ReactionRepository{db: db}
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

	query := `
		INSERT INTO reactions (content_id, client_session_id, sender_account_id, media_key, media_kind,
			moderation_status, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		reaction.ContentID,
		nullString(reaction.ClientSessionID),
		sender,
		nullString(reaction.Media.KeyOrEmpty()),
		nullString(reaction.Media.KindOrEmpty()),
		string(reaction.ModerationStatus),
		string(reaction.State),
		formatTime(reaction.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return repository.ErrDuplicateKey
		}
		if isForeignKeyError(err) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("failed to create reaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get reaction ID: %w", err)
	}
	reaction.ID = id
	return nil
}

// GetByID retrieves a reaction.
func (r *ReactionRepository) GetByID(ctx context.Context, id int64) (*models.Reaction, error) {
	query := `SELECT ` + reactionColumns + ` FROM reactions WHERE id = ?`
	return scanReaction(r.db.QueryRowContext(ctx, query, id))
}

// GetBySession retrieves the reaction for (content, session).
func (r *ReactionRepository) GetBySession(ctx context.Context, contentID int64, sessionID string) (*models.Reaction, error) {
	query := `SELECT ` + reactionColumns + ` FROM reactions WHERE content_id = ? AND client_session_id = ?`
	return scanReaction(r.db.QueryRowContext(ctx, query, contentID, sessionID))
}

// CountByContent counts the reactions on an item.
func (r *ReactionRepository) CountByContent(ctx context.Context, contentID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reactions WHERE content_id = ?`, contentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reactions: %w", err)
	}
	return count, nil
}

// ListByContent returns the reactions on an item in creation order.
func (r *ReactionRepository) ListByContent(ctx context.Context, contentID int64) ([]models.Reaction, error) {
	query := `SELECT ` + reactionColumns + ` FROM reactions WHERE content_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, contentID)
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
func (r *ReactionRepository) Complete(ctx context.Context, reactionID int64, ref models.MediaReference) error {
	tx, err := beginImmediateTx(ctx, r.db)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	var contentID int64
	var state string
	err = tx.QueryRowContext(ctx, `SELECT content_id, state FROM reactions WHERE id = ?`, reactionID).Scan(&contentID, &state)
	if err == sql.ErrNoRows {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get reaction: %w", err)
	}
	if models.ReactionState(state) != models.ReactionPending {
		return models.ErrAlreadyComplete
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE reactions SET media_key = ?, media_kind = ?, state = ? WHERE id = ?`,
		ref.Key, string(ref.Kind), string(models.ReactionComplete), reactionID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete reaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE content_items SET has_reply = 1 WHERE id = ?`, contentID); err != nil {
		return fmt.Errorf("failed to flag content item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateReply inserts a reply under a reaction.
func (r *ReactionRepository) CreateReply(ctx context.Context, reply *models.Reply) error {
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO replies (reaction_id, body, media_key, media_kind, created_at) VALUES (?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query,
		reply.ReactionID,
		reply.Text,
		nullString(reply.Media.KeyOrEmpty()),
		nullString(reply.Media.KindOrEmpty()),
		formatTime(reply.CreatedAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("failed to create reply: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get reply ID: %w", err)
	}
	reply.ID = id
	return nil
}

// ListReplies returns the replies of a reaction.
func (r *ReactionRepository) ListReplies(ctx context.Context, reactionID int64) ([]models.Reply, error) {
	query := `SELECT id, reaction_id, body, media_key, media_kind, created_at FROM replies WHERE reaction_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, reactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query replies: %w", err)
	}
	defer rows.Close()

	var replies []models.Reply
	for rows.Next() {
		var reply models.Reply
		var mediaKey, mediaKind sql.NullString
		var createdAt string
		if err := rows.Scan(&reply.ID, &reply.ReactionID, &reply.Text, &mediaKey, &mediaKind, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan reply: %w", err)
		}
		reply.Media = models.NewMediaReference(mediaKey.String, mediaKind.String)
		reply.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
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
	var moderation, state, createdAt string

	err := row.Scan(
		&reaction.ID,
		&reaction.ContentID,
		&sessionID,
		&sender,
		&mediaKey,
		&mediaKind,
		&moderation,
		&state,
		&createdAt,
	)
	if err == sql.ErrNoRows {
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

	reaction.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return &reaction, nil
}

var _ repository.ReactionRepository = (*ReactionRepository)(nil)
