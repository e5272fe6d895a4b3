package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/repository"
)

// DeletionRepository implements repository.DeletionRepository for SQLite.
type DeletionRepository struct {
	db *sql.DB
}

// NewDeletionRepository creates a new SQLite deletion repository.
func NewDeletionRepository(db *sql.DB) *DeletionRepository {
	return &DeletionRepository{db: db}
}

// DeleteContentGraph removes an item, its reactions and their replies in one transaction.
func (r *DeletionRepository) DeleteContentGraph(ctx context.Context, contentID int64) (*repository.DeletedGraph, error) {
	tx, err := beginImmediateTx(ctx, r.db)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	graph := &repository.DeletedGraph{}

	var mediaKey, mediaKind sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT media_key, media_kind FROM content_items WHERE id = ?`, contentID).Scan(&mediaKey, &mediaKind)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	appendMedia(graph, mediaKey, mediaKind)

	// Children are read after the item inside the same transaction, so a
	// reaction inserted before this point is deleted with the item.
	if err := collectMedia(ctx, tx, graph,
		`SELECT media_key, media_kind FROM reactions WHERE content_id = ?`, contentID); err != nil {
		return nil, err
	}
	if err := collectMedia(ctx, tx, graph,
		`SELECT p.media_key, p.media_kind FROM replies p
		 JOIN reactions r ON p.reaction_id = r.id
		 WHERE r.content_id = ?`, contentID); err != nil {
		return nil, err
	}

	graph.Replies, err = execCount(ctx, tx,
		`DELETE FROM replies WHERE reaction_id IN (SELECT id FROM reactions WHERE content_id = ?)`, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete replies: %w", err)
	}

	graph.Reactions, err = execCount(ctx, tx, `DELETE FROM reactions WHERE content_id = ?`, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete reactions: %w", err)
	}

	graph.ContentItems, err = execCount(ctx, tx, `DELETE FROM content_items WHERE id = ?`, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete content item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return graph, nil
}

// DeleteAccountGraph removes an account and everything it owns in one transaction.
func (r *DeletionRepository) DeleteAccountGraph(ctx context.Context, accountID int64) (*repository.DeletedGraph, error) {
	tx, err := beginImmediateTx(ctx, r.db)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	graph := &repository.DeletedGraph{}

	var pictureKey, pictureKind sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT picture_key, picture_kind FROM accounts WHERE id = ?`, accountID).Scan(&pictureKey, &pictureKind)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	appendMedia(graph, pictureKey, pictureKind)

	mediaQueries := []string{
		`SELECT media_key, media_kind FROM content_items WHERE account_id = ?`,
		`SELECT r.media_key, r.media_kind FROM reactions r
		 JOIN content_items c ON r.content_id = c.id
		 WHERE c.account_id = ?`,
		`SELECT p.media_key, p.media_kind FROM replies p
		 JOIN reactions r ON p.reaction_id = r.id
		 JOIN content_items c ON r.content_id = c.id
		 WHERE c.account_id = ?`,
	}
	for _, q := range mediaQueries {
		if err := collectMedia(ctx, tx, graph, q, accountID); err != nil {
			return nil, err
		}
	}

	graph.Replies, err = execCount(ctx, tx, `
		DELETE FROM replies WHERE reaction_id IN (
			SELECT r.id FROM reactions r JOIN content_items c ON r.content_id = c.id WHERE c.account_id = ?
		)`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete replies: %w", err)
	}

	graph.Reactions, err = execCount(ctx, tx,
		`DELETE FROM reactions WHERE content_id IN (SELECT id FROM content_items WHERE account_id = ?)`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete reactions: %w", err)
	}

	graph.ContentItems, err = execCount(ctx, tx, `DELETE FROM content_items WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete content items: %w", err)
	}

	// Reactions this account sent to other accounts' items stay, detached from the sender
	if _, err := tx.ExecContext(ctx, `UPDATE reactions SET sender_account_id = NULL WHERE sender_account_id = ?`, accountID); err != nil {
		return nil, fmt.Errorf("failed to detach sent reactions: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, accountID); err != nil {
		return nil, fmt.Errorf("failed to delete account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return graph, nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		slog.Warn("failed to rollback transaction", "error", err)
	}
}

func collectMedia(ctx context.Context, tx *sql.Tx, graph *repository.DeletedGraph, query string, args ...any) error {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query media references: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, kind sql.NullString
		if err := rows.Scan(&key, &kind); err != nil {
			return fmt.Errorf("failed to scan media reference: %w", err)
		}
		appendMedia(graph, key, kind)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating media references: %w", err)
	}
	return nil
}

func appendMedia(graph *repository.DeletedGraph, key, kind sql.NullString) {
	if ref := models.NewMediaReference(key.String, kind.String); ref != nil {
		graph.Media = append(graph.Media, *ref)
	}
}

func execCount(ctx context.Context, tx *sql.Tx, query string, args ...any) (int, error) {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

var _ repository.DeletionRepository = (*DeletionRepository)(nil)
