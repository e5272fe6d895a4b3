package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/repository"
)

// DeletionRepository implements repository.DeletionRepository for PostgreSQL.
// Graph deletions run serializable and are retried on serialization failures,
// so a reaction committed concurrently either lands before the delete or aborts.
type DeletionRepository struct {
	pool *Pool
}

// NewDeletionRepository creates a new PostgreSQL deletion repository.
func NewDeletionRepository(pool *Pool) *DeletionRepository {
	return &DeletionRepository{pool: pool}
}

// DeleteContentGraph removes an item, its reactions and their replies in one transaction.
func (r *DeletionRepository) DeleteContentGraph(ctx context.Context, contentID int64) (*repository.DeletedGraph, error) {
	return withRetry(ctx, maxTxRetries, func() (*repository.DeletedGraph, error) {
		return r.inTx(ctx, func(tx pgx.Tx) (*repository.DeletedGraph, error) {
			return deleteContentGraph(ctx, tx, contentID)
		})
	})
}

// DeleteAccountGraph removes an account and everything it owns in one transaction.
func (r *DeletionRepository) DeleteAccountGraph(ctx context.Context, accountID int64) (*repository.DeletedGraph, error) {
	return withRetry(ctx, maxTxRetries, func() (*repository.DeletedGraph, error) {
		return r.inTx(ctx, func(tx pgx.Tx) (*repository.DeletedGraph, error) {
			return deleteAccountGraph(ctx, tx, accountID)
		})
	})
}

func (r *DeletionRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) (*repository.DeletedGraph, error)) (*repository.DeletedGraph, error) {
	tx, err := r.pool.BeginTx(ctx, TxOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	graph, err := fn(tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return graph, nil
}

func deleteContentGraph(ctx context.Context, tx pgx.Tx, contentID int64) (*repository.DeletedGraph, error) {
	graph := &repository.DeletedGraph{}

	var mediaKey, mediaKind sql.NullString
	err := tx.QueryRow(ctx, `SELECT media_key, media_kind FROM content_items WHERE id = $1 FOR UPDATE`, contentID).Scan(&mediaKey, &mediaKind)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	appendMedia(graph, mediaKey, mediaKind)

	if err := collectMedia(ctx, tx, graph,
		`SELECT media_key, media_kind FROM reactions WHERE content_id = $1`, contentID); err != nil {
		return nil, err
	}
	if err := collectMedia(ctx, tx, graph,
		`SELECT p.media_key, p.media_kind FROM replies p
		 JOIN reactions r ON p.reaction_id = r.id
		 WHERE r.content_id = $1`, contentID); err != nil {
		return nil, err
	}

	if graph.Replies, err = execCount(ctx, tx,
		`DELETE FROM replies WHERE reaction_id IN (SELECT id FROM reactions WHERE content_id = $1)`, contentID); err != nil {
		return nil, fmt.Errorf("failed to delete replies: %w", err)
	}
	if graph.Reactions, err = execCount(ctx, tx, `DELETE FROM reactions WHERE content_id = $1`, contentID); err != nil {
		return nil, fmt.Errorf("failed to delete reactions: %w", err)
	}
	if graph.ContentItems, err = execCount(ctx, tx, `DELETE FROM content_items WHERE id = $1`, contentID); err != nil {
		return nil, fmt.Errorf("failed to delete content item: %w", err)
	}
	return graph, nil
}

func deleteAccountGraph(ctx context.Context, tx pgx.Tx, accountID int64) (*repository.DeletedGraph, error) {
	graph := &repository.DeletedGraph{}

	var pictureKey, pictureKind sql.NullString
	err := tx.QueryRow(ctx, `SELECT picture_key, picture_kind FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&pictureKey, &pictureKind)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	appendMedia(graph, pictureKey, pictureKind)

	mediaQueries := []string{
		`SELECT media_key, media_kind FROM content_items WHERE account_id = $1`,
		`SELECT r.media_key, r.media_kind FROM reactions r
		 JOIN content_items c ON r.content_id = c.id
		 WHERE c.account_id = $1`,
		`SELECT p.media_key, p.media_kind FROM replies p
		 JOIN reactions r ON p.reaction_id = r.id
		 JOIN content_items c ON r.content_id = c.id
		 WHERE c.account_id = $1`,
	}
	for _, q := range mediaQueries {
		if err := collectMedia(ctx, tx, graph, q, accountID); err != nil {
			return nil, err
		}
	}

	if graph.Replies, err = execCount(ctx, tx, `
		DELETE FROM replies WHERE reaction_id IN (
			SELECT r.id FROM reactions r JOIN content_items c ON r.content_id = c.id WHERE c.account_id = $1
		)`, accountID); err != nil {
		return nil, fmt.Errorf("failed to delete replies: %w", err)
	}
	if graph.Reactions, err = execCount(ctx, tx,
		`DELETE FROM reactions WHERE content_id IN (SELECT id FROM content_items WHERE account_id = $1)`, accountID); err != nil {
		return nil, fmt.Errorf("failed to delete reactions: %w", err)
	}
	if graph.ContentItems, err = execCount(ctx, tx, `DELETE FROM content_items WHERE account_id = $1`, accountID); err != nil {
		return nil, fmt.Errorf("failed to delete content items: %w", err)
	}

	// Reactions this account sent to other accounts' items stay, detached from the sender
	if _, err := tx.Exec(ctx, `UPDATE reactions SET sender_account_id = NULL WHERE sender_account_id = $1`, accountID); err != nil {
		return nil, fmt.Errorf("failed to detach sent reactions: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, accountID); err != nil {
		return nil, fmt.Errorf("failed to delete account: %w", err)
	}
	return graph, nil
}

func collectMedia(ctx context.Context, tx pgx.Tx, graph *repository.DeletedGraph, query string, args ...any) error {
	rows, err := tx.Query(ctx, query, args...)
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

func execCount(ctx context.Context, tx pgx.Tx, query string, args ...any) (int, error) {
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

var _ repository.DeletionRepository = (*DeletionRepository)(nil)
