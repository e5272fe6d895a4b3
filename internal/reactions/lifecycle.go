// Package reactions implements the two-phase reaction protocol.
//
// A client first initializes a reaction for (item, session), which creates a
// pending placeholder, then attaches the recorded media, which completes it.
// Authenticated senders can skip the placeholder with RecordDirect.
package reactions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fjmerc/reactshare/internal/metrics"
	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/quota"
	"github.com/fjmerc/reactshare/internal/repository"
	"github.com/fjmerc/reactshare/internal/storage"
)

var (
	// ErrAlreadyComplete is returned when media is attached to a complete reaction.
	ErrAlreadyComplete = models.ErrAlreadyComplete

	// ErrSenderBlocked is returned when a blocked account records a direct reaction.
	ErrSenderBlocked = errors.New("sender account is blocked")
)

// maxReplyLength bounds reply text, in bytes.
const maxReplyLength = 2000

// Lifecycle coordinates reaction creation, completion and replies.
type Lifecycle struct {
	accounts  repository.AccountRepository
	content   repository.ContentRepository
	reactions repository.ReactionRepository
	quota     *quota.Manager
	store     storage.MediaStore
}

// NewLifecycle creates a Lifecycle over the given repositories and media store.
func NewLifecycle(repos *repository.Repositories, quotas *quota.Manager, store storage.MediaStore) *Lifecycle {
	return &Lifecycle{
		accounts:  repos.Accounts,
		content:   repos.Content,
		reactions: repos.Reactions,
		quota:     quotas,
		store:     store,
	}
}

// admit resolves the item and runs the receiver and per-item limits, in that order.
func (l *Lifecycle) admit(ctx context.Context, itemID int64) (*models.ContentItem, error) {
	item, err := l.content.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}

	if _, err := l.quota.RequireReactionSlot(ctx, item.AccountID); err != nil {
		return nil, err
	}

	if item.MaxReactionsAllowed != nil && *item.MaxReactionsAllowed >= 0 {
		count, err := l.reactions.CountByContent(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count reactions: %w", err)
		}
		// Soft limit: concurrent initializations can each observe count < cap
		if !quota.WithinItemCap(count, item.MaxReactionsAllowed) {
			return nil, l.quota.Exceeded(quota.KindPerItem)
		}
	}

	return item, nil
}

// Initialize returns the reaction for (itemID, sessionID), creating a pending
// one when the session has none yet. Only a newly created reaction counts
// against the owner's monthly quota.
func (l *Lifecycle) Initialize(ctx context.Context, itemID int64, sessionID string) (int64, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return 0, fmt.Errorf("%w: session id is required", repository.ErrInvalidInput)
	}

	item, err := l.admit(ctx, itemID)
	if err != nil {
		metrics.ReactionsTotal.WithLabelValues("init", "rejected").Inc()
		return 0, err
	}

	existing, err := l.reactions.GetBySession(ctx, item.ID, sessionID)
	if err == nil {
		metrics.ReactionsTotal.WithLabelValues("init", "existing").Inc()
		return existing.ID, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return 0, fmt.Errorf("failed to look up reaction session: %w", err)
	}

	reaction, err := l.reactions.CreatePending(ctx, item.ID, sessionID)
	if err != nil {
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return 0, fmt.Errorf("failed to create reaction: %w", err)
		}
		// A concurrent request with the same session inserted first
		existing, getErr := l.reactions.GetBySession(ctx, item.ID, sessionID)
		if getErr != nil {
			return 0, fmt.Errorf("failed to look up reaction session: %w", getErr)
		}
		metrics.ReactionsTotal.WithLabelValues("init", "existing").Inc()
		return existing.ID, nil
	}

	l.quota.IncrementReceivedReactions(ctx, item.AccountID)
	metrics.ReactionsTotal.WithLabelValues("init", "created").Inc()

	slog.Info("reaction initialized",
		"reaction_id", reaction.ID,
		"content_id", item.ID,
		"owner_id", item.AccountID,
	)
	return reaction.ID, nil
}

// AttachMedia uploads media for a pending reaction and completes it.
// The parent item is marked as having a reply in the same transaction.
func (l *Lifecycle) AttachMedia(ctx context.Context, reactionID int64, data []byte) (models.MediaReference, error) {
	reaction, err := l.reactions.GetByID(ctx, reactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.MediaReference{}, err
		}
		return models.MediaReference{}, fmt.Errorf("failed to get reaction: %w", err)
	}
	if reaction.State == models.ReactionComplete {
		return models.MediaReference{}, ErrAlreadyComplete
	}

	ref, err := l.upload(ctx, data, models.MediaKindVideo)
	if err != nil {
		metrics.ReactionsTotal.WithLabelValues("attach", "upload_failed").Inc()
		return models.MediaReference{}, err
	}

	if err := l.reactions.Complete(ctx, reaction.ID, ref); err != nil {
		l.discard(ctx, ref)
		metrics.ReactionsTotal.WithLabelValues("attach", "failure").Inc()
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, ErrAlreadyComplete) {
			return models.MediaReference{}, err
		}
		return models.MediaReference{}, fmt.Errorf("failed to complete reaction: %w", err)
	}

	metrics.ReactionsTotal.WithLabelValues("attach", "completed").Inc()
	slog.Info("reaction completed",
		"reaction_id", reaction.ID,
		"content_id", reaction.ContentID,
		"media_key", ref.Key,
	)
	return ref, nil
}

// RecordDirect creates a complete reaction from an authenticated sender in one
// pass. It has no session idempotency: every call creates a reaction.
func (l *Lifecycle) RecordDirect(ctx context.Context, itemID, senderID int64, data []byte) (int64, error) {
	item, err := l.admit(ctx, itemID)
	if err != nil {
		metrics.ReactionsTotal.WithLabelValues("direct", "rejected").Inc()
		return 0, err
	}

	sender, err := l.accounts.GetByID(ctx, senderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to get sender account: %w", err)
	}
	if sender.IsBlocked {
		metrics.ReactionsTotal.WithLabelValues("direct", "rejected").Inc()
		return 0, ErrSenderBlocked
	}

	ref, err := l.upload(ctx, data, models.MediaKindVideo)
	if err != nil {
		metrics.ReactionsTotal.WithLabelValues("direct", "upload_failed").Inc()
		return 0, err
	}

	reaction, err := l.reactions.CreateComplete(ctx, item.ID, sender.ID, ref)
	if err != nil {
		l.discard(ctx, ref)
		metrics.ReactionsTotal.WithLabelValues("direct", "failure").Inc()
		if errors.Is(err, repository.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to create reaction: %w", err)
	}

	l.quota.IncrementReceivedReactions(ctx, item.AccountID)
	metrics.ReactionsTotal.WithLabelValues("direct", "created").Inc()

	slog.Info("direct reaction recorded",
		"reaction_id", reaction.ID,
		"content_id", item.ID,
		"sender_id", sender.ID,
	)
	return reaction.ID, nil
}

// AddReply attaches a text and/or media reply to a reaction.
func (l *Lifecycle) AddReply(ctx context.Context, reactionID int64, text string, data []byte) (*models.Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" && len(data) == 0 {
		return nil, fmt.Errorf("%w: reply needs text or media", repository.ErrInvalidInput)
	}
	if len(text) > maxReplyLength {
		return nil, fmt.Errorf("%w: reply text exceeds %d bytes", repository.ErrInvalidInput, maxReplyLength)
	}

	reaction, err := l.reactions.GetByID(ctx, reactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get reaction: %w", err)
	}

	reply := &models.Reply{ReactionID: reaction.ID, Text: text}
	if len(data) > 0 {
		ref, err := l.upload(ctx, data, models.MediaKindVideo)
		if err != nil {
			metrics.ReactionsTotal.WithLabelValues("reply", "upload_failed").Inc()
			return nil, err
		}
		reply.Media = &ref
	}

	if err := l.reactions.CreateReply(ctx, reply); err != nil {
		if reply.Media != nil {
			l.discard(ctx, *reply.Media)
		}
		metrics.ReactionsTotal.WithLabelValues("reply", "failure").Inc()
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create reply: %w", err)
	}

	metrics.ReactionsTotal.WithLabelValues("reply", "created").Inc()
	return reply, nil
}

// Get returns a reaction by id.
func (l *Lifecycle) Get(ctx context.Context, reactionID int64) (*models.Reaction, error) {
	return l.reactions.GetByID(ctx, reactionID)
}

// Replies lists the replies of a reaction in creation order.
func (l *Lifecycle) Replies(ctx context.Context, reactionID int64) ([]models.Reply, error) {
	if _, err := l.reactions.GetByID(ctx, reactionID); err != nil {
		return nil, err
	}
	return l.reactions.ListReplies(ctx, reactionID)
}

func (l *Lifecycle) upload(ctx context.Context, data []byte, fallback models.MediaKind) (models.MediaReference, error) {
	ref, err := l.store.Upload(ctx, data, fallback)
	if err != nil {
		metrics.MediaUploadsTotal.WithLabelValues("failure").Inc()
		slog.Error("media upload failed", "store", l.store.Name(), "error", err)
		return models.MediaReference{}, err
	}
	metrics.MediaUploadsTotal.WithLabelValues("success").Inc()
	metrics.MediaSizeBytes.Observe(float64(len(data)))
	return ref, nil
}

// discard removes an uploaded object whose row was never written.
// It runs even if the request context is already cancelled.
func (l *Lifecycle) discard(ctx context.Context, ref models.MediaReference) {
	if err := l.store.Delete(context.WithoutCancel(ctx), ref.Key); err != nil {
		slog.Warn("failed to discard orphaned media",
			"media_key", ref.Key,
			"error", err,
		)
	}
}
