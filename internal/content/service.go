// Package content implements posting, sharing and listing of content items.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjmerc/reactshare/internal/metrics"
	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/quota"
	"github.com/fjmerc/reactshare/internal/repository"
	"github.com/fjmerc/reactshare/internal/storage"
	"github.com/fjmerc/reactshare/internal/utils"
)

// ErrInvalidPasscode is returned when a shared item is opened with a wrong or
// missing passcode.
var ErrInvalidPasscode = errors.New("invalid passcode")

// CreateInput holds the fields of a new content item.
type CreateInput struct {
	AccountID int64
	Title     string
	Passcode  string // optional
	Media     []byte // optional
}

// Service creates and resolves content items.
type Service struct {
	content   repository.ContentRepository
	reactions repository.ReactionRepository
	quota     *quota.Manager
	store     storage.MediaStore
}

// NewService creates a content service.
func NewService(repos *repository.Repositories, quotas *quota.Manager, store storage.MediaStore) *Service {
	return &Service{
		content:   repos.Content,
		reactions: repos.Reactions,
		quota:     quotas,
		store:     store,
	}
}

// Create posts a content item for in.AccountID. The owner's per-item reaction
// cap is copied into the item, so later changes to the owner's default do not
// affect existing items.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.ContentItem, error) {
	title := utils.SanitizeTitle(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", repository.ErrInvalidInput)
	}

	usage, err := s.quota.RequireContentSlot(ctx, in.AccountID)
	if err != nil {
		metrics.ContentCreatedTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	hash, err := utils.HashPasscode(in.Passcode)
	if err != nil {
		return nil, fmt.Errorf("failed to hash passcode: %w", err)
	}

	item := &models.ContentItem{
		AccountID:           in.AccountID,
		Title:               title,
		PasscodeHash:        hash,
		MaxReactionsAllowed: copyLimit(usage.MaxReactionsPerItem),
		ModerationStatus:    models.ModerationApproved,
	}

	if len(in.Media) > 0 {
		ref, err := s.store.Upload(ctx, in.Media, models.MediaKindImage)
		if err != nil {
			metrics.MediaUploadsTotal.WithLabelValues("failure").Inc()
			metrics.ContentCreatedTotal.WithLabelValues("upload_failed").Inc()
			return nil, err
		}
		metrics.MediaUploadsTotal.WithLabelValues("success").Inc()
		metrics.MediaSizeBytes.Observe(float64(len(in.Media)))
		item.Media = &ref
	}

	if err := s.content.Create(ctx, item); err != nil {
		if item.Media != nil {
			if delErr := s.store.Delete(context.WithoutCancel(ctx), item.Media.Key); delErr != nil {
				slog.Warn("failed to discard orphaned media", "media_key", item.Media.Key, "error", delErr)
			}
		}
		metrics.ContentCreatedTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("failed to create content item: %w", err)
	}

	s.quota.IncrementContentCount(ctx, in.AccountID)
	metrics.ContentCreatedTotal.WithLabelValues("success").Inc()

	slog.Info("content item created",
		"content_id", item.ID,
		"account_id", item.AccountID,
		"share_path", utils.RedactToken(item.SharePath),
		"passcode_protected", item.IsPasscodeProtected(),
		"has_media", item.Media != nil,
	)
	return item, nil
}

// Get returns a content item by id.
func (s *Service) Get(ctx context.Context, id int64) (*models.ContentItem, error) {
	return s.content.GetByID(ctx, id)
}

// GetShared resolves an item by its share path. Passcode-protected items
// require the matching passcode.
func (s *Service) GetShared(ctx context.Context, sharePath, passcode string) (*models.ContentItem, error) {
	item, err := s.content.GetBySharePath(ctx, sharePath)
	if err != nil {
		return nil, err
	}
	if !utils.VerifyPasscode(item.PasscodeHash, passcode) {
		slog.Warn("invalid passcode for shared item", "share_path", utils.RedactToken(sharePath))
		return nil, ErrInvalidPasscode
	}
	return item, nil
}

// List returns a page of an account's items and the total count.
func (s *Service) List(ctx context.Context, accountID int64, opts repository.PaginationOptions) ([]models.ContentItem, int, error) {
	return s.content.ListByAccount(ctx, accountID, opts.Normalize())
}

// ListReactions returns the reactions of an item in creation order.
func (s *Service) ListReactions(ctx context.Context, itemID int64) ([]models.Reaction, error) {
	if _, err := s.content.GetByID(ctx, itemID); err != nil {
		return nil, err
	}
	return s.reactions.ListByContent(ctx, itemID)
}

func copyLimit(v *int) *int {
	if v == nil || *v < 0 {
		return nil
	}
	c := *v
	return &c
}
