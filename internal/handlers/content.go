package handlers

import (
	"net/http"
	"strconv"

	"github.com/fjmerc/reactshare/internal/config"
	"github.com/fjmerc/reactshare/internal/content"
	"github.com/fjmerc/reactshare/internal/deletion"
	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/repository"
)

// PasscodeHeader carries the passcode of a protected shared item.
const PasscodeHeader = "X-Passcode"

func newContentResponse(r *http.Request, cfg *config.Config, item *models.ContentItem) models.ContentResponse {
	return models.ContentResponse{
		ID:                  item.ID,
		AccountID:           item.AccountID,
		Title:               item.Title,
		SharePath:           item.SharePath,
		ShareURL:            buildShareURL(r, cfg, item.SharePath),
		PasscodeProtected:   item.IsPasscodeProtected(),
		Media:               item.Media,
		MaxReactionsAllowed: item.MaxReactionsAllowed,
		ModerationStatus:    item.ModerationStatus,
		HasReply:            item.HasReply,
		CreatedAt:           item.CreatedAt,
	}
}

// CreateContentHandler posts a content item for the acting account.
// The body is multipart with "title", optional "passcode" and optional "media".
func CreateContentHandler(svc *content.Service, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actingID, ok := actingAccount(r)
		if !ok {
			sendError(w, "Unauthorized", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		media, ok := parseMultipart(w, r, cfg.GetMaxMediaSize())
		if !ok {
			return
		}

		item, err := svc.Create(r.Context(), content.CreateInput{
			AccountID: actingID,
			Title:     r.FormValue("title"),
			Passcode:  r.FormValue("passcode"),
			Media:     media,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		sendJSON(w, newContentResponse(r, cfg, item), http.StatusCreated)
	}
}

// ListContentHandler lists the acting account's items, newest first.
func ListContentHandler(svc *content.Service, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actingID, ok := actingAccount(r)
		if !ok {
			sendError(w, "Unauthorized", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		opts := repository.DefaultPagination()
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				opts.Limit = n
			}
		}
		if v := r.URL.Query().Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				opts.Offset = n
			}
		}
		opts = opts.Normalize()

		items, total, err := svc.List(r.Context(), actingID, opts)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := models.ContentListResponse{
			Items:  make([]models.ContentResponse, 0, len(items)),
			Total:  total,
			Limit:  opts.Limit,
			Offset: opts.Offset,
		}
		for i := range items {
			resp.Items = append(resp.Items, newContentResponse(r, cfg, &items[i]))
		}
		sendJSON(w, resp, http.StatusOK)
	}
}

// GetContentHandler returns an item to its owner or an admin.
func GetContentHandler(svc *content.Service, accounts repository.AccountRepository, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		item, err := svc.Get(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if !requireSelfOrAdmin(w, r, accounts, item.AccountID) {
			return
		}

		sendJSON(w, newContentResponse(r, cfg, item), http.StatusOK)
	}
}

// GetSharedHandler resolves an item by share path without authentication.
func GetSharedHandler(svc *content.Service, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := svc.GetShared(r.Context(), r.PathValue("path"), r.Header.Get(PasscodeHeader))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		sendJSON(w, newContentResponse(r, cfg, item), http.StatusOK)
	}
}

// ListReactionsHandler lists an item's reactions for its owner or an admin.
func ListReactionsHandler(svc *content.Service, accounts repository.AccountRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		item, err := svc.Get(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if !requireSelfOrAdmin(w, r, accounts, item.AccountID) {
			return
		}

		list, err := svc.ListReactions(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := make([]models.ReactionDetailResponse, 0, len(list))
		for i := range list {
			resp = append(resp, models.NewReactionDetailResponse(&list[i]))
		}
		sendJSON(w, resp, http.StatusOK)
	}
}

// DeleteContentHandler removes an item with its reactions and replies.
func DeleteContentHandler(svc *content.Service, accounts repository.AccountRepository, engine *deletion.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		item, err := svc.Get(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if !requireSelfOrAdmin(w, r, accounts, item.AccountID) {
			return
		}

		removed, err := engine.DeleteContentItem(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		sendJSON(w, models.DeleteContentResponse{Deleted: true, RemovedChildren: removed}, http.StatusOK)
	}
}
