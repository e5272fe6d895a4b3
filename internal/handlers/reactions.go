package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fjmerc/reactshare/internal/config"
	"github.com/fjmerc/reactshare/internal/content"
	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/reactions"
	"github.com/fjmerc/reactshare/internal/repository"
)

// InitReactionHandler opens a pending reaction for a viewer session.
// Repeating the call with the same session returns the same reaction.
func InitReactionHandler(lifecycle *reactions.Lifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := pathID(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		var req models.InitReactionRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4*1024)).Decode(&req); err != nil {
			sendError(w, "Invalid JSON body", "INVALID_BODY", http.StatusBadRequest)
			return
		}

		reactionID, err := lifecycle.Initialize(r.Context(), itemID, req.SessionID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		sendJSON(w, models.ReactionResponse{ReactionID: reactionID}, http.StatusCreated)
	}
}

// AttachMediaHandler uploads the raw request body as a pending reaction's media.
func AttachMediaHandler(lifecycle *reactions.Lifecycle, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reactionID, err := pathID(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		data, ok := readMedia(w, r, cfg.GetMaxMediaSize())
		if !ok {
			return
		}

		ref, err := lifecycle.AttachMedia(r.Context(), reactionID, data)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		sendJSON(w, models.ReactionResponse{ReactionID: reactionID, Media: &ref}, http.StatusOK)
	}
}

// RecordDirectHandler records a complete reaction from the acting account.
func RecordDirectHandler(lifecycle *reactions.Lifecycle, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := pathID(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		senderID, ok := actingAccount(r)
		if !ok {
			sendError(w, "Unauthorized", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		data, ok := readMedia(w, r, cfg.GetMaxMediaSize())
		if !ok {
			return
		}

		reactionID, err := lifecycle.RecordDirect(r.Context(), itemID, senderID, data)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		sendJSON(w, models.ReactionResponse{ReactionID: reactionID}, http.StatusCreated)
	}
}

// AddReplyHandler lets the owner of the reacted-to item answer a reaction.
// The body is multipart with optional "text" and optional "media".
func AddReplyHandler(lifecycle *reactions.Lifecycle, items *content.Service, accounts repository.AccountRepository, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reactionID, err := pathID(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		reaction, err := lifecycle.Get(r.Context(), reactionID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		item, err := items.Get(r.Context(), reaction.ContentID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if !requireSelfOrAdmin(w, r, accounts, item.AccountID) {
			return
		}

		media, ok := parseMultipart(w, r, cfg.GetMaxMediaSize())
		if !ok {
			return
		}

		reply, err := lifecycle.AddReply(r.Context(), reactionID, r.FormValue("text"), media)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		sendJSON(w, models.NewReplyResponse(reply), http.StatusCreated)
	}
}

// ListRepliesHandler lists the replies of a reaction.
func ListRepliesHandler(lifecycle *reactions.Lifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reactionID, err := pathID(r)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		replies, err := lifecycle.Replies(r.Context(), reactionID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := make([]models.ReplyResponse, 0, len(replies))
		for i := range replies {
			resp = append(resp, models.NewReplyResponse(&replies[i]))
		}
		sendJSON(w, resp, http.StatusOK)
	}
}
