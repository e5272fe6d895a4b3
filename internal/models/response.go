package models

import "time"

// ErrorResponse is the JSON error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the JSON response for the health check endpoint
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Database      string `json:"database"`
	MediaStore    string `json:"media_store"`
}

// CreateAccountRequest is the request body for creating an account
type CreateAccountRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role,omitempty"`
}

// AccountResponse is the JSON representation of an account
type AccountResponse struct {
	ID        int64           `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	Role      Role            `json:"role"`
	IsBlocked bool            `json:"is_blocked"`
	Picture   *MediaReference `json:"picture,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Usage     UsageResponse   `json:"usage"`
}

// SetBlockedRequest is the request body for blocking or unblocking an account
type SetBlockedRequest struct {
	Blocked *bool `json:"blocked"`
}

// UsageResponse is the JSON representation of a usage block
type UsageResponse struct {
	ContentCountThisMonth        int        `json:"content_count_this_month"`
	ReactionsReceivedThisMonth   int        `json:"reactions_received_this_month"`
	MaxContentPerMonth           *int       `json:"max_content_per_month"`
	MaxReactionsReceivedPerMonth *int       `json:"max_reactions_received_per_month"`
	MaxReactionsPerItem          *int       `json:"max_reactions_per_item"`
	LastUsageResetAt             *time.Time `json:"last_usage_reset_at"`
}

// NewUsageResponse converts a usage block for JSON output
func NewUsageResponse(u *Usage) UsageResponse {
	return UsageResponse{
		ContentCountThisMonth:        u.ContentCountThisMonth,
		ReactionsReceivedThisMonth:   u.ReactionsReceivedThisMonth,
		MaxContentPerMonth:           u.MaxContentPerMonth,
		MaxReactionsReceivedPerMonth: u.MaxReactionsReceivedPerMonth,
		MaxReactionsPerItem:          u.MaxReactionsPerItem,
		LastUsageResetAt:             u.LastUsageResetAt,
	}
}

// ContentResponse is the JSON representation of a content item
type ContentResponse struct {
	ID                  int64            `json:"id"`
	AccountID           int64            `json:"account_id"`
	Title               string           `json:"title"`
	SharePath           string           `json:"share_path"`
	ShareURL            string           `json:"share_url,omitempty"`
	PasscodeProtected   bool             `json:"passcode_protected"`
	Media               *MediaReference  `json:"media,omitempty"`
	MaxReactionsAllowed *int             `json:"max_reactions_allowed"`
	ModerationStatus    ModerationStatus `json:"moderation_status"`
	HasReply            bool             `json:"has_reply"`
	CreatedAt           time.Time        `json:"created_at"`
}

// InitReactionRequest is the request body for initializing a reaction
type InitReactionRequest struct {
	SessionID string `json:"session_id"`
}

// ReactionResponse is returned by reaction creation endpoints
type ReactionResponse struct {
	ReactionID int64           `json:"reaction_id"`
	Media      *MediaReference `json:"media,omitempty"`
}

// ReplyResponse is returned after adding a reply
type ReplyResponse struct {
	ID         int64           `json:"id"`
	ReactionID int64           `json:"reaction_id"`
	Text       string          `json:"text,omitempty"`
	Media      *MediaReference `json:"media,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// DeleteContentResponse is returned after a content item is deleted
type DeleteContentResponse struct {
	Deleted         bool `json:"deleted"`
	RemovedChildren int  `json:"removed_children"`
}

// ContentListResponse is a page of an account's content items
type ContentListResponse struct {
	Items  []ContentResponse `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// ReactionDetailResponse is the JSON representation of a reaction
type ReactionDetailResponse struct {
	ID               int64            `json:"id"`
	ContentID        int64            `json:"content_id"`
	SenderAccountID  *int64           `json:"sender_account_id,omitempty"`
	Media            *MediaReference  `json:"media,omitempty"`
	ModerationStatus ModerationStatus `json:"moderation_status"`
	State            ReactionState    `json:"state"`
	CreatedAt        time.Time        `json:"created_at"`
}

// NewReactionDetailResponse converts a reaction for JSON output.
// The client session id is never echoed back.
func NewReactionDetailResponse(r *Reaction) ReactionDetailResponse {
	return ReactionDetailResponse{
		ID:               r.ID,
		ContentID:        r.ContentID,
		SenderAccountID:  r.SenderAccountID,
		Media:            r.Media,
		ModerationStatus: r.ModerationStatus,
		State:            r.State,
		CreatedAt:        r.CreatedAt,
	}
}

// NewReplyResponse converts a reply for JSON output
func NewReplyResponse(r *Reply) ReplyResponse {
	return ReplyResponse{
		ID:         r.ID,
		ReactionID: r.ReactionID,
		Text:       r.Text,
		Media:      r.Media,
		CreatedAt:  r.CreatedAt,
	}
}
