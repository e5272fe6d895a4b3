package handlers

import (
	"net/http"
	"time"

	"github.com/fjmerc/reactshare/internal/config"
	"github.com/fjmerc/reactshare/internal/content"
	"github.com/fjmerc/reactshare/internal/deletion"
	"github.com/fjmerc/reactshare/internal/metrics"
	"github.com/fjmerc/reactshare/internal/middleware"
	"github.com/fjmerc/reactshare/internal/quota"
	"github.com/fjmerc/reactshare/internal/reactions"
	"github.com/fjmerc/reactshare/internal/repository"
	"github.com/fjmerc/reactshare/internal/storage"
)

// Deps carries everything the routes need.
type Deps struct {
	Config    *config.Config
	Repos     *repository.Repositories
	Store     storage.MediaStore
	Quotas    *quota.Manager
	Content   *content.Service
	Reactions *reactions.Lifecycle
	Deletion  *deletion.Engine
	StartTime time.Time

	// Metrics serves /metrics when set
	Metrics http.Handler
}

// NewRouter registers all routes and wraps them in the middleware chain.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()
	accounts := d.Repos.Accounts

	mux.HandleFunc("POST /api/accounts", CreateAccountHandler(accounts, d.Config))
	mux.HandleFunc("GET /api/accounts/{id}/usage", GetUsageHandler(accounts, d.Quotas))
	mux.HandleFunc("PUT /api/accounts/{id}/limits", UpdateLimitsHandler(accounts, d.Quotas))
	mux.HandleFunc("PUT /api/accounts/{id}/blocked", SetBlockedHandler(accounts))
	mux.HandleFunc("PUT /api/accounts/{id}/picture", SetPictureHandler(accounts, d.Store, d.Config))
	mux.HandleFunc("DELETE /api/accounts/{id}", DeleteAccountHandler(accounts, d.Deletion))

	mux.HandleFunc("POST /api/content", CreateContentHandler(d.Content, d.Config))
	mux.HandleFunc("GET /api/content", ListContentHandler(d.Content, d.Config))
	mux.HandleFunc("GET /api/content/{id}", GetContentHandler(d.Content, accounts, d.Config))
	mux.HandleFunc("DELETE /api/content/{id}", DeleteContentHandler(d.Content, accounts, d.Deletion))
	mux.HandleFunc("GET /api/share/{path}", GetSharedHandler(d.Content, d.Config))

	mux.HandleFunc("GET /api/content/{id}/reactions", ListReactionsHandler(d.Content, accounts))
	mux.HandleFunc("POST /api/content/{id}/reactions", RecordDirectHandler(d.Reactions, d.Config))
	mux.HandleFunc("POST /api/content/{id}/reactions/init", InitReactionHandler(d.Reactions))
	mux.HandleFunc("PUT /api/reactions/{id}/media", AttachMediaHandler(d.Reactions, d.Config))
	mux.HandleFunc("POST /api/reactions/{id}/replies", AddReplyHandler(d.Reactions, d.Content, accounts, d.Config))
	mux.HandleFunc("GET /api/reactions/{id}/replies", ListRepliesHandler(d.Reactions))

	mux.HandleFunc("GET /health", HealthHandler(d.Repos.Health, d.Store, d.StartTime))
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	activity := middleware.NewActivityTracker(accounts, d.Config.ActivityInterval)

	// Outermost first: recovery sees panics from every layer below it
	return middleware.RecoveryMiddleware(
		middleware.LoggingMiddleware(
			metrics.Middleware(
				middleware.SecurityHeadersMiddleware(
					middleware.AccountContext(activity.Middleware(mux)),
				),
			),
		),
	)
}
