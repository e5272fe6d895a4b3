package testutil

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

var fixtureSeq atomic.Int64

// AccountFixture describes an account row inserted directly with SQL.
// Nil limits are unlimited; a nil LastUsageResetAt means never reset.
type AccountFixture struct {
	Username                     string
	Role                         string
	MaxContentPerMonth           *int
	MaxReactionsReceivedPerMonth *int
	MaxReactionsPerItem          *int
	ContentCountThisMonth        int
	ReactionsReceivedThisMonth   int
	LastUsageResetAt             *time.Time
	CreatedAt                    time.Time
	LastLogin                    *time.Time
	PictureKey                   string
}

// InsertAccount inserts an account and returns its ID.
func InsertAccount(t testing.TB, db *sql.DB, f AccountFixture) int64 {
	t.Helper()

	n := fixtureSeq.Add(1)
	if f.Username == "" {
		f.Username = fmt.Sprintf("account%d", n)
	}
	if f.Role == "" {
		f.Role = "user"
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	var pictureKind any
	if f.PictureKey != "" {
		pictureKind = "image"
	}

	result, err := db.Exec(`
		INSERT INTO accounts (username, email, role, picture_key, picture_kind,
			content_count_this_month, reactions_received_this_month,
			max_content_per_month, max_reactions_received_per_month, max_reactions_per_item,
			last_usage_reset_at, created_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Username,
		f.Username+"@example.com",
		f.Role,
		nullable(f.PictureKey),
		pictureKind,
		f.ContentCountThisMonth,
		f.ReactionsReceivedThisMonth,
		intOrNil(f.MaxContentPerMonth),
		intOrNil(f.MaxReactionsReceivedPerMonth),
		intOrNil(f.MaxReactionsPerItem),
		timeOrNil(f.LastUsageResetAt),
		f.CreatedAt.UTC().Format(time.RFC3339),
		timeOrNil(f.LastLogin),
	)
	if err != nil {
		t.Fatalf("failed to insert account: %v", err)
	}

	id, _ := result.LastInsertId()
	return id
}

// InsertContent inserts a content item owned by accountID and returns its ID.
func InsertContent(t testing.TB, db *sql.DB, accountID int64, maxReactions *int, mediaKey string) int64 {
	t.Helper()

	n := fixtureSeq.Add(1)
	var mediaKind any
	if mediaKey != "" {
		mediaKind = "image"
	}

	result, err := db.Exec(`
		INSERT INTO content_items (account_id, title, share_path, media_key, media_kind, max_reactions_allowed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		accountID,
		fmt.Sprintf("item %d", n),
		fmt.Sprintf("share%d", n),
		nullable(mediaKey),
		mediaKind,
		intOrNil(maxReactions),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("failed to insert content item: %v", err)
	}

	id, _ := result.LastInsertId()
	return id
}

// InsertReaction inserts a complete reaction with mediaKey and returns its ID.
func InsertReaction(t testing.TB, db *sql.DB, contentID int64, mediaKey string) int64 {
	t.Helper()

	n := fixtureSeq.Add(1)
	var mediaKind any
	if mediaKey != "" {
		mediaKind = "video"
	}

	result, err := db.Exec(`
		INSERT INTO reactions (content_id, client_session_id, media_key, media_kind, state, created_at)
		VALUES (?, ?, ?, ?, 'complete', ?)`,
		contentID,
		fmt.Sprintf("session%d", n),
		nullable(mediaKey),
		mediaKind,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("failed to insert reaction: %v", err)
	}

	id, _ := result.LastInsertId()
	return id
}

// InsertReply inserts a text reply under reactionID and returns its ID.
func InsertReply(t testing.TB, db *sql.DB, reactionID int64, mediaKey string) int64 {
	t.Helper()

	var mediaKind any
	if mediaKey != "" {
		mediaKind = "image"
	}

	result, err := db.Exec(`
		INSERT INTO replies (reaction_id, body, media_key, media_kind, created_at)
		VALUES (?, 'thanks', ?, ?, ?)`,
		reactionID,
		nullable(mediaKey),
		mediaKind,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("failed to insert reply: %v", err)
	}

	id, _ := result.LastInsertId()
	return id
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time {
	return &t
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
