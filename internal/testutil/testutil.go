package testutil

import (
	"bytes"
	"database/sql"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fjmerc/reactshare/internal/config"
	"github.com/fjmerc/reactshare/internal/database"
)

// SetupTestDB creates an in-memory SQLite database with the full schema.
// The database is automatically closed when the test completes.
func SetupTestDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	// IMPORTANT: each pooled connection would get its own :memory: database
	db.SetMaxOpenConns(1)

	if err := database.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// SetupTestConfig loads the default configuration with a temporary upload directory.
func SetupTestConfig(t testing.TB) *config.Config {
	t.Helper()

	t.Setenv("UPLOAD_DIR", t.TempDir())
	t.Setenv("DB_TYPE", config.DBTypeSQLite)
	t.Setenv("STORAGE_BACKEND", config.StorageFilesystem)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	cfg.DBPath = ":memory:"
	cfg.PublicURL = ""
	return cfg
}

// CreateMultipartForm builds a multipart body with an optional media part.
// Returns the body buffer and content type for the request.
func CreateMultipartForm(t testing.TB, media []byte, filename string, formValues map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if media != nil {
		part, err := writer.CreateFormFile("media", filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(media); err != nil {
			t.Fatalf("failed to write media content: %v", err)
		}
	}

	for key, val := range formValues {
		if err := writer.WriteField(key, val); err != nil {
			t.Fatalf("failed to write form field %s: %v", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	return body, writer.FormDataContentType()
}

// AssertStatusCode checks that the HTTP response status code matches expected
func AssertStatusCode(t testing.TB, rr *httptest.ResponseRecorder, wantStatus int) {
	t.Helper()

	if rr.Code != wantStatus {
		t.Errorf("status code = %d, want %d\nBody: %s", rr.Code, wantStatus, rr.Body.String())
	}
}

// CountRows returns SELECT COUNT(*) FROM table WHERE where.
func CountRows(t testing.TB, db *sql.DB, table, where string, args ...any) int {
	t.Helper()

	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}

	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}
