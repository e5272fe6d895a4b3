package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/repository"
)

const usageColumns = `id, content_count_this_month, reactions_received_this_month,
	max_content_per_month, max_reactions_received_per_month, max_reactions_per_item,
	last_usage_reset_at`

// AccountRepository implements repository.AccountRepository for SQLite.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new SQLite account repository.
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.Username == "" || account.Email == "" {
		return fmt.Errorf("%w: username and email are required", repository.ErrInvalidInput)
	}
	if account.Role == "" {
		account.Role = models.RoleUser
	}
	if !account.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", repository.ErrInvalidInput, account.Role)
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO accounts (username, email, role, is_blocked, picture_key, picture_kind,
			max_content_per_month, max_reactions_received_per_month, max_reactions_per_item,
			created_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		account.Username,
		account.Email,
		string(account.Role),
		boolToInt(account.IsBlocked),
		nullString(account.Picture.KeyOrEmpty()),
		nullString(account.Picture.KindOrEmpty()),
		nullInt(account.Usage.MaxContentPerMonth),
		nullInt(account.Usage.MaxReactionsReceivedPerMonth),
		nullInt(account.Usage.MaxReactionsPerItem),
		formatTime(account.CreatedAt),
		nullTime(account.LastLogin),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get account ID: %w", err)
	}
	account.ID = id
	account.Usage.AccountID = id
	return nil
}

// GetByID retrieves an account with its usage block.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `
		SELECT username, email, role, is_blocked, picture_key, picture_kind, created_at, last_login,
			` + usageColumns + `
		FROM accounts WHERE id = ?
	`

	var account models.Account
	var role, createdAt string
	var isBlocked int
	var pictureKey, pictureKind, lastLogin sql.NullString
	usage, err := scanUsage(r.db.QueryRowContext(ctx, query, id),
		&account.Username, &account.Email, &role, &isBlocked, &pictureKey, &pictureKind, &createdAt, &lastLogin)
	if err != nil {
		return nil, err
	}

	account.ID = id
	account.Role = models.Role(role)
	account.IsBlocked = isBlocked != 0
	account.Picture = models.NewMediaReference(pictureKey.String, pictureKind.String)
	account.Usage = *usage

	account.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	account.LastLogin, err = parseNullTime(lastLogin)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_login: %w", err)
	}

	return &account, nil
}

// GetUsage retrieves the usage block of an account.
func (r *AccountRepository) GetUsage(ctx context.Context, id int64) (*models.Usage, error) {
	query := `SELECT ` + usageColumns + ` FROM accounts WHERE id = ?`
	return scanUsage(r.db.QueryRowContext(ctx, query, id))
}

// ResetUsageIfStale zeroes the monthly counters when the last reset predates now's month.
func (r *AccountRepository) ResetUsageIfStale(ctx context.Context, id int64, now time.Time) (*models.Usage, bool, error) {
	query := `
		UPDATE accounts
		SET content_count_this_month = 0,
			reactions_received_this_month = 0,
			last_usage_reset_at = ?
		WHERE id = ?
		AND (last_usage_reset_at IS NULL OR datetime(last_usage_reset_at) < datetime(?))
		RETURNING ` + usageColumns

	usage, err := scanUsage(r.db.QueryRowContext(ctx, query,
		formatTime(now),
		id,
		formatTime(repository.MonthStart(now)),
	))
	if err == nil {
		return usage, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to reset usage: %w", err)
	}

	// No row matched: either the account is current or it does not exist
	usage, err = r.GetUsage(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return usage, false, nil
}

// IncrementContentCount adds one to the monthly content counter.
func (r *AccountRepository) IncrementContentCount(ctx context.Context, id int64) error {
	query := `UPDATE accounts SET content_count_this_month = content_count_this_month + 1 WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment content count: %w", err)
	}
	return rowsAffectedOrNotFound(result)
}

// IncrementReactionsReceived adds one to the monthly received reactions counter.
func (r *AccountRepository) IncrementReactionsReceived(ctx context.Context, id int64) error {
	query := `UPDATE accounts SET reactions_received_this_month = reactions_received_this_month + 1 WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment reactions received: %w", err)
	}
	return rowsAffectedOrNotFound(result)
}

// UpdateLimits replaces the account's limits.
func (r *AccountRepository) UpdateLimits(ctx context.Context, id int64, limits models.Limits) error {
	query := `
		UPDATE accounts
		SET max_content_per_month = ?, max_reactions_received_per_month = ?, max_reactions_per_item = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		nullInt(limits.MaxContentPerMonth),
		nullInt(limits.MaxReactionsReceivedPerMonth),
		nullInt(limits.MaxReactionsPerItem),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update limits: %w", err)
	}
	return rowsAffectedOrNotFound(result)
}

// UpdateLastLogin records a successful authentication time.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE accounts SET last_login = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return rowsAffectedOrNotFound(result)
}

// SetBlocked sets the blocked flag.
func (r *AccountRepository) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE accounts SET is_blocked = ? WHERE id = ?`, boolToInt(blocked), id)
	if err != nil {
		return fmt.Errorf("failed to set blocked flag: %w", err)
	}
	return rowsAffectedOrNotFound(result)
}

// SetPicture replaces the profile picture and returns the previous reference.
func (r *AccountRepository) SetPicture(ctx context.Context, id int64, ref *models.MediaReference) (*models.MediaReference, error) {
	tx, err := beginImmediateTx(ctx, r.db)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	var oldKey, oldKind sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT picture_key, picture_kind FROM accounts WHERE id = ?`, id).Scan(&oldKey, &oldKind)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get picture: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE accounts SET picture_key = ?, picture_kind = ? WHERE id = ?`,
		nullString(ref.KeyOrEmpty()), nullString(ref.KindOrEmpty()), id)
	if err != nil {
		return nil, fmt.Errorf("failed to set picture: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return models.NewMediaReference(oldKey.String, oldKind.String), nil
}

// ListInactive returns non-admin accounts not seen since cutoff.
func (r *AccountRepository) ListInactive(ctx context.Context, cutoff time.Time) ([]int64, error) {
	query := `
		SELECT id FROM accounts
		WHERE role != 'admin'
		AND datetime(COALESCE(last_login, created_at)) < datetime(?)
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to query inactive accounts: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inactive accounts: %w", err)
	}
	return ids, nil
}

// scanUsage scans the usageColumns of row after the given leading destinations.
func scanUsage(row rowScanner, leading ...any) (*models.Usage, error) {
	var usage models.Usage
	var maxContent, maxReceived, maxPerItem sql.NullInt64
	var lastReset sql.NullString

	dest := append(leading,
		&usage.AccountID,
		&usage.ContentCountThisMonth,
		&usage.ReactionsReceivedThisMonth,
		&maxContent,
		&maxReceived,
		&maxPerItem,
		&lastReset,
	)
	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan usage: %w", err)
	}

	usage.MaxContentPerMonth = intFromNull(maxContent)
	usage.MaxReactionsReceivedPerMonth = intFromNull(maxReceived)
	usage.MaxReactionsPerItem = intFromNull(maxPerItem)

	t, err := parseNullTime(lastReset)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_usage_reset_at: %w", err)
	}
	usage.LastUsageResetAt = t
	return &usage, nil
}

var _ repository.AccountRepository = (*AccountRepository)(nil)
