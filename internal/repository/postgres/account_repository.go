package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fjmerc/reactshare/internal/models"
	"github.com/fjmerc/reactshare/internal/repository"
)

const usageColumns = `id, content_count_this_month, reactions_received_this_month,
	max_content_per_month, max_reactions_received_per_month, max_reactions_per_item,
	last_usage_reset_at`

// AccountRepository implements repository.AccountRepository for PostgreSQL.
type AccountRepository struct {
	pool *Pool
}

// NewAccountRepository creates a new PostgreSQL account repository.
func NewAccountRepository(pool *Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
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

	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (username, email, role, is_blocked, picture_key, picture_kind,
			max_content_per_month, max_reactions_received_per_month, max_reactions_per_item,
			created_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		account.Username,
		account.Email,
		string(account.Role),
		account.IsBlocked,
		nullString(account.Picture.KeyOrEmpty()),
		nullString(account.Picture.KindOrEmpty()),
		nullInt(account.Usage.MaxContentPerMonth),
		nullInt(account.Usage.MaxReactionsReceivedPerMonth),
		nullInt(account.Usage.MaxReactionsPerItem),
		account.CreatedAt,
		nullTime(account.LastLogin),
	).Scan(&account.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	account.Usage.AccountID = account.ID
	return nil
}

// GetByID retrieves an account with its usage block.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `
		SELECT username, email, role, is_blocked, picture_key, picture_kind, created_at, last_login,
			` + usageColumns + `
		FROM accounts WHERE id = $1
	`

	var account models.Account
	var role string
	var pictureKey, pictureKind sql.NullString
	var lastLogin sql.NullTime
	usage, err := scanUsage(r.pool.QueryRow(ctx, query, id),
		&account.Username, &account.Email, &role, &account.IsBlocked, &pictureKey, &pictureKind, &account.CreatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}

	account.ID = id
	account.Role = models.Role(role)
	account.Picture = models.NewMediaReference(pictureKey.String, pictureKind.String)
	account.CreatedAt = account.CreatedAt.UTC()
	account.LastLogin = scanNullableTime(lastLogin)
	account.Usage = *usage
	return &account, nil
}

// GetUsage retrieves the usage block of an account.
func (r *AccountRepository) GetUsage(ctx context.Context, id int64) (*models.Usage, error) {
	query := `SELECT ` + usageColumns + ` FROM accounts WHERE id = $1`
	return scanUsage(r.pool.QueryRow(ctx, query, id))
}

// ResetUsageIfStale zeroes the monthly counters when the last reset predates now's month.
// The condition and the write are one statement, so concurrent callers reset at most once.
func (r *AccountRepository) ResetUsageIfStale(ctx context.Context, id int64, now time.Time) (*models.Usage, bool, error) {
	query := `
		UPDATE accounts
		SET content_count_this_month = 0,
			reactions_received_this_month = 0,
			last_usage_reset_at = $1
		WHERE id = $2
		AND (last_usage_reset_at IS NULL OR last_usage_reset_at < $3)
		RETURNING ` + usageColumns

	usage, err := scanUsage(r.pool.QueryRow(ctx, query, now.UTC(), id, repository.MonthStart(now)))
	if err == nil {
		return usage, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to reset usage: %w", err)
	}

	usage, err = r.GetUsage(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return usage, false, nil
}

// IncrementContentCount adds one to the monthly content counter.
func (r *AccountRepository) IncrementContentCount(ctx context.Context, id int64) error {
	return r.execOne(ctx, "increment content count",
		`UPDATE accounts SET content_count_this_month = content_count_this_month + 1 WHERE id = $1`, id)
}

// IncrementReactionsReceived adds one to the monthly received reactions counter.
func (r *AccountRepository) IncrementReactionsReceived(ctx context.Context, id int64) error {
	return r.execOne(ctx, "increment reactions received",
		`UPDATE accounts SET reactions_received_this_month = reactions_received_this_month + 1 WHERE id = $1`, id)
}

// UpdateLimits replaces the account's limits.
func (r *AccountRepository) UpdateLimits(ctx context.Context, id int64, limits models.Limits) error {
	return r.execOne(ctx, "update limits", `
		UPDATE accounts
		SET max_content_per_month = $1, max_reactions_received_per_month = $2, max_reactions_per_item = $3
		WHERE id = $4
	`,
		nullInt(limits.MaxContentPerMonth),
		nullInt(limits.MaxReactionsReceivedPerMonth),
		nullInt(limits.MaxReactionsPerItem),
		id,
	)
}

// UpdateLastLogin records a successful authentication time.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.execOne(ctx, "update last login", `UPDATE accounts SET last_login = $1 WHERE id = $2`, at.UTC(), id)
}

// SetBlocked sets the blocked flag.
func (r *AccountRepository) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	return r.execOne(ctx, "set blocked flag", `UPDATE accounts SET is_blocked = $1 WHERE id = $2`, blocked, id)
}

// SetPicture replaces the profile picture and returns the previous reference.
func (r *AccountRepository) SetPicture(ctx context.Context, id int64, ref *models.MediaReference) (*models.MediaReference, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	var oldKey, oldKind sql.NullString
	err = tx.QueryRow(ctx, `SELECT picture_key, picture_kind FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&oldKey, &oldKind)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get picture: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE accounts SET picture_key = $1, picture_kind = $2 WHERE id = $3`,
		nullString(ref.KeyOrEmpty()), nullString(ref.KindOrEmpty()), id)
	if err != nil {
		return nil, fmt.Errorf("failed to set picture: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return models.NewMediaReference(oldKey.String, oldKind.String), nil
}

// ListInactive returns non-admin accounts not seen since cutoff.
func (r *AccountRepository) ListInactive(ctx context.Context, cutoff time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM accounts
		WHERE role <> 'admin'
		AND COALESCE(last_login, created_at) < $1
		ORDER BY id
	`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query inactive accounts: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to collect inactive accounts: %w", err)
	}
	return ids, nil
}

func (r *AccountRepository) execOne(ctx context.Context, op string, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// scanUsage scans the usageColumns of row after the given leading destinations.
func scanUsage(row rowScanner, leading ...any) (*models.Usage, error) {
	var usage models.Usage
	var maxContent, maxReceived, maxPerItem sql.NullInt64
	var lastReset sql.NullTime

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
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan usage: %w", err)
	}

	usage.MaxContentPerMonth = scanNullableInt(maxContent)
	usage.MaxReactionsReceivedPerMonth = scanNullableInt(maxReceived)
	usage.MaxReactionsPerItem = scanNullableInt(maxPerItem)
	usage.LastUsageResetAt = scanNullableTime(lastReset)
	return &usage, nil
}

var _ repository.AccountRepository = (*AccountRepository)(nil)
