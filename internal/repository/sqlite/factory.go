package sqlite

import (
	"database/sql"

	"github.com/fjmerc/reactshare/internal/repository"
)

// NewRepositories creates all SQLite repository implementations over db.
// The db must be open with migrations applied (see database.Initialize).
// Cleanup closes the database connection.
func NewRepositories(db *sql.DB) (*repository.Repositories, error) {
	if db == nil {
		return nil, repository.ErrNilDatabase
	}

	return &repository.Repositories{
		Accounts:     NewAccountRepository(db),
		Content:      NewContentRepository(db),
		Reactions:    NewReactionRepository(db),
		Deletion:     NewDeletionRepository(db),
		Locks:        NewLockRepository(db),
		Health:       NewHealthRepository(db),
		DatabaseType: repository.DatabaseTypeSQLite,
		Cleanup: func() {
			db.Close()
		},
	}, nil
}
