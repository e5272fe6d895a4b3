package repository

// Repositories holds all repository implementations for one backing store.
type Repositories struct {
	Accounts  AccountRepository
	Content   ContentRepository
	Reactions ReactionRepository
	Deletion  DeletionRepository
	Locks     LockRepository
	Health    HealthRepository

	DatabaseType DatabaseType

	// Cleanup releases the underlying connection pool.
	Cleanup func()
}
