// Package database opens the SQLite store and applies its schema migrations.
package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// Initialize opens the SQLite database at dbPath, applies pragmas and runs migrations.
// Transactions are started as BEGIN IMMEDIATE so writers serialize on the database lock.
func Initialize(dbPath string) (*sql.DB, error) {
	dsn := dbPath + "?_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Foreign keys enforce reply → reaction → item → account deletion order
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	// A single writer connection keeps pragmas consistent across the pool
	db.SetMaxOpenConns(1)

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("database initialized", "path", dbPath)
	return db, nil
}
