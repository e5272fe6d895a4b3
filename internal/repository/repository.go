// Package repository defines interfaces for data access operations.
// This package provides abstractions for database operations, allowing
// different backend implementations (SQLite, PostgreSQL) to be swapped
// without changing the quota, reaction and deletion services.
//
// Implementations own transaction boundaries. Multi-row deletions run in a
// single transaction and return the media references they orphaned so the
// caller can purge them from the media store after commit.
package repository

import (
	"errors"
	"time"
)

// Common errors returned by repository operations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateKey is returned when an insert violates a uniqueness constraint.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNilDatabase is returned when a nil database connection is provided.
	ErrNilDatabase = errors.New("nil database connection")

	// ErrServiceUnavailable is returned when a service is temporarily unavailable.
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)

// DatabaseType identifies the backing relational store.
type DatabaseType string

const (
	DatabaseTypeSQLite     DatabaseType = "sqlite"
	DatabaseTypePostgreSQL DatabaseType = "postgresql"
)

// ContentStats contains row counts used by the metrics collector.
type ContentStats struct {
	Accounts         int64
	ContentItems     int64
	Reactions        int64
	PendingReactions int64
	Replies          int64
}

// PaginationOptions provides common pagination parameters.
type PaginationOptions struct {
	Limit  int
	Offset int
}

// DefaultPagination returns default pagination options (limit 20, offset 0).
func DefaultPagination() PaginationOptions {
	return PaginationOptions{
		Limit:  20,
		Offset: 0,
	}
}

// Normalize clamps the limit to [1, 100] and the offset to >= 0.
func (p PaginationOptions) Normalize() PaginationOptions {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// MonthStart returns the first instant of t's calendar month in UTC.
// Usage counters reset when the last reset happened before this instant.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
