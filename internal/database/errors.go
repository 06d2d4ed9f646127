package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when the requested row does not exist
	ErrNotFound = errors.New("record not found")

	// ErrStaleStatus is returned when a booking's status moved between read and write
	ErrStaleStatus = errors.New("booking status changed concurrently")
)

// Postgres error codes that mean "another transaction won, try again"
var conflictCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// IsConflict reports whether err is a concurrency conflict from either driver
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStaleStatus) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return conflictCodes[pgErr.Code]
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return conflictCodes[string(pqErr.Code)]
	}

	return false
}
