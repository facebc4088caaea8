package storage

import (
	"context"
	"database/sql"
	"errors"

	"feeledger/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrVersionConflict is returned when a row changed between read and update.
var ErrVersionConflict = errors.New("row was modified concurrently")

// storeErr wraps a driver error. Lock contention and deadlines are marked
// retryable; the caller may run the whole unit of work again.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *core.StoreError
	if errors.As(err, &se) {
		return err
	}
	return core.NewStoreError(op, err, isRetryable(err))
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrVersionConflict) {
		return true
	}
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

// notFoundOr maps sql.ErrNoRows to a NotFoundError and anything else to a StoreError.
func notFoundOr(op, entity, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFound(entity, id)
	}
	return storeErr(op, err)
}

func conflict(op string) error {
	return core.NewStoreError(op, ErrVersionConflict, true)
}
