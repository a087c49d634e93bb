package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Postgres error codes that mean the hold could not be taken in time.
var lockContentionCodes = map[string]struct{}{
	"55P03": {}, // lock_not_available (lock_timeout)
	"57014": {}, // query_canceled (statement_timeout or cancellation)
	"40P01": {}, // deadlock_detected
	"40001": {}, // serialization_failure
}

const pgUniqueViolation = "23505"

// IsLockContention reports whether err means a sequence hold was not
// acquired before the deadline.
func IsLockContention(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := lockContentionCodes[pgErr.Code]
		return ok
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// translateError maps a driver error raised while touching sequence counters
// onto the allocation error set. Domain errors pass through untouched.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	if IsLockContention(err) {
		return fmt.Errorf("%w: %w", numbering.ErrAllocationFailed, err)
	}
	return fmt.Errorf("%w: %w", numbering.ErrStoreUnavailable, err)
}

// translateRecordError maps a record write failure; unique violations on the
// number columns become ErrAlreadyExists.
func translateRecordError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", shared.ErrAlreadyExists, pgErr.ConstraintName)
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %s", shared.ErrAlreadyExists, liteErr.Error())
	}
	return translateError(err)
}
