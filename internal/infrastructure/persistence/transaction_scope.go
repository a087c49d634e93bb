package persistence

import (
	"context"
	"fmt"
	"time"

	appnumbering "github.com/aglc/backoffice/internal/application/numbering"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"gorm.io/gorm"
)

// runInTransaction opens a transaction, bounds lock waits by the context
// deadline, and hands fn a sequence store bound to it. The store is unusable
// once the transaction resolves. A failed commit after fn succeeded is an
// allocation failure: nothing it staged became visible.
func runInTransaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB, store *gormSequenceStore) error) error {
	if _, ok := ctx.Deadline(); ok && db.Dialector.Name() == "sqlite" {
		// BEGIN IMMEDIATE waits in SQLite's busy handler, which never looks at
		// the context; pin a connection and shorten its busy timeout instead.
		return db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
			restore, err := boundBusyTimeout(ctx, conn)
			if err != nil {
				return err
			}
			defer restore()
			return runTransaction(ctx, conn, fn)
		})
	}
	return runTransaction(ctx, db.WithContext(ctx), fn)
}

func runTransaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB, store *gormSequenceStore) error) error {
	var store *gormSequenceStore
	var staged bool
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := setLockTimeout(ctx, tx); err != nil {
			return err
		}
		store = newGormSequenceStore(tx)
		if err := fn(tx, store); err != nil {
			return err
		}
		staged = true
		return nil
	})
	if store != nil {
		store.finish()
	}
	if err != nil && staged {
		return fmt.Errorf("%w: commit failed: %w", numbering.ErrAllocationFailed, err)
	}
	return err
}

// boundBusyTimeout caps the SQLite busy wait of conn at the time left before
// the context deadline. The returned func puts the connection's previous
// value back before it returns to the pool.
func boundBusyTimeout(ctx context.Context, conn *gorm.DB) (func(), error) {
	pragma := conn.Session(&gorm.Session{NewDB: true})
	var previous int64
	if err := pragma.Raw("PRAGMA busy_timeout").Scan(&previous).Error; err != nil {
		return nil, translateError(err)
	}
	deadline, _ := ctx.Deadline()
	ms := time.Until(deadline).Milliseconds()
	if ms < 1 {
		ms = 1
	}
	if previous > 0 && previous < ms {
		ms = previous
	}
	if err := pragma.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms)).Error; err != nil {
		return nil, translateError(err)
	}
	return func() {
		_ = pragma.WithContext(context.WithoutCancel(ctx)).
			Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", previous)).Error
	}, nil
}

// setLockTimeout makes Postgres give up on row locks at the context deadline
// instead of waiting indefinitely. set_config(..., true) is SET LOCAL with a
// bind parameter, so prepared statements are reused across calls.
func setLockTimeout(ctx context.Context, tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	ms := time.Until(deadline).Milliseconds()
	if ms < 1 {
		ms = 1
	}
	if err := tx.Exec("SELECT set_config('lock_timeout', ?, true)", fmt.Sprintf("%dms", ms)).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// GormSequenceScope implements the allocator's TransactionScope on a
// relational database.
type GormSequenceScope struct {
	db *gorm.DB
}

// NewGormSequenceScope creates a new GormSequenceScope.
func NewGormSequenceScope(db *gorm.DB) *GormSequenceScope {
	return &GormSequenceScope{db: db}
}

// Execute runs fn within a database transaction. If fn returns an error the
// transaction is rolled back; otherwise it is committed. Driver errors,
// including a failed commit, are translated to allocation errors.
func (s *GormSequenceScope) Execute(ctx context.Context, fn func(ctx context.Context, repos appnumbering.TransactionalRepositories) error) error {
	err := runInTransaction(ctx, s.db, func(_ *gorm.DB, store *gormSequenceStore) error {
		return fn(ctx, sequenceRepos{store: store})
	})
	return translateError(err)
}

type sequenceRepos struct {
	store numbering.SequenceStore
}

// SequenceStore returns the counter store scoped to the current transaction.
func (r sequenceRepos) SequenceStore() numbering.SequenceStore {
	return r.store
}

// Ensure GormSequenceScope implements TransactionScope
var _ appnumbering.TransactionScope = (*GormSequenceScope)(nil)
