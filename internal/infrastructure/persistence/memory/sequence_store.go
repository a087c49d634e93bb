// Package memory provides an in-process sequence store. It honours the same
// hold and commit semantics as the database stores and backs unit tests and
// the "memory" development driver. State does not survive a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	appnumbering "github.com/aglc/backoffice/internal/application/numbering"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/shared"
)

type counter struct {
	value     uint64
	persisted bool
	updatedAt time.Time
	hold      chan struct{}
}

// SequenceStore keeps counters in memory. Each partition has a one-slot hold
// channel; a transaction owns the partition while its token sits in the slot.
type SequenceStore struct {
	mu       sync.Mutex
	counters map[numbering.PartitionKey]*counter
}

// NewSequenceStore creates an empty store.
func NewSequenceStore() *SequenceStore {
	return &SequenceStore{counters: make(map[numbering.PartitionKey]*counter)}
}

func (s *SequenceStore) entry(key numbering.PartitionKey) *counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[key]
	if !ok {
		c = &counter{hold: make(chan struct{}, 1)}
		s.counters[key] = c
	}
	return c
}

// Execute implements appnumbering.TransactionScope. Staged writes are applied
// only when fn succeeds and ctx is still live, mirroring a database that
// aborts the transaction of a cancelled context.
func (s *SequenceStore) Execute(ctx context.Context, fn func(ctx context.Context, repos appnumbering.TransactionalRepositories) error) error {
	tx := &transaction{
		store:  s,
		held:   make(map[numbering.PartitionKey]*counter),
		staged: make(map[numbering.PartitionKey]uint64),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: transaction aborted before commit: %w", numbering.ErrAllocationFailed, err)
	}
	tx.commit()
	return nil
}

// ListCounters implements numbering.CounterReader.
func (s *SequenceStore) ListCounters(_ context.Context, prefix string) ([]numbering.SequenceCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]numbering.SequenceCounter, 0, len(s.counters))
	for key, c := range s.counters {
		if !c.persisted || (prefix != "" && key.Prefix != prefix) {
			continue
		}
		out = append(out, numbering.SequenceCounter{Key: key, LastValue: c.value, UpdatedAt: c.updatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Prefix != out[j].Key.Prefix {
			return strings.Compare(out[i].Key.Prefix, out[j].Key.Prefix) < 0
		}
		return out[i].Key.Period < out[j].Key.Period
	})
	return out, nil
}

// GetCounter implements numbering.CounterReader.
func (s *SequenceStore) GetCounter(_ context.Context, key numbering.PartitionKey) (*numbering.SequenceCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || !c.persisted {
		return nil, shared.ErrNotFound
	}
	return &numbering.SequenceCounter{Key: key, LastValue: c.value, UpdatedAt: c.updatedAt}, nil
}

type transaction struct {
	store  *SequenceStore
	held   map[numbering.PartitionKey]*counter
	staged map[numbering.PartitionKey]uint64
	done   bool
}

func (tx *transaction) SequenceStore() numbering.SequenceStore {
	return tx
}

func (tx *transaction) GetForUpdate(ctx context.Context, key numbering.PartitionKey) (uint64, bool, error) {
	if tx.done {
		return 0, false, fmt.Errorf("%w: transaction already finished", shared.ErrInvalidState)
	}
	c, ok := tx.held[key]
	if !ok {
		c = tx.store.entry(key)
		select {
		case c.hold <- struct{}{}:
		case <-ctx.Done():
			return 0, false, fmt.Errorf("%w: waiting for %s: %w", numbering.ErrAllocationFailed, key, ctx.Err())
		}
		tx.held[key] = c
	}

	if v, ok := tx.staged[key]; ok {
		return v, true, nil
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	return c.value, c.persisted, nil
}

func (tx *transaction) Set(_ context.Context, key numbering.PartitionKey, value uint64) error {
	if tx.done {
		return fmt.Errorf("%w: transaction already finished", shared.ErrInvalidState)
	}
	if _, ok := tx.held[key]; !ok {
		return fmt.Errorf("%w: %s is not held by this transaction", shared.ErrInvalidState, key)
	}
	tx.staged[key] = value
	return nil
}

func (tx *transaction) commit() {
	now := time.Now()
	tx.store.mu.Lock()
	for key, v := range tx.staged {
		c := tx.held[key]
		c.value = v
		c.persisted = true
		c.updatedAt = now
	}
	tx.store.mu.Unlock()
}

func (tx *transaction) release() {
	tx.done = true
	for key, c := range tx.held {
		<-c.hold
		delete(tx.held, key)
	}
}

var (
	_ appnumbering.TransactionScope          = (*SequenceStore)(nil)
	_ appnumbering.TransactionalRepositories = (*transaction)(nil)
	_ numbering.SequenceStore                = (*transaction)(nil)
	_ numbering.CounterReader                = (*SequenceStore)(nil)
)
