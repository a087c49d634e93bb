package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	appnumbering "github.com/aglc/backoffice/internal/application/numbering"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyC2025 = numbering.PartitionKey{Prefix: "C", Period: "2025"}

func advance(ctx context.Context, s *SequenceStore, key numbering.PartitionKey) (uint64, error) {
	var next uint64
	err := s.Execute(ctx, func(ctx context.Context, repos appnumbering.TransactionalRepositories) error {
		last, _, err := repos.SequenceStore().GetForUpdate(ctx, key)
		if err != nil {
			return err
		}
		next = last + 1
		return repos.SequenceStore().Set(ctx, key, next)
	})
	return next, err
}

func TestSequenceStore_CommitAndRollback(t *testing.T) {
	s := NewSequenceStore()
	ctx := context.Background()

	n, err := advance(ctx, s, keyC2025)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	boom := errors.New("record write failed")
	err = s.Execute(ctx, func(ctx context.Context, repos appnumbering.TransactionalRepositories) error {
		store := repos.SequenceStore()
		last, existed, err := store.GetForUpdate(ctx, keyC2025)
		require.NoError(t, err)
		assert.True(t, existed)
		require.NoError(t, store.Set(ctx, keyC2025, last+1))

		// staged value is visible inside the transaction only
		again, _, err := store.GetForUpdate(ctx, keyC2025)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), again)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := s.GetCounter(ctx, keyC2025)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stored.LastValue)
}

func TestSequenceStore_HoldBlocksSecondTransaction(t *testing.T) {
	s := NewSequenceStore()
	ctx := context.Background()

	held := make(chan struct{})
	releaseFirst := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Execute(ctx, func(ctx context.Context, repos appnumbering.TransactionalRepositories) error {
			if _, _, err := repos.SequenceStore().GetForUpdate(ctx, keyC2025); err != nil {
				return err
			}
			close(held)
			<-releaseFirst
			return repos.SequenceStore().Set(ctx, keyC2025, 10)
		})
	}()
	<-held

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err := advance(waitCtx, s, keyC2025)
	assert.ErrorIs(t, err, numbering.ErrAllocationFailed)

	// another partition is not blocked
	n, err := advance(ctx, s, numbering.PartitionKey{Prefix: "C", Period: "2026"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	close(releaseFirst)
	require.NoError(t, <-done)

	n, err = advance(ctx, s, keyC2025)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), n)
}

func TestSequenceStore_CancelledBeforeCommit(t *testing.T) {
	s := NewSequenceStore()
	ctx, cancel := context.WithCancel(context.Background())

	err := s.Execute(ctx, func(ctx context.Context, repos appnumbering.TransactionalRepositories) error {
		if _, _, err := repos.SequenceStore().GetForUpdate(ctx, keyC2025); err != nil {
			return err
		}
		if err := repos.SequenceStore().Set(ctx, keyC2025, 1); err != nil {
			return err
		}
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, numbering.ErrAllocationFailed)

	_, err = s.GetCounter(context.Background(), keyC2025)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSequenceStore_MisuseIsInvalidState(t *testing.T) {
	s := NewSequenceStore()
	ctx := context.Background()

	var leaked numbering.SequenceStore
	err := s.Execute(ctx, func(ctx context.Context, repos appnumbering.TransactionalRepositories) error {
		leaked = repos.SequenceStore()
		return leaked.Set(ctx, keyC2025, 5)
	})
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	_, _, err = leaked.GetForUpdate(ctx, keyC2025)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestSequenceStore_ListCounters(t *testing.T) {
	s := NewSequenceStore()
	ctx := context.Background()

	for _, key := range []numbering.PartitionKey{
		{Prefix: "C", Period: "2025"},
		{Prefix: "AGLC", Period: "2025"},
		{Prefix: "C", Period: "2024"},
		{Prefix: "CR", Period: "2025"},
	} {
		_, err := advance(ctx, s, key)
		require.NoError(t, err)
	}

	all, err := s.ListCounters(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "AGLC", all[0].Key.Prefix)
	assert.Equal(t, numbering.PartitionKey{Prefix: "C", Period: "2024"}, all[1].Key)

	only, err := s.ListCounters(ctx, "C")
	require.NoError(t, err)
	require.Len(t, only, 2)
	for _, c := range only {
		assert.Equal(t, "C", c.Key.Prefix)
	}
}
