package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	appnumbering "github.com/aglc/backoffice/internal/application/numbering"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func newRedisAllocator(t *testing.T, store *RedisSequenceStore) *appnumbering.Allocator {
	t.Helper()
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	return appnumbering.NewAllocator(store, numbering.DefaultRegistry(),
		appnumbering.WithClock(numbering.NewFixedClock(now)),
		appnumbering.WithHoldTimeout(10*time.Second),
	)
}

func TestRedisSequenceStore_Allocate(t *testing.T) {
	client := newRedisClient(t)
	store := NewRedisSequenceStore(client, "test:", WithRetryBackoff(time.Millisecond))
	alloc := newRedisAllocator(t, store)
	ctx := context.Background()

	first, err := alloc.Allocate(ctx, numbering.RecordTypeCustomer, numbering.Fields{})
	require.NoError(t, err)
	assert.Equal(t, "C202500001", first.Display)

	second, err := alloc.Allocate(ctx, numbering.RecordTypeCustomer, numbering.Fields{})
	require.NoError(t, err)
	assert.Equal(t, "C202500002", second.Display)

	raw, err := client.HGet(ctx, "test:C:2025", fieldLastValue).Result()
	require.NoError(t, err)
	assert.Equal(t, "2", raw)

	counter, err := store.GetCounter(ctx, numbering.PartitionKey{Prefix: "C", Period: "2025"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), counter.LastValue)
}

func TestRedisSequenceStore_ConcurrentAllocationsAreGapless(t *testing.T) {
	client := newRedisClient(t)
	store := NewRedisSequenceStore(client, "test:", WithRetryBackoff(time.Millisecond))
	alloc := newRedisAllocator(t, store)

	const workers, each = 6, 10
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				n, err := alloc.Allocate(context.Background(), numbering.RecordTypeBooking, numbering.Fields{})
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[n.Display] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*each)
	for i := 1; i <= workers*each; i++ {
		assert.True(t, seen[fmt.Sprintf("AGLC2025%05d", i)], "missing counter %d", i)
	}
}

func TestRedisSequenceStore_FailedCallbackWritesNothing(t *testing.T) {
	client := newRedisClient(t)
	store := NewRedisSequenceStore(client, "test:")
	key := numbering.PartitionKey{Prefix: "CR", Period: "2025"}
	ctx := context.Background()

	err := store.Execute(ctx, func(ctx context.Context, repos appnumbering.TransactionalRepositories) error {
		s := repos.SequenceStore()
		_, _, err := s.GetForUpdate(ctx, key)
		require.NoError(t, err)
		require.NoError(t, s.Set(ctx, key, 9))
		return shared.ErrInvalidInput
	})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = store.GetCounter(ctx, key)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRedisSequenceStore_SetRequiresHold(t *testing.T) {
	client := newRedisClient(t)
	store := NewRedisSequenceStore(client, "test:")

	err := store.Execute(context.Background(), func(ctx context.Context, repos appnumbering.TransactionalRepositories) error {
		return repos.SequenceStore().Set(ctx, numbering.PartitionKey{Prefix: "C", Period: "2025"}, 1)
	})
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestRedisSequenceStore_ConflictUntilDeadline(t *testing.T) {
	client := newRedisClient(t)
	store := NewRedisSequenceStore(client, "test:", WithRetryBackoff(5*time.Millisecond))
	key := numbering.PartitionKey{Prefix: "MCR", Period: "2025"}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	bump := 0
	err := store.Execute(ctx, func(ctx context.Context, repos appnumbering.TransactionalRepositories) error {
		s := repos.SequenceStore()
		v, _, err := s.GetForUpdate(ctx, key)
		if err != nil {
			return err
		}
		// a competing writer lands between the read and EXEC on every attempt
		bump++
		if err := client.HSet(context.Background(), store.redisKey(key), fieldLastValue, bump*100).Err(); err != nil {
			return err
		}
		return s.Set(ctx, key, v+1)
	})
	assert.ErrorIs(t, err, numbering.ErrAllocationFailed)
	assert.Greater(t, bump, 1)
}

func TestRedisSequenceStore_ListCounters(t *testing.T) {
	client := newRedisClient(t)
	store := NewRedisSequenceStore(client, "test:")
	alloc := newRedisAllocator(t, store)
	ctx := context.Background()

	_, err := alloc.Allocate(ctx, numbering.RecordTypePaymentRequest, numbering.Fields{RequestType: "Check"})
	require.NoError(t, err)
	_, err = alloc.Allocate(ctx, numbering.RecordTypeCustomer, numbering.Fields{})
	require.NoError(t, err)

	all, err := store.ListCounters(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "C", all[0].Key.Prefix)
	assert.Equal(t, "CR", all[1].Key.Prefix)

	onlyCR, err := store.ListCounters(ctx, "CR")
	require.NoError(t, err)
	require.Len(t, onlyCR, 1)
	assert.Equal(t, uint64(1), onlyCR[0].LastValue)
}

func TestRedisSequenceStore_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	defer client.Close()
	store := NewRedisSequenceStore(client, "test:")

	err := store.Execute(context.Background(), func(ctx context.Context, repos appnumbering.TransactionalRepositories) error {
		_, _, err := repos.SequenceStore().GetForUpdate(ctx, numbering.PartitionKey{Prefix: "C", Period: "2025"})
		return err
	})
	assert.ErrorIs(t, err, numbering.ErrStoreUnavailable)
}
