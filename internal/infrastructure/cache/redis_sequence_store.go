package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	appnumbering "github.com/aglc/backoffice/internal/application/numbering"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/aglc/backoffice/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	fieldLastValue = "last_value"
	fieldUpdatedAt = "updated_at"
	maxRetryDelay  = 500 * time.Millisecond
)

// RedisSequenceStore keeps sequence counters in Redis hashes keyed
// <keyPrefix><prefix>:<period>. Transactions are optimistic: every key read
// through GetForUpdate is WATCHed and the staged writes are applied with
// MULTI/EXEC. When another writer changes a watched key first, EXEC aborts
// and the whole callback runs again with fresh reads, backing off
// exponentially until the context deadline.
type RedisSequenceStore struct {
	client    *redis.Client
	keyPrefix string
	backoff   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// RedisSequenceStoreOption configures a RedisSequenceStore.
type RedisSequenceStoreOption func(*RedisSequenceStore)

// WithRetryBackoff sets the initial delay between conflicting attempts.
func WithRetryBackoff(d time.Duration) RedisSequenceStoreOption {
	return func(s *RedisSequenceStore) {
		if d > 0 {
			s.backoff = d
		}
	}
}

// WithStoreLogger sets the logger used to report CAS conflicts.
func WithStoreLogger(l *zap.Logger) RedisSequenceStoreOption {
	return func(s *RedisSequenceStore) {
		s.logger = l
	}
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisSequenceStore creates a store on client.
func NewRedisSequenceStore(client *redis.Client, keyPrefix string, opts ...RedisSequenceStoreOption) *RedisSequenceStore {
	if keyPrefix == "" {
		keyPrefix = "seq:"
	}
	s := &RedisSequenceStore{
		client:    client,
		keyPrefix: keyPrefix,
		backoff:   10 * time.Millisecond,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute implements appnumbering.TransactionScope. fn may run more than once.
func (s *RedisSequenceStore) Execute(ctx context.Context, fn func(ctx context.Context, repos appnumbering.TransactionalRepositories) error) error {
	delay := s.backoff
	for attempt := 1; ; attempt++ {
		err := s.attempt(ctx, fn)
		if !errors.Is(err, redis.TxFailedErr) {
			return s.translate(err)
		}

		s.logger.Debug("sequence CAS conflict, retrying", zap.Int("attempt", attempt), zap.Duration("delay", delay))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: gave up after %d conflicting attempts: %w", numbering.ErrAllocationFailed, attempt, ctx.Err())
		case <-timer.C:
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

func (s *RedisSequenceStore) attempt(ctx context.Context, fn func(ctx context.Context, repos appnumbering.TransactionalRepositories) error) error {
	tx := &redisTransaction{
		store:  s,
		held:   make(map[numbering.PartitionKey]struct{}),
		staged: make(map[numbering.PartitionKey]uint64),
	}
	defer tx.finish()

	return s.client.Watch(ctx, func(rtx *redis.Tx) error {
		tx.rtx = rtx
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if len(tx.staged) == 0 {
			return nil
		}
		now := strconv.FormatInt(s.now().UTC().Unix(), 10)
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for key, value := range tx.staged {
				pipe.HSet(ctx, s.redisKey(key), fieldLastValue, value, fieldUpdatedAt, now)
				pipe.SAdd(ctx, s.indexKey(), key.Prefix+":"+key.Period)
			}
			return nil
		})
		return err
	})
}

func (s *RedisSequenceStore) translate(err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", numbering.ErrAllocationFailed, err)
	}
	return fmt.Errorf("%w: %w", numbering.ErrStoreUnavailable, err)
}

func (s *RedisSequenceStore) redisKey(key numbering.PartitionKey) string {
	return s.keyPrefix + key.Prefix + ":" + key.Period
}

func (s *RedisSequenceStore) indexKey() string {
	return s.keyPrefix + "partitions"
}

// ListCounters implements numbering.CounterReader.
func (s *RedisSequenceStore) ListCounters(ctx context.Context, prefix string) ([]numbering.SequenceCounter, error) {
	members, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, s.translate(err)
	}
	sort.Strings(members)

	counters := make([]numbering.SequenceCounter, 0, len(members))
	for _, member := range members {
		p, period, ok := strings.Cut(member, ":")
		if !ok || (prefix != "" && p != prefix) {
			continue
		}
		c, err := s.GetCounter(ctx, numbering.PartitionKey{Prefix: p, Period: period})
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		counters = append(counters, *c)
	}
	return counters, nil
}

// GetCounter implements numbering.CounterReader.
func (s *RedisSequenceStore) GetCounter(ctx context.Context, key numbering.PartitionKey) (*numbering.SequenceCounter, error) {
	fields, err := s.client.HGetAll(ctx, s.redisKey(key)).Result()
	if err != nil {
		return nil, s.translate(err)
	}
	raw, ok := fields[fieldLastValue]
	if !ok {
		return nil, shared.ErrNotFound
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: counter %s holds %q", numbering.ErrStoreUnavailable, key, raw)
	}
	counter := &numbering.SequenceCounter{Key: key, LastValue: value}
	if ts, err := strconv.ParseInt(fields[fieldUpdatedAt], 10, 64); err == nil {
		counter.UpdatedAt = time.Unix(ts, 0).UTC()
	}
	return counter, nil
}

// redisTransaction is one optimistic attempt.
type redisTransaction struct {
	store  *RedisSequenceStore
	rtx    *redis.Tx
	held   map[numbering.PartitionKey]struct{}
	staged map[numbering.PartitionKey]uint64
	done   bool
}

func (t *redisTransaction) SequenceStore() numbering.SequenceStore {
	return t
}

// GetForUpdate watches key and reads its counter.
func (t *redisTransaction) GetForUpdate(ctx context.Context, key numbering.PartitionKey) (uint64, bool, error) {
	if t.done {
		return 0, false, fmt.Errorf("%w: transaction already finished", shared.ErrInvalidState)
	}
	if err := key.Validate(); err != nil {
		return 0, false, err
	}
	if v, ok := t.staged[key]; ok {
		return v, true, nil
	}

	rkey := t.store.redisKey(key)
	if err := t.rtx.Watch(ctx, rkey).Err(); err != nil {
		return 0, false, err
	}
	raw, err := t.rtx.HGet(ctx, rkey, fieldLastValue).Result()
	if errors.Is(err, redis.Nil) {
		t.held[key] = struct{}{}
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: counter %s holds %q", numbering.ErrStoreUnavailable, key, raw)
	}
	t.held[key] = struct{}{}
	return value, true, nil
}

// Set stages value for a watched key; it is written at EXEC.
func (t *redisTransaction) Set(_ context.Context, key numbering.PartitionKey, value uint64) error {
	if t.done {
		return fmt.Errorf("%w: transaction already finished", shared.ErrInvalidState)
	}
	if _, ok := t.held[key]; !ok {
		return fmt.Errorf("%w: %s is not held by this transaction", shared.ErrInvalidState, key)
	}
	t.staged[key] = value
	return nil
}

func (t *redisTransaction) finish() {
	t.done = true
}

var (
	_ appnumbering.TransactionScope = (*RedisSequenceStore)(nil)
	_ numbering.CounterReader       = (*RedisSequenceStore)(nil)
	_ numbering.SequenceStore       = (*redisTransaction)(nil)
)
