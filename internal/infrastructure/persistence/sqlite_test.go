package persistence

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aglc/backoffice/internal/application/backoffice"
	appnumbering "github.com/aglc/backoffice/internal/application/numbering"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/infrastructure/config"
	"github.com/aglc/backoffice/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSQLiteDatabase opens a file-backed SQLite database with the schema
// migrated. Each test gets its own file.
func newSQLiteDatabase(t *testing.T) *Database {
	t.Helper()

	db, err := NewDatabase(&config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		SQLitePath:   filepath.Join(t.TempDir(), "backoffice.db"),
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 8,
		MaxIdleConns: 8,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.DB.AutoMigrate(
		&models.SequenceCounterModel{},
		&models.CustomerModel{},
		&models.BookingModel{},
		&models.PaymentRequestModel{},
	))
	return db
}

func TestSQLite_ConcurrentAllocationsAreUniqueAndGapless(t *testing.T) {
	db := newSQLiteDatabase(t)
	assert.Equal(t, "sqlite", db.Dialect())
	allocator := appnumbering.NewAllocator(NewGormSequenceScope(db.DB), numbering.DefaultRegistry(),
		appnumbering.WithClock(numbering.NewFixedClock(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))),
		appnumbering.WithHoldTimeout(10*time.Second),
	)

	const workers, perWorker = 8, 10
	var (
		mu       sync.Mutex
		counters []uint64
		wg       sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				n, err := allocator.Allocate(context.Background(), numbering.RecordTypeBooking, numbering.Fields{})
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				counters = append(counters, n.Counter)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, counters, workers*perWorker)
	sort.Slice(counters, func(i, j int) bool { return counters[i] < counters[j] })
	for i, c := range counters {
		assert.Equal(t, uint64(i+1), c)
	}

	stored, err := NewGormCounterRepository(db.DB).GetCounter(context.Background(), numbering.PartitionKey{Prefix: "AGLC", Period: "2025"})
	require.NoError(t, err)
	assert.Equal(t, uint64(workers*perWorker), stored.LastValue)
}

func TestSQLite_CoTransactionalRecordRollback(t *testing.T) {
	db := newSQLiteDatabase(t)
	allocator := appnumbering.NewAllocator(NewGormSequenceScope(db.DB), numbering.DefaultRegistry(),
		appnumbering.WithClock(numbering.NewFixedClock(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))),
	)
	svc := backoffice.NewCustomerService(allocator, NewGormRecordScope(db.DB, true))
	ctx := context.Background()

	first, err := svc.Create(ctx, backoffice.CreateCustomerRequest{Name: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "C202500001", first.Code)

	// a duplicate code makes the insert fail, which must roll the counter back too
	require.NoError(t, db.DB.Exec(
		`INSERT INTO customers (id, created_at, updated_at, code, name, is_active) VALUES (?, ?, ?, ?, ?, ?)`,
		"00000000-0000-0000-0000-000000000001", time.Now(), time.Now(), "C202500002", "Squatter", true,
	).Error)

	_, err = svc.Create(ctx, backoffice.CreateCustomerRequest{Name: "Blue Harbor"})
	require.Error(t, err)

	stored, err := NewGormCounterRepository(db.DB).GetCounter(ctx, numbering.PartitionKey{Prefix: "C", Period: "2025"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stored.LastValue)
}

func TestSQLite_BackfillFromRecords(t *testing.T) {
	db := newSQLiteDatabase(t)
	ctx := context.Background()
	now := time.Now()
	for i, code := range []string{"C202500001", "C202500002", "C202500007", "CR202500042", "C202400099"} {
		require.NoError(t, db.DB.Create(&models.CustomerModel{
			BaseModel: models.BaseModel{ID: uuidFor(i), CreatedAt: now, UpdatedAt: now},
			Code:      code,
			Name:      "Legacy",
			IsActive:  true,
		}).Error)
	}

	allocator := appnumbering.NewAllocator(NewGormSequenceScope(db.DB), numbering.DefaultRegistry(),
		appnumbering.WithClock(numbering.NewFixedClock(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC))),
	)
	key := numbering.PartitionKey{Prefix: "C", Period: "2025"}

	report, err := allocator.BackfillFrom(ctx, key, NewGormCustomerRepository(db.DB))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), report.LastValue)
	assert.Equal(t, 3, report.Accepted)

	n, err := allocator.Allocate(ctx, numbering.RecordTypeCustomer, numbering.Fields{})
	require.NoError(t, err)
	assert.Equal(t, "C202500008", n.Display)
}

func TestSQLite_HoldTimeoutBoundsLockWait(t *testing.T) {
	db := newSQLiteDatabase(t)
	allocator := appnumbering.NewAllocator(NewGormSequenceScope(db.DB), numbering.DefaultRegistry(),
		appnumbering.WithClock(numbering.NewFixedClock(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC))),
		appnumbering.WithHoldTimeout(300*time.Millisecond),
	)
	ctx := context.Background()

	n, err := allocator.Allocate(ctx, numbering.RecordTypeBooking, numbering.Fields{})
	require.NoError(t, err)
	assert.Equal(t, "AGLC202500001", n.Display)

	// BEGIN IMMEDIATE takes the database write lock until rollback
	holder := db.DB.Begin()
	require.NoError(t, holder.Error)

	start := time.Now()
	_, err = allocator.Allocate(ctx, numbering.RecordTypeBooking, numbering.Fields{})
	assert.ErrorIs(t, err, numbering.ErrAllocationFailed)
	assert.Less(t, time.Since(start), 2*time.Second, "lock wait must end near the hold timeout, not the busy timeout")

	require.NoError(t, holder.Rollback().Error)

	n, err = allocator.Allocate(ctx, numbering.RecordTypeBooking, numbering.Fields{})
	require.NoError(t, err)
	assert.Equal(t, "AGLC202500002", n.Display)

	// pooled connections keep the configured busy timeout afterwards
	var busy int64
	require.NoError(t, db.DB.Raw("PRAGMA busy_timeout").Scan(&busy).Error)
	assert.Equal(t, int64(5000), busy)
}
