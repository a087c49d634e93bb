package integration

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aglc/backoffice/internal/application/backoffice"
	appnumbering "github.com/aglc/backoffice/internal/application/numbering"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/infrastructure/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAllocator(db *gorm.DB, at time.Time, opts ...appnumbering.Option) *appnumbering.Allocator {
	opts = append([]appnumbering.Option{appnumbering.WithClock(numbering.NewFixedClock(at))}, opts...)
	return appnumbering.NewAllocator(persistence.NewGormSequenceScope(db), numbering.DefaultRegistry(), opts...)
}

func TestPostgres_ConcurrentAllocationsAreUniqueAndGapless(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	allocator := newAllocator(testDB.DB, time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC),
		appnumbering.WithHoldTimeout(30*time.Second))
	ctx := context.Background()

	const workers, perWorker = 12, 15
	var (
		mu       sync.Mutex
		displays = make(map[string]struct{})
		counters []uint64
		wg       sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				n, err := allocator.Allocate(ctx, numbering.RecordTypeCustomer, numbering.Fields{})
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				displays[n.Display] = struct{}{}
				counters = append(counters, n.Counter)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, counters, workers*perWorker)
	assert.Len(t, displays, workers*perWorker)
	sort.Slice(counters, func(i, j int) bool { return counters[i] < counters[j] })
	for i, c := range counters {
		require.Equal(t, uint64(i+1), c)
	}

	stored, err := persistence.NewGormCounterRepository(testDB.DB).GetCounter(ctx, numbering.PartitionKey{Prefix: "C", Period: "2025"})
	require.NoError(t, err)
	assert.Equal(t, uint64(workers*perWorker), stored.LastValue)
}

func TestPostgres_ConcurrentCheckPaymentRequests(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	allocator := newAllocator(testDB.DB, time.Date(2025, 7, 15, 10, 0, 0, 0, time.UTC))
	svc := backoffice.NewPaymentRequestService(allocator, persistence.NewGormRecordScope(testDB.DB, true))
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []string
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := svc.Create(ctx, backoffice.CreatePaymentRequestRequest{RequestType: "Check", ChargeTo: "Operations"})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers = append(numbers, p.RequestNumber)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Strings(numbers)
	assert.Equal(t, []string{"CR202500001", "CR202500002"}, numbers)

	p, err := svc.Create(ctx, backoffice.CreatePaymentRequestRequest{RequestType: "Petty Cash"})
	require.NoError(t, err)
	assert.Equal(t, "PCR202500001", p.RequestNumber)

	got, err := svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Petty Cash", got.RequestType)
}

func TestPostgres_FailedRecordWriteRollsBackCounter(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	allocator := newAllocator(testDB.DB, time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC))
	svc := backoffice.NewCustomerService(allocator, persistence.NewGormRecordScope(testDB.DB, true))
	ctx := context.Background()

	first, err := svc.Create(ctx, backoffice.CreateCustomerRequest{Name: "Acme Trading"})
	require.NoError(t, err)
	assert.Equal(t, "C202500001", first.Code)

	require.NoError(t, testDB.DB.Exec(
		`INSERT INTO customers (id, created_at, updated_at, code, name, is_active) VALUES (gen_random_uuid(), now(), now(), ?, ?, true)`,
		"C202500002", "Squatter",
	).Error)

	_, err = svc.Create(ctx, backoffice.CreateCustomerRequest{Name: "Blue Harbor"})
	require.Error(t, err)

	stored, err := persistence.NewGormCounterRepository(testDB.DB).GetCounter(ctx, numbering.PartitionKey{Prefix: "C", Period: "2025"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stored.LastValue)
}

func TestPostgres_HoldTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	at := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	allocator := newAllocator(testDB.DB, at, appnumbering.WithHoldTimeout(300*time.Millisecond))
	ctx := context.Background()

	n, err := allocator.Allocate(ctx, numbering.RecordTypeBooking, numbering.Fields{})
	require.NoError(t, err)
	assert.Equal(t, "AGLC202500001", n.Display)

	holder := testDB.DB.Begin()
	require.NoError(t, holder.Error)
	require.NoError(t, holder.Exec(
		`SELECT last_value FROM sequence_counters WHERE prefix = ? AND period = ? FOR UPDATE`, "AGLC", "2025",
	).Error)

	start := time.Now()
	_, err = allocator.Allocate(ctx, numbering.RecordTypeBooking, numbering.Fields{})
	assert.ErrorIs(t, err, numbering.ErrAllocationFailed)
	assert.Less(t, time.Since(start), 5*time.Second)

	require.NoError(t, holder.Rollback().Error)

	n, err = allocator.Allocate(ctx, numbering.RecordTypeBooking, numbering.Fields{})
	require.NoError(t, err)
	assert.Equal(t, "AGLC202500002", n.Display)
}

func TestPostgres_PeriodRollover(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	ctx := context.Background()

	december := newAllocator(testDB.DB, time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC))
	january := newAllocator(testDB.DB, time.Date(2025, 1, 1, 0, 1, 0, 0, time.UTC))

	for _, want := range []string{"C202400001", "C202400002"} {
		n, err := december.Allocate(ctx, numbering.RecordTypeCustomer, numbering.Fields{})
		require.NoError(t, err)
		assert.Equal(t, want, n.Display)
	}
	n, err := january.Allocate(ctx, numbering.RecordTypeCustomer, numbering.Fields{})
	require.NoError(t, err)
	assert.Equal(t, "C202500001", n.Display)

	counters, err := persistence.NewGormCounterRepository(testDB.DB).ListCounters(ctx, "C")
	require.NoError(t, err)
	require.Len(t, counters, 2)
}

func TestPostgres_BootstrapAndBackfill(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewTestDB(t)
	allocator := newAllocator(testDB.DB, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	svc := backoffice.NewPaymentRequestService(allocator, persistence.NewGormRecordScope(testDB.DB, true))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, backoffice.CreatePaymentRequestRequest{RequestType: "Manager's Check"})
		require.NoError(t, err)
	}

	key := numbering.PartitionKey{Prefix: "MCR", Period: "2025"}
	require.NoError(t, testDB.DB.Exec(`UPDATE sequence_counters SET last_value = 0 WHERE prefix = ? AND period = ?`, key.Prefix, key.Period).Error)

	report, err := allocator.BackfillFrom(ctx, key, persistence.NewGormPaymentRequestRepository(testDB.DB))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Accepted)
	assert.Equal(t, uint64(3), report.LastValue)

	last, err := allocator.Bootstrap(ctx, key, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last, "bootstrap never lowers a counter")

	p, err := svc.Create(ctx, backoffice.CreatePaymentRequestRequest{RequestType: "Manager's Check"})
	require.NoError(t, err)
	assert.Equal(t, "MCR202500004", p.RequestNumber)
}
