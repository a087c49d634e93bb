package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/aglc/backoffice/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormSequenceStore is the sequence store bound to one GORM transaction.
//
// GetForUpdate reserves the row with INSERT ... ON CONFLICT DO NOTHING and
// then locks it with SELECT ... FOR UPDATE, so first use of a partition
// serialises the same way as every later one. On SQLite the locking clause is
// dropped by the dialect; the hold is the database write lock taken by
// BEGIN IMMEDIATE.
type gormSequenceStore struct {
	tx   *gorm.DB
	now  func() time.Time
	held map[numbering.PartitionKey]struct{}
	done bool
}

func newGormSequenceStore(tx *gorm.DB) *gormSequenceStore {
	return &gormSequenceStore{
		tx:   tx,
		now:  time.Now,
		held: make(map[numbering.PartitionKey]struct{}),
	}
}

// GetForUpdate returns the counter for key and holds its row until the
// transaction ends.
func (s *gormSequenceStore) GetForUpdate(ctx context.Context, key numbering.PartitionKey) (uint64, bool, error) {
	if s.done {
		return 0, false, fmt.Errorf("%w: transaction already finished", shared.ErrInvalidState)
	}
	if err := key.Validate(); err != nil {
		return 0, false, err
	}

	db := s.tx.WithContext(ctx)
	reserve := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.NewSequenceCounterModel(key, s.now().UTC()))
	if reserve.Error != nil {
		return 0, false, translateError(reserve.Error)
	}
	existed := reserve.RowsAffected == 0

	var rows []models.SequenceCounterModel
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("prefix = ? AND period = ?", key.Prefix, key.Period).
		Find(&rows).Error; err != nil {
		return 0, false, translateError(err)
	}
	if len(rows) != 1 {
		return 0, false, fmt.Errorf("%w: counter row for %s missing after reserve", numbering.ErrStoreUnavailable, key)
	}

	s.held[key] = struct{}{}
	return uint64(rows[0].LastValue), existed, nil
}

// Set writes value as the counter for a key held by this transaction.
func (s *gormSequenceStore) Set(ctx context.Context, key numbering.PartitionKey, value uint64) error {
	if s.done {
		return fmt.Errorf("%w: transaction already finished", shared.ErrInvalidState)
	}
	if _, ok := s.held[key]; !ok {
		return fmt.Errorf("%w: %s is not held by this transaction", shared.ErrInvalidState, key)
	}

	result := s.tx.WithContext(ctx).
		Model(&models.SequenceCounterModel{}).
		Where("prefix = ? AND period = ?", key.Prefix, key.Period).
		Updates(map[string]any{
			"last_value": int64(value),
			"updated_at": s.now().UTC(),
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("%w: update of %s affected %d rows", numbering.ErrStoreUnavailable, key, result.RowsAffected)
	}
	return nil
}

func (s *gormSequenceStore) finish() {
	s.done = true
	s.held = nil
}

var _ numbering.SequenceStore = (*gormSequenceStore)(nil)
