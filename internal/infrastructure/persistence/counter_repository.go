package persistence

import (
	"context"
	"errors"

	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/aglc/backoffice/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCounterRepository reads sequence counters outside any allocation.
type GormCounterRepository struct {
	db *gorm.DB
}

// NewGormCounterRepository creates a new GormCounterRepository
func NewGormCounterRepository(db *gorm.DB) *GormCounterRepository {
	return &GormCounterRepository{db: db}
}

// ListCounters returns every persisted counter, optionally restricted to one
// prefix, ordered by prefix then period.
func (r *GormCounterRepository) ListCounters(ctx context.Context, prefix string) ([]numbering.SequenceCounter, error) {
	query := r.db.WithContext(ctx).Model(&models.SequenceCounterModel{})
	if prefix != "" {
		query = query.Where("prefix = ?", prefix)
	}

	var rows []models.SequenceCounterModel
	if err := query.Order("prefix ASC, period ASC").Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}

	counters := make([]numbering.SequenceCounter, len(rows))
	for i := range rows {
		counters[i] = rows[i].ToDomain()
	}
	return counters, nil
}

// GetCounter returns the counter for key.
func (r *GormCounterRepository) GetCounter(ctx context.Context, key numbering.PartitionKey) (*numbering.SequenceCounter, error) {
	var row models.SequenceCounterModel
	if err := r.db.WithContext(ctx).
		Where("prefix = ? AND period = ?", key.Prefix, key.Period).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, translateError(err)
	}
	counter := row.ToDomain()
	return &counter, nil
}

var _ numbering.CounterReader = (*GormCounterRepository)(nil)
