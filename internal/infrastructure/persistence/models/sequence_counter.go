package models

import (
	"time"

	"github.com/aglc/backoffice/internal/domain/numbering"
)

// SequenceCounterModel is one row per (prefix, period) partition. Rows are
// created lazily at zero and never deleted.
type SequenceCounterModel struct {
	Prefix    string    `gorm:"type:varchar(16);primaryKey"`
	Period    string    `gorm:"type:char(4);primaryKey"`
	LastValue int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SequenceCounterModel) TableName() string {
	return "sequence_counters"
}

// ToDomain converts the persistence model to a domain SequenceCounter.
func (m *SequenceCounterModel) ToDomain() numbering.SequenceCounter {
	return numbering.SequenceCounter{
		Key:       numbering.PartitionKey{Prefix: m.Prefix, Period: m.Period},
		LastValue: uint64(m.LastValue),
		UpdatedAt: m.UpdatedAt,
	}
}

// NewSequenceCounterModel builds a zero-valued row for key.
func NewSequenceCounterModel(key numbering.PartitionKey, now time.Time) *SequenceCounterModel {
	return &SequenceCounterModel{
		Prefix:    key.Prefix,
		Period:    key.Period,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
