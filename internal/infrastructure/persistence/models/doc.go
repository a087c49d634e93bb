// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - base.go: BaseModel shared by the record tables
// - sequence_counter.go: per-partition counters used by the allocator
// - partner.go, booking.go, finance.go: records numbered by the allocator
package models
