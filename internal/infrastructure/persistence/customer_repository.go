package persistence

import (
	"context"
	"errors"

	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/partner"
	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/aglc/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCustomerRepository implements CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// Create inserts a new customer
func (r *GormCustomerRepository) Create(ctx context.Context, customer *partner.Customer) error {
	if err := r.db.WithContext(ctx).Create(models.CustomerModelFromDomain(customer)).Error; err != nil {
		return translateRecordError(err)
	}
	return nil
}

// FindByID finds a customer by its ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*partner.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCode finds a customer by its sequence code
func (r *GormCustomerRepository) FindByCode(ctx context.Context, code string) (*partner.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByID checks if a customer exists
func (r *GormCustomerRepository) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CustomerModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListNumbers returns every code issued in key's partition
func (r *GormCustomerRepository) ListNumbers(ctx context.Context, key numbering.PartitionKey) ([]string, error) {
	return listNumbers(ctx, r.db, &models.CustomerModel{}, "code", key)
}

// listNumbers plucks the display column of every row whose number starts
// with the partition's prefix and period. Prefixes are letters and periods
// digits, so "C2025%" never matches "CR2025...".
func listNumbers(ctx context.Context, db *gorm.DB, model any, column string, key numbering.PartitionKey) ([]string, error) {
	var numbers []string
	if err := db.WithContext(ctx).
		Model(model).
		Where(column+" LIKE ?", key.Prefix+key.Period+"%").
		Order(column+" ASC").
		Pluck(column, &numbers).Error; err != nil {
		return nil, err
	}
	return numbers, nil
}

// Ensure GormCustomerRepository implements CustomerRepository
var _ partner.CustomerRepository = (*GormCustomerRepository)(nil)
