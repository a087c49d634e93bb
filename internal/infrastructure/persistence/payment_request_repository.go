package persistence

import (
	"context"
	"errors"

	"github.com/aglc/backoffice/internal/domain/finance"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/aglc/backoffice/internal/domain/shared"
	"github.com/aglc/backoffice/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPaymentRequestRepository implements PaymentRequestRepository using GORM
type GormPaymentRequestRepository struct {
	db *gorm.DB
}

// NewGormPaymentRequestRepository creates a new GormPaymentRequestRepository
func NewGormPaymentRequestRepository(db *gorm.DB) *GormPaymentRequestRepository {
	return &GormPaymentRequestRepository{db: db}
}

// Create inserts a new payment request
func (r *GormPaymentRequestRepository) Create(ctx context.Context, p *finance.PaymentRequest) error {
	if err := r.db.WithContext(ctx).Create(models.PaymentRequestModelFromDomain(p)).Error; err != nil {
		return translateRecordError(err)
	}
	return nil
}

// Save updates every column of an existing payment request
func (r *GormPaymentRequestRepository) Save(ctx context.Context, p *finance.PaymentRequest) error {
	model := models.PaymentRequestModelFromDomain(p)
	result := r.db.WithContext(ctx).
		Model(model).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return translateRecordError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID finds a payment request by its ID
func (r *GormPaymentRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.PaymentRequest, error) {
	return r.findOne(r.db.WithContext(ctx), "id = ?", id)
}

// FindByIDForUpdate finds a payment request and locks its row (SELECT FOR UPDATE)
func (r *GormPaymentRequestRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.PaymentRequest, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

// FindByNumber finds a payment request by its request number
func (r *GormPaymentRequestRepository) FindByNumber(ctx context.Context, requestNumber string) (*finance.PaymentRequest, error) {
	return r.findOne(r.db.WithContext(ctx), "request_number = ?", requestNumber)
}

func (r *GormPaymentRequestRepository) findOne(db *gorm.DB, query string, arg any) (*finance.PaymentRequest, error) {
	var model models.PaymentRequestModel
	if err := db.Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListNumbers returns every request number issued in key's partition
func (r *GormPaymentRequestRepository) ListNumbers(ctx context.Context, key numbering.PartitionKey) ([]string, error) {
	return listNumbers(ctx, r.db, &models.PaymentRequestModel{}, "request_number", key)
}

// Ensure GormPaymentRequestRepository implements PaymentRequestRepository
var _ finance.PaymentRequestRepository = (*GormPaymentRequestRepository)(nil)
