package persistence

import (
	"context"
	"errors"

	"github.com/dealtracker/backend/internal/domain/listing"
	"github.com/dealtracker/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormProductRecordRepository implements listing.ProductRecordRepository using GORM
type GormProductRecordRepository struct {
	db *gorm.DB
}

// NewGormProductRecordRepository creates a new GormProductRecordRepository
func NewGormProductRecordRepository(db *gorm.DB) *GormProductRecordRepository {
	return &GormProductRecordRepository{db: db}
}

// FindByCode finds the record for a product code
func (r *GormProductRecordRepository) FindByCode(ctx context.Context, code string) (*listing.ProductRecord, error) {
	var record listing.ProductRecord
	if err := r.db.WithContext(ctx).Where("product_code = ?", code).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindByCodes finds the records for several product codes. Unknown codes
// are skipped.
func (r *GormProductRecordRepository) FindByCodes(ctx context.Context, codes []string) ([]listing.ProductRecord, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var records []listing.ProductRecord
	if err := r.db.WithContext(ctx).Where("product_code IN ?", codes).Order("product_code").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Count returns the number of known products
func (r *GormProductRecordRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&listing.ProductRecord{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// GormPriceObservationRepository implements listing.PriceObservationRepository using GORM
type GormPriceObservationRepository struct {
	db *gorm.DB
}

// NewGormPriceObservationRepository creates a new GormPriceObservationRepository
func NewGormPriceObservationRepository(db *gorm.DB) *GormPriceObservationRepository {
	return &GormPriceObservationRepository{db: db}
}

// FindByProduct returns a product's observations, oldest first
func (r *GormPriceObservationRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]listing.PriceObservation, error) {
	var observations []listing.PriceObservation
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("observed_at ASC").
		Find(&observations).Error; err != nil {
		return nil, err
	}
	return observations, nil
}

// Count returns the number of recorded observations
func (r *GormPriceObservationRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&listing.PriceObservation{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
