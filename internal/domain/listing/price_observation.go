package listing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceObservation is one immutable price sighting of a product. Exactly one
// is appended per accepted listing; rows are never updated or deleted.
type PriceObservation struct {
	ID                 uuid.UUID           `gorm:"type:uuid;primaryKey"`
	ProductID          uuid.UUID           `gorm:"type:uuid;not null;index:idx_price_observations_product_observed,priority:1"`
	Price              decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	FullPrice          decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	DollarsOff         decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	DiscountPercentage decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	SourceURL          string              `gorm:"type:text"`
	ObservedAt         time.Time           `gorm:"not null;index:idx_price_observations_product_observed,priority:2"`
	CreatedAt          time.Time           `gorm:"not null"`

	Product *ProductRecord `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the table name for GORM
func (PriceObservation) TableName() string {
	return "price_observations"
}

// NewPriceObservation builds the observation for an accepted listing.
func NewPriceObservation(productID uuid.UUID, price, fullPrice decimal.NullDecimal, stats PriceStats, sourceURL string, observedAt time.Time) *PriceObservation {
	return &PriceObservation{
		ID:                 uuid.New(),
		ProductID:          productID,
		Price:              orZero(price),
		FullPrice:          fullPrice,
		DollarsOff:         stats.DollarsOff,
		DiscountPercentage: stats.DiscountPercentage,
		SourceURL:          sourceURL,
		ObservedAt:         observedAt,
		CreatedAt:          time.Now(),
	}
}
