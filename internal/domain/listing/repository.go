package listing

import (
	"context"

	"github.com/google/uuid"
)

// ProductRecordRepository reads committed product records. Writes go through
// the batch writer, which owns the commit boundary.
type ProductRecordRepository interface {
	FindByCode(ctx context.Context, code string) (*ProductRecord, error)
	FindByCodes(ctx context.Context, codes []string) ([]ProductRecord, error)
	Count(ctx context.Context) (int64, error)
}

// PriceObservationRepository reads committed price observations.
type PriceObservationRepository interface {
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]PriceObservation, error)
	Count(ctx context.Context) (int64, error)
}
