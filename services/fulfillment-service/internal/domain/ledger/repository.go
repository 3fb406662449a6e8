package ledger

import (
	"context"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
)

// Filter narrows ListStock results
type Filter struct {
	Status     StockStatus
	ActiveOnly bool
	Page       common.Page
}

// Repository persists stock records. Update is a compare-and-swap on Version:
// it fails with common.ErrVersionConflict when the stored version differs and
// increments Version on success.
type Repository interface {
	Create(ctx context.Context, record *StockRecord) error
	Update(ctx context.Context, record *StockRecord) error
	FindByID(ctx context.Context, productID string) (*StockRecord, error)
	List(ctx context.Context, filter Filter) ([]*StockRecord, int64, error)
}
