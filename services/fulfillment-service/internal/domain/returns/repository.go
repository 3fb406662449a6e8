package returns

import (
	"context"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
)

// Filter narrows ListReturns results
type Filter struct {
	OrderID string
	Status  Status
	Page    common.Page
}

// Repository persists return orders
type Repository interface {
	Create(ctx context.Context, r *ReturnOrder) error
	Update(ctx context.Context, r *ReturnOrder) error
	FindByID(ctx context.Context, id string) (*ReturnOrder, error)
	List(ctx context.Context, filter Filter) ([]*ReturnOrder, int64, error)
}
