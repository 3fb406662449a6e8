package order

import (
	"context"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
)

// Filter narrows ListOrders results
type Filter struct {
	Status     Status
	CustomerID string
	Page       common.Page
}

// Repository persists orders. Update is a compare-and-swap on Version.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	Update(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, orderID string) (*Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*Order, error)
	List(ctx context.Context, filter Filter) ([]*Order, int64, error)
}
