package exception

import (
	"context"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
)

// Filter narrows ListExceptions results
type Filter struct {
	Status         Status
	TrackingNumber string
	Page           common.Page
}

// Repository persists delivery exceptions
type Repository interface {
	Create(ctx context.Context, e *DeliveryException) error
	Update(ctx context.Context, e *DeliveryException) error
	FindByID(ctx context.Context, id string) (*DeliveryException, error)
	List(ctx context.Context, filter Filter) ([]*DeliveryException, int64, error)
}
