package alert

import (
	"context"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
)

// Filter narrows ListAlerts results
type Filter struct {
	OpenOnly  bool
	ProductID string
	Page      common.Page
}

// Repository persists stock alerts
type Repository interface {
	// OpenIfAbsent stores alert unless an unresolved alert already exists for
	// the same product and type. It reports whether the alert was stored and
	// must be atomic so that concurrent scans cannot open duplicates.
	OpenIfAbsent(ctx context.Context, alert *StockAlert) (bool, error)
	Update(ctx context.Context, alert *StockAlert) error
	FindByID(ctx context.Context, alertID string) (*StockAlert, error)
	List(ctx context.Context, filter Filter) ([]*StockAlert, int64, error)
}
