package application

import (
	"context"
	"time"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/alert"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/ledger"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/pipeline"
)

// StockLedger is the part of the ledger used by orders, exceptions and returns
type StockLedger interface {
	Reserve(ctx context.Context, productID string, qty int) (*StockDTO, error)
	Release(ctx context.Context, productID string, qty int) (*StockDTO, error)
	Commit(ctx context.Context, productID string, qty int) (*StockDTO, error)
	RevertCommit(ctx context.Context, productID string, qty int) (*StockDTO, error)
	Restock(ctx context.Context, productID string, qty int) (*StockDTO, error)
	Adjust(ctx context.Context, productID string, qty int, mode ledger.AdjustMode) (*StockDTO, error)
}

// ShipmentFinder lets the order state machine check the pipeline before shipping
type ShipmentFinder interface {
	FindByOrderID(ctx context.Context, orderID string) (*pipeline.Shipment, error)
}

// OrderTransitions is what the pipeline and returns flows may do to an order
type OrderTransitions interface {
	StartProcessing(ctx context.Context, orderID, pickListID string) error
	LinkStage(ctx context.Context, orderID string, link order.StageLink, stageID string) error
	UpdateOrderStatus(ctx context.Context, orderID string, target order.Status, reason string) (*OrderDTO, error)
	MarkRefunded(ctx context.Context, orderID, reason string) error
}

// AlertNotifier hands newly opened alerts to the notification collaborator
type AlertNotifier interface {
	NotifyAlertRaised(ctx context.Context, a *alert.StockAlert) error
}

// Orchestrator hands order lifecycle facts to the fulfillment workflow engine
type Orchestrator interface {
	StartFulfillment(ctx context.Context, orderID string) error
	OrderShipped(ctx context.Context, orderID, trackingNumber string) error
	OrderDelivered(ctx context.Context, orderID string, at time.Time) error
	OrderCancelled(ctx context.Context, orderID, reason string) error
}
