package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment/shared/pkg/errors"
	"github.com/wms-platform/fulfillment/shared/pkg/keylock"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/alert"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/pipeline"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/infrastructure/memory"
)

// services wires every application service over the in-memory repositories
type services struct {
	repos      *memory.Repositories
	ledger     *LedgerService
	alerts     *AlertService
	orders     *OrderService
	pipeline   *PipelineService
	exceptions *ExceptionService
	returns    *ReturnService
	notifier   *recordingNotifier
	workflows  *recordingOrchestrator
}

func newServices(t *testing.T) *services {
	t.Helper()
	logger := logging.NewNop()
	locker := keylock.NewLocalLocker(2 * time.Second)
	repos := memory.NewRepositories(nil, nil)
	notifier := &recordingNotifier{}
	workflows := &recordingOrchestrator{}

	ledger := NewLedgerService(repos.Stock, locker, 5, nil, logger)
	orders := NewOrderService(repos.Orders, ledger, repos.Shipments, workflows, locker, 5, nil, logger)
	return &services{
		repos:  repos,
		ledger: ledger,
		alerts: NewAlertService(repos.Alerts, repos.Stock, notifier, locker, nil, logger),
		orders: orders,
		pipeline: NewPipelineService(PipelineRepositories{
			PickLists:     repos.PickLists,
			Packages:      repos.Packages,
			QualityChecks: repos.QualityChecks,
			Shipments:     repos.Shipments,
			Tracking:      repos.Tracking,
		}, repos.Orders, orders, locker, PipelineConfig{RetryAttempts: 5}, nil, logger),
		exceptions: NewExceptionService(repos.Exceptions, repos.Shipments, repos.Orders, ledger, locker, 5, nil, logger),
		returns:    NewReturnService(repos.Returns, repos.Orders, orders, ledger, locker, 5, 0, nil, logger),
		notifier:   notifier,
		workflows:  workflows,
	}
}

func (s *services) register(t *testing.T, productID string, qty int) {
	t.Helper()
	_, err := s.ledger.RegisterProduct(context.Background(), RegisterProductCommand{
		ProductID:       productID,
		ProductName:     "Product " + productID,
		SKU:             "SKU-" + productID,
		InitialQuantity: qty,
		UnitCost:        2.5,
	})
	require.NoError(t, err)
}

func (s *services) stock(t *testing.T, productID string) *StockDTO {
	t.Helper()
	dto, err := s.ledger.GetStock(context.Background(), productID)
	require.NoError(t, err)
	return dto
}

func orderCommand(lines ...order.LineItemInput) CreateOrderCommand {
	return CreateOrderCommand{
		Customer:        order.Customer{ID: "CUST-1", Name: "Ada"},
		ShippingAddress: order.Address{Street: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"},
		Currency:        "USD",
		Items:           lines,
	}
}

func line(productID string, qty int) order.LineItemInput {
	return order.LineItemInput{ProductID: productID, ProductName: "Product " + productID, SKU: "SKU-" + productID, Quantity: qty, UnitPrice: 10}
}

// confirmedOrder places an order and confirms it
func (s *services) confirmedOrder(t *testing.T, lines ...order.LineItemInput) *OrderDTO {
	t.Helper()
	ctx := context.Background()
	o, err := s.orders.CreateOrder(ctx, orderCommand(lines...))
	require.NoError(t, err)
	o, err = s.orders.UpdateOrderStatus(ctx, o.OrderID, order.StatusConfirmed, "payment received")
	require.NoError(t, err)
	return o
}

func perfectInspection() pipeline.Inspection {
	return pipeline.Inspection{Scores: pipeline.Scores{
		PackageIntegrity: 5, ContentAccuracy: 5, LabelAccuracy: 5, WeightAccuracy: 5, SafetyCompliance: 5,
	}}
}

// dispatchedOrder runs a confirmed order through pick, pack, quality check
// and shipment dispatch
func (s *services) dispatchedOrder(t *testing.T, lines ...order.LineItemInput) (*OrderDTO, *ShipmentDTO) {
	t.Helper()
	ctx := context.Background()
	o := s.confirmedOrder(t, lines...)

	pl, err := s.pipeline.StartPicking(ctx, StartPickingCommand{OrderID: o.OrderID, AssignedTo: "picker"})
	require.NoError(t, err)
	picked := make(map[string]int, len(lines))
	for _, l := range lines {
		picked[l.ProductID] = l.Quantity
	}
	_, err = s.pipeline.CompletePicking(ctx, pl.PickListID, picked)
	require.NoError(t, err)

	pkg, err := s.pipeline.StartPacking(ctx, StartPackingCommand{OrderID: o.OrderID, Carrier: "ups"})
	require.NoError(t, err)
	_, err = s.pipeline.CompletePacking(ctx, CompletePackingCommand{
		PackageID: pkg.PackageID, PackedBy: "packer", WeightKg: 1.2,
		Dimensions: pipeline.Dimensions{LengthCm: 20, WidthCm: 15, HeightCm: 10},
	})
	require.NoError(t, err)

	check, err := s.pipeline.StartQualityCheck(ctx, StartQualityCheckCommand{OrderID: o.OrderID, InspectorName: "qa"})
	require.NoError(t, err)
	_, err = s.pipeline.CompleteQualityCheck(ctx, check.CheckID, perfectInspection())
	require.NoError(t, err)

	shipment, err := s.pipeline.StartShipment(ctx, StartShipmentCommand{OrderID: o.OrderID, Carrier: "ups"})
	require.NoError(t, err)
	shipment, err = s.pipeline.CompleteShipment(ctx, shipment.ShipmentID, "dock-1")
	require.NoError(t, err)

	o, err = s.orders.GetOrder(ctx, o.OrderID)
	require.NoError(t, err)
	return o, shipment
}

func (s *services) deliveredOrder(t *testing.T, lines ...order.LineItemInput) (*OrderDTO, *ShipmentDTO) {
	t.Helper()
	ctx := context.Background()
	o, shipment := s.dispatchedOrder(t, lines...)
	_, err := s.pipeline.RecordTrackingEvent(ctx, RecordTrackingEventCommand{
		TrackingNumber: shipment.TrackingNumber,
		Params:         pipeline.TrackingParams{EventType: pipeline.EventDelivered, EventTimestamp: time.Now().UTC(), SignedBy: "Ada"},
	})
	require.NoError(t, err)
	o, err = s.orders.GetOrder(ctx, o.OrderID)
	require.NoError(t, err)
	require.Equal(t, string(order.StatusDelivered), o.Status)
	return o, shipment
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok, "expected an AppError, got %v", err)
	require.Equal(t, code, appErr.Code, appErr.Error())
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []*alert.StockAlert
	err    error
}

func (n *recordingNotifier) NotifyAlertRaised(ctx context.Context, a *alert.StockAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

// recordingOrchestrator records workflow hand-offs as "event:orderID[:detail]"
type recordingOrchestrator struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (r *recordingOrchestrator) record(event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingOrchestrator) StartFulfillment(ctx context.Context, orderID string) error {
	return r.record("start:" + orderID)
}

func (r *recordingOrchestrator) OrderShipped(ctx context.Context, orderID, trackingNumber string) error {
	return r.record("shipped:" + orderID + ":" + trackingNumber)
}

func (r *recordingOrchestrator) OrderDelivered(ctx context.Context, orderID string, at time.Time) error {
	return r.record("delivered:" + orderID)
}

func (r *recordingOrchestrator) OrderCancelled(ctx context.Context, orderID, reason string) error {
	return r.record("cancelled:" + orderID + ":" + reason)
}

func (r *recordingOrchestrator) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}
