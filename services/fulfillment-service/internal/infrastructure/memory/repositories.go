package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/wms-platform/fulfillment/shared/pkg/outbox"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/alert"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/exception"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/ledger"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/pipeline"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/returns"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/infrastructure/messaging"
)

// Repositories bundles every in-memory repository over one shared outbox
type Repositories struct {
	Stock         *StockRepository
	Alerts        *AlertRepository
	Orders        *OrderRepository
	PickLists     *PickListRepository
	Packages      *PackageRepository
	QualityChecks *QualityCheckRepository
	Shipments     *ShipmentRepository
	Tracking      *TrackingRepository
	Exceptions    *ExceptionRepository
	Returns       *ReturnRepository
	Outbox        *outbox.MemoryRepository
}

// NewRepositories creates empty repositories writing events to ob. A nil
// outbox gets a fresh one.
func NewRepositories(ob *outbox.MemoryRepository, mapper *messaging.OutboxMapper) *Repositories {
	if ob == nil {
		ob = outbox.NewMemoryRepository()
	}
	if mapper == nil {
		mapper = messaging.NewOutboxMapper(nil)
	}
	return &Repositories{
		Stock:         &StockRepository{store: newStore(messaging.AggregateStock, stockAccessors, mapper, ob)},
		Alerts:        &AlertRepository{store: newStore(messaging.AggregateAlert, alertAccessors, mapper, ob)},
		Orders:        &OrderRepository{store: newStore(messaging.AggregateOrder, orderAccessors, mapper, ob)},
		PickLists:     &PickListRepository{store: newStore(messaging.AggregatePickList, pickListAccessors, mapper, ob)},
		Packages:      &PackageRepository{store: newStore(messaging.AggregatePackage, packageAccessors, mapper, ob)},
		QualityChecks: &QualityCheckRepository{store: newStore(messaging.AggregateQualityCheck, qualityAccessors, mapper, ob)},
		Shipments:     &ShipmentRepository{store: newStore(messaging.AggregateShipment, shipmentAccessors, mapper, ob)},
		Tracking: &TrackingRepository{
			statuses: newStore(messaging.AggregateDelivery, deliveryAccessors, mapper, ob),
		},
		Exceptions: &ExceptionRepository{store: newStore(messaging.AggregateException, exceptionAccessors, mapper, ob)},
		Returns:    &ReturnRepository{store: newStore(messaging.AggregateReturn, returnAccessors, mapper, ob)},
		Outbox:     ob,
	}
}

var (
	stockAccessors = accessors[*ledger.StockRecord]{
		id:      func(r *ledger.StockRecord) string { return r.ProductID },
		version: func(r *ledger.StockRecord) *int { return &r.Version },
		clone:   (*ledger.StockRecord).Clone,
	}
	alertAccessors = accessors[*alert.StockAlert]{
		id:      func(a *alert.StockAlert) string { return a.AlertID },
		version: func(a *alert.StockAlert) *int { return &a.Version },
		clone:   (*alert.StockAlert).Clone,
	}
	orderAccessors = accessors[*order.Order]{
		id:      func(o *order.Order) string { return o.OrderID },
		version: func(o *order.Order) *int { return &o.Version },
		clone:   (*order.Order).Clone,
	}
	pickListAccessors = accessors[*pipeline.PickList]{
		id:      func(p *pipeline.PickList) string { return p.PickListID },
		version: func(p *pipeline.PickList) *int { return &p.Version },
		clone:   (*pipeline.PickList).Clone,
	}
	packageAccessors = accessors[*pipeline.Package]{
		id:      func(p *pipeline.Package) string { return p.PackageID },
		version: func(p *pipeline.Package) *int { return &p.Version },
		clone:   (*pipeline.Package).Clone,
	}
	qualityAccessors = accessors[*pipeline.QualityCheck]{
		id:      func(q *pipeline.QualityCheck) string { return q.CheckID },
		version: func(q *pipeline.QualityCheck) *int { return &q.Version },
		clone:   (*pipeline.QualityCheck).Clone,
	}
	shipmentAccessors = accessors[*pipeline.Shipment]{
		id:      func(s *pipeline.Shipment) string { return s.ShipmentID },
		version: func(s *pipeline.Shipment) *int { return &s.Version },
		clone:   (*pipeline.Shipment).Clone,
	}
	deliveryAccessors = accessors[*pipeline.DeliveryStatus]{
		id:      func(d *pipeline.DeliveryStatus) string { return d.TrackingNumber },
		version: func(d *pipeline.DeliveryStatus) *int { return &d.Version },
		clone:   (*pipeline.DeliveryStatus).Clone,
	}
	exceptionAccessors = accessors[*exception.DeliveryException]{
		id:      func(e *exception.DeliveryException) string { return e.ExceptionID },
		version: func(e *exception.DeliveryException) *int { return &e.Version },
		clone:   (*exception.DeliveryException).Clone,
	}
	returnAccessors = accessors[*returns.ReturnOrder]{
		id:      func(r *returns.ReturnOrder) string { return r.ReturnID },
		version: func(r *returns.ReturnOrder) *int { return &r.Version },
		clone:   (*returns.ReturnOrder).Clone,
	}
)

// StockRepository implements ledger.Repository
type StockRepository struct {
	store *store[*ledger.StockRecord]
}

func (r *StockRepository) Create(ctx context.Context, record *ledger.StockRecord) error {
	return r.store.create(ctx, record, nil)
}

func (r *StockRepository) Update(ctx context.Context, record *ledger.StockRecord) error {
	return r.store.update(ctx, record)
}

func (r *StockRepository) FindByID(ctx context.Context, productID string) (*ledger.StockRecord, error) {
	return r.store.get(productID), nil
}

func (r *StockRepository) List(ctx context.Context, filter ledger.Filter) ([]*ledger.StockRecord, int64, error) {
	items, total := r.store.list(func(s *ledger.StockRecord) bool {
		if filter.ActiveOnly && !s.Active {
			return false
		}
		return filter.Status == "" || s.Status == filter.Status
	}, filter.Page)
	return items, total, nil
}

// AlertRepository implements alert.Repository
type AlertRepository struct {
	store *store[*alert.StockAlert]
}

// OpenIfAbsent relies on the store lock for atomicity
func (r *AlertRepository) OpenIfAbsent(ctx context.Context, a *alert.StockAlert) (bool, error) {
	err := r.store.create(ctx, a, func(stored *alert.StockAlert) bool {
		return !stored.Resolved && stored.ProductID == a.ProductID && stored.AlertType == a.AlertType
	})
	if errors.Is(err, common.ErrDuplicate) {
		return false, nil
	}
	return err == nil, err
}

func (r *AlertRepository) Update(ctx context.Context, a *alert.StockAlert) error {
	return r.store.update(ctx, a)
}

func (r *AlertRepository) FindByID(ctx context.Context, alertID string) (*alert.StockAlert, error) {
	return r.store.get(alertID), nil
}

func (r *AlertRepository) List(ctx context.Context, filter alert.Filter) ([]*alert.StockAlert, int64, error) {
	items, total := r.store.list(func(a *alert.StockAlert) bool {
		if filter.OpenOnly && a.Resolved {
			return false
		}
		return filter.ProductID == "" || a.ProductID == filter.ProductID
	}, filter.Page)
	return items, total, nil
}

// OrderRepository implements order.Repository
type OrderRepository struct {
	store *store[*order.Order]
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return r.store.create(ctx, o, func(stored *order.Order) bool {
		return stored.OrderNumber == o.OrderNumber
	})
}

func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	return r.store.update(ctx, o)
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (*order.Order, error) {
	return r.store.get(orderID), nil
}

func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	return r.store.find(func(o *order.Order) bool { return o.OrderNumber == orderNumber }), nil
}

func (r *OrderRepository) List(ctx context.Context, filter order.Filter) ([]*order.Order, int64, error) {
	items, total := r.store.list(func(o *order.Order) bool {
		if filter.Status != "" && o.Status != filter.Status {
			return false
		}
		return filter.CustomerID == "" || o.Customer.ID == filter.CustomerID
	}, filter.Page)
	return items, total, nil
}

// PickListRepository implements pipeline.PickListRepository. An order may
// hold several pick lists as long as all but the newest are cancelled.
type PickListRepository struct {
	store *store[*pipeline.PickList]
}

func (r *PickListRepository) Create(ctx context.Context, p *pipeline.PickList) error {
	return r.store.create(ctx, p, func(stored *pipeline.PickList) bool {
		return stored.OrderID == p.OrderID && stored.Status != pipeline.PickListCancelled
	})
}

func (r *PickListRepository) Update(ctx context.Context, p *pipeline.PickList) error {
	return r.store.update(ctx, p)
}

func (r *PickListRepository) FindByID(ctx context.Context, id string) (*pipeline.PickList, error) {
	return r.store.get(id), nil
}

func (r *PickListRepository) FindByOrderID(ctx context.Context, orderID string) (*pipeline.PickList, error) {
	return r.store.find(func(p *pipeline.PickList) bool { return p.OrderID == orderID }), nil
}

// PackageRepository implements pipeline.PackageRepository
type PackageRepository struct {
	store *store[*pipeline.Package]
}

func (r *PackageRepository) Create(ctx context.Context, p *pipeline.Package) error {
	return r.store.create(ctx, p, func(stored *pipeline.Package) bool { return stored.OrderID == p.OrderID })
}

func (r *PackageRepository) Update(ctx context.Context, p *pipeline.Package) error {
	return r.store.update(ctx, p)
}

func (r *PackageRepository) FindByID(ctx context.Context, id string) (*pipeline.Package, error) {
	return r.store.get(id), nil
}

func (r *PackageRepository) FindByOrderID(ctx context.Context, orderID string) (*pipeline.Package, error) {
	return r.store.find(func(p *pipeline.Package) bool { return p.OrderID == orderID }), nil
}

// QualityCheckRepository implements pipeline.QualityCheckRepository
type QualityCheckRepository struct {
	store *store[*pipeline.QualityCheck]
}

func (r *QualityCheckRepository) Create(ctx context.Context, q *pipeline.QualityCheck) error {
	return r.store.create(ctx, q, func(stored *pipeline.QualityCheck) bool { return stored.OrderID == q.OrderID })
}

func (r *QualityCheckRepository) Update(ctx context.Context, q *pipeline.QualityCheck) error {
	return r.store.update(ctx, q)
}

func (r *QualityCheckRepository) FindByID(ctx context.Context, id string) (*pipeline.QualityCheck, error) {
	return r.store.get(id), nil
}

func (r *QualityCheckRepository) FindByOrderID(ctx context.Context, orderID string) (*pipeline.QualityCheck, error) {
	return r.store.find(func(q *pipeline.QualityCheck) bool { return q.OrderID == orderID }), nil
}

// ShipmentRepository implements pipeline.ShipmentRepository
type ShipmentRepository struct {
	store *store[*pipeline.Shipment]
}

func (r *ShipmentRepository) Create(ctx context.Context, s *pipeline.Shipment) error {
	return r.store.create(ctx, s, func(stored *pipeline.Shipment) bool {
		return stored.OrderID == s.OrderID || stored.TrackingNumber == s.TrackingNumber
	})
}

func (r *ShipmentRepository) Update(ctx context.Context, s *pipeline.Shipment) error {
	return r.store.update(ctx, s)
}

func (r *ShipmentRepository) FindByID(ctx context.Context, id string) (*pipeline.Shipment, error) {
	return r.store.get(id), nil
}

func (r *ShipmentRepository) FindByOrderID(ctx context.Context, orderID string) (*pipeline.Shipment, error) {
	return r.store.find(func(s *pipeline.Shipment) bool { return s.OrderID == orderID }), nil
}

func (r *ShipmentRepository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*pipeline.Shipment, error) {
	return r.store.find(func(s *pipeline.Shipment) bool { return s.TrackingNumber == trackingNumber }), nil
}

// TrackingRepository implements pipeline.TrackingRepository
type TrackingRepository struct {
	mu       sync.RWMutex
	events   map[string][]*pipeline.TrackingEvent
	statuses *store[*pipeline.DeliveryStatus]
}

func (r *TrackingRepository) Append(ctx context.Context, ev *pipeline.TrackingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = make(map[string][]*pipeline.TrackingEvent)
	}
	copied := *ev
	r.events[ev.TrackingNumber] = append(r.events[ev.TrackingNumber], &copied)
	return nil
}

// ListEvents returns the events in arrival order
func (r *TrackingRepository) ListEvents(ctx context.Context, trackingNumber string) ([]*pipeline.TrackingEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*pipeline.TrackingEvent, 0, len(r.events[trackingNumber]))
	for _, ev := range r.events[trackingNumber] {
		copied := *ev
		out = append(out, &copied)
	}
	return out, nil
}

func (r *TrackingRepository) CreateStatus(ctx context.Context, d *pipeline.DeliveryStatus) error {
	return r.statuses.create(ctx, d, nil)
}

func (r *TrackingRepository) UpdateStatus(ctx context.Context, d *pipeline.DeliveryStatus) error {
	return r.statuses.update(ctx, d)
}

func (r *TrackingRepository) FindStatus(ctx context.Context, trackingNumber string) (*pipeline.DeliveryStatus, error) {
	return r.statuses.get(trackingNumber), nil
}

// ExceptionRepository implements exception.Repository
type ExceptionRepository struct {
	store *store[*exception.DeliveryException]
}

func (r *ExceptionRepository) Create(ctx context.Context, e *exception.DeliveryException) error {
	return r.store.create(ctx, e, nil)
}

func (r *ExceptionRepository) Update(ctx context.Context, e *exception.DeliveryException) error {
	return r.store.update(ctx, e)
}

func (r *ExceptionRepository) FindByID(ctx context.Context, id string) (*exception.DeliveryException, error) {
	return r.store.get(id), nil
}

func (r *ExceptionRepository) List(ctx context.Context, filter exception.Filter) ([]*exception.DeliveryException, int64, error) {
	items, total := r.store.list(func(e *exception.DeliveryException) bool {
		if filter.Status != "" && e.Status != filter.Status {
			return false
		}
		return filter.TrackingNumber == "" || e.TrackingNumber == filter.TrackingNumber
	}, filter.Page)
	return items, total, nil
}

// ReturnRepository implements returns.Repository
type ReturnRepository struct {
	store *store[*returns.ReturnOrder]
}

func (r *ReturnRepository) Create(ctx context.Context, ro *returns.ReturnOrder) error {
	return r.store.create(ctx, ro, nil)
}

func (r *ReturnRepository) Update(ctx context.Context, ro *returns.ReturnOrder) error {
	return r.store.update(ctx, ro)
}

func (r *ReturnRepository) FindByID(ctx context.Context, id string) (*returns.ReturnOrder, error) {
	return r.store.get(id), nil
}

func (r *ReturnRepository) List(ctx context.Context, filter returns.Filter) ([]*returns.ReturnOrder, int64, error) {
	items, total := r.store.list(func(ro *returns.ReturnOrder) bool {
		if filter.Status != "" && ro.Status != filter.Status {
			return false
		}
		return filter.OrderID == "" || ro.OrderID == filter.OrderID
	}, filter.Page)
	return items, total, nil
}

var (
	_ ledger.Repository               = (*StockRepository)(nil)
	_ alert.Repository                = (*AlertRepository)(nil)
	_ order.Repository                = (*OrderRepository)(nil)
	_ pipeline.PickListRepository     = (*PickListRepository)(nil)
	_ pipeline.PackageRepository      = (*PackageRepository)(nil)
	_ pipeline.QualityCheckRepository = (*QualityCheckRepository)(nil)
	_ pipeline.ShipmentRepository     = (*ShipmentRepository)(nil)
	_ pipeline.TrackingRepository     = (*TrackingRepository)(nil)
	_ exception.Repository            = (*ExceptionRepository)(nil)
	_ returns.Repository              = (*ReturnRepository)(nil)
)

