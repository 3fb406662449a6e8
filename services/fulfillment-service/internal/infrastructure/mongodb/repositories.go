package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/fulfillment/shared/pkg/logging"
	"github.com/wms-platform/fulfillment/shared/pkg/metrics"
	sharedmongo "github.com/wms-platform/fulfillment/shared/pkg/mongodb"
	outboxMongo "github.com/wms-platform/fulfillment/shared/pkg/outbox/mongodb"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/alert"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/exception"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/ledger"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/pipeline"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/returns"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/infrastructure/messaging"
)

// Collection names
const (
	CollectionStock          = "stock"
	CollectionAlerts         = "stock_alerts"
	CollectionOrders         = "orders"
	CollectionPickLists      = "pick_lists"
	CollectionPackages       = "packages"
	CollectionQualityChecks  = "quality_checks"
	CollectionShipments      = "shipments"
	CollectionTrackingEvents = "tracking_events"
	CollectionDeliveries     = "delivery_statuses"
	CollectionExceptions     = "delivery_exceptions"
	CollectionReturns        = "return_orders"
)

// Repositories bundles the MongoDB repositories of the service
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
	Outbox        *outboxMongo.OutboxRepository

	db *mongo.Database
}

// NewRepositories creates the repositories on the client's database
func NewRepositories(client *sharedmongo.Client, mapper *messaging.OutboxMapper, m *metrics.Metrics, logger *logging.Logger) *Repositories {
	db := client.Database()
	ob := outboxMongo.NewOutboxRepository(db)
	if mapper == nil {
		mapper = messaging.NewOutboxMapper(nil)
	}
	obs := sharedmongo.Instrumentation{Database: db.Name(), Metrics: m, Logger: logger}

	return &Repositories{
		Stock: &StockRepository{c: &collection[ledger.StockRecord, *ledger.StockRecord]{
			coll: db.Collection(CollectionStock), client: client, outbox: ob, mapper: mapper, obs: obs,
			aggregate: messaging.AggregateStock,
			id:        func(r *ledger.StockRecord) string { return r.ProductID },
			version:   func(r *ledger.StockRecord) *int { return &r.Version },
		}},
		Alerts: &AlertRepository{c: &collection[alert.StockAlert, *alert.StockAlert]{
			coll: db.Collection(CollectionAlerts), client: client, outbox: ob, mapper: mapper, obs: obs,
			aggregate: messaging.AggregateAlert,
			id:        func(a *alert.StockAlert) string { return a.AlertID },
			version:   func(a *alert.StockAlert) *int { return &a.Version },
		}},
		Orders: &OrderRepository{c: &collection[order.Order, *order.Order]{
			coll: db.Collection(CollectionOrders), client: client, outbox: ob, mapper: mapper, obs: obs,
			aggregate: messaging.AggregateOrder,
			id:        func(o *order.Order) string { return o.OrderID },
			version:   func(o *order.Order) *int { return &o.Version },
		}},
		PickLists: &PickListRepository{c: &collection[pipeline.PickList, *pipeline.PickList]{
			coll: db.Collection(CollectionPickLists), client: client, outbox: ob, mapper: mapper, obs: obs,
			aggregate: messaging.AggregatePickList,
			id:        func(p *pipeline.PickList) string { return p.PickListID },
			version:   func(p *pipeline.PickList) *int { return &p.Version },
		}},
		Packages: &PackageRepository{c: &collection[pipeline.Package, *pipeline.Package]{
			coll: db.Collection(CollectionPackages), client: client, outbox: ob, mapper: mapper, obs: obs,
			aggregate: messaging.AggregatePackage,
			id:        func(p *pipeline.Package) string { return p.PackageID },
			version:   func(p *pipeline.Package) *int { return &p.Version },
		}},
		QualityChecks: &QualityCheckRepository{c: &collection[pipeline.QualityCheck, *pipeline.QualityCheck]{
			coll: db.Collection(CollectionQualityChecks), client: client, outbox: ob, mapper: mapper, obs: obs,
			aggregate: messaging.AggregateQualityCheck,
			id:        func(q *pipeline.QualityCheck) string { return q.CheckID },
			version:   func(q *pipeline.QualityCheck) *int { return &q.Version },
		}},
		Shipments: &ShipmentRepository{c: &collection[pipeline.Shipment, *pipeline.Shipment]{
			coll: db.Collection(CollectionShipments), client: client, outbox: ob, mapper: mapper, obs: obs,
			aggregate: messaging.AggregateShipment,
			id:        func(s *pipeline.Shipment) string { return s.ShipmentID },
			version:   func(s *pipeline.Shipment) *int { return &s.Version },
		}},
		Tracking: &TrackingRepository{
			events: db.Collection(CollectionTrackingEvents),
			obs:    obs,
			statuses: &collection[pipeline.DeliveryStatus, *pipeline.DeliveryStatus]{
				coll: db.Collection(CollectionDeliveries), client: client, outbox: ob, mapper: mapper, obs: obs,
				aggregate: messaging.AggregateDelivery,
				id:        func(d *pipeline.DeliveryStatus) string { return d.TrackingNumber },
				version:   func(d *pipeline.DeliveryStatus) *int { return &d.Version },
			},
		},
		Exceptions: &ExceptionRepository{c: &collection[exception.DeliveryException, *exception.DeliveryException]{
			coll: db.Collection(CollectionExceptions), client: client, outbox: ob, mapper: mapper, obs: obs,
			aggregate: messaging.AggregateException,
			id:        func(e *exception.DeliveryException) string { return e.ExceptionID },
			version:   func(e *exception.DeliveryException) *int { return &e.Version },
		}},
		Returns: &ReturnRepository{c: &collection[returns.ReturnOrder, *returns.ReturnOrder]{
			coll: db.Collection(CollectionReturns), client: client, outbox: ob, mapper: mapper, obs: obs,
			aggregate: messaging.AggregateReturn,
			id:        func(r *returns.ReturnOrder) string { return r.ReturnID },
			version:   func(r *returns.ReturnOrder) *int { return &r.Version },
		}},
		Outbox: ob,
		db:     db,
	}
}

// EnsureIndexes creates the indexes the repositories rely on, including the
// unique ones that back ErrDuplicate
func (r *Repositories) EnsureIndexes(ctx context.Context) error {
	desc := func(field string) bson.E { return bson.E{Key: field, Value: -1} }
	asc := func(field string) bson.E { return bson.E{Key: field, Value: 1} }

	indexes := map[string][]mongo.IndexModel{
		CollectionStock: {
			{Keys: bson.D{asc("active"), desc("createdAt")}},
			{Keys: bson.D{asc("status"), desc("createdAt")}},
		},
		CollectionAlerts: {
			{
				// at most one unresolved alert per product and type
				Keys: bson.D{asc("productId"), asc("alertType")},
				Options: options.Index().
					SetName("uniq_open_alert").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"resolved": false}),
			},
			{Keys: bson.D{asc("resolved"), desc("createdAt")}},
		},
		CollectionOrders: {
			{Keys: bson.D{asc("orderNumber")}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{asc("status"), desc("createdAt")}},
			{Keys: bson.D{asc("customer.id"), desc("createdAt")}},
		},
		CollectionPickLists: {
			{Keys: bson.D{asc("orderId"), desc("createdAt")}},
		},
		CollectionPackages: {
			{Keys: bson.D{asc("orderId")}, Options: options.Index().SetUnique(true)},
		},
		CollectionQualityChecks: {
			{Keys: bson.D{asc("orderId")}, Options: options.Index().SetUnique(true)},
		},
		CollectionShipments: {
			{Keys: bson.D{asc("orderId")}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{asc("trackingNumber")}, Options: options.Index().SetUnique(true)},
		},
		CollectionTrackingEvents: {
			{Keys: bson.D{asc("trackingNumber"), asc("eventTimestamp")}},
		},
		CollectionExceptions: {
			{Keys: bson.D{asc("status"), desc("createdAt")}},
			{Keys: bson.D{asc("trackingNumber"), desc("createdAt")}},
		},
		CollectionReturns: {
			{Keys: bson.D{asc("orderId"), desc("createdAt")}},
			{Keys: bson.D{asc("status"), desc("createdAt")}},
		},
	}

	for name, models := range indexes {
		if _, err := r.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return r.Outbox.EnsureIndexes(ctx)
}

// StockRepository implements ledger.Repository
type StockRepository struct {
	c *collection[ledger.StockRecord, *ledger.StockRecord]
}

func (r *StockRepository) Create(ctx context.Context, record *ledger.StockRecord) error {
	return r.c.insert(ctx, record)
}

func (r *StockRepository) Update(ctx context.Context, record *ledger.StockRecord) error {
	return r.c.replace(ctx, record)
}

func (r *StockRepository) FindByID(ctx context.Context, productID string) (*ledger.StockRecord, error) {
	return r.c.findByID(ctx, productID)
}

func (r *StockRepository) List(ctx context.Context, filter ledger.Filter) ([]*ledger.StockRecord, int64, error) {
	query := bson.M{}
	if filter.ActiveOnly {
		query["active"] = true
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	return r.c.list(ctx, query, filter.Page, newestFirst())
}

// AlertRepository implements alert.Repository
type AlertRepository struct {
	c *collection[alert.StockAlert, *alert.StockAlert]
}

// OpenIfAbsent relies on the partial unique index over unresolved alerts
func (r *AlertRepository) OpenIfAbsent(ctx context.Context, a *alert.StockAlert) (bool, error) {
	err := r.c.insert(ctx, a)
	if isDuplicate(err) {
		return false, nil
	}
	return err == nil, err
}

func (r *AlertRepository) Update(ctx context.Context, a *alert.StockAlert) error {
	return r.c.replace(ctx, a)
}

func (r *AlertRepository) FindByID(ctx context.Context, alertID string) (*alert.StockAlert, error) {
	return r.c.findByID(ctx, alertID)
}

func (r *AlertRepository) List(ctx context.Context, filter alert.Filter) ([]*alert.StockAlert, int64, error) {
	query := bson.M{}
	if filter.OpenOnly {
		query["resolved"] = false
	}
	if filter.ProductID != "" {
		query["productId"] = filter.ProductID
	}
	return r.c.list(ctx, query, filter.Page, newestFirst())
}

// OrderRepository implements order.Repository
type OrderRepository struct {
	c *collection[order.Order, *order.Order]
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return r.c.insert(ctx, o)
}

func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	return r.c.replace(ctx, o)
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (*order.Order, error) {
	return r.c.findByID(ctx, orderID)
}

func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	return r.c.findOne(ctx, bson.M{"orderNumber": orderNumber})
}

func (r *OrderRepository) List(ctx context.Context, filter order.Filter) ([]*order.Order, int64, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.CustomerID != "" {
		query["customer.id"] = filter.CustomerID
	}
	return r.c.list(ctx, query, filter.Page, newestFirst())
}

// PickListRepository implements pipeline.PickListRepository
type PickListRepository struct {
	c *collection[pipeline.PickList, *pipeline.PickList]
}

func (r *PickListRepository) Create(ctx context.Context, p *pipeline.PickList) error {
	return r.c.insert(ctx, p)
}

func (r *PickListRepository) Update(ctx context.Context, p *pipeline.PickList) error {
	return r.c.replace(ctx, p)
}

func (r *PickListRepository) FindByID(ctx context.Context, id string) (*pipeline.PickList, error) {
	return r.c.findByID(ctx, id)
}

func (r *PickListRepository) FindByOrderID(ctx context.Context, orderID string) (*pipeline.PickList, error) {
	return r.c.findOne(ctx, bson.M{"orderId": orderID}, options.FindOne().SetSort(newestFirst()))
}

// PackageRepository implements pipeline.PackageRepository
type PackageRepository struct {
	c *collection[pipeline.Package, *pipeline.Package]
}

func (r *PackageRepository) Create(ctx context.Context, p *pipeline.Package) error {
	return r.c.insert(ctx, p)
}

func (r *PackageRepository) Update(ctx context.Context, p *pipeline.Package) error {
	return r.c.replace(ctx, p)
}

func (r *PackageRepository) FindByID(ctx context.Context, id string) (*pipeline.Package, error) {
	return r.c.findByID(ctx, id)
}

func (r *PackageRepository) FindByOrderID(ctx context.Context, orderID string) (*pipeline.Package, error) {
	return r.c.findOne(ctx, bson.M{"orderId": orderID})
}

// QualityCheckRepository implements pipeline.QualityCheckRepository
type QualityCheckRepository struct {
	c *collection[pipeline.QualityCheck, *pipeline.QualityCheck]
}

func (r *QualityCheckRepository) Create(ctx context.Context, q *pipeline.QualityCheck) error {
	return r.c.insert(ctx, q)
}

func (r *QualityCheckRepository) Update(ctx context.Context, q *pipeline.QualityCheck) error {
	return r.c.replace(ctx, q)
}

func (r *QualityCheckRepository) FindByID(ctx context.Context, id string) (*pipeline.QualityCheck, error) {
	return r.c.findByID(ctx, id)
}

func (r *QualityCheckRepository) FindByOrderID(ctx context.Context, orderID string) (*pipeline.QualityCheck, error) {
	return r.c.findOne(ctx, bson.M{"orderId": orderID})
}

// ShipmentRepository implements pipeline.ShipmentRepository
type ShipmentRepository struct {
	c *collection[pipeline.Shipment, *pipeline.Shipment]
}

func (r *ShipmentRepository) Create(ctx context.Context, s *pipeline.Shipment) error {
	return r.c.insert(ctx, s)
}

func (r *ShipmentRepository) Update(ctx context.Context, s *pipeline.Shipment) error {
	return r.c.replace(ctx, s)
}

func (r *ShipmentRepository) FindByID(ctx context.Context, id string) (*pipeline.Shipment, error) {
	return r.c.findByID(ctx, id)
}

func (r *ShipmentRepository) FindByOrderID(ctx context.Context, orderID string) (*pipeline.Shipment, error) {
	return r.c.findOne(ctx, bson.M{"orderId": orderID})
}

func (r *ShipmentRepository) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*pipeline.Shipment, error) {
	return r.c.findOne(ctx, bson.M{"trackingNumber": trackingNumber})
}

// TrackingRepository implements pipeline.TrackingRepository. Tracking events
// are append-only and carry no version.
type TrackingRepository struct {
	events   *mongo.Collection
	statuses *collection[pipeline.DeliveryStatus, *pipeline.DeliveryStatus]
	obs      sharedmongo.Instrumentation
}

func (r *TrackingRepository) Append(ctx context.Context, ev *pipeline.TrackingEvent) error {
	return r.obs.Observe(ctx, CollectionTrackingEvents, "insert", func(ctx context.Context) error {
		if _, err := r.events.InsertOne(ctx, ev); err != nil {
			return fmt.Errorf("failed to append tracking event: %w", err)
		}
		return nil
	})
}

// ListEvents returns the events in arrival order
func (r *TrackingRepository) ListEvents(ctx context.Context, trackingNumber string) ([]*pipeline.TrackingEvent, error) {
	var events []*pipeline.TrackingEvent
	err := r.obs.Observe(ctx, CollectionTrackingEvents, "find", func(ctx context.Context) error {
		opts := options.Find().SetSort(sharedmongo.SortAscending("createdAt"))
		cursor, err := r.events.Find(ctx, bson.M{"trackingNumber": trackingNumber}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &events)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tracking events: %w", err)
	}
	return events, nil
}

func (r *TrackingRepository) CreateStatus(ctx context.Context, d *pipeline.DeliveryStatus) error {
	return r.statuses.insert(ctx, d)
}

func (r *TrackingRepository) UpdateStatus(ctx context.Context, d *pipeline.DeliveryStatus) error {
	return r.statuses.replace(ctx, d)
}

func (r *TrackingRepository) FindStatus(ctx context.Context, trackingNumber string) (*pipeline.DeliveryStatus, error) {
	return r.statuses.findByID(ctx, trackingNumber)
}

// ExceptionRepository implements exception.Repository
type ExceptionRepository struct {
	c *collection[exception.DeliveryException, *exception.DeliveryException]
}

func (r *ExceptionRepository) Create(ctx context.Context, e *exception.DeliveryException) error {
	return r.c.insert(ctx, e)
}

func (r *ExceptionRepository) Update(ctx context.Context, e *exception.DeliveryException) error {
	return r.c.replace(ctx, e)
}

func (r *ExceptionRepository) FindByID(ctx context.Context, id string) (*exception.DeliveryException, error) {
	return r.c.findByID(ctx, id)
}

func (r *ExceptionRepository) List(ctx context.Context, filter exception.Filter) ([]*exception.DeliveryException, int64, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.TrackingNumber != "" {
		query["trackingNumber"] = filter.TrackingNumber
	}
	return r.c.list(ctx, query, filter.Page, newestFirst())
}

// ReturnRepository implements returns.Repository
type ReturnRepository struct {
	c *collection[returns.ReturnOrder, *returns.ReturnOrder]
}

func (r *ReturnRepository) Create(ctx context.Context, ro *returns.ReturnOrder) error {
	return r.c.insert(ctx, ro)
}

func (r *ReturnRepository) Update(ctx context.Context, ro *returns.ReturnOrder) error {
	return r.c.replace(ctx, ro)
}

func (r *ReturnRepository) FindByID(ctx context.Context, id string) (*returns.ReturnOrder, error) {
	return r.c.findByID(ctx, id)
}

func (r *ReturnRepository) List(ctx context.Context, filter returns.Filter) ([]*returns.ReturnOrder, int64, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.OrderID != "" {
		query["orderId"] = filter.OrderID
	}
	return r.c.list(ctx, query, filter.Page, newestFirst())
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
