package application

import (
	"time"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/alert"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/exception"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/ledger"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/pipeline"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/returns"
)

// RegisterProductCommand adds a product to the ledger. Nil levels take the defaults.
type RegisterProductCommand struct {
	ProductID       string
	ProductName     string
	SKU             string
	InitialQuantity int
	MinimumLevel    *int
	MaximumLevel    *int
	ReorderPoint    *int
	UnitCost        float64
	Currency        string
}

// Levels resolves the requested thresholds against the defaults
func (c RegisterProductCommand) Levels() ledger.Levels {
	levels := ledger.DefaultLevels()
	if c.MinimumLevel != nil {
		levels.MinimumLevel = *c.MinimumLevel
	}
	if c.MaximumLevel != nil {
		levels.MaximumLevel = *c.MaximumLevel
	}
	if c.ReorderPoint != nil {
		levels.ReorderPoint = *c.ReorderPoint
	}
	return levels
}

// ListStockQuery filters stock records
type ListStockQuery struct {
	Status     ledger.StockStatus
	ActiveOnly bool
	Page       common.Page
}

// ListAlertsQuery filters alerts
type ListAlertsQuery struct {
	OpenOnly  bool
	ProductID string
	Page      common.Page
}

func (q ListAlertsQuery) filter() alert.Filter {
	return alert.Filter{OpenOnly: q.OpenOnly, ProductID: q.ProductID, Page: q.Page}
}

// CreateOrderCommand places an order
type CreateOrderCommand struct {
	Customer              order.Customer
	ShippingAddress       order.Address
	BillingAddress        *order.Address
	Currency              string
	PaymentMethod         string
	Priority              order.Priority
	Items                 []order.LineItemInput
	ShippingCost          float64
	TaxAmount             float64
	DiscountAmount        float64
	EstimatedDeliveryDate *time.Time
}

func (c CreateOrderCommand) params() order.NewOrderParams {
	return order.NewOrderParams{
		Customer:              c.Customer,
		ShippingAddress:       c.ShippingAddress,
		BillingAddress:        c.BillingAddress,
		Currency:              c.Currency,
		PaymentMethod:         c.PaymentMethod,
		Priority:              c.Priority,
		Items:                 c.Items,
		ShippingCost:          c.ShippingCost,
		TaxAmount:             c.TaxAmount,
		DiscountAmount:        c.DiscountAmount,
		EstimatedDeliveryDate: c.EstimatedDeliveryDate,
	}
}

// ListOrdersQuery filters orders
type ListOrdersQuery struct {
	Status     order.Status
	CustomerID string
	Page       common.Page
}

// StartPickingCommand opens the pick list of an order
type StartPickingCommand struct {
	OrderID    string
	AssignedTo string
}

// StartPackingCommand opens the package of an order
type StartPackingCommand struct {
	OrderID     string
	PackageType pipeline.PackageType
	PackageSize pipeline.PackageSize
	Carrier     string
	ServiceType string
	Flags       pipeline.PackageFlags
}

// CompletePackingCommand seals a package
type CompletePackingCommand struct {
	PackageID  string
	PackedBy   string
	WeightKg   float64
	Dimensions pipeline.Dimensions
}

// StartQualityCheckCommand opens the quality check of an order
type StartQualityCheckCommand struct {
	OrderID       string
	InspectorName string
	CheckType     pipeline.CheckType
}

// StartShipmentCommand schedules the shipment of an order
type StartShipmentCommand struct {
	OrderID     string
	Carrier     string
	ServiceType string
	ScheduledAt time.Time
	DockDoor    string
}

// RecordTrackingEventCommand is a carrier scan
type RecordTrackingEventCommand struct {
	TrackingNumber string
	Params         pipeline.TrackingParams
}

// CreateExceptionCommand reports a delivery exception
type CreateExceptionCommand struct {
	TrackingNumber string
	Type           exception.Type
	Severity       exception.Severity
	Description    string
	Location       string
	ExceptionDate  time.Time
	ReportedBy     string
	Priority       exception.Priority
}

// ListExceptionsQuery filters exceptions
type ListExceptionsQuery struct {
	Status         exception.Status
	TrackingNumber string
	Page           common.Page
}

// RequestReturnCommand opens a return against a delivered order
type RequestReturnCommand struct {
	OrderID            string
	Reason             returns.Reason
	Type               returns.Type
	Description        string
	Items              []returns.ItemInput
	RestockingFee      float64
	ShippingCostRefund float64
}

// InspectReturnCommand records the inspection verdict
type InspectReturnCommand struct {
	ReturnID     string
	QualityGrade returns.Grade
	Items        []returns.InspectionItem
	Notes        string
}

// ListReturnsQuery filters returns
type ListReturnsQuery struct {
	OrderID string
	Status  returns.Status
	Page    common.Page
}
