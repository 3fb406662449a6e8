package application

import (
	"time"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/exception"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/pipeline"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/returns"
)

// StockDTO represents a stock record in responses
type StockDTO struct {
	ProductID         string     `json:"productId"`
	ProductName       string     `json:"productName"`
	SKU               string     `json:"sku"`
	CurrentQuantity   int        `json:"currentQuantity"`
	ReservedQuantity  int        `json:"reservedQuantity"`
	AvailableQuantity int        `json:"availableQuantity"`
	MinimumLevel      int        `json:"minimumLevel"`
	MaximumLevel      int        `json:"maximumLevel"`
	ReorderPoint      int        `json:"reorderPoint"`
	UnitCost          float64    `json:"unitCost"`
	Currency          string     `json:"currency,omitempty"`
	Active            bool       `json:"active"`
	Status            string     `json:"status"`
	LastRestockedAt   *time.Time `json:"lastRestockedAt,omitempty"`
	LastSoldAt        *time.Time `json:"lastSoldAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// AlertDTO represents a stock alert in responses
type AlertDTO struct {
	AlertID         string     `json:"alertId"`
	ProductID       string     `json:"productId"`
	ProductName     string     `json:"productName"`
	SKU             string     `json:"sku"`
	AlertType       string     `json:"alertType"`
	AlertLevel      string     `json:"alertLevel"`
	CurrentStock    int        `json:"currentStock"`
	ThresholdStock  int        `json:"thresholdStock"`
	Message         string     `json:"message"`
	SuggestedAction string     `json:"suggestedAction"`
	Resolved        bool       `json:"resolved"`
	ResolvedBy      string     `json:"resolvedBy,omitempty"`
	ResolutionNotes string     `json:"resolutionNotes,omitempty"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// OrderLineDTO represents an order line in responses
type OrderLineDTO struct {
	LineID               string  `json:"lineId"`
	ProductID            string  `json:"productId"`
	ProductName          string  `json:"productName"`
	SKU                  string  `json:"sku"`
	Quantity             int     `json:"quantity"`
	UnitPrice            float64 `json:"unitPrice"`
	LineTotal            float64 `json:"lineTotal"`
	WeightKg             float64 `json:"weightKg"`
	IsFragile            bool    `json:"isFragile"`
	RequiresQualityCheck bool    `json:"requiresQualityCheck"`
}

// OrderDTO represents an order in responses
type OrderDTO struct {
	OrderID               string               `json:"orderId"`
	OrderNumber           string               `json:"orderNumber"`
	Customer              order.Customer       `json:"customer"`
	ShippingAddress       order.Address        `json:"shippingAddress"`
	BillingAddress        order.Address        `json:"billingAddress"`
	Currency              string               `json:"currency"`
	PaymentMethod         string               `json:"paymentMethod,omitempty"`
	Priority              string               `json:"priority"`
	Items                 []OrderLineDTO       `json:"items"`
	Subtotal              float64              `json:"subtotal"`
	ShippingCost          float64              `json:"shippingCost"`
	TaxAmount             float64              `json:"taxAmount"`
	DiscountAmount        float64              `json:"discountAmount"`
	FinalAmount           float64              `json:"finalAmount"`
	Status                string               `json:"status"`
	PaymentStatus         string               `json:"paymentStatus"`
	Links                 order.StageLinks     `json:"links"`
	StatusHistory         []order.StatusChange `json:"statusHistory"`
	CancellationReason    string               `json:"cancellationReason,omitempty"`
	EstimatedDeliveryDate *time.Time           `json:"estimatedDeliveryDate,omitempty"`
	DeliveredAt           *time.Time           `json:"deliveredAt,omitempty"`
	CreatedAt             time.Time            `json:"createdAt"`
	UpdatedAt             time.Time            `json:"updatedAt"`
}

// PickListDTO is a pick list, with the stage outcome when the call completed it
type PickListDTO struct {
	*pipeline.PickList
	Outcome *pipeline.StageOutcome `json:"outcome,omitempty"`
}

// PackageDTO is a package, with the stage outcome when the call completed it
type PackageDTO struct {
	*pipeline.Package
	Outcome *pipeline.StageOutcome `json:"outcome,omitempty"`
}

// QualityCheckDTO is a quality check, with the stage outcome when the call completed it
type QualityCheckDTO struct {
	*pipeline.QualityCheck
	Outcome *pipeline.StageOutcome `json:"outcome,omitempty"`
}

// ShipmentDTO is a shipment, with the stage outcome when the call completed it
type ShipmentDTO struct {
	*pipeline.Shipment
	Outcome *pipeline.StageOutcome `json:"outcome,omitempty"`
}

// TrackingEventDTO is a recorded scan and the delivery status after it
type TrackingEventDTO struct {
	Event          *pipeline.TrackingEvent  `json:"event"`
	Applied        bool                     `json:"applied"`
	DeliveryStatus *pipeline.DeliveryStatus `json:"deliveryStatus"`
	Outcome        *pipeline.StageOutcome   `json:"outcome,omitempty"`
}

// PipelineDTO is every stage record of an order
type PipelineDTO struct {
	OrderID        string                    `json:"orderId"`
	OrderStatus    string                    `json:"orderStatus"`
	PickList       *pipeline.PickList        `json:"pickList,omitempty"`
	Package        *pipeline.Package         `json:"package,omitempty"`
	QualityCheck   *pipeline.QualityCheck    `json:"qualityCheck,omitempty"`
	Shipment       *pipeline.Shipment        `json:"shipment,omitempty"`
	DeliveryStatus *pipeline.DeliveryStatus  `json:"deliveryStatus,omitempty"`
	TrackingEvents []*pipeline.TrackingEvent `json:"trackingEvents"`
}

// ExceptionDTO is a delivery exception with its performance rating once resolved
type ExceptionDTO struct {
	*exception.DeliveryException
	PerformanceRating string `json:"performanceRating,omitempty"`
}

// ReturnItemDTO represents a returned line in responses
type ReturnItemDTO struct {
	ProductID        string  `json:"productId"`
	ProductName      string  `json:"productName"`
	SKU              string  `json:"sku"`
	ReturnQuantity   int     `json:"returnQuantity"`
	OriginalQuantity int     `json:"originalQuantity"`
	UnitPrice        float64 `json:"unitPrice"`
	Condition        string  `json:"condition"`
	IsRestockable    bool    `json:"isRestockable"`
	RestockQuantity  int     `json:"restockQuantity"`
	QualityNotes     string  `json:"qualityNotes,omitempty"`
}

// ReturnDTO represents a return order in responses
type ReturnDTO struct {
	ReturnID           string                  `json:"returnId"`
	ReturnNumber       string                  `json:"returnNumber"`
	OrderID            string                  `json:"orderId"`
	OrderNumber        string                  `json:"orderNumber"`
	CustomerID         string                  `json:"customerId"`
	Reason             string                  `json:"reason"`
	Type               string                  `json:"type"`
	Description        string                  `json:"description,omitempty"`
	Status             string                  `json:"status"`
	Currency           string                  `json:"currency"`
	Items              []ReturnItemDTO         `json:"items"`
	RestockingFee      float64                 `json:"restockingFee"`
	ShippingCostRefund float64                 `json:"shippingCostRefund"`
	RefundAmount       float64                 `json:"refundAmount"`
	TotalRefundAmount  float64                 `json:"totalRefundAmount"`
	QualityGrade       string                  `json:"qualityGrade,omitempty"`
	IsRestockable      bool                    `json:"isRestockable"`
	ApprovedBy         string                  `json:"approvedBy,omitempty"`
	ApprovedAt         *time.Time              `json:"approvedAt,omitempty"`
	RejectionReason    string                  `json:"rejectionReason,omitempty"`
	ReceivedAt         *time.Time              `json:"receivedAt,omitempty"`
	InspectedAt        *time.Time              `json:"inspectedAt,omitempty"`
	CompletedBy        string                  `json:"completedBy,omitempty"`
	CompletedAt        *time.Time              `json:"completedAt,omitempty"`
	RestockRecords     []returns.RestockRecord `json:"restockRecords"`
	CreatedAt          time.Time               `json:"createdAt"`
	UpdatedAt          time.Time               `json:"updatedAt"`
}
