package cloudevents

import (
	"time"
)

// EventType constants for fulfillment domain events
const (
	// Stock ledger events
	StockReserved      = "wms.fulfillment.stock-reserved"
	StockReleased      = "wms.fulfillment.stock-released"
	StockCommitted     = "wms.fulfillment.stock-committed"
	StockRestocked     = "wms.fulfillment.stock-restocked"
	StockAdjusted      = "wms.fulfillment.stock-adjusted"
	StockStatusChanged = "wms.fulfillment.stock-status-changed"
	StockRegistered    = "wms.fulfillment.stock-registered"

	// Alert events
	StockAlertRaised   = "wms.fulfillment.stock-alert-raised"
	StockAlertResolved = "wms.fulfillment.stock-alert-resolved"

	// Order events
	OrderCreated       = "wms.fulfillment.order-created"
	OrderStatusChanged = "wms.fulfillment.order-status-changed"

	// Pipeline events
	StageCompleted    = "wms.fulfillment.stage-completed"
	DeliveryConfirmed = "wms.fulfillment.delivery-confirmed"

	// Exception and return events
	ExceptionReported = "wms.fulfillment.exception-reported"
	ExceptionResolved = "wms.fulfillment.exception-resolved"
	ReturnRequested   = "wms.fulfillment.return-requested"
	ReturnCompleted   = "wms.fulfillment.return-completed"
)

// Source constants for event sources
const (
	SourceFulfillment  = "/wms/fulfillment-service"
	SourceOrchestrator = "/wms/orchestrator"
)

// CloudEvents extension attribute names
const (
	ExtCorrelationID = "wmscorrelationid"
	ExtWorkflowID    = "wmsworkflowid"
	ExtOrderID       = "wmsorderid"
)

// WMSCloudEvent represents a CloudEvents v1.0 compliant event for WMS
type WMSCloudEvent struct {
	SpecVersion     string    `json:"specversion"`
	Type            string    `json:"type"`
	Source          string    `json:"source"`
	Subject         string    `json:"subject,omitempty"`
	ID              string    `json:"id"`
	Time            time.Time `json:"time"`
	DataContentType string    `json:"datacontenttype"`
	Data            any       `json:"data"`

	// WMS-specific extensions
	CorrelationID string `json:"wmscorrelationid,omitempty"`
	WorkflowID    string `json:"wmsworkflowid,omitempty"`
	OrderID       string `json:"wmsorderid,omitempty"`

	// W3C trace context
	TraceParent string `json:"traceparent,omitempty"`
	TraceState  string `json:"tracestate,omitempty"`
}

// StockAlertData is the payload of a StockAlertRaised event
type StockAlertData struct {
	AlertID         string    `json:"alertId"`
	ProductID       string    `json:"productId"`
	ProductName     string    `json:"productName"`
	SKU             string    `json:"sku"`
	AlertType       string    `json:"alertType"`
	AlertLevel      string    `json:"alertLevel"`
	CurrentStock    int       `json:"currentStock"`
	ThresholdStock  int       `json:"thresholdStock"`
	Message         string    `json:"message"`
	SuggestedAction string    `json:"suggestedAction"`
	CreatedAt       time.Time `json:"createdAt"`
}
