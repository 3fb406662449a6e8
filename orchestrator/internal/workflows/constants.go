package workflows

import "time"

// Activity and workflow timeout defaults
const (
	DefaultActivityTimeout time.Duration = 30 * time.Second
	DefaultShipmentTimeout time.Duration = 72 * time.Hour
	DefaultDeliveryTimeout time.Duration = 30 * 24 * time.Hour
)

// Retry policy defaults
const (
	DefaultRetryInitialInterval    time.Duration = time.Second
	DefaultRetryMaxInterval        time.Duration = time.Minute
	DefaultRetryBackoffCoefficient float64       = 2.0
	DefaultMaxRetryAttempts        int32         = 3
)

// Activity names registered by the worker
const (
	ActivityGetOrder     = "GetOrder"
	ActivityAdvanceOrder = "AdvanceOrder"
	ActivityCancelOrder  = "CancelOrder"
)

// QueryProgress returns the workflow's OrderFulfillmentResult so far
const QueryProgress = "progress"

// Order statuses as rendered by the fulfillment-service
const (
	OrderPending    = "PENDING"
	OrderConfirmed  = "CONFIRMED"
	OrderProcessing = "PROCESSING"
	OrderShipped    = "SHIPPED"
	OrderDelivered  = "DELIVERED"
	OrderCancelled  = "CANCELLED"
	OrderRefunded   = "REFUNDED"
)

// Workflow outcomes
const (
	OutcomeDelivered       = "delivered"
	OutcomeCancelled       = "cancelled"
	OutcomeAlreadyFinal    = "already_final"
	OutcomeDeliveryOverdue = "delivery_overdue"
	OutcomeFailed          = "failed"
)
