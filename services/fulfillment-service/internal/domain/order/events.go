package order

import (
	"time"

	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"
)

// OrderCreatedEvent is published when an order has been placed and reserved
type OrderCreatedEvent struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	CustomerID  string    `json:"customerId"`
	Priority    Priority  `json:"priority"`
	ItemCount   int       `json:"itemCount"`
	FinalAmount float64   `json:"finalAmount"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (e *OrderCreatedEvent) EventType() string     { return cloudevents.OrderCreated }
func (e *OrderCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// OrderStatusChangedEvent is published on every status transition
type OrderStatusChangedEvent struct {
	OrderID        string    `json:"orderId"`
	OrderNumber    string    `json:"orderNumber"`
	PreviousStatus Status    `json:"previousStatus"`
	NewStatus      Status    `json:"newStatus"`
	Reason         string    `json:"reason,omitempty"`
	ChangedAt      time.Time `json:"changedAt"`
}

func (e *OrderStatusChangedEvent) EventType() string     { return cloudevents.OrderStatusChanged }
func (e *OrderStatusChangedEvent) OccurredAt() time.Time { return e.ChangedAt }
