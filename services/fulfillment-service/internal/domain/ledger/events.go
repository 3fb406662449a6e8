package ledger

import (
	"time"

	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"
)

// StockRegisteredEvent is published when a product enters the ledger
type StockRegisteredEvent struct {
	ProductID    string      `json:"productId"`
	SKU          string      `json:"sku"`
	Quantity     int         `json:"quantity"`
	Status       StockStatus `json:"status"`
	RegisteredAt time.Time   `json:"registeredAt"`
}

func (e *StockRegisteredEvent) EventType() string     { return cloudevents.StockRegistered }
func (e *StockRegisteredEvent) OccurredAt() time.Time { return e.RegisteredAt }

// StockMovementEvent is published for reserve, release, commit and restock
type StockMovementEvent struct {
	ProductID         string    `json:"productId"`
	Operation         Operation `json:"operation"`
	Quantity          int       `json:"quantity"`
	CurrentQuantity   int       `json:"currentQuantity"`
	ReservedQuantity  int       `json:"reservedQuantity"`
	AvailableQuantity int       `json:"availableQuantity"`
	MovedAt           time.Time `json:"movedAt"`
}

func (e *StockMovementEvent) EventType() string {
	switch e.Operation {
	case OpReserve:
		return cloudevents.StockReserved
	case OpRelease:
		return cloudevents.StockReleased
	case OpRestock:
		return cloudevents.StockRestocked
	default:
		return cloudevents.StockCommitted
	}
}
func (e *StockMovementEvent) OccurredAt() time.Time { return e.MovedAt }

// StockAdjustedEvent is published on manual corrections
type StockAdjustedEvent struct {
	ProductID        string     `json:"productId"`
	Mode             AdjustMode `json:"mode"`
	Quantity         int        `json:"quantity"`
	PreviousQuantity int        `json:"previousQuantity"`
	NewQuantity      int        `json:"newQuantity"`
	AdjustedAt       time.Time  `json:"adjustedAt"`
}

func (e *StockAdjustedEvent) EventType() string     { return cloudevents.StockAdjusted }
func (e *StockAdjustedEvent) OccurredAt() time.Time { return e.AdjustedAt }

// StockStatusChangedEvent is published when the derived status moves
type StockStatusChangedEvent struct {
	ProductID      string      `json:"productId"`
	PreviousStatus StockStatus `json:"previousStatus"`
	NewStatus      StockStatus `json:"newStatus"`
	ChangedAt      time.Time   `json:"changedAt"`
}

func (e *StockStatusChangedEvent) EventType() string     { return cloudevents.StockStatusChanged }
func (e *StockStatusChangedEvent) OccurredAt() time.Time { return e.ChangedAt }
