package alert

import (
	"errors"
	"fmt"
	"time"

	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/ledger"
)

// Errors
var (
	ErrAlreadyResolved  = errors.New("alert already resolved")
	ErrResolverRequired = errors.New("resolvedBy is required")
)

// OverstockRatio is the share of the maximum level above which stock counts as excess
const OverstockRatio = 0.9

// Type classifies the stock condition an alert reports
type Type string

const (
	TypeLowStock   Type = "LOW_STOCK"
	TypeOutOfStock Type = "OUT_OF_STOCK"
	TypeOverstock  Type = "OVERSTOCK"
)

// IsValid checks if the type is valid
func (t Type) IsValid() bool {
	switch t {
	case TypeLowStock, TypeOutOfStock, TypeOverstock:
		return true
	default:
		return false
	}
}

// Level is the urgency of an alert
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// Condition is a threshold crossing detected on a stock record
type Condition struct {
	Type      Type
	Level     Level
	Threshold int
}

// Evaluate returns the conditions a stock record currently violates. Inactive
// products raise nothing. At most one LOW_STOCK condition is returned.
func Evaluate(record *ledger.StockRecord) []Condition {
	if !record.Active {
		return nil
	}

	current := record.CurrentQuantity
	var conditions []Condition

	switch {
	case current == 0:
		conditions = append(conditions, Condition{Type: TypeOutOfStock, Level: LevelCritical, Threshold: 0})
	case current < record.MinimumLevel:
		conditions = append(conditions, Condition{Type: TypeLowStock, Level: LevelHigh, Threshold: record.MinimumLevel})
	case current <= record.ReorderPoint:
		conditions = append(conditions, Condition{Type: TypeLowStock, Level: LevelMedium, Threshold: record.ReorderPoint})
	}

	if record.MaximumLevel > 0 && float64(current) > float64(record.MaximumLevel)*OverstockRatio {
		conditions = append(conditions, Condition{Type: TypeOverstock, Level: LevelLow, Threshold: record.MaximumLevel})
	}

	return conditions
}

// StockAlert is an alert raised by a scan; it is only mutated by resolution
type StockAlert struct {
	AlertID         string     `bson:"_id" json:"alertId"`
	ProductID       string     `bson:"productId" json:"productId"`
	ProductName     string     `bson:"productName" json:"productName"`
	SKU             string     `bson:"sku" json:"sku"`
	AlertType       Type       `bson:"alertType" json:"alertType"`
	AlertLevel      Level      `bson:"alertLevel" json:"alertLevel"`
	CurrentStock    int        `bson:"currentStock" json:"currentStock"`
	ThresholdStock  int        `bson:"thresholdStock" json:"thresholdStock"`
	Message         string     `bson:"message" json:"message"`
	SuggestedAction string     `bson:"suggestedAction" json:"suggestedAction"`
	Resolved        bool       `bson:"resolved" json:"resolved"`
	ResolvedBy      string     `bson:"resolvedBy,omitempty" json:"resolvedBy,omitempty"`
	ResolutionNotes string     `bson:"resolutionNotes,omitempty" json:"resolutionNotes,omitempty"`
	ResolvedAt      *time.Time `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	CreatedAt       time.Time  `bson:"createdAt" json:"createdAt"`
	Version         int        `bson:"version" json:"version"`

	common.EventRecorder `bson:"-" json:"-"`
}

// NewStockAlert opens an alert for a condition found on record
func NewStockAlert(record *ledger.StockRecord, condition Condition) *StockAlert {
	a := &StockAlert{
		AlertID:        common.NewID(),
		ProductID:      record.ProductID,
		ProductName:    record.ProductName,
		SKU:            record.SKU,
		AlertType:      condition.Type,
		AlertLevel:     condition.Level,
		CurrentStock:   record.CurrentQuantity,
		ThresholdStock: condition.Threshold,
		CreatedAt:      time.Now().UTC(),
	}
	a.Message = a.message()
	a.SuggestedAction = suggestedAction(condition.Type)
	return a
}

func (a *StockAlert) message() string {
	switch a.AlertType {
	case TypeOutOfStock:
		return fmt.Sprintf("Out of stock alert for %s (SKU: %s). Urgent restocking required.", a.ProductName, a.SKU)
	case TypeOverstock:
		return fmt.Sprintf("Overstock alert for %s (SKU: %s). Current stock: %d, Maximum level: %d",
			a.ProductName, a.SKU, a.CurrentStock, a.ThresholdStock)
	default:
		return fmt.Sprintf("Low stock alert for %s (SKU: %s). Current stock: %d, Threshold: %d",
			a.ProductName, a.SKU, a.CurrentStock, a.ThresholdStock)
	}
}

func suggestedAction(t Type) string {
	switch t {
	case TypeOutOfStock:
		return "Contact supplier for emergency restocking and consider alternative suppliers."
	case TypeOverstock:
		return "Run promotions or discounts to reduce excess inventory."
	default:
		return "Place purchase order with supplier."
	}
}

// Resolve closes the alert. A resolved alert cannot be resolved again.
func (a *StockAlert) Resolve(resolvedBy, notes string) error {
	if a.Resolved {
		return ErrAlreadyResolved
	}
	if resolvedBy == "" {
		return ErrResolverRequired
	}

	now := time.Now().UTC()
	a.Resolved = true
	a.ResolvedBy = resolvedBy
	a.ResolutionNotes = notes
	a.ResolvedAt = &now
	a.Record(&AlertResolvedEvent{
		AlertID:    a.AlertID,
		ProductID:  a.ProductID,
		AlertType:  a.AlertType,
		ResolvedBy: resolvedBy,
		ResolvedAt: now,
	})
	return nil
}

// NotificationData is the payload sent to the notification collaborator
func (a *StockAlert) NotificationData() cloudevents.StockAlertData {
	return cloudevents.StockAlertData{
		AlertID:         a.AlertID,
		ProductID:       a.ProductID,
		ProductName:     a.ProductName,
		SKU:             a.SKU,
		AlertType:       string(a.AlertType),
		AlertLevel:      string(a.AlertLevel),
		CurrentStock:    a.CurrentStock,
		ThresholdStock:  a.ThresholdStock,
		Message:         a.Message,
		SuggestedAction: a.SuggestedAction,
		CreatedAt:       a.CreatedAt,
	}
}

// Clone returns a deep copy without pending events
func (a *StockAlert) Clone() *StockAlert {
	c := *a
	c.EventRecorder = common.EventRecorder{}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

// AlertResolvedEvent is published when an alert is resolved
type AlertResolvedEvent struct {
	AlertID    string    `json:"alertId"`
	ProductID  string    `json:"productId"`
	AlertType  Type      `json:"alertType"`
	ResolvedBy string    `json:"resolvedBy"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

func (e *AlertResolvedEvent) EventType() string     { return cloudevents.StockAlertResolved }
func (e *AlertResolvedEvent) OccurredAt() time.Time { return e.ResolvedAt }
