package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"
)

// Errors
var (
	ErrValidation   = errors.New("invalid stage input")
	ErrInvalidState = errors.New("invalid stage state")

	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	ErrUnknownItem     = fmt.Errorf("%w: product is not part of this stage", ErrValidation)
	ErrOverPick        = fmt.Errorf("%w: picked quantity exceeds the required quantity", ErrValidation)
	ErrIncompletePick  = fmt.Errorf("%w: every item must be fully picked", ErrValidation)
	ErrInvalidWeight   = fmt.Errorf("%w: weight must be greater than 0", ErrValidation)
	ErrScoresRequired  = fmt.Errorf("%w: all five quality scores are required", ErrValidation)
	ErrInvalidScore    = fmt.Errorf("%w: quality scores must be between 1 and 5", ErrValidation)
	ErrInvalidEvent    = fmt.Errorf("%w: unknown tracking event type", ErrValidation)
	ErrMissingTime     = fmt.Errorf("%w: event timestamp is required", ErrValidation)

	ErrStageCompleted = fmt.Errorf("%w: stage already completed", ErrInvalidState)
	ErrStageCancelled = fmt.Errorf("%w: stage cancelled", ErrInvalidState)
	ErrCheckApproved  = fmt.Errorf("%w: an approved check cannot be rechecked", ErrInvalidState)
	ErrCheckPending   = fmt.Errorf("%w: check has not been completed", ErrInvalidState)
)

// StageKind names a pipeline stage
type StageKind string

const (
	StagePick     StageKind = "PICK"
	StagePack     StageKind = "PACK"
	StageQuality  StageKind = "QUALITY"
	StageShipment StageKind = "SHIPMENT"
	StageTracking StageKind = "TRACKING"
	StageDelivery StageKind = "DELIVERY"
)

// StageOutcome is returned by every completion operation so the orchestrator
// can decide what to do next.
type StageOutcome struct {
	StageID       string    `json:"stageId"`
	Kind          StageKind `json:"kind"`
	OrderID       string    `json:"orderId"`
	Completed     bool      `json:"completed"`
	AdvancesOrder bool      `json:"advancesOrder"`
	OrderStatus   string    `json:"orderStatus,omitempty"`
}

// StageCompletedEvent is raised when a stage record reaches its completed status
type StageCompletedEvent struct {
	OrderID     string    `json:"orderId"`
	StageID     string    `json:"stageId"`
	Kind        StageKind `json:"kind"`
	Result      string    `json:"result,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

func (e *StageCompletedEvent) EventType() string     { return cloudevents.StageCompleted }
func (e *StageCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }

// DeliveryConfirmedEvent is raised when a DELIVERED milestone is applied
type DeliveryConfirmedEvent struct {
	OrderID        string    `json:"orderId"`
	ShipmentID     string    `json:"shipmentId"`
	TrackingNumber string    `json:"trackingNumber"`
	SignedBy       string    `json:"signedBy,omitempty"`
	DeliveredAt    time.Time `json:"deliveredAt"`
}

func (e *DeliveryConfirmedEvent) EventType() string     { return cloudevents.DeliveryConfirmed }
func (e *DeliveryConfirmedEvent) OccurredAt() time.Time { return e.DeliveredAt }
