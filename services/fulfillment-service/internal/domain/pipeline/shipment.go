package pipeline

import (
	"strings"
	"time"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
)

// ShipmentStatus represents the status of a shipment
type ShipmentStatus string

const (
	ShipmentScheduled ShipmentStatus = "SCHEDULED"
	ShipmentInTransit ShipmentStatus = "IN_TRANSIT"
	ShipmentDelivered ShipmentStatus = "DELIVERED"
)

// DispatchStatus represents the status of a dispatch slot
type DispatchStatus string

const (
	DispatchScheduled  DispatchStatus = "SCHEDULED"
	DispatchDispatched DispatchStatus = "DISPATCHED"
)

// DispatchSchedule is a planned hand-over to the carrier
type DispatchSchedule struct {
	ScheduleID   string         `bson:"scheduleId" json:"scheduleId"`
	ScheduleType string         `bson:"scheduleType" json:"scheduleType"`
	ScheduledAt  time.Time      `bson:"scheduledAt" json:"scheduledAt"`
	ActualAt     *time.Time     `bson:"actualAt,omitempty" json:"actualAt,omitempty"`
	DockDoor     string         `bson:"dockDoor,omitempty" json:"dockDoor,omitempty"`
	DispatchedBy string         `bson:"dispatchedBy,omitempty" json:"dispatchedBy,omitempty"`
	Status       DispatchStatus `bson:"status" json:"status"`
}

// Shipment is the carrier hand-over stage record
type Shipment struct {
	ShipmentID     string             `bson:"_id" json:"shipmentId"`
	ShipmentNumber string             `bson:"shipmentNumber" json:"shipmentNumber"`
	TrackingNumber string             `bson:"trackingNumber" json:"trackingNumber"`
	OrderID        string             `bson:"orderId" json:"orderId"`
	PackageID      string             `bson:"packageId" json:"packageId"`
	Carrier        string             `bson:"carrier" json:"carrier"`
	ServiceType    string             `bson:"serviceType" json:"serviceType"`
	WeightKg       float64            `bson:"weightKg" json:"weightKg"`
	Status         ShipmentStatus     `bson:"status" json:"status"`
	Schedules      []DispatchSchedule `bson:"schedules" json:"schedules"`
	ShippedAt      *time.Time         `bson:"shippedAt,omitempty" json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time         `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	Version        int                `bson:"version" json:"version"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`

	common.EventRecorder `bson:"-" json:"-"`
}

// ShipmentParams describes the carrier hand-over
type ShipmentParams struct {
	Carrier     string
	ServiceType string
	ScheduledAt time.Time
	DockDoor    string
}

// NewShipment schedules the shipment of a package whose quality check was approved.
// Carrier and service type default to the values chosen at packing.
func NewShipment(pkg *Package, check *QualityCheck, params ShipmentParams) (*Shipment, error) {
	if check == nil || !check.ApprovedForShipment || check.PackageID != pkg.PackageID {
		return nil, ErrInvalidState
	}
	carrier := strings.ToUpper(params.Carrier)
	if carrier == "" {
		carrier = pkg.Carrier
	}
	service := strings.ToUpper(params.ServiceType)
	if service == "" {
		service = pkg.ServiceType
	}
	if service == "" {
		service = "STANDARD"
	}

	now := time.Now().UTC()
	scheduledAt := params.ScheduledAt.UTC()
	if params.ScheduledAt.IsZero() {
		scheduledAt = now
	}
	return &Shipment{
		ShipmentID:     common.NewID(),
		ShipmentNumber: common.NewNumber("SHP", now),
		TrackingNumber: common.NewTrackingNumber(),
		OrderID:        pkg.OrderID,
		PackageID:      pkg.PackageID,
		Carrier:        carrier,
		ServiceType:    service,
		WeightKg:       pkg.WeightKg,
		Status:         ShipmentScheduled,
		Schedules: []DispatchSchedule{{
			ScheduleID:   common.NewID(),
			ScheduleType: "PICKUP",
			ScheduledAt:  scheduledAt,
			DockDoor:     params.DockDoor,
			Status:       DispatchScheduled,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsCompleted reports whether the shipment has left the warehouse
func (s *Shipment) IsCompleted() bool {
	return s.Status == ShipmentInTransit || s.Status == ShipmentDelivered
}

// Dispatch hands the shipment to the carrier
func (s *Shipment) Dispatch(dispatchedBy string) error {
	if s.Status != ShipmentScheduled {
		return ErrStageCompleted
	}
	now := time.Now().UTC()
	s.Status = ShipmentInTransit
	s.ShippedAt = &now
	s.UpdatedAt = now
	if n := len(s.Schedules); n > 0 {
		sched := &s.Schedules[n-1]
		sched.Status = DispatchDispatched
		sched.ActualAt = &now
		sched.DispatchedBy = dispatchedBy
	}
	s.Record(&StageCompletedEvent{OrderID: s.OrderID, StageID: s.ShipmentID, Kind: StageShipment, CompletedAt: now})
	return nil
}

// RevertDispatch undoes Dispatch when the order could not be marked shipped
func (s *Shipment) RevertDispatch() {
	if s.Status != ShipmentInTransit {
		return
	}
	s.Status = ShipmentScheduled
	s.ShippedAt = nil
	s.UpdatedAt = time.Now().UTC()
	if n := len(s.Schedules); n > 0 {
		sched := &s.Schedules[n-1]
		sched.Status = DispatchScheduled
		sched.ActualAt = nil
		sched.DispatchedBy = ""
	}
	s.ClearDomainEvents()
}

// MarkDelivered records the delivery confirmed by tracking
func (s *Shipment) MarkDelivered(at time.Time) {
	if s.Status == ShipmentDelivered {
		return
	}
	at = at.UTC()
	s.Status = ShipmentDelivered
	s.DeliveredAt = &at
	s.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy without pending events
func (s *Shipment) Clone() *Shipment {
	c := *s
	c.EventRecorder = common.EventRecorder{}
	c.Schedules = append([]DispatchSchedule(nil), s.Schedules...)
	return &c
}
