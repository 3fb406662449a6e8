package pipeline

import (
	"time"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
)

// TrackingEventType is a carrier scan type
type TrackingEventType string

const (
	EventShipped        TrackingEventType = "SHIPPED"
	EventInTransit      TrackingEventType = "IN_TRANSIT"
	EventOutForDelivery TrackingEventType = "OUT_FOR_DELIVERY"
	EventDelivered      TrackingEventType = "DELIVERED"
	EventException      TrackingEventType = "EXCEPTION"
)

// IsValid checks if the event type is valid
func (t TrackingEventType) IsValid() bool {
	switch t {
	case EventShipped, EventInTransit, EventOutForDelivery, EventDelivered, EventException:
		return true
	default:
		return false
	}
}

// IsMilestone reports whether the type always updates the delivery status
func (t TrackingEventType) IsMilestone() bool {
	return t == EventShipped || t == EventDelivered || t == EventException
}

// TrackingEvent is an append-only carrier scan
type TrackingEvent struct {
	EventID           string            `bson:"_id" json:"eventId"`
	TrackingNumber    string            `bson:"trackingNumber" json:"trackingNumber"`
	ShipmentID        string            `bson:"shipmentId" json:"shipmentId"`
	OrderID           string            `bson:"orderId" json:"orderId"`
	EventType         TrackingEventType `bson:"eventType" json:"eventType"`
	Description       string            `bson:"description,omitempty" json:"description,omitempty"`
	Location          string            `bson:"location,omitempty" json:"location,omitempty"`
	EventTimestamp    time.Time         `bson:"eventTimestamp" json:"eventTimestamp"`
	Carrier           string            `bson:"carrier,omitempty" json:"carrier,omitempty"`
	CarrierStatusCode string            `bson:"carrierStatusCode,omitempty" json:"carrierStatusCode,omitempty"`
	SignedBy          string            `bson:"signedBy,omitempty" json:"signedBy,omitempty"`
	IsMilestone       bool              `bson:"isMilestone" json:"isMilestone"`
	CreatedAt         time.Time         `bson:"createdAt" json:"createdAt"`
}

// TrackingParams is a carrier scan as reported
type TrackingParams struct {
	EventType         TrackingEventType
	Description       string
	Location          string
	EventTimestamp    time.Time
	Carrier           string
	CarrierStatusCode string
	SignedBy          string
	IsMilestone       bool
}

// NewTrackingEvent records a scan against a shipment that has left the warehouse
func NewTrackingEvent(s *Shipment, params TrackingParams) (*TrackingEvent, error) {
	if !s.IsCompleted() {
		return nil, ErrInvalidState
	}
	if !params.EventType.IsValid() {
		return nil, ErrInvalidEvent
	}
	if params.EventTimestamp.IsZero() {
		return nil, ErrMissingTime
	}
	carrier := params.Carrier
	if carrier == "" {
		carrier = s.Carrier
	}
	return &TrackingEvent{
		EventID:           common.NewID(),
		TrackingNumber:    s.TrackingNumber,
		ShipmentID:        s.ShipmentID,
		OrderID:           s.OrderID,
		EventType:         params.EventType,
		Description:       params.Description,
		Location:          params.Location,
		EventTimestamp:    params.EventTimestamp.UTC(),
		Carrier:           carrier,
		CarrierStatusCode: params.CarrierStatusCode,
		SignedBy:          params.SignedBy,
		IsMilestone:       params.IsMilestone || params.EventType.IsMilestone(),
		CreatedAt:         time.Now().UTC(),
	}, nil
}

// DeliveryState is the current state of a delivery
type DeliveryState string

const (
	DeliveryPending        DeliveryState = "PENDING"
	DeliveryShipped        DeliveryState = "SHIPPED"
	DeliveryInTransit      DeliveryState = "IN_TRANSIT"
	DeliveryOutForDelivery DeliveryState = "OUT_FOR_DELIVERY"
	DeliveryDelivered      DeliveryState = "DELIVERED"
	DeliveryException      DeliveryState = "EXCEPTION"
)

// DeliveryStatus is the single current view of a tracking number
type DeliveryStatus struct {
	TrackingNumber    string        `bson:"_id" json:"trackingNumber"`
	ShipmentID        string        `bson:"shipmentId" json:"shipmentId"`
	OrderID           string        `bson:"orderId" json:"orderId"`
	PackageID         string        `bson:"packageId" json:"packageId"`
	Carrier           string        `bson:"carrier" json:"carrier"`
	ServiceType       string        `bson:"serviceType" json:"serviceType"`
	CurrentStatus     DeliveryState `bson:"currentStatus" json:"currentStatus"`
	StatusDescription string        `bson:"statusDescription,omitempty" json:"statusDescription,omitempty"`
	LastEventAt       *time.Time    `bson:"lastEventAt,omitempty" json:"lastEventAt,omitempty"`
	LastLocation      string        `bson:"lastLocation,omitempty" json:"lastLocation,omitempty"`
	SignedBy          string        `bson:"signedBy,omitempty" json:"signedBy,omitempty"`
	DeliveryAttempts  int           `bson:"deliveryAttempts" json:"deliveryAttempts"`
	IsDelivered       bool          `bson:"isDelivered" json:"isDelivered"`
	IsException       bool          `bson:"isException" json:"isException"`
	ExceptionReason   string        `bson:"exceptionReason,omitempty" json:"exceptionReason,omitempty"`
	ActualDelivery    *time.Time    `bson:"actualDelivery,omitempty" json:"actualDelivery,omitempty"`
	Version           int           `bson:"version" json:"version"`
	CreatedAt         time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time     `bson:"updatedAt" json:"updatedAt"`

	common.EventRecorder `bson:"-" json:"-"`
}

// NewDeliveryStatus opens the delivery view when a shipment is scheduled
func NewDeliveryStatus(s *Shipment) *DeliveryStatus {
	now := time.Now().UTC()
	return &DeliveryStatus{
		TrackingNumber: s.TrackingNumber,
		ShipmentID:     s.ShipmentID,
		OrderID:        s.OrderID,
		PackageID:      s.PackageID,
		Carrier:        s.Carrier,
		ServiceType:    s.ServiceType,
		CurrentStatus:  DeliveryPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Apply folds a milestone into the status, last-write-wins on the event
// timestamp. It reports whether the event changed the status. Once delivered
// the status is final.
func (d *DeliveryStatus) Apply(ev *TrackingEvent) bool {
	if !ev.IsMilestone || d.IsDelivered {
		return false
	}
	if d.LastEventAt != nil && ev.EventTimestamp.Before(*d.LastEventAt) {
		return false
	}

	at := ev.EventTimestamp
	d.CurrentStatus = DeliveryState(ev.EventType)
	d.StatusDescription = ev.Description
	d.LastEventAt = &at
	if ev.Location != "" {
		d.LastLocation = ev.Location
	}
	d.UpdatedAt = time.Now().UTC()

	switch ev.EventType {
	case EventOutForDelivery:
		d.DeliveryAttempts++
	case EventException:
		d.IsException = true
		d.ExceptionReason = ev.Description
	case EventDelivered:
		d.IsDelivered = true
		d.ActualDelivery = &at
		d.SignedBy = ev.SignedBy
		if d.DeliveryAttempts == 0 {
			d.DeliveryAttempts = 1
		}
		d.Record(&DeliveryConfirmedEvent{
			OrderID:        d.OrderID,
			ShipmentID:     d.ShipmentID,
			TrackingNumber: d.TrackingNumber,
			SignedBy:       ev.SignedBy,
			DeliveredAt:    at,
		})
	}
	return true
}

// Clone returns a copy without pending events
func (d *DeliveryStatus) Clone() *DeliveryStatus {
	c := *d
	c.EventRecorder = common.EventRecorder{}
	return &c
}
