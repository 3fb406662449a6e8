package pipeline

import (
	"context"
)

// PickListRepository persists pick lists. FindByOrderID returns the most
// recently created pick list of the order.
type PickListRepository interface {
	Create(ctx context.Context, p *PickList) error
	Update(ctx context.Context, p *PickList) error
	FindByID(ctx context.Context, id string) (*PickList, error)
	FindByOrderID(ctx context.Context, orderID string) (*PickList, error)
}

// PackageRepository persists packages; at most one per order
type PackageRepository interface {
	Create(ctx context.Context, p *Package) error
	Update(ctx context.Context, p *Package) error
	FindByID(ctx context.Context, id string) (*Package, error)
	FindByOrderID(ctx context.Context, orderID string) (*Package, error)
}

// QualityCheckRepository persists quality checks; at most one per order
type QualityCheckRepository interface {
	Create(ctx context.Context, q *QualityCheck) error
	Update(ctx context.Context, q *QualityCheck) error
	FindByID(ctx context.Context, id string) (*QualityCheck, error)
	FindByOrderID(ctx context.Context, orderID string) (*QualityCheck, error)
}

// ShipmentRepository persists shipments; at most one per order
type ShipmentRepository interface {
	Create(ctx context.Context, s *Shipment) error
	Update(ctx context.Context, s *Shipment) error
	FindByID(ctx context.Context, id string) (*Shipment, error)
	FindByOrderID(ctx context.Context, orderID string) (*Shipment, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*Shipment, error)
}

// TrackingRepository stores the append-only event log and the delivery view
type TrackingRepository interface {
	Append(ctx context.Context, ev *TrackingEvent) error
	ListEvents(ctx context.Context, trackingNumber string) ([]*TrackingEvent, error)
	CreateStatus(ctx context.Context, d *DeliveryStatus) error
	UpdateStatus(ctx context.Context, d *DeliveryStatus) error
	FindStatus(ctx context.Context, trackingNumber string) (*DeliveryStatus, error)
}
