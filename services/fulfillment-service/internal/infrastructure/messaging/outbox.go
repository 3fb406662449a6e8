package messaging

import (
	"context"
	"fmt"

	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"
	"github.com/wms-platform/fulfillment/shared/pkg/kafka"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"
	"github.com/wms-platform/fulfillment/shared/pkg/outbox"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/exception"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/pipeline"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/returns"
)

// Aggregate names the record type that raised an event
type Aggregate string

const (
	AggregateStock        Aggregate = "Stock"
	AggregateAlert        Aggregate = "StockAlert"
	AggregateOrder        Aggregate = "Order"
	AggregatePickList     Aggregate = "PickList"
	AggregatePackage      Aggregate = "Package"
	AggregateQualityCheck Aggregate = "QualityCheck"
	AggregateShipment     Aggregate = "Shipment"
	AggregateDelivery     Aggregate = "DeliveryStatus"
	AggregateException    Aggregate = "DeliveryException"
	AggregateReturn       Aggregate = "ReturnOrder"
)

// Topic returns the Kafka topic events of the aggregate are published to
func (a Aggregate) Topic() string {
	switch a {
	case AggregateStock:
		return kafka.Topics.InventoryEvents
	case AggregateAlert:
		return kafka.Topics.AlertsEvents
	default:
		return kafka.Topics.OrdersEvents
	}
}

func (a Aggregate) subject(id string) string {
	return fmt.Sprintf("%s/%s", a, id)
}

// OutboxMapper turns pending domain events into outbox rows. Repositories
// call it inside the same write that persists the aggregate.
type OutboxMapper struct {
	factory *cloudevents.EventFactory
}

// NewOutboxMapper creates a mapper stamping events with the factory's source
func NewOutboxMapper(factory *cloudevents.EventFactory) *OutboxMapper {
	if factory == nil {
		factory = cloudevents.NewEventFactory(cloudevents.SourceFulfillment)
	}
	return &OutboxMapper{factory: factory}
}

// Map converts the events of one aggregate
func (m *OutboxMapper) Map(ctx context.Context, aggregate Aggregate, aggregateID string, events []common.DomainEvent) ([]*outbox.OutboxEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}

	correlationID := logging.CorrelationIDFromContext(ctx)
	out := make([]*outbox.OutboxEvent, 0, len(events))
	for _, event := range events {
		ce := m.factory.CreateEventWithCorrelation(ctx,
			event.EventType(), aggregate.subject(aggregateID), event,
			correlationID, orderIDOf(event),
		)
		ce.Time = event.OccurredAt()

		row, err := outbox.NewOutboxEventFromCloudEvent(aggregateID, string(aggregate), aggregate.Topic(), ce)
		if err != nil {
			return nil, fmt.Errorf("failed to create outbox event: %w", err)
		}
		out = append(out, row)
	}
	return out, nil
}

func orderIDOf(event common.DomainEvent) string {
	switch e := event.(type) {
	case *order.OrderCreatedEvent:
		return e.OrderID
	case *order.OrderStatusChangedEvent:
		return e.OrderID
	case *pipeline.StageCompletedEvent:
		return e.OrderID
	case *pipeline.DeliveryConfirmedEvent:
		return e.OrderID
	case *exception.ExceptionReportedEvent:
		return e.OrderID
	case *exception.ExceptionResolvedEvent:
		return e.OrderID
	case *returns.ReturnRequestedEvent:
		return e.OrderID
	case *returns.ReturnCompletedEvent:
		return e.OrderID
	default:
		return ""
	}
}
