package messaging

import (
	"context"

	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"
	"github.com/wms-platform/fulfillment/shared/pkg/kafka"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/alert"
)

// KafkaAlertNotifier publishes newly opened stock alerts for the notification
// service to pick up
type KafkaAlertNotifier struct {
	producer kafka.EventPublisher
	factory  *cloudevents.EventFactory
}

// NewKafkaAlertNotifier creates a notifier on top of a (usually circuit broken) producer
func NewKafkaAlertNotifier(producer kafka.EventPublisher, factory *cloudevents.EventFactory) *KafkaAlertNotifier {
	if factory == nil {
		factory = cloudevents.NewEventFactory(cloudevents.SourceFulfillment)
	}
	return &KafkaAlertNotifier{producer: producer, factory: factory}
}

// NotifyAlertRaised sends a StockAlertRaised event
func (n *KafkaAlertNotifier) NotifyAlertRaised(ctx context.Context, a *alert.StockAlert) error {
	event := n.factory.CreateStockAlertRaisedEvent(ctx, a.NotificationData())
	return n.producer.PublishEvent(ctx, AggregateAlert.Topic(), event)
}
