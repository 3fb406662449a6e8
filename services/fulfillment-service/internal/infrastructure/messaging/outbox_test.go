package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"
	"github.com/wms-platform/fulfillment/shared/pkg/kafka"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/alert"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/ledger"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
)

func TestAggregateTopic(t *testing.T) {
	tests := []struct {
		aggregate Aggregate
		topic     string
	}{
		{AggregateStock, kafka.Topics.InventoryEvents},
		{AggregateAlert, kafka.Topics.AlertsEvents},
		{AggregateOrder, kafka.Topics.OrdersEvents},
		{AggregateShipment, kafka.Topics.OrdersEvents},
		{AggregateReturn, kafka.Topics.OrdersEvents},
	}
	for _, tt := range tests {
		t.Run(string(tt.aggregate), func(t *testing.T) {
			assert.Equal(t, tt.topic, tt.aggregate.Topic())
		})
	}
}

func TestOutboxMapper_Map(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mapper := NewOutboxMapper(cloudevents.NewEventFactory(cloudevents.SourceFulfillment))
	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-1")

	events := []common.DomainEvent{
		&order.OrderStatusChangedEvent{OrderID: "o-1", PreviousStatus: order.StatusPending, NewStatus: order.StatusConfirmed, ChangedAt: at},
	}
	rows, err := mapper.Map(ctx, AggregateOrder, "o-1", events)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "o-1", row.AggregateID)
	assert.Equal(t, "Order", row.AggregateType)
	assert.Equal(t, kafka.Topics.OrdersEvents, row.Topic)
	assert.Equal(t, cloudevents.OrderStatusChanged, row.EventType)

	ce, err := row.ToCloudEvent()
	require.NoError(t, err)
	assert.Equal(t, "Order/o-1", ce.Subject)
	assert.Equal(t, "corr-1", ce.CorrelationID)
	assert.Equal(t, "o-1", ce.OrderID)
	assert.True(t, at.Equal(ce.Time))
}

func TestOutboxMapper_StockEventsHaveNoOrder(t *testing.T) {
	mapper := NewOutboxMapper(nil)
	rows, err := mapper.Map(context.Background(), AggregateStock, "p-1", []common.DomainEvent{
		&ledger.StockMovementEvent{ProductID: "p-1", Operation: ledger.OpReserve, Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	ce, err := rows[0].ToCloudEvent()
	require.NoError(t, err)
	assert.Empty(t, ce.OrderID)
	assert.Equal(t, kafka.Topics.InventoryEvents, rows[0].Topic)
}

func TestOutboxMapper_NoEvents(t *testing.T) {
	rows, err := NewOutboxMapper(nil).Map(context.Background(), AggregateOrder, "o-1", nil)
	require.NoError(t, err)
	assert.Nil(t, rows)
}

type recordingPublisher struct {
	topic string
	event *cloudevents.WMSCloudEvent
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	p.topic = topic
	p.event = event
	return nil
}

func TestKafkaAlertNotifier(t *testing.T) {
	pub := &recordingPublisher{}
	notifier := NewKafkaAlertNotifier(pub, nil)

	a := &alert.StockAlert{AlertID: "a-1", ProductID: "p-1", AlertType: alert.TypeLowStock, CurrentStock: 3}
	require.NoError(t, notifier.NotifyAlertRaised(context.Background(), a))

	assert.Equal(t, kafka.Topics.AlertsEvents, pub.topic)
	require.NotNil(t, pub.event)
	assert.Equal(t, cloudevents.StockAlertRaised, pub.event.Type)
	assert.Equal(t, "product/p-1", pub.event.Subject)
}
