package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"
	"github.com/wms-platform/fulfillment/shared/pkg/resilience"
)

type fakePublisher struct {
	err   error
	calls int
}

func (f *fakePublisher) PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	f.calls++
	return f.err
}

func TestNewMessage_RoundTripsExtensions(t *testing.T) {
	factory := cloudevents.NewEventFactory(cloudevents.SourceFulfillment)
	event := factory.CreateEventWithCorrelation(context.Background(), cloudevents.OrderStatusChanged,
		"order/o-1", map[string]string{"to": "SHIPPED"}, "corr-9", "o-1")

	msg, err := NewMessage(event)
	require.NoError(t, err)
	assert.Equal(t, []byte("order/o-1"), msg.Key)

	parsed, err := ParseMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, event.ID, parsed.ID)
	assert.Equal(t, "corr-9", parsed.CorrelationID)
	assert.Equal(t, "o-1", parsed.OrderID)
	assert.Equal(t, cloudevents.OrderStatusChanged, parsed.Type)
}

func TestParseMessage_InvalidPayload(t *testing.T) {
	msg, err := NewMessage(&cloudevents.WMSCloudEvent{ID: "x"})
	require.NoError(t, err)
	msg.Value = []byte("not json")

	_, err = ParseMessage(msg)
	assert.Error(t, err)
}

func TestCircuitBreakerProducer_OpensAfterFailures(t *testing.T) {
	fake := &fakePublisher{err: errors.New("broker down")}
	producer := NewCircuitBreakerProducer(fake, nil)
	event := &cloudevents.WMSCloudEvent{ID: "e-1", Type: cloudevents.StockReserved}

	var lastErr error
	for i := 0; i < 20; i++ {
		lastErr = producer.PublishEvent(context.Background(), Topics.InventoryEvents, event)
	}

	assert.ErrorIs(t, lastErr, resilience.ErrCircuitOpen)
	assert.Less(t, fake.calls, 20)
}
