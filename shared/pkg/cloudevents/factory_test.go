package cloudevents

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventFactory_CreateEvent(t *testing.T) {
	factory := NewEventFactory(SourceFulfillment)

	event := factory.CreateEventWithCorrelation(context.Background(), OrderStatusChanged, "order/ORD-1",
		map[string]string{"to": "CONFIRMED"}, "corr-1", "ORD-1")

	assert.Equal(t, "1.0", event.SpecVersion)
	assert.Equal(t, SourceFulfillment, event.Source)
	assert.Equal(t, "order/ORD-1", event.Subject)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "corr-1", event.CorrelationID)
	assert.Empty(t, event.TraceParent)

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"wmsorderid":"ORD-1"`)
}

func TestEventFactory_StockAlertRaised(t *testing.T) {
	factory := NewEventFactory(SourceFulfillment)

	event := factory.CreateStockAlertRaisedEvent(context.Background(), StockAlertData{
		AlertID:   "a-1",
		ProductID: "P-1",
		AlertType: "LOW_STOCK",
	})

	assert.Equal(t, StockAlertRaised, event.Type)
	assert.Equal(t, "product/P-1", event.Subject)
}
