package messaging

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"
)

type recordingSink struct {
	got []cloudevents.StockAlertData
	err error
}

func (s *recordingSink) Deliver(_ context.Context, a cloudevents.StockAlertData) error {
	s.got = append(s.got, a)
	return s.err
}

func alertEvent(t *testing.T) *cloudevents.WMSCloudEvent {
	t.Helper()
	factory := cloudevents.NewEventFactory(cloudevents.SourceFulfillment)
	event := factory.CreateStockAlertRaisedEvent(context.Background(), cloudevents.StockAlertData{
		AlertID:      "a-1",
		ProductID:    "P1",
		AlertType:    "OUT_OF_STOCK",
		AlertLevel:   "CRITICAL",
		CurrentStock: 0,
	})

	// round-trip through JSON the way the consumer sees it
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	var decoded cloudevents.WMSCloudEvent
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return &decoded
}

func TestDecodeStockAlert(t *testing.T) {
	data, err := DecodeStockAlert(alertEvent(t))
	require.NoError(t, err)
	assert.Equal(t, "a-1", data.AlertID)
	assert.Equal(t, "P1", data.ProductID)
	assert.Equal(t, "OUT_OF_STOCK", data.AlertType)

	_, err = DecodeStockAlert(&cloudevents.WMSCloudEvent{Data: map[string]any{"productId": "P1"}})
	assert.Error(t, err)

	_, err = DecodeStockAlert(&cloudevents.WMSCloudEvent{})
	assert.Error(t, err)
}

func TestAlertDispatcher_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to every sink", func(t *testing.T) {
		a, b := &recordingSink{}, &recordingSink{}
		d := NewAlertDispatcher(logging.NewNop(), a, NewLogSink(logging.NewNop()), b)

		require.NoError(t, d.Handle(ctx, alertEvent(t)))
		assert.Len(t, a.got, 1)
		assert.Len(t, b.got, 1)
	})

	t.Run("sink failure fails the event", func(t *testing.T) {
		failing := &recordingSink{err: stderrors.New("down")}
		ok := &recordingSink{}
		d := NewAlertDispatcher(logging.NewNop(), failing, ok)

		assert.Error(t, d.Handle(ctx, alertEvent(t)))
		assert.Len(t, ok.got, 1, "later sinks still run")
	})

	t.Run("malformed events are dropped", func(t *testing.T) {
		sink := &recordingSink{}
		d := NewAlertDispatcher(logging.NewNop(), sink)

		assert.NoError(t, d.Handle(ctx, &cloudevents.WMSCloudEvent{ID: "bad"}))
		assert.Empty(t, sink.got)
	})
}

func TestWebhookSink(t *testing.T) {
	t.Run("posts the alert", func(t *testing.T) {
		var got cloudevents.StockAlertData
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusAccepted)
		}))
		defer srv.Close()

		sink := NewWebhookSink(srv.URL, time.Second, logging.NewNop())
		require.NoError(t, sink.Deliver(context.Background(), cloudevents.StockAlertData{AlertID: "a-1", ProductID: "P1"}))
		assert.Equal(t, "a-1", got.AlertID)
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 2 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		sink := NewWebhookSink(srv.URL, time.Second, logging.NewNop())
		require.NoError(t, sink.Deliver(context.Background(), cloudevents.StockAlertData{AlertID: "a-1", ProductID: "P1"}))
		assert.EqualValues(t, 2, calls.Load())
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		sink := NewWebhookSink(srv.URL, time.Second, logging.NewNop())
		assert.Error(t, sink.Deliver(context.Background(), cloudevents.StockAlertData{AlertID: "a-1", ProductID: "P1"}))
		assert.EqualValues(t, 1, calls.Load())
	})
}
