package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"
)

type recordingPublisher struct {
	failTypes map[string]bool
	published []*cloudevents.WMSCloudEvent
}

func (r *recordingPublisher) PublishEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	if r.failTypes[event.Type] {
		return errors.New("broker unavailable")
	}
	r.published = append(r.published, event)
	return nil
}

func newOutboxEvent(t *testing.T, eventType string) *OutboxEvent {
	t.Helper()
	factory := cloudevents.NewEventFactory(cloudevents.SourceFulfillment)
	ce := factory.CreateEvent(context.Background(), eventType, "product/P-1", map[string]int{"quantity": 1})
	event, err := NewOutboxEventFromCloudEvent("P-1", "StockRecord", "wms.fulfillment.inventory", ce)
	require.NoError(t, err)
	return event
}

func TestPublisher_ProcessBatch(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.SaveAll(ctx, []*OutboxEvent{
		newOutboxEvent(t, cloudevents.StockReserved),
		newOutboxEvent(t, cloudevents.StockCommitted),
	}))

	producer := &recordingPublisher{failTypes: map[string]bool{cloudevents.StockCommitted: true}}
	publisher := NewPublisher(repo, producer, logging.NewNop(), nil, nil)

	published := publisher.ProcessBatch(ctx)
	assert.Equal(t, 1, published)
	require.Len(t, producer.published, 1)
	assert.Equal(t, cloudevents.StockReserved, producer.published[0].Type)

	pending, err := repo.FindUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)
	assert.Equal(t, map[string]int{"published": 1, "failed": 1}, publisher.Stats())
}

func TestPublisher_GivesUpAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	event := newOutboxEvent(t, cloudevents.StockAdjusted)
	event.MaxRetries = 2
	require.NoError(t, repo.SaveAll(ctx, []*OutboxEvent{event}))

	producer := &recordingPublisher{failTypes: map[string]bool{cloudevents.StockAdjusted: true}}
	publisher := NewPublisher(repo, producer, logging.NewNop(), nil, nil)

	publisher.ProcessBatch(ctx)
	publisher.ProcessBatch(ctx)
	publisher.ProcessBatch(ctx)

	pending, err := repo.FindUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPublisher_StartStop(t *testing.T) {
	publisher := NewPublisher(NewMemoryRepository(), &recordingPublisher{}, logging.NewNop(), nil, nil)

	require.NoError(t, publisher.Start(context.Background()))
	assert.True(t, publisher.IsRunning())
	assert.Error(t, publisher.Start(context.Background()))

	require.NoError(t, publisher.Stop())
	assert.False(t, publisher.IsRunning())
}
