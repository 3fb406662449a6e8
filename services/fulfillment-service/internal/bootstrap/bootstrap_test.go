package bootstrap

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/config"
)

type capturingProducer struct {
	mu     sync.Mutex
	events []*cloudevents.WMSCloudEvent
}

func (p *capturingProducer) PublishEvent(_ context.Context, _ string, event *cloudevents.WMSCloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingProducer) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func TestOpenStores_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "cassandra"

	_, err := OpenStores(context.Background(), cfg, nil, nil, logging.NewNop())
	assert.Error(t, err)
}

func TestMemoryStack_PublishesThroughOutbox(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := logging.NewNop()

	cfg := config.Default()
	cfg.Kafka.OutboxPollInterval = 10 * time.Millisecond

	stores, err := OpenStores(ctx, cfg, cloudevents.NewEventFactory(cloudevents.SourceFulfillment), nil, logger)
	require.NoError(t, err)
	defer stores.Close(ctx)
	require.NoError(t, stores.Ready(ctx))
	require.Len(t, stores.Outboxes, 1)

	locker, closeLocker, err := NewLocker(ctx, cfg, logger)
	require.NoError(t, err)
	defer closeLocker()

	producer := &capturingProducer{}
	stop, err := StartPublishers(ctx, cfg, stores, producer, nil, logger)
	require.NoError(t, err)
	defer stop()

	services := NewServices(cfg, stores, locker, nil, nil, nil, logger)
	_, err = services.Ledger.RegisterProduct(ctx, application.RegisterProductCommand{
		ProductID: "P1", ProductName: "Widget", SKU: "SKU-P1", InitialQuantity: 5,
	})
	require.NoError(t, err)
	_, err = services.Ledger.Reserve(ctx, "P1", 2)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		types := producer.types()
		return contains(types, cloudevents.StockRegistered) && contains(types, cloudevents.StockReserved)
	}, 2*time.Second, 10*time.Millisecond)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestNewOrchestrator_DisabledWithoutHost(t *testing.T) {
	cfg := config.Default()
	cfg.Temporal.HostPort = ""

	workflows, closeFn, err := NewOrchestrator(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	assert.Nil(t, workflows)
	require.NotNil(t, closeFn)
	closeFn()
}
