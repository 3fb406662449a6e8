// Package bootstrap opens the configured storage backends and wires the
// application services over them. The API server and the monitor CLI share it.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"
	"github.com/wms-platform/fulfillment/shared/pkg/kafka"
	"github.com/wms-platform/fulfillment/shared/pkg/keylock"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"
	"github.com/wms-platform/fulfillment/shared/pkg/metrics"
	sharedmongo "github.com/wms-platform/fulfillment/shared/pkg/mongodb"
	"github.com/wms-platform/fulfillment/shared/pkg/outbox"
	"github.com/wms-platform/fulfillment/shared/pkg/temporal"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/api/handlers"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/config"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/alert"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/exception"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/ledger"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/order"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/returns"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/infrastructure/memory"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/infrastructure/messaging"
	mongoRepo "github.com/wms-platform/fulfillment/services/fulfillment-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/infrastructure/orchestration"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/infrastructure/postgres"
)

// Stores are the opened repositories and the outboxes their events land in
type Stores struct {
	Stock     ledger.Repository
	Alerts    alert.Repository
	Orders    order.Repository
	Pipeline  application.PipelineRepositories
	Exception exception.Repository
	Returns   returns.Repository

	// Outboxes holds one entry per backend that records events
	Outboxes []outbox.Repository

	ping    []func(context.Context) error
	closers []func(context.Context) error
}

// Ready reports whether every backing store answers
func (s *Stores) Ready(ctx context.Context) error {
	for _, p := range s.ping {
		if err := p(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the backend connections
func (s *Stores) Close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i](ctx)
	}
}

// OpenStores connects to the backends selected by cfg.Storage
func OpenStores(ctx context.Context, cfg *config.Config, factory *cloudevents.EventFactory, m *metrics.Metrics, logger *logging.Logger) (*Stores, error) {
	mapper := messaging.NewOutboxMapper(factory)
	s := &Stores{}

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		repos := memory.NewRepositories(nil, mapper)
		s.useMemory(repos)
		logger.Warn("Using in-memory storage; state is lost on restart")

	case config.BackendMongoDB:
		client, err := sharedmongo.NewClient(ctx, cfg.MongoClientConfig())
		if err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		s.ping = append(s.ping, client.HealthCheck)

		repos := mongoRepo.NewRepositories(client, mapper, m, logger)
		if err := repos.EnsureIndexes(ctx); err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		s.useMongo(repos)
		logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.StockBackend() == config.BackendPostgres {
		db, err := openPostgres(ctx, cfg.Postgres.DSN)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return db.Close() })
		s.ping = append(s.ping, db.PingContext)
		s.Stock = postgres.NewStockRepository(db, mapper)
		s.Outboxes = append(s.Outboxes, postgres.NewOutboxRepository(db))
		logger.Info("Stock ledger stored in PostgreSQL")
	}

	return s, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return db, nil
}

func (s *Stores) useMemory(r *memory.Repositories) {
	s.Stock = r.Stock
	s.Alerts = r.Alerts
	s.Orders = r.Orders
	s.Pipeline = application.PipelineRepositories{
		PickLists:     r.PickLists,
		Packages:      r.Packages,
		QualityChecks: r.QualityChecks,
		Shipments:     r.Shipments,
		Tracking:      r.Tracking,
	}
	s.Exception = r.Exceptions
	s.Returns = r.Returns
	s.Outboxes = append(s.Outboxes, r.Outbox)
}

func (s *Stores) useMongo(r *mongoRepo.Repositories) {
	s.Stock = r.Stock
	s.Alerts = r.Alerts
	s.Orders = r.Orders
	s.Pipeline = application.PipelineRepositories{
		PickLists:     r.PickLists,
		Packages:      r.Packages,
		QualityChecks: r.QualityChecks,
		Shipments:     r.Shipments,
		Tracking:      r.Tracking,
	}
	s.Exception = r.Exceptions
	s.Returns = r.Returns
	s.Outboxes = append(s.Outboxes, r.Outbox)
}

// NewLocker returns the Redis locker when Redis is configured, otherwise a
// process-local one. The returned closer is never nil.
func NewLocker(ctx context.Context, cfg *config.Config, logger *logging.Logger) (keylock.Locker, func() error, error) {
	if cfg.Redis.Addr == "" {
		return keylock.NewLocalLocker(cfg.Ledger.LockAcquireTimeout), func() error { return nil }, nil
	}
	locker := keylock.NewRedisLocker(cfg.RedisLockerConfig(), logger.Logger)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := locker.Ping(pingCtx); err != nil {
		_ = locker.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("Using Redis key locks", "addr", cfg.Redis.Addr)
	return locker, locker.Close, nil
}

// NewOrchestrator connects to Temporal when a host is configured. It returns
// a nil Orchestrator otherwise. The returned closer is never nil.
func NewOrchestrator(ctx context.Context, cfg *config.Config, logger *logging.Logger) (application.Orchestrator, func(), error) {
	if cfg.Temporal.HostPort == "" {
		return nil, func() {}, nil
	}
	temporalConfig := temporal.DefaultConfig()
	temporalConfig.HostPort = cfg.Temporal.HostPort
	temporalConfig.Namespace = cfg.Temporal.Namespace
	temporalConfig.Identity = cfg.ServiceName

	c, err := temporal.NewClient(ctx, temporalConfig, logger.Logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Orders are orchestrated by Temporal", "hostPort", temporalConfig.HostPort, "namespace", temporalConfig.Namespace)
	return orchestration.NewTemporalOrchestrator(c), c.Close, nil
}

// NewServices wires the application services over the stores. workflows is
// nil when orders are not orchestrated.
func NewServices(cfg *config.Config, s *Stores, locker keylock.Locker, notifier application.AlertNotifier, workflows application.Orchestrator, m *metrics.Metrics, logger *logging.Logger) handlers.Services {
	retries := cfg.Ledger.RetryAttempts
	ledgerSvc := application.NewLedgerService(s.Stock, locker, retries, m, logger)
	orders := application.NewOrderService(s.Orders, ledgerSvc, s.Pipeline.Shipments, workflows, locker, retries, m, logger)

	return handlers.Services{
		Ledger: ledgerSvc,
		Alerts: application.NewAlertService(s.Alerts, s.Stock, notifier, locker, m, logger),
		Orders: orders,
		Pipeline: application.NewPipelineService(s.Pipeline, s.Orders, orders, locker, application.PipelineConfig{
			QualityMinimumScore: cfg.Pipeline.QualityMinimumScore,
			RetryAttempts:       retries,
		}, m, logger),
		Exceptions: application.NewExceptionService(s.Exception, s.Pipeline.Shipments, s.Orders, ledgerSvc, locker, retries, m, logger),
		Returns:    application.NewReturnService(s.Returns, s.Orders, orders, ledgerSvc, locker, retries, cfg.Returns.Window, m, logger),
	}
}

// StartPublishers starts one outbox publisher per outbox. The returned stop
// function stops them all.
func StartPublishers(ctx context.Context, cfg *config.Config, s *Stores, producer kafka.EventPublisher, m *metrics.Metrics, logger *logging.Logger) (func(), error) {
	var started []*outbox.Publisher
	stop := func() {
		for _, p := range started {
			if err := p.Stop(); err != nil {
				logger.WithError(err).Warn("Failed to stop outbox publisher")
			}
		}
	}
	for _, repo := range s.Outboxes {
		p := outbox.NewPublisher(repo, producer, logger, m, &outbox.PublisherConfig{
			PollInterval: cfg.Kafka.OutboxPollInterval,
			BatchSize:    cfg.Kafka.OutboxBatchSize,
		})
		if err := p.Start(ctx); err != nil {
			stop()
			return nil, fmt.Errorf("start outbox publisher: %w", err)
		}
		started = append(started, p)
	}
	return stop, nil
}
