package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"
	"github.com/wms-platform/fulfillment/shared/pkg/kafka"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"
	"github.com/wms-platform/fulfillment/shared/pkg/metrics"
	"github.com/wms-platform/fulfillment/shared/pkg/tracing"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/api/handlers"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/bootstrap"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/config"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/infrastructure/messaging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.DefaultConfig("fulfillment-service")).WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig(cfg.ServiceName)
	logConfig.Level = logging.ParseLevel(cfg.LogLevel)
	logConfig.Environment = cfg.Environment
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting fulfillment-service API",
		"storage", cfg.Storage.Backend,
		"stockStorage", cfg.StockBackend(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(cfg.ServiceName)
	tracingConfig.OTLPEndpoint = cfg.Tracing.OTLPEndpoint
	tracingConfig.Environment = cfg.Environment
	tracingConfig.SampleRate = cfg.Tracing.SampleRate
	tracingConfig.Enabled = cfg.Tracing.Enabled

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		// Continue without tracing
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", tracingConfig.OTLPEndpoint)
	}

	m := metrics.New(metrics.DefaultConfig(cfg.ServiceName))

	cfg.ApplyTopics()
	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceFulfillment)

	stores, err := bootstrap.OpenStores(ctx, cfg, eventFactory, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to open storage")
		os.Exit(1)
	}
	defer stores.Close(context.Background())

	locker, closeLocker, err := bootstrap.NewLocker(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize key locks")
		os.Exit(1)
	}
	defer closeLocker()

	// Kafka producer behind instrumentation and a circuit breaker
	producer := kafka.NewProductionProducer(cfg.KafkaClientConfig(cfg.ServiceName), m, logger)
	defer producer.Close()
	logger.Info("Kafka producer initialized", "brokers", cfg.Kafka.Brokers)

	stopPublishers, err := bootstrap.StartPublishers(ctx, cfg, stores, producer, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to start outbox publishers")
		os.Exit(1)
	}
	defer stopPublishers()
	logger.Info("Outbox publishers started", "count", len(stores.Outboxes))

	workflows, closeWorkflows, err := bootstrap.NewOrchestrator(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to Temporal")
		os.Exit(1)
	}
	defer closeWorkflows()

	notifier := messaging.NewKafkaAlertNotifier(producer, eventFactory)
	services := bootstrap.NewServices(cfg, stores, locker, notifier, workflows, m, logger)

	var scanner *application.AlertScanner
	if cfg.Alerts.ScanInterval > 0 {
		scanner = application.NewAlertScanner(services.Alerts, cfg.Alerts.ScanInterval, logger)
		if err := scanner.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start alert scanner")
			os.Exit(1)
		}
		defer scanner.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.New(services, logger), handlers.RouterConfig{
		ServiceName:   cfg.ServiceName,
		Logger:        logger,
		Metrics:       m,
		EnableTracing: cfg.Tracing.Enabled,
		Ready:         stores.Ready,
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			stop()
		}
	}()
	logger.Info("Server started", "addr", cfg.ServerAddr)

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
