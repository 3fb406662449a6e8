package main

import (
	"context"
	"errors"
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
	"github.com/wms-platform/fulfillment/shared/pkg/middleware"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/config"
	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/infrastructure/messaging"
)

// The notifier consumes raised stock alerts and forwards them to the
// configured notification sinks.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.DefaultConfig("fulfillment-notifier")).WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}

	serviceName := cfg.ServiceName + "-notifier"
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.ParseLevel(cfg.LogLevel)
	logConfig.Environment = cfg.Environment
	logger := logging.New(logConfig)
	logger.SetDefault()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(metrics.DefaultConfig(serviceName))
	cfg.ApplyTopics()

	sinks := []messaging.AlertSink{messaging.NewLogSink(logger)}
	if cfg.Notifier.WebhookURL != "" {
		sinks = append(sinks, messaging.NewWebhookSink(cfg.Notifier.WebhookURL, cfg.Notifier.WebhookTimeout, logger))
		logger.Info("Webhook notifications enabled", "url", cfg.Notifier.WebhookURL)
	}
	dispatcher := messaging.NewAlertDispatcher(logger, sinks...)

	kafkaConfig := cfg.KafkaClientConfig(serviceName)
	kafkaConfig.ConsumerGroup = cfg.Kafka.ConsumerGroup + "-notifier"
	consumer := kafka.NewConsumer(kafkaConfig, logger.Logger)
	defer consumer.Close()

	topic := kafka.Topics.AlertsEvents
	consumer.Subscribe(topic, cloudevents.StockAlertRaised, kafka.InstrumentHandler(topic, m, logger, dispatcher.Handle))

	// probes and metrics only
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.Recovery(logger.Logger))
	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/metrics", middleware.MetricsEndpoint(m))
	srv := &http.Server{Addr: cfg.Notifier.ProbeAddr, Handler: router, ReadTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Probe server error", "error", err)
		}
	}()

	logger.Info("Notifier started", "topic", topic, "group", kafkaConfig.ConsumerGroup, "brokers", cfg.Kafka.Brokers)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("Consumer stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info("Notifier exited")
}
