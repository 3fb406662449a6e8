package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wms-platform/fulfillment/orchestrator/internal/activities"
	"github.com/wms-platform/fulfillment/orchestrator/internal/activities/clients"
	"github.com/wms-platform/fulfillment/orchestrator/internal/workflows"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"
	"github.com/wms-platform/fulfillment/shared/pkg/temporal"
	"github.com/wms-platform/fulfillment/shared/pkg/tracing"
)

const serviceName = "fulfillment-orchestrator"

func main() {
	_ = godotenv.Load()
	config := loadConfig()

	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.ParseLevel(config.LogLevel)
	logConfig.Environment = config.Environment
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting orchestrator worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.Environment = config.Environment
	tracingConfig.OTLPEndpoint = config.OTLPEndpoint
	tracingConfig.Enabled = config.TracingEnabled
	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tracerProvider.Shutdown(shutdownCtx)
		}()
	}

	// Initialize Temporal client
	temporalClient, err := temporal.NewClient(ctx, config.Temporal, logger.Logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create Temporal client")
		os.Exit(1)
	}
	defer temporalClient.Close()
	logger.Info("Connected to Temporal", "hostPort", config.Temporal.HostPort, "namespace", config.Temporal.Namespace)

	fulfillment := clients.NewFulfillmentClient(&clients.Config{
		BaseURL: config.FulfillmentServiceURL,
		Timeout: config.RequestTimeout,
	}, logger.WithComponent("fulfillment-client").Logger)
	orderActivities := activities.NewOrderActivities(fulfillment, logger.WithComponent("activities").Logger)

	w := temporalClient.NewWorker(temporal.DefaultWorkerOptions(temporal.TaskQueues.Fulfillment))
	w.RegisterWorkflow(workflows.OrderFulfillmentWorkflow)
	w.RegisterActivity(orderActivities)
	logger.Info("Registered workflows and activities",
		"workflows", []string{temporal.WorkflowNames.OrderFulfillment},
		"activities", []string{workflows.ActivityGetOrder, workflows.ActivityAdvanceOrder, workflows.ActivityCancelOrder},
	)

	if err := w.Start(); err != nil {
		logger.WithError(err).Error("Worker failed to start")
		os.Exit(1)
	}
	logger.Info("Worker started", "taskQueue", temporal.TaskQueues.Fulfillment)

	<-ctx.Done()
	logger.Info("Shutting down worker...")
	w.Stop()
	logger.Info("Worker stopped")
}

// Config holds worker configuration
type Config struct {
	Temporal              *temporal.Config
	FulfillmentServiceURL string
	RequestTimeout        time.Duration
	LogLevel              string
	Environment           string
	OTLPEndpoint          string
	TracingEnabled        bool
}

func loadConfig() *Config {
	temporalConfig := temporal.DefaultConfig()
	temporalConfig.HostPort = getEnv("TEMPORAL_HOST", temporalConfig.HostPort)
	temporalConfig.Namespace = getEnv("TEMPORAL_NAMESPACE", temporalConfig.Namespace)

	timeout, err := time.ParseDuration(getEnv("FULFILLMENT_REQUEST_TIMEOUT", "30s"))
	if err != nil {
		timeout = 30 * time.Second
	}
	tracingEnabled, _ := strconv.ParseBool(getEnv("TRACING_ENABLED", "false"))

	return &Config{
		Temporal:              temporalConfig,
		FulfillmentServiceURL: getEnv("FULFILLMENT_SERVICE_URL", "http://localhost:8080"),
		RequestTimeout:        timeout,
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		Environment:           getEnv("ENVIRONMENT", "development"),
		OTLPEndpoint:          getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled:        tracingEnabled,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
