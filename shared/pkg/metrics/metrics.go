package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the fulfillment platform metrics. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaEventsConsumed  *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec

	// Temporal metrics
	WorkflowsStarted    *prometheus.CounterVec
	WorkflowsCompleted  *prometheus.CounterVec
	ActivitiesCompleted *prometheus.CounterVec
	ActivityDuration    *prometheus.HistogramVec

	// Ledger metrics
	LedgerOperations *prometheus.CounterVec
	LedgerRetries    *prometheus.CounterVec

	// Fulfillment metrics
	OrdersCreated       *prometheus.CounterVec
	OrderTransitions    *prometheus.CounterVec
	StagesCompleted     *prometheus.CounterVec
	QualityResults      *prometheus.CounterVec
	AlertsOpened        *prometheus.CounterVec
	AlertsResolved      prometheus.Counter
	ExceptionsResolved  *prometheus.CounterVec
	ReturnsCompleted    *prometheus.CounterVec
	UnitsRestocked      prometheus.Counter
	OutboxEventsPending prometheus.Gauge

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
	Subsystem   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "wms",
		Subsystem:   "fulfillment",
	}
}

func counterVec(config *Config, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      name,
			Help:      help,
		},
		append([]string{"service"}, labels...),
	)
}

func histogramVec(config *Config, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		append([]string{"service"}, labels...),
	)
}

// New creates a new Metrics instance with its own registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	constLabels := prometheus.Labels{"service": config.ServiceName}

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,

		HTTPRequestsTotal: counterVec(config, "http_requests_total",
			"Total number of HTTP requests", "method", "path", "status"),
		HTTPRequestDuration: histogramVec(config, "http_request_duration_seconds",
			"HTTP request duration in seconds",
			[]float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}, "method", "path"),
		HTTPRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: constLabels,
		}),

		KafkaEventsPublished: counterVec(config, "kafka_events_published_total",
			"Total number of Kafka events published", "topic", "event_type", "status"),
		KafkaEventsConsumed: counterVec(config, "kafka_events_consumed_total",
			"Total number of Kafka events consumed", "topic", "event_type", "status"),
		KafkaPublishDuration: histogramVec(config, "kafka_publish_duration_seconds",
			"Kafka publish duration in seconds",
			[]float64{.001, .005, .01, .025, .05, .1, .25, .5, 1}, "topic"),

		MongoDBOperations: counterVec(config, "mongodb_operations_total",
			"Total number of MongoDB operations", "collection", "operation", "status"),
		MongoDBOperationDuration: histogramVec(config, "mongodb_operation_duration_seconds",
			"MongoDB operation duration in seconds",
			[]float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}, "collection", "operation"),

		WorkflowsStarted: counterVec(config, "temporal_workflows_started_total",
			"Total number of Temporal workflows started", "workflow_type"),
		WorkflowsCompleted: counterVec(config, "temporal_workflows_completed_total",
			"Total number of Temporal workflows completed", "workflow_type", "status"),
		ActivitiesCompleted: counterVec(config, "temporal_activities_completed_total",
			"Total number of Temporal activities completed", "activity_type", "status"),
		ActivityDuration: histogramVec(config, "temporal_activity_duration_seconds",
			"Temporal activity duration in seconds",
			[]float64{.1, .5, 1, 5, 10, 30, 60, 300}, "activity_type"),

		LedgerOperations: counterVec(config, "ledger_operations_total",
			"Stock ledger operations by operation and result", "operation", "result"),
		LedgerRetries: counterVec(config, "ledger_retries_total",
			"Stock ledger operations retried after contention", "operation"),

		OrdersCreated: counterVec(config, "orders_created_total",
			"Total number of orders created", "priority"),
		OrderTransitions: counterVec(config, "order_transitions_total",
			"Order status transitions", "from", "to"),
		StagesCompleted: counterVec(config, "stages_completed_total",
			"Fulfillment pipeline stages completed", "stage"),
		QualityResults: counterVec(config, "quality_results_total",
			"Quality check results", "result"),
		AlertsOpened: counterVec(config, "alerts_opened_total",
			"Stock alerts opened", "alert_type", "alert_level"),
		AlertsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "alerts_resolved_total",
			Help:        "Stock alerts resolved",
			ConstLabels: constLabels,
		}),
		ExceptionsResolved: counterVec(config, "exceptions_resolved_total",
			"Delivery exceptions resolved", "resolution_type"),
		ReturnsCompleted: counterVec(config, "returns_completed_total",
			"Return orders completed", "return_type"),
		UnitsRestocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "units_restocked_total",
			Help:        "Units returned to the stock ledger",
			ConstLabels: constLabels,
		}),
		OutboxEventsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "outbox_events_pending",
			Help:        "Outbox events seen unpublished by the last poll",
			ConstLabels: constLabels,
		}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"service", "name"}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.KafkaEventsPublished,
		m.KafkaEventsConsumed,
		m.KafkaPublishDuration,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.WorkflowsStarted,
		m.WorkflowsCompleted,
		m.ActivitiesCompleted,
		m.ActivityDuration,
		m.LedgerOperations,
		m.LedgerRetries,
		m.OrdersCreated,
		m.OrderTransitions,
		m.StagesCompleted,
		m.QualityResults,
		m.AlertsOpened,
		m.AlertsResolved,
		m.ExceptionsResolved,
		m.ReturnsCompleted,
		m.UnitsRestocked,
		m.OutboxEventsPending,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns an HTTP handler for metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.HTTPRequestsInFlight.Dec()
}

// RecordKafkaPublish records a Kafka publish event
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, status(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// RecordKafkaConsume records a Kafka consume event
func (m *Metrics) RecordKafkaConsume(topic, eventType string, success bool) {
	if m == nil {
		return
	}
	m.KafkaEventsConsumed.WithLabelValues(m.serviceName, topic, eventType, status(success)).Inc()
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, status(success)).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// RecordWorkflowStarted records a workflow start
func (m *Metrics) RecordWorkflowStarted(workflowType string) {
	if m == nil {
		return
	}
	m.WorkflowsStarted.WithLabelValues(m.serviceName, workflowType).Inc()
}

// RecordWorkflowCompleted records a workflow completion
func (m *Metrics) RecordWorkflowCompleted(workflowType string, success bool) {
	if m == nil {
		return
	}
	m.WorkflowsCompleted.WithLabelValues(m.serviceName, workflowType, status(success)).Inc()
}

// RecordActivityCompleted records an activity completion
func (m *Metrics) RecordActivityCompleted(activityType string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.ActivitiesCompleted.WithLabelValues(m.serviceName, activityType, status(success)).Inc()
	m.ActivityDuration.WithLabelValues(m.serviceName, activityType).Observe(duration.Seconds())
}

// RecordLedgerOperation records the outcome of a ledger operation.
// result is "success" or the error code that ended it.
func (m *Metrics) RecordLedgerOperation(operation, result string) {
	if m == nil {
		return
	}
	m.LedgerOperations.WithLabelValues(m.serviceName, operation, result).Inc()
}

// RecordLedgerRetry records a contention retry
func (m *Metrics) RecordLedgerRetry(operation string) {
	if m == nil {
		return
	}
	m.LedgerRetries.WithLabelValues(m.serviceName, operation).Inc()
}

// RecordOrderCreated records an order creation
func (m *Metrics) RecordOrderCreated(priority string) {
	if m == nil {
		return
	}
	m.OrdersCreated.WithLabelValues(m.serviceName, priority).Inc()
}

// RecordOrderTransition records an order status change
func (m *Metrics) RecordOrderTransition(from, to string) {
	if m == nil {
		return
	}
	m.OrderTransitions.WithLabelValues(m.serviceName, from, to).Inc()
}

// RecordStageCompleted records a completed pipeline stage
func (m *Metrics) RecordStageCompleted(stage string) {
	if m == nil {
		return
	}
	m.StagesCompleted.WithLabelValues(m.serviceName, stage).Inc()
}

// RecordQualityResult records a quality check outcome
func (m *Metrics) RecordQualityResult(result string) {
	if m == nil {
		return
	}
	m.QualityResults.WithLabelValues(m.serviceName, result).Inc()
}

// RecordAlertOpened records a newly opened stock alert
func (m *Metrics) RecordAlertOpened(alertType, level string) {
	if m == nil {
		return
	}
	m.AlertsOpened.WithLabelValues(m.serviceName, alertType, level).Inc()
}

// RecordAlertResolved records a resolved stock alert
func (m *Metrics) RecordAlertResolved() {
	if m == nil {
		return
	}
	m.AlertsResolved.Inc()
}

// RecordExceptionResolved records a resolved delivery exception
func (m *Metrics) RecordExceptionResolved(resolutionType string) {
	if m == nil {
		return
	}
	m.ExceptionsResolved.WithLabelValues(m.serviceName, resolutionType).Inc()
}

// RecordReturnCompleted records a completed return and the units it restocked
func (m *Metrics) RecordReturnCompleted(returnType string, unitsRestocked int) {
	if m == nil {
		return
	}
	m.ReturnsCompleted.WithLabelValues(m.serviceName, returnType).Inc()
	m.UnitsRestocked.Add(float64(unitsRestocked))
}

// RecordUnitsRestocked records units restocked outside a return
func (m *Metrics) RecordUnitsRestocked(units int) {
	if m == nil {
		return
	}
	m.UnitsRestocked.Add(float64(units))
}

// SetOutboxPending sets the number of unpublished outbox events
func (m *Metrics) SetOutboxPending(count int) {
	if m == nil {
		return
	}
	m.OutboxEventsPending.Set(float64(count))
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}
