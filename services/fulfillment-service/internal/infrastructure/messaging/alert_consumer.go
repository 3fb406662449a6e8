package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wms-platform/fulfillment/shared/pkg/cloudevents"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"
	"github.com/wms-platform/fulfillment/shared/pkg/resilience"
)

// AlertSink receives raised stock alerts
type AlertSink interface {
	Deliver(ctx context.Context, alert cloudevents.StockAlertData) error
}

// AlertDispatcher consumes StockAlertRaised events and fans them out to sinks
type AlertDispatcher struct {
	sinks  []AlertSink
	logger *logging.Logger
}

// NewAlertDispatcher creates a dispatcher delivering to every sink in order
func NewAlertDispatcher(logger *logging.Logger, sinks ...AlertSink) *AlertDispatcher {
	return &AlertDispatcher{sinks: sinks, logger: logger.WithComponent("alert-dispatcher")}
}

// Handle is a kafka.EventHandler. A failed sink fails the event so the
// message is redelivered.
func (d *AlertDispatcher) Handle(ctx context.Context, event *cloudevents.WMSCloudEvent) error {
	data, err := DecodeStockAlert(event)
	if err != nil {
		// undecodable payloads will never succeed; drop them
		d.logger.WithError(err).Error("Dropping malformed alert event", "eventId", event.ID)
		return nil
	}

	var errs []error
	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, data); err != nil {
			errs = append(errs, err)
		}
	}
	if err := stderrors.Join(errs...); err != nil {
		d.logger.WithError(err).Warn("Alert delivery failed", "alertId", data.AlertID, "productId", data.ProductID)
		return err
	}
	return nil
}

// DecodeStockAlert extracts the alert payload. Events read back from Kafka
// carry their data as a generic JSON object.
func DecodeStockAlert(event *cloudevents.WMSCloudEvent) (cloudevents.StockAlertData, error) {
	var data cloudevents.StockAlertData
	if event == nil || event.Data == nil {
		return data, fmt.Errorf("alert event has no data")
	}
	if d, ok := event.Data.(cloudevents.StockAlertData); ok {
		return d, nil
	}
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return data, fmt.Errorf("encode alert data: %w", err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("decode alert data: %w", err)
	}
	if data.AlertID == "" || data.ProductID == "" {
		return data, fmt.Errorf("alert event is missing alertId or productId")
	}
	return data, nil
}

// LogSink writes every alert to the audit log
type LogSink struct {
	logger *logging.Logger
}

func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(ctx context.Context, a cloudevents.StockAlertData) error {
	s.logger.Audit(ctx, "stock_alert_raised", "product", a.ProductID, "alert-engine", map[string]any{
		"alertId":         a.AlertID,
		"alertType":       a.AlertType,
		"alertLevel":      a.AlertLevel,
		"currentStock":    a.CurrentStock,
		"thresholdStock":  a.ThresholdStock,
		"suggestedAction": a.SuggestedAction,
	})
	return nil
}

// WebhookSink posts alerts as JSON to an HTTP endpoint behind a circuit breaker
type WebhookSink struct {
	url     string
	client  *http.Client
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryConfig
}

// NewWebhookSink creates a sink posting to url
func NewWebhookSink(url string, timeout time.Duration, logger *logging.Logger) *WebhookSink {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 3
	retry.RetryableErrors = func(err error) bool {
		var status *webhookStatusError
		if stderrors.As(err, &status) {
			return status.code >= http.StatusInternalServerError
		}
		return !stderrors.Is(err, resilience.ErrCircuitOpen)
	}
	return &WebhookSink{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("alert-webhook"), logger.Logger),
		retry:   retry,
	}
}

type webhookStatusError struct {
	code int
}

func (e *webhookStatusError) Error() string {
	return fmt.Sprintf("webhook answered %d", e.code)
}

func (s *WebhookSink) Deliver(ctx context.Context, a cloudevents.StockAlertData) error {
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return resilience.Retry(ctx, s.retry, func() error {
		return s.breaker.Run(ctx, func() error {
			return s.post(ctx, body)
		})
	})
}

func (s *WebhookSink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &webhookStatusError{code: resp.StatusCode}
	}
	return nil
}
