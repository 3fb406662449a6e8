package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/wms-platform/fulfillment/shared/pkg/logging"
	"github.com/wms-platform/fulfillment/shared/pkg/middleware"
	"github.com/wms-platform/fulfillment/shared/pkg/resilience"
)

// Config holds the fulfillment-service connection settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// FulfillmentClient calls the fulfillment-service order API
type FulfillmentClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     *slog.Logger
}

// NewFulfillmentClient creates a client whose requests run through a circuit breaker
func NewFulfillmentClient(config *Config, logger *slog.Logger) *FulfillmentClient {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FulfillmentClient{
		baseURL:    config.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("fulfillment-service"), logger),
		logger:     logger,
	}
}

// APIError is an error response returned by the fulfillment-service
type APIError struct {
	StatusCode int               `json:"-"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fulfillment-service returned %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Temporary reports whether the request may succeed when retried
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// Order is the subset of the order representation the workflows need
type Order struct {
	OrderID            string    `json:"orderId"`
	OrderNumber        string    `json:"orderNumber"`
	Status             string    `json:"status"`
	PaymentStatus      string    `json:"paymentStatus"`
	CancellationReason string    `json:"cancellationReason,omitempty"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// GetOrder retrieves an order
func (c *FulfillmentClient) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var result Order
	if err := c.doRequest(ctx, http.MethodGet, c.orderURL(orderID, ""), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateOrderStatus moves an order to the target status
func (c *FulfillmentClient) UpdateOrderStatus(ctx context.Context, orderID, status, reason string) (*Order, error) {
	body := map[string]string{"status": status, "reason": reason}
	var result Order
	if err := c.doRequest(ctx, http.MethodPut, c.orderURL(orderID, "/status"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelOrder cancels an order
func (c *FulfillmentClient) CancelOrder(ctx context.Context, orderID, reason string) (*Order, error) {
	body := map[string]string{"reason": reason}
	var result Order
	if err := c.doRequest(ctx, http.MethodPost, c.orderURL(orderID, "/cancel"), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *FulfillmentClient) orderURL(orderID, suffix string) string {
	return fmt.Sprintf("%s/api/v1/orders/%s%s", c.baseURL, url.PathEscape(orderID), suffix)
}

// doRequest performs an HTTP request and decodes the response. Only transport
// failures and 5xx responses count against the breaker.
func (c *FulfillmentClient) doRequest(ctx context.Context, method, url string, body, result any) error {
	var apiErr *APIError
	err := c.breaker.Run(ctx, func() error {
		err := c.send(ctx, method, url, body, result)
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	if apiErr != nil {
		return apiErr
	}
	return nil
}

func (c *FulfillmentClient) send(ctx context.Context, method, url string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if correlationID := logging.CorrelationIDFromContext(ctx); correlationID != "" {
		req.Header.Set(middleware.HeaderCorrelationID, correlationID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(respBody, apiErr); jsonErr != nil || apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
			apiErr.Message = string(respBody)
		}
		c.logger.Debug("fulfillment-service request failed",
			"method", method, "url", url, "status", resp.StatusCode, "code", apiErr.Code)
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}
