package activities

import (
	"context"
	"errors"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"github.com/wms-platform/fulfillment/orchestrator/internal/activities/clients"
	"github.com/wms-platform/fulfillment/shared/pkg/resilience"
)

// OrderClient is the part of the fulfillment-service API the order activities use
type OrderClient interface {
	GetOrder(ctx context.Context, orderID string) (*clients.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, status, reason string) (*clients.Order, error)
	CancelOrder(ctx context.Context, orderID, reason string) (*clients.Order, error)
}

// OrderActivities contains activities related to order operations
type OrderActivities struct {
	client OrderClient
	logger *slog.Logger
}

// NewOrderActivities creates a new OrderActivities instance
func NewOrderActivities(client OrderClient, logger *slog.Logger) *OrderActivities {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderActivities{
		client: client,
		logger: logger,
	}
}

// ErrTypeCircuitOpen is the application error type used while the service breaker is open
const ErrTypeCircuitOpen = "CIRCUIT_OPEN"

// toActivityError maps fulfillment-service errors onto Temporal application
// errors typed by the service error code, so retry policies can tell them apart.
func toActivityError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *clients.APIError
	if errors.As(err, &apiErr) {
		return temporal.NewApplicationErrorWithCause(apiErr.Message, apiErr.Code, apiErr, apiErr.Details)
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return temporal.NewApplicationErrorWithCause(err.Error(), ErrTypeCircuitOpen, err)
	}
	return err
}
