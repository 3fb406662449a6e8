package activities

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/wms-platform/fulfillment/orchestrator/internal/activities/clients"
	"github.com/wms-platform/fulfillment/orchestrator/internal/workflows"
	wmserrors "github.com/wms-platform/fulfillment/shared/pkg/errors"
)

// forwardPath is the order lifecycle without its cancellation and refund branches
var forwardPath = []string{
	workflows.OrderPending,
	workflows.OrderConfirmed,
	workflows.OrderProcessing,
	workflows.OrderShipped,
	workflows.OrderDelivered,
}

func pathIndex(status string) int {
	for i, s := range forwardPath {
		if s == status {
			return i
		}
	}
	return -1
}

// GetOrder loads the current state of an order
func (a *OrderActivities) GetOrder(ctx context.Context, orderID string) (*workflows.OrderSnapshot, error) {
	order, err := a.client.GetOrder(ctx, orderID)
	if err != nil {
		activity.GetLogger(ctx).Error("Failed to get order", "orderId", orderID, "error", err)
		return nil, toActivityError(err)
	}
	return snapshot(order), nil
}

// AdvanceOrder walks an order forward along the lifecycle until it reaches the
// target. An order already at or past the target is returned unchanged, so the
// activity is safe to retry and to race with the pipeline's own transitions.
func (a *OrderActivities) AdvanceOrder(ctx context.Context, input workflows.AdvanceOrderInput) (*workflows.OrderSnapshot, error) {
	logger := activity.GetLogger(ctx)

	want := pathIndex(input.Target)
	if want < 0 {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("unknown target status %q", input.Target), wmserrors.CodeValidationError, nil)
	}

	order, err := a.client.GetOrder(ctx, input.OrderID)
	if err != nil {
		return nil, toActivityError(err)
	}

	for races := 0; ; {
		at := pathIndex(order.Status)
		if at < 0 {
			return nil, temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("order %s is %s and cannot move to %s", input.OrderID, order.Status, input.Target),
				wmserrors.CodeInvalidTransition, nil)
		}
		if at >= want {
			return snapshot(order), nil
		}

		next := forwardPath[at+1]
		logger.Info("Advancing order", "orderId", input.OrderID, "from", order.Status, "to", next)
		updated, err := a.client.UpdateOrderStatus(ctx, input.OrderID, next, input.Reason)
		if isCode(err, wmserrors.CodeInvalidTransition) && races < len(forwardPath) {
			// The order moved underneath us; start again from its current status.
			races++
			if order, err = a.client.GetOrder(ctx, input.OrderID); err != nil {
				return nil, toActivityError(err)
			}
			continue
		}
		if err != nil {
			logger.Error("Failed to advance order", "orderId", input.OrderID, "to", next, "error", err)
			return nil, toActivityError(err)
		}
		order = updated
		activity.RecordHeartbeat(ctx, order.Status)
	}
}

// CancelOrder cancels an order
func (a *OrderActivities) CancelOrder(ctx context.Context, input workflows.CancelOrderInput) (*workflows.OrderSnapshot, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Cancelling order", "orderId", input.OrderID, "reason", input.Reason)

	order, err := a.client.CancelOrder(ctx, input.OrderID, input.Reason)
	if err != nil {
		logger.Error("Failed to cancel order", "orderId", input.OrderID, "error", err)
		return nil, toActivityError(err)
	}

	a.logger.Info("Order cancelled by workflow", "orderId", input.OrderID, "orderNumber", order.OrderNumber)
	return snapshot(order), nil
}

func isCode(err error, code string) bool {
	var apiErr *clients.APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func snapshot(order *clients.Order) *workflows.OrderSnapshot {
	return &workflows.OrderSnapshot{
		OrderID:     order.OrderID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
	}
}
