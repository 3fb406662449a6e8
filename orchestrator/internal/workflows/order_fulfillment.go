package workflows

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	wmserrors "github.com/wms-platform/fulfillment/shared/pkg/errors"
	wmstemporal "github.com/wms-platform/fulfillment/shared/pkg/temporal"
)

// OrderFulfillmentInput is the input to OrderFulfillmentWorkflow
type OrderFulfillmentInput struct {
	OrderID         string        `json:"orderId"`
	ShipmentTimeout time.Duration `json:"shipmentTimeout,omitempty"`
	DeliveryTimeout time.Duration `json:"deliveryTimeout,omitempty"`
}

func (in OrderFulfillmentInput) shipmentTimeout() time.Duration {
	if in.ShipmentTimeout > 0 {
		return in.ShipmentTimeout
	}
	return DefaultShipmentTimeout
}

func (in OrderFulfillmentInput) deliveryTimeout() time.Duration {
	if in.DeliveryTimeout > 0 {
		return in.DeliveryTimeout
	}
	return DefaultDeliveryTimeout
}

// OrderFulfillmentResult is the result of OrderFulfillmentWorkflow
type OrderFulfillmentResult struct {
	OrderID        string `json:"orderId"`
	OrderStatus    string `json:"orderStatus"`
	Outcome        string `json:"outcome,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	CancelReason   string `json:"cancelReason,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ShipmentDispatchedSignal is sent when the carrier takes the parcel
type ShipmentDispatchedSignal struct {
	TrackingNumber string    `json:"trackingNumber"`
	Carrier        string    `json:"carrier,omitempty"`
	DispatchedAt   time.Time `json:"dispatchedAt"`
}

// DeliveredSignal is sent when the parcel reaches the customer
type DeliveredSignal struct {
	DeliveredAt time.Time `json:"deliveredAt"`
	SignedBy    string    `json:"signedBy,omitempty"`
}

// CancelSignal asks the workflow to cancel the order
type CancelSignal struct {
	Reason string `json:"reason"`
}

// OrderSnapshot is the order state returned by the order activities
type OrderSnapshot struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Status      string `json:"status"`
}

// IsFinal reports whether the order can no longer move forward
func (s *OrderSnapshot) IsFinal() bool {
	switch s.Status {
	case OrderDelivered, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

// AdvanceOrderInput moves an order forward to Target, one transition at a time
type AdvanceOrderInput struct {
	OrderID string `json:"orderId"`
	Target  string `json:"target"`
	Reason  string `json:"reason,omitempty"`
}

// CancelOrderInput is the input of the CancelOrder activity
type CancelOrderInput struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// OrderFulfillmentWorkflow confirms an order and follows it through dispatch and
// delivery. Shipment and delivery are reported by signals; a cancel signal is
// honoured until the order is shipped.
func OrderFulfillmentWorkflow(ctx workflow.Context, input OrderFulfillmentInput) (*OrderFulfillmentResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting order fulfillment workflow", "orderId", input.OrderID)

	result := &OrderFulfillmentResult{OrderID: input.OrderID}
	if err := workflow.SetQueryHandler(ctx, QueryProgress, func() (*OrderFulfillmentResult, error) {
		return result, nil
	}); err != nil {
		return nil, err
	}

	ctx = workflow.WithActivityOptions(ctx, GetStandardActivityOptions())
	criticalCtx := workflow.WithActivityOptions(ctx, GetCriticalActivityOptions())

	shipCh := workflow.GetSignalChannel(ctx, wmstemporal.SignalShipmentDispatched)
	deliveredCh := workflow.GetSignalChannel(ctx, wmstemporal.SignalDelivered)
	cancelCh := workflow.GetSignalChannel(ctx, wmstemporal.SignalCancel)

	// Step 1: confirm the order
	var order OrderSnapshot
	if err := workflow.ExecuteActivity(ctx, ActivityGetOrder, input.OrderID).Get(ctx, &order); err != nil {
		return fail(result, "failed to load order", err)
	}
	result.OrderStatus = order.Status
	if order.IsFinal() {
		logger.Info("Order already final, nothing to orchestrate", "orderId", input.OrderID, "status", order.Status)
		result.Outcome = OutcomeAlreadyFinal
		return result, nil
	}

	if err := advance(criticalCtx, result, OrderConfirmed, "fulfillment workflow started"); err != nil {
		return fail(result, "failed to confirm order", err)
	}

	// Step 2: wait for dispatch, a cancellation or the shipment deadline
	var (
		dispatched   bool
		delivered    bool
		cancelReason string
		shipment     ShipmentDispatchedSignal
		delivery     DeliveredSignal
	)
	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	deadline := workflow.NewTimer(timerCtx, input.shipmentTimeout())
	deadlinePending := true

	for !dispatched {
		cancelReason = ""
		selector := workflow.NewSelector(ctx)
		selector.AddReceive(shipCh, func(c workflow.ReceiveChannel, _ bool) {
			c.Receive(ctx, &shipment)
			dispatched = true
		})
		selector.AddReceive(deliveredCh, func(c workflow.ReceiveChannel, _ bool) {
			c.Receive(ctx, &delivery)
			dispatched, delivered = true, true
		})
		selector.AddReceive(cancelCh, func(c workflow.ReceiveChannel, _ bool) {
			var signal CancelSignal
			c.Receive(ctx, &signal)
			cancelReason = signal.Reason
			if cancelReason == "" {
				cancelReason = "cancelled by request"
			}
		})
		if deadlinePending {
			selector.AddFuture(deadline, func(workflow.Future) {
				deadlinePending = false
				cancelReason = "shipment deadline exceeded"
			})
		}
		selector.Select(ctx)

		if cancelReason == "" {
			continue
		}
		cancelled, err := cancelOrder(ctx, result, cancelReason)
		if err != nil {
			return fail(result, "failed to cancel order", err)
		}
		if cancelled {
			cancelTimer()
			return result, nil
		}
	}
	cancelTimer()

	// Step 3: mark the order shipped
	result.TrackingNumber = shipment.TrackingNumber
	logger.Info("Shipment dispatched", "orderId", input.OrderID, "trackingNumber", shipment.TrackingNumber)
	if err := advance(criticalCtx, result, OrderShipped, "shipment dispatched"); err != nil {
		return fail(result, "failed to mark order shipped", err)
	}

	// Step 4: wait for delivery
	if !delivered {
		delivered = awaitDelivery(ctx, input, deliveredCh, cancelCh, &delivery)
	}
	if !delivered {
		logger.Warn("Delivery not confirmed before deadline", "orderId", input.OrderID)
		result.Outcome = OutcomeDeliveryOverdue
		return result, nil
	}

	if err := advance(criticalCtx, result, OrderDelivered, "delivery confirmed"); err != nil {
		return fail(result, "failed to mark order delivered", err)
	}
	result.Outcome = OutcomeDelivered
	logger.Info("Order fulfillment completed", "orderId", input.OrderID)
	return result, nil
}

// awaitDelivery blocks until the delivered signal or the delivery deadline.
// Cancel requests are dropped once the order has shipped.
func awaitDelivery(ctx workflow.Context, input OrderFulfillmentInput, deliveredCh, cancelCh workflow.ReceiveChannel, delivery *DeliveredSignal) bool {
	logger := workflow.GetLogger(ctx)
	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	defer cancelTimer()
	deadline := workflow.NewTimer(timerCtx, input.deliveryTimeout())

	for {
		var delivered, expired bool
		selector := workflow.NewSelector(ctx)
		selector.AddReceive(deliveredCh, func(c workflow.ReceiveChannel, _ bool) {
			c.Receive(ctx, delivery)
			delivered = true
		})
		selector.AddReceive(cancelCh, func(c workflow.ReceiveChannel, _ bool) {
			var signal CancelSignal
			c.Receive(ctx, &signal)
			logger.Warn("Ignoring cancel request for shipped order", "orderId", input.OrderID, "reason", signal.Reason)
		})
		selector.AddFuture(deadline, func(workflow.Future) {
			expired = true
		})
		selector.Select(ctx)

		if delivered {
			return true
		}
		if expired {
			return false
		}
	}
}

func advance(ctx workflow.Context, result *OrderFulfillmentResult, target, reason string) error {
	var order OrderSnapshot
	err := workflow.ExecuteActivity(ctx, ActivityAdvanceOrder, AdvanceOrderInput{
		OrderID: result.OrderID,
		Target:  target,
		Reason:  reason,
	}).Get(ctx, &order)
	if err != nil {
		return err
	}
	result.OrderStatus = order.Status
	return nil
}

// cancelOrder reports whether the workflow is done. An order that is no longer
// cancellable is re-read: if it already reached a final status elsewhere the
// workflow ends with it, otherwise it keeps waiting for dispatch.
func cancelOrder(ctx workflow.Context, result *OrderFulfillmentResult, reason string) (bool, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Cancelling order", "orderId", result.OrderID, "reason", reason)

	var order OrderSnapshot
	err := workflow.ExecuteActivity(ctx, ActivityCancelOrder, CancelOrderInput{
		OrderID: result.OrderID,
		Reason:  reason,
	}).Get(ctx, &order)
	if err != nil {
		if !hasErrorType(err, wmserrors.CodeNotCancellable) {
			return false, err
		}
		logger.Warn("Order no longer cancellable", "orderId", result.OrderID, "error", err)
		if err := workflow.ExecuteActivity(ctx, ActivityGetOrder, result.OrderID).Get(ctx, &order); err != nil {
			return false, err
		}
		result.OrderStatus = order.Status
		switch {
		case order.Status == OrderCancelled:
			result.Outcome = OutcomeCancelled
			result.CancelReason = reason
			return true, nil
		case order.IsFinal():
			result.Outcome = OutcomeAlreadyFinal
			return true, nil
		}
		return false, nil
	}
	result.OrderStatus = order.Status
	result.Outcome = OutcomeCancelled
	result.CancelReason = reason
	return true, nil
}

func fail(result *OrderFulfillmentResult, msg string, err error) (*OrderFulfillmentResult, error) {
	result.Outcome = OutcomeFailed
	result.Error = err.Error()
	return result, fmt.Errorf("%s: %w", msg, err)
}

func hasErrorType(err error, errType string) bool {
	var appErr *temporal.ApplicationError
	return errors.As(err, &appErr) && appErr.Type() == errType
}
