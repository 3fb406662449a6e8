// Package orchestration hands orders to the Temporal fulfillment workflow run
// by the orchestrator worker.
package orchestration

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/wms-platform/fulfillment/shared/pkg/temporal"
)

// WorkflowClient is the part of the platform Temporal client the adapter uses
type WorkflowClient interface {
	StartOrderFulfillment(ctx context.Context, orderID string, input any) (client.WorkflowRun, error)
	SignalOrder(ctx context.Context, orderID, signalName string, arg any) error
}

// The payloads below mirror the orchestrator workflow's input and signal types.

type fulfillmentInput struct {
	OrderID string `json:"orderId"`
}

type shipmentDispatched struct {
	TrackingNumber string    `json:"trackingNumber"`
	DispatchedAt   time.Time `json:"dispatchedAt"`
}

type delivered struct {
	DeliveredAt time.Time `json:"deliveredAt"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// TemporalOrchestrator starts and signals the order fulfillment workflow
type TemporalOrchestrator struct {
	client WorkflowClient
	now    func() time.Time
}

// NewTemporalOrchestrator creates a new TemporalOrchestrator
func NewTemporalOrchestrator(c WorkflowClient) *TemporalOrchestrator {
	return &TemporalOrchestrator{client: c, now: time.Now}
}

// StartFulfillment starts the workflow for a newly created order
func (o *TemporalOrchestrator) StartFulfillment(ctx context.Context, orderID string) error {
	if _, err := o.client.StartOrderFulfillment(ctx, orderID, fulfillmentInput{OrderID: orderID}); err != nil {
		return fmt.Errorf("start workflow for order %s: %w", orderID, err)
	}
	return nil
}

// OrderShipped signals that the carrier has the parcel
func (o *TemporalOrchestrator) OrderShipped(ctx context.Context, orderID, trackingNumber string) error {
	return o.signal(ctx, orderID, temporal.SignalShipmentDispatched, shipmentDispatched{
		TrackingNumber: trackingNumber,
		DispatchedAt:   o.now().UTC(),
	})
}

// OrderDelivered signals delivery
func (o *TemporalOrchestrator) OrderDelivered(ctx context.Context, orderID string, at time.Time) error {
	return o.signal(ctx, orderID, temporal.SignalDelivered, delivered{DeliveredAt: at.UTC()})
}

// OrderCancelled tells the workflow the order was cancelled outside of it
func (o *TemporalOrchestrator) OrderCancelled(ctx context.Context, orderID, reason string) error {
	return o.signal(ctx, orderID, temporal.SignalCancel, cancelRequest{Reason: reason})
}

func (o *TemporalOrchestrator) signal(ctx context.Context, orderID, name string, arg any) error {
	if err := o.client.SignalOrder(ctx, orderID, name, arg); err != nil {
		return fmt.Errorf("signal %s to order %s: %w", name, orderID, err)
	}
	return nil
}
