package workflows

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	wmserrors "github.com/wms-platform/fulfillment/shared/pkg/errors"
	wmstemporal "github.com/wms-platform/fulfillment/shared/pkg/temporal"
)

func newTestEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	// Placeholders so the activity names resolve; every test mocks the calls it expects.
	env.RegisterActivityWithOptions(func(context.Context, string) (*OrderSnapshot, error) {
		return nil, nil
	}, activity.RegisterOptions{Name: ActivityGetOrder})
	env.RegisterActivityWithOptions(func(context.Context, AdvanceOrderInput) (*OrderSnapshot, error) {
		return nil, nil
	}, activity.RegisterOptions{Name: ActivityAdvanceOrder})
	env.RegisterActivityWithOptions(func(context.Context, CancelOrderInput) (*OrderSnapshot, error) {
		return nil, nil
	}, activity.RegisterOptions{Name: ActivityCancelOrder})
	return env
}

func snapshot(status string) *OrderSnapshot {
	return &OrderSnapshot{OrderID: "ord-1", OrderNumber: "ORD-1", Status: status}
}

func target(status string) any {
	return mock.MatchedBy(func(in AdvanceOrderInput) bool { return in.Target == status })
}

func signalAfter(env *testsuite.TestWorkflowEnvironment, d time.Duration, name string, arg any) {
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(name, arg)
	}, d)
}

func TestOrderFulfillmentWorkflow_DeliveredPath(t *testing.T) {
	env := newTestEnv(t)

	env.OnActivity(ActivityGetOrder, mock.Anything, "ord-1").Return(snapshot(OrderPending), nil).Once()
	env.OnActivity(ActivityAdvanceOrder, mock.Anything, target(OrderConfirmed)).Return(snapshot(OrderConfirmed), nil).Once()
	env.OnActivity(ActivityAdvanceOrder, mock.Anything, target(OrderShipped)).Return(snapshot(OrderShipped), nil).Once()
	env.OnActivity(ActivityAdvanceOrder, mock.Anything, target(OrderDelivered)).Return(snapshot(OrderDelivered), nil).Once()

	signalAfter(env, time.Hour, wmstemporal.SignalShipmentDispatched, ShipmentDispatchedSignal{TrackingNumber: "TRK-1", Carrier: "UPS"})
	signalAfter(env, 48*time.Hour, wmstemporal.SignalDelivered, DeliveredSignal{SignedBy: "front desk"})

	env.ExecuteWorkflow(OrderFulfillmentWorkflow, OrderFulfillmentInput{OrderID: "ord-1"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result OrderFulfillmentResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, OutcomeDelivered, result.Outcome)
	assert.Equal(t, OrderDelivered, result.OrderStatus)
	assert.Equal(t, "TRK-1", result.TrackingNumber)
	env.AssertExpectations(t)
}

func TestOrderFulfillmentWorkflow_DeliveredBeforeDispatchSignal(t *testing.T) {
	env := newTestEnv(t)

	env.OnActivity(ActivityGetOrder, mock.Anything, "ord-1").Return(snapshot(OrderConfirmed), nil)
	env.OnActivity(ActivityAdvanceOrder, mock.Anything, target(OrderConfirmed)).Return(snapshot(OrderConfirmed), nil)
	env.OnActivity(ActivityAdvanceOrder, mock.Anything, target(OrderShipped)).Return(snapshot(OrderShipped), nil)
	env.OnActivity(ActivityAdvanceOrder, mock.Anything, target(OrderDelivered)).Return(snapshot(OrderDelivered), nil).Once()

	signalAfter(env, time.Hour, wmstemporal.SignalDelivered, DeliveredSignal{})

	env.ExecuteWorkflow(OrderFulfillmentWorkflow, OrderFulfillmentInput{OrderID: "ord-1"})

	require.NoError(t, env.GetWorkflowError())
	var result OrderFulfillmentResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, OutcomeDelivered, result.Outcome)
}

func TestOrderFulfillmentWorkflow_CancelSignal(t *testing.T) {
	env := newTestEnv(t)

	env.OnActivity(ActivityGetOrder, mock.Anything, "ord-1").Return(snapshot(OrderPending), nil)
	env.OnActivity(ActivityAdvanceOrder, mock.Anything, target(OrderConfirmed)).Return(snapshot(OrderConfirmed), nil)
	env.OnActivity(ActivityCancelOrder, mock.Anything, CancelOrderInput{OrderID: "ord-1", Reason: "customer changed mind"}).
		Return(snapshot(OrderCancelled), nil).Once()

	signalAfter(env, 10*time.Minute, wmstemporal.SignalCancel, CancelSignal{Reason: "customer changed mind"})

	env.ExecuteWorkflow(OrderFulfillmentWorkflow, OrderFulfillmentInput{OrderID: "ord-1"})

	require.NoError(t, env.GetWorkflowError())
	var result OrderFulfillmentResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, OutcomeCancelled, result.Outcome)
	assert.Equal(t, OrderCancelled, result.OrderStatus)
	assert.Equal(t, "customer changed mind", result.CancelReason)
	env.AssertExpectations(t)
}

func TestOrderFulfillmentWorkflow_ShipmentDeadlineCancels(t *testing.T) {
	env := newTestEnv(t)

	env.OnActivity(ActivityGetOrder, mock.Anything, "ord-1").Return(snapshot(OrderPending), nil)
	env.OnActivity(ActivityAdvanceOrder, mock.Anything, target(OrderConfirmed)).Return(snapshot(OrderConfirmed), nil)
	env.OnActivity(ActivityCancelOrder, mock.Anything, CancelOrderInput{OrderID: "ord-1", Reason: "shipment deadline exceeded"}).
		Return(snapshot(OrderCancelled), nil).Once()

	env.ExecuteWorkflow(OrderFulfillmentWorkflow, OrderFulfillmentInput{OrderID: "ord-1", ShipmentTimeout: time.Hour})

	require.NoError(t, env.GetWorkflowError())
	var result OrderFulfillmentResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, OutcomeCancelled, result.Outcome)
	assert.Equal(t, "shipment deadline exceeded", result.CancelReason)
}

func TestOrderFulfillmentWorkflow_CancelRejectedKeepsWaiting(t *testing.T) {
	env := newTestEnv(t)

	notCancellable := temporal.NewApplicationError("order is PROCESSING", wmserrors.CodeNotCancellable)
	env.OnActivity(ActivityGetOrder, mock.Anything, "ord-1").Return(snapshot(OrderPending), nil).Once()
	env.OnActivity(ActivityAdvanceOrder, mock.Anything, target(OrderConfirmed)).Return(snapshot(OrderConfirmed), nil)
	env.OnActivity(ActivityCancelOrder, mock.Anything, mock.Anything).Return(nil, notCancellable).Once()
	env.OnActivity(ActivityGetOrder, mock.Anything, "ord-1").Return(snapshot(OrderProcessing), nil).Once()
	env.OnActivity(ActivityAdvanceOrder, mock.Anything, target(OrderShipped)).Return(snapshot(OrderShipped), nil)
	env.OnActivity(ActivityAdvanceOrder, mock.Anything, target(OrderDelivered)).Return(snapshot(OrderDelivered), nil)

	signalAfter(env, time.Minute, wmstemporal.SignalCancel, CancelSignal{Reason: "too late"})
	signalAfter(env, time.Hour, wmstemporal.SignalShipmentDispatched, ShipmentDispatchedSignal{TrackingNumber: "TRK-2"})
	signalAfter(env, 2*time.Hour, wmstemporal.SignalCancel, CancelSignal{Reason: "ignored after shipping"})
	signalAfter(env, 3*time.Hour, wmstemporal.SignalDelivered, DeliveredSignal{})

	env.ExecuteWorkflow(OrderFulfillmentWorkflow, OrderFulfillmentInput{OrderID: "ord-1"})

	require.NoError(t, env.GetWorkflowError())
	var result OrderFulfillmentResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, OutcomeDelivered, result.Outcome)
	assert.Empty(t, result.CancelReason)
	env.AssertExpectations(t)
}

func TestOrderFulfillmentWorkflow_CancelledElsewhere(t *testing.T) {
	env := newTestEnv(t)

	notCancellable := temporal.NewApplicationError("order is CANCELLED", wmserrors.CodeNotCancellable)
	env.OnActivity(ActivityGetOrder, mock.Anything, "ord-1").Return(snapshot(OrderPending), nil).Once()
	env.OnActivity(ActivityAdvanceOrder, mock.Anything, target(OrderConfirmed)).Return(snapshot(OrderConfirmed), nil)
	env.OnActivity(ActivityCancelOrder, mock.Anything, mock.Anything).Return(nil, notCancellable).Once()
	env.OnActivity(ActivityGetOrder, mock.Anything, "ord-1").Return(snapshot(OrderCancelled), nil).Once()

	signalAfter(env, time.Minute, wmstemporal.SignalCancel, CancelSignal{Reason: "cancelled through the API"})

	env.ExecuteWorkflow(OrderFulfillmentWorkflow, OrderFulfillmentInput{OrderID: "ord-1"})

	require.NoError(t, env.GetWorkflowError())
	var result OrderFulfillmentResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, OutcomeCancelled, result.Outcome)
	assert.Equal(t, OrderCancelled, result.OrderStatus)
	env.AssertExpectations(t)
}

func TestOrderFulfillmentWorkflow_DeliveryOverdue(t *testing.T) {
	env := newTestEnv(t)

	env.OnActivity(ActivityGetOrder, mock.Anything, "ord-1").Return(snapshot(OrderPending), nil)
	env.OnActivity(ActivityAdvanceOrder, mock.Anything, target(OrderConfirmed)).Return(snapshot(OrderConfirmed), nil)
	env.OnActivity(ActivityAdvanceOrder, mock.Anything, target(OrderShipped)).Return(snapshot(OrderShipped), nil)

	signalAfter(env, time.Minute, wmstemporal.SignalShipmentDispatched, ShipmentDispatchedSignal{TrackingNumber: "TRK-3"})

	env.ExecuteWorkflow(OrderFulfillmentWorkflow, OrderFulfillmentInput{OrderID: "ord-1", DeliveryTimeout: 24 * time.Hour})

	require.NoError(t, env.GetWorkflowError())
	var result OrderFulfillmentResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, OutcomeDeliveryOverdue, result.Outcome)
	assert.Equal(t, OrderShipped, result.OrderStatus)
}

func TestOrderFulfillmentWorkflow_AlreadyFinal(t *testing.T) {
	for _, status := range []string{OrderDelivered, OrderCancelled, OrderRefunded} {
		t.Run(status, func(t *testing.T) {
			env := newTestEnv(t)
			env.OnActivity(ActivityGetOrder, mock.Anything, "ord-1").Return(snapshot(status), nil)

			env.ExecuteWorkflow(OrderFulfillmentWorkflow, OrderFulfillmentInput{OrderID: "ord-1"})

			require.NoError(t, env.GetWorkflowError())
			var result OrderFulfillmentResult
			require.NoError(t, env.GetWorkflowResult(&result))
			assert.Equal(t, OutcomeAlreadyFinal, result.Outcome)
			assert.Equal(t, status, result.OrderStatus)
		})
	}
}

func TestOrderFulfillmentWorkflow_ConfirmFailsWithoutRetry(t *testing.T) {
	env := newTestEnv(t)

	invalid := temporal.NewApplicationError("order cannot move to CONFIRMED", wmserrors.CodeInvalidTransition)
	env.OnActivity(ActivityGetOrder, mock.Anything, "ord-1").Return(snapshot(OrderPending), nil)
	env.OnActivity(ActivityAdvanceOrder, mock.Anything, target(OrderConfirmed)).Return(nil, invalid).Once()

	env.ExecuteWorkflow(OrderFulfillmentWorkflow, OrderFulfillmentInput{OrderID: "ord-1"})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to confirm order")
	env.AssertExpectations(t)
}

func TestOrderFulfillmentWorkflow_ProgressQuery(t *testing.T) {
	env := newTestEnv(t)

	env.OnActivity(ActivityGetOrder, mock.Anything, "ord-1").Return(snapshot(OrderPending), nil)
	env.OnActivity(ActivityAdvanceOrder, mock.Anything, target(OrderConfirmed)).Return(snapshot(OrderConfirmed), nil)
	env.OnActivity(ActivityCancelOrder, mock.Anything, mock.Anything).Return(snapshot(OrderCancelled), nil)

	env.RegisterDelayedCallback(func() {
		encoded, err := env.QueryWorkflow(QueryProgress)
		require.NoError(t, err)
		var progress OrderFulfillmentResult
		require.NoError(t, encoded.Get(&progress))
		assert.Equal(t, OrderConfirmed, progress.OrderStatus)
		assert.Empty(t, progress.Outcome)

		env.SignalWorkflow(wmstemporal.SignalCancel, CancelSignal{})
	}, time.Minute)

	env.ExecuteWorkflow(OrderFulfillmentWorkflow, OrderFulfillmentInput{OrderID: "ord-1"})

	require.NoError(t, env.GetWorkflowError())
	var result OrderFulfillmentResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, "cancelled by request", result.CancelReason)
}

func TestGetRetryPolicy(t *testing.T) {
	tests := []struct {
		name     string
		policy   RetryPolicyType
		attempts int32
	}{
		{"standard", StandardRetry, DefaultMaxRetryAttempts},
		{"aggressive", AggressiveRetry, 5},
		{"conservative", ConservativeRetry, 2},
		{"none", NoRetry, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := GetRetryPolicy(tt.policy)
			assert.Equal(t, tt.attempts, policy.MaximumAttempts)
			if tt.policy != NoRetry {
				assert.Contains(t, policy.NonRetryableErrorTypes, wmserrors.CodeInvalidTransition)
				assert.NotContains(t, policy.NonRetryableErrorTypes, wmserrors.CodeTransientFailure)
			}
		})
	}
}
