package activities

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/wms-platform/fulfillment/orchestrator/internal/activities/clients"
	"github.com/wms-platform/fulfillment/orchestrator/internal/workflows"
	wmserrors "github.com/wms-platform/fulfillment/shared/pkg/errors"
	"github.com/wms-platform/fulfillment/shared/pkg/resilience"
)

// MockOrderClient is a mock implementation of OrderClient
type MockOrderClient struct {
	mock.Mock
}

func (m *MockOrderClient) GetOrder(ctx context.Context, orderID string) (*clients.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.Order), args.Error(1)
}

func (m *MockOrderClient) UpdateOrderStatus(ctx context.Context, orderID, status, reason string) (*clients.Order, error) {
	args := m.Called(ctx, orderID, status, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.Order), args.Error(1)
}

func (m *MockOrderClient) CancelOrder(ctx context.Context, orderID, reason string) (*clients.Order, error) {
	args := m.Called(ctx, orderID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.Order), args.Error(1)
}

func order(status string) *clients.Order {
	return &clients.Order{OrderID: "ord-1", OrderNumber: "ORD-1", Status: status}
}

func newActivityEnv(client OrderClient) (*testsuite.TestActivityEnvironment, *OrderActivities) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	activities := NewOrderActivities(client, nil)
	env.RegisterActivity(activities)
	return env, activities
}

func applicationErrorType(t *testing.T, err error) string {
	t.Helper()
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr), "expected application error, got %v", err)
	return appErr.Type()
}

func TestAdvanceOrder_WalksForwardPath(t *testing.T) {
	client := new(MockOrderClient)
	client.On("GetOrder", mock.Anything, "ord-1").Return(order(workflows.OrderConfirmed), nil)
	client.On("UpdateOrderStatus", mock.Anything, "ord-1", workflows.OrderProcessing, "dispatched").
		Return(order(workflows.OrderProcessing), nil).Once()
	client.On("UpdateOrderStatus", mock.Anything, "ord-1", workflows.OrderShipped, "dispatched").
		Return(order(workflows.OrderShipped), nil).Once()

	env, activities := newActivityEnv(client)
	val, err := env.ExecuteActivity(activities.AdvanceOrder, workflows.AdvanceOrderInput{
		OrderID: "ord-1", Target: workflows.OrderShipped, Reason: "dispatched",
	})
	require.NoError(t, err)

	var result workflows.OrderSnapshot
	require.NoError(t, val.Get(&result))
	assert.Equal(t, workflows.OrderShipped, result.Status)
	client.AssertExpectations(t)
}

func TestAdvanceOrder_RestartsWhenOrderMoves(t *testing.T) {
	client := new(MockOrderClient)
	client.On("GetOrder", mock.Anything, "ord-1").Return(order(workflows.OrderPending), nil).Once()
	client.On("UpdateOrderStatus", mock.Anything, "ord-1", workflows.OrderConfirmed, "").Return(nil, &clients.APIError{
		StatusCode: http.StatusConflict, Code: wmserrors.CodeInvalidTransition, Message: "order is PROCESSING",
	}).Once()
	client.On("GetOrder", mock.Anything, "ord-1").Return(order(workflows.OrderProcessing), nil).Once()

	env, activities := newActivityEnv(client)
	val, err := env.ExecuteActivity(activities.AdvanceOrder, workflows.AdvanceOrderInput{
		OrderID: "ord-1", Target: workflows.OrderConfirmed,
	})
	require.NoError(t, err)

	var result workflows.OrderSnapshot
	require.NoError(t, val.Get(&result))
	assert.Equal(t, workflows.OrderProcessing, result.Status)
	client.AssertExpectations(t)
}

func TestAdvanceOrder_AlreadyPastTarget(t *testing.T) {
	client := new(MockOrderClient)
	client.On("GetOrder", mock.Anything, "ord-1").Return(order(workflows.OrderDelivered), nil)

	env, activities := newActivityEnv(client)
	val, err := env.ExecuteActivity(activities.AdvanceOrder, workflows.AdvanceOrderInput{
		OrderID: "ord-1", Target: workflows.OrderShipped,
	})
	require.NoError(t, err)

	var result workflows.OrderSnapshot
	require.NoError(t, val.Get(&result))
	assert.Equal(t, workflows.OrderDelivered, result.Status)
	client.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdvanceOrder_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    workflows.AdvanceOrderInput
		setup    func(*MockOrderClient)
		wantType string
	}{
		{
			name:     "unknown target",
			input:    workflows.AdvanceOrderInput{OrderID: "ord-1", Target: "LOST"},
			setup:    func(*MockOrderClient) {},
			wantType: wmserrors.CodeValidationError,
		},
		{
			name:  "cancelled order",
			input: workflows.AdvanceOrderInput{OrderID: "ord-1", Target: workflows.OrderShipped},
			setup: func(c *MockOrderClient) {
				c.On("GetOrder", mock.Anything, "ord-1").Return(order(workflows.OrderCancelled), nil)
			},
			wantType: wmserrors.CodeInvalidTransition,
		},
		{
			name:  "order not found",
			input: workflows.AdvanceOrderInput{OrderID: "ord-1", Target: workflows.OrderConfirmed},
			setup: func(c *MockOrderClient) {
				c.On("GetOrder", mock.Anything, "ord-1").Return(nil, &clients.APIError{
					StatusCode: http.StatusNotFound, Code: wmserrors.CodeNotFound, Message: "order not found",
				})
			},
			wantType: wmserrors.CodeNotFound,
		},
		{
			name:  "rejected transition",
			input: workflows.AdvanceOrderInput{OrderID: "ord-1", Target: workflows.OrderConfirmed},
			setup: func(c *MockOrderClient) {
				c.On("GetOrder", mock.Anything, "ord-1").Return(order(workflows.OrderPending), nil)
				c.On("UpdateOrderStatus", mock.Anything, "ord-1", workflows.OrderConfirmed, "").Return(nil, &clients.APIError{
					StatusCode: http.StatusConflict, Code: wmserrors.CodeInvalidTransition, Message: "no",
				})
			},
			wantType: wmserrors.CodeInvalidTransition,
		},
		{
			name:  "payment failed",
			input: workflows.AdvanceOrderInput{OrderID: "ord-1", Target: workflows.OrderConfirmed},
			setup: func(c *MockOrderClient) {
				c.On("GetOrder", mock.Anything, "ord-1").Return(order(workflows.OrderPending), nil)
				c.On("UpdateOrderStatus", mock.Anything, "ord-1", workflows.OrderConfirmed, "").Return(nil, &clients.APIError{
					StatusCode: http.StatusConflict, Code: wmserrors.CodeInvalidState, Message: "payment failed",
				})
			},
			wantType: wmserrors.CodeInvalidState,
		},
		{
			name:  "breaker open",
			input: workflows.AdvanceOrderInput{OrderID: "ord-1", Target: workflows.OrderConfirmed},
			setup: func(c *MockOrderClient) {
				c.On("GetOrder", mock.Anything, "ord-1").Return(nil, fmt.Errorf("%w: fulfillment-service", resilience.ErrCircuitOpen))
			},
			wantType: ErrTypeCircuitOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockOrderClient)
			tt.setup(client)

			env, activities := newActivityEnv(client)
			_, err := env.ExecuteActivity(activities.AdvanceOrder, tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.wantType, applicationErrorType(t, err))
		})
	}
}

func TestCancelOrder(t *testing.T) {
	t.Run("cancels", func(t *testing.T) {
		client := new(MockOrderClient)
		client.On("CancelOrder", mock.Anything, "ord-1", "customer request").Return(order(workflows.OrderCancelled), nil)

		env, activities := newActivityEnv(client)
		val, err := env.ExecuteActivity(activities.CancelOrder, workflows.CancelOrderInput{OrderID: "ord-1", Reason: "customer request"})
		require.NoError(t, err)

		var result workflows.OrderSnapshot
		require.NoError(t, val.Get(&result))
		assert.Equal(t, workflows.OrderCancelled, result.Status)
	})

	t.Run("not cancellable", func(t *testing.T) {
		client := new(MockOrderClient)
		client.On("CancelOrder", mock.Anything, "ord-1", "late").Return(nil, &clients.APIError{
			StatusCode: http.StatusConflict, Code: wmserrors.CodeNotCancellable, Message: "order is SHIPPED",
		})

		env, activities := newActivityEnv(client)
		_, err := env.ExecuteActivity(activities.CancelOrder, workflows.CancelOrderInput{OrderID: "ord-1", Reason: "late"})
		require.Error(t, err)
		assert.Equal(t, wmserrors.CodeNotCancellable, applicationErrorType(t, err))
	})
}

func TestGetOrder_TransientErrorKeepsCode(t *testing.T) {
	client := new(MockOrderClient)
	client.On("GetOrder", mock.Anything, "ord-1").Return(nil, &clients.APIError{
		StatusCode: http.StatusServiceUnavailable, Code: wmserrors.CodeTransientFailure, Message: "retry",
	})

	env, activities := newActivityEnv(client)
	_, err := env.ExecuteActivity(activities.GetOrder, "ord-1")
	require.Error(t, err)
	assert.Equal(t, wmserrors.CodeTransientFailure, applicationErrorType(t, err))
	assert.NotContains(t, workflows.NonRetryableErrorTypes, wmserrors.CodeTransientFailure)
}
