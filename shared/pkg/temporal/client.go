package temporal

import (
	"context"
	"fmt"
	"log/slog"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
)

// Config holds Temporal client configuration
type Config struct {
	HostPort  string
	Namespace string
	Identity  string
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HostPort:  "localhost:7233",
		Namespace: "default",
		Identity:  "fulfillment-worker",
	}
}

// TaskQueues contains the fulfillment Temporal task queue names
var TaskQueues = struct {
	Fulfillment string
}{
	Fulfillment: "fulfillment-queue",
}

// WorkflowNames contains the fulfillment workflow names
var WorkflowNames = struct {
	OrderFulfillment string
}{
	OrderFulfillment: "OrderFulfillmentWorkflow",
}

// Signal names understood by the order fulfillment workflow
const (
	SignalShipmentDispatched = "shipment-dispatched"
	SignalDelivered          = "delivered"
	SignalCancel             = "cancel"
)

// Client wraps the Temporal client
type Client struct {
	client client.Client
	config *Config
}

// NewClient dials the Temporal frontend
func NewClient(ctx context.Context, config *Config, logger *slog.Logger) (*Client, error) {
	options := client.Options{
		HostPort:  config.HostPort,
		Namespace: config.Namespace,
		Identity:  config.Identity,
	}
	if logger != nil {
		options.Logger = sdklog.NewStructuredLogger(logger)
	}

	c, err := client.DialContext(ctx, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create Temporal client: %w", err)
	}

	return &Client{
		client: c,
		config: config,
	}, nil
}

// Client returns the underlying Temporal client
func (c *Client) Client() client.Client {
	return c.client
}

// Close closes the client connection
func (c *Client) Close() {
	c.client.Close()
}

// StartOrderFulfillment starts the order fulfillment workflow keyed by order id
func (c *Client) StartOrderFulfillment(ctx context.Context, orderID string, input any) (client.WorkflowRun, error) {
	options := client.StartWorkflowOptions{
		ID:                    OrderWorkflowID(orderID),
		TaskQueue:             TaskQueues.Fulfillment,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	return c.client.ExecuteWorkflow(ctx, options, WorkflowNames.OrderFulfillment, input)
}

// SignalOrder sends a signal to the running workflow of an order
func (c *Client) SignalOrder(ctx context.Context, orderID, signalName string, arg any) error {
	return c.client.SignalWorkflow(ctx, OrderWorkflowID(orderID), "", signalName, arg)
}

// OrderWorkflowID returns the workflow id used for an order
func OrderWorkflowID(orderID string) string {
	return "order-fulfillment-" + orderID
}

// WorkerOptions contains options for creating a worker
type WorkerOptions struct {
	TaskQueue                    string
	MaxConcurrentActivityPollers int
	MaxConcurrentWorkflowPollers int
	MaxConcurrentActivities      int
	MaxConcurrentWorkflows       int
}

// DefaultWorkerOptions returns default worker options
func DefaultWorkerOptions(taskQueue string) *WorkerOptions {
	return &WorkerOptions{
		TaskQueue:                    taskQueue,
		MaxConcurrentActivityPollers: 4,
		MaxConcurrentWorkflowPollers: 4,
		MaxConcurrentActivities:      100,
		MaxConcurrentWorkflows:       100,
	}
}

// NewWorker creates a new Temporal worker
func (c *Client) NewWorker(opts *WorkerOptions) worker.Worker {
	workerOpts := worker.Options{
		MaxConcurrentActivityExecutionSize:     opts.MaxConcurrentActivities,
		MaxConcurrentWorkflowTaskExecutionSize: opts.MaxConcurrentWorkflows,
		MaxConcurrentActivityTaskPollers:       opts.MaxConcurrentActivityPollers,
		MaxConcurrentWorkflowTaskPollers:       opts.MaxConcurrentWorkflowPollers,
	}

	return worker.New(c.client, opts.TaskQueue, workerOpts)
}
