package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	wmserrors "github.com/wms-platform/fulfillment/shared/pkg/errors"
)

// RetryPolicyType defines different retry policy configurations
type RetryPolicyType int

const (
	// StandardRetry for normal operations (3 attempts, 1s-1m backoff)
	StandardRetry RetryPolicyType = iota
	// AggressiveRetry for critical operations (5 attempts, 500ms-30s backoff)
	AggressiveRetry
	// ConservativeRetry for expensive operations (2 attempts, 2s-2m backoff)
	ConservativeRetry
	// NoRetry for operations that must run at most once
	NoRetry
)

// NonRetryableErrorTypes are the fulfillment-service error codes that no retry can fix
var NonRetryableErrorTypes = []string{
	wmserrors.CodeValidationError,
	wmserrors.CodeBadRequest,
	wmserrors.CodeNotFound,
	wmserrors.CodeConflict,
	wmserrors.CodeInvalidTransition,
	wmserrors.CodeNotCancellable,
	wmserrors.CodeInvalidState,
}

// GetRetryPolicy returns a configured retry policy based on type
func GetRetryPolicy(policyType RetryPolicyType) *temporal.RetryPolicy {
	switch policyType {
	case AggressiveRetry:
		return &temporal.RetryPolicy{
			InitialInterval:        500 * time.Millisecond,
			BackoffCoefficient:     DefaultRetryBackoffCoefficient,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        5,
			NonRetryableErrorTypes: NonRetryableErrorTypes,
		}

	case ConservativeRetry:
		return &temporal.RetryPolicy{
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     DefaultRetryBackoffCoefficient,
			MaximumInterval:        2 * time.Minute,
			MaximumAttempts:        2,
			NonRetryableErrorTypes: NonRetryableErrorTypes,
		}

	case NoRetry:
		return &temporal.RetryPolicy{
			MaximumAttempts: 1,
		}

	case StandardRetry:
		fallthrough
	default:
		return &temporal.RetryPolicy{
			InitialInterval:        DefaultRetryInitialInterval,
			BackoffCoefficient:     DefaultRetryBackoffCoefficient,
			MaximumInterval:        DefaultRetryMaxInterval,
			MaximumAttempts:        DefaultMaxRetryAttempts,
			NonRetryableErrorTypes: NonRetryableErrorTypes,
		}
	}
}

// ActivityOptionsConfig defines configuration for activity options
type ActivityOptionsConfig struct {
	StartToCloseTimeout time.Duration
	RetryPolicy         RetryPolicyType
	HeartbeatTimeout    time.Duration
}

// GetActivityOptions returns configured activity options
func GetActivityOptions(config ActivityOptionsConfig) workflow.ActivityOptions {
	if config.StartToCloseTimeout == 0 {
		config.StartToCloseTimeout = DefaultActivityTimeout
	}

	opts := workflow.ActivityOptions{
		StartToCloseTimeout: config.StartToCloseTimeout,
		RetryPolicy:         GetRetryPolicy(config.RetryPolicy),
	}

	if config.HeartbeatTimeout > 0 {
		opts.HeartbeatTimeout = config.HeartbeatTimeout
	}

	return opts
}

// GetStandardActivityOptions returns standard activity options (most common use case)
func GetStandardActivityOptions() workflow.ActivityOptions {
	return GetActivityOptions(ActivityOptionsConfig{
		StartToCloseTimeout: DefaultActivityTimeout,
		RetryPolicy:         StandardRetry,
	})
}

// GetCriticalActivityOptions returns activity options for status changes the
// workflow cannot proceed without
func GetCriticalActivityOptions() workflow.ActivityOptions {
	return GetActivityOptions(ActivityOptionsConfig{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         AggressiveRetry,
	})
}
