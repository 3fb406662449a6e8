package application

import (
	"context"
	stderrors "errors"

	"github.com/wms-platform/fulfillment/shared/pkg/errors"
	"github.com/wms-platform/fulfillment/shared/pkg/keylock"
	"github.com/wms-platform/fulfillment/shared/pkg/logging"
	"github.com/wms-platform/fulfillment/shared/pkg/metrics"
	"github.com/wms-platform/fulfillment/shared/pkg/resilience"
	"go.opentelemetry.io/otel"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
)

var tracer = otel.Tracer("fulfillment-service/application")

// isContention matches raw lock and version failures. AppErrors come from a
// nested guarded call that already retried.
func isContention(err error) bool {
	if errors.IsAppError(err) {
		return false
	}
	return stderrors.Is(err, keylock.ErrLockTimeout) || stderrors.Is(err, common.ErrVersionConflict)
}

// guard serializes read-modify-write cycles per key. Each attempt takes the
// key lock, and lock timeouts or version conflicts are retried with backoff.
type guard struct {
	locker   keylock.Locker
	attempts int
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

func newGuard(locker keylock.Locker, attempts int, m *metrics.Metrics, logger *logging.Logger) *guard {
	if locker == nil {
		locker = keylock.NewLocalLocker(0)
	}
	return &guard{locker: locker, attempts: attempts, metrics: m, logger: logger}
}

func (g *guard) run(ctx context.Context, key, op string, fn func(ctx context.Context) error) error {
	config := resilience.ContentionRetryConfig(g.attempts, isContention)
	config.OnRetry = func(attempt int, err error) {
		g.metrics.RecordLedgerRetry(op)
		g.logger.WithContext(ctx).Debug("Retrying contended operation",
			"key", key, "operation", op, "attempt", attempt, "error", err)
	}

	return resilience.Retry(ctx, config, func() error {
		unlock, err := g.locker.Lock(ctx, key)
		if err != nil {
			return err
		}
		defer unlock()
		return fn(ctx)
	})
}

// guarded is run for operations that produce a value
func guarded[T any](ctx context.Context, g *guard, key, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := g.run(ctx, key, op, func(ctx context.Context) error {
		r, err := fn(ctx)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}
