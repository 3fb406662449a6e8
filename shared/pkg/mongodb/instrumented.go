package mongodb

import (
	"context"
	"time"

	"github.com/wms-platform/fulfillment/shared/pkg/logging"
	"github.com/wms-platform/fulfillment/shared/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation records metrics, a debug log line and a client span for each
// repository operation. The zero value records spans only.
type Instrumentation struct {
	Database string
	Metrics  *metrics.Metrics
	Logger   *logging.Logger
}

// Observe runs op inside a span and records its outcome against the collection
func (i Instrumentation) Observe(ctx context.Context, collection, operation string, op func(ctx context.Context) error) error {
	ctx, span := otel.Tracer("mongodb").Start(ctx, "mongodb."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "mongodb"),
			attribute.String("db.name", i.Database),
			attribute.String("db.operation", operation),
			attribute.String("db.collection", collection),
		),
	)
	defer span.End()

	start := time.Now()
	err := op(ctx)
	duration := time.Since(start)

	success := err == nil
	i.Metrics.RecordMongoDBOperation(collection, operation, success, duration)
	if i.Logger != nil {
		i.Logger.DatabaseQuery(ctx, collection, operation, duration, success, 0)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
