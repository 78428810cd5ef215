package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WriteOperation tracks one output write: a span plus the write metrics.
type WriteOperation struct {
	Source      string
	Destination string
	StartTime   time.Time
	Metrics     *PipelineMetrics

	span trace.Span
}

// StartWrite starts a traced write of source to destination.
// If metrics is nil, metric recording is silently skipped.
func StartWrite(ctx context.Context, source, destination string, metrics *PipelineMetrics) (context.Context, *WriteOperation) {
	ctx, span := StartSpan(ctx, SpanWrite, trace.WithAttributes(
		attribute.String(AttrSource, source),
		attribute.String(AttrDestination, destination),
	))
	return ctx, &WriteOperation{
		Source:      source,
		Destination: destination,
		StartTime:   time.Now(),
		Metrics:     metrics,
		span:        span,
	}
}

// End closes the span and records the outcome of the write.
func (op *WriteOperation) End(ctx context.Context, bytes int64, err error) {
	d := op.Duration()
	status := WriteOK
	if err != nil {
		status = WriteFailed
		op.span.RecordError(err)
		op.span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}
	op.span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, d.Milliseconds()),
	)
	op.span.End()
	op.Metrics.RecordWrite(ctx, status, bytes, d)
}

// Duration returns the elapsed time since the write started.
func (op *WriteOperation) Duration() time.Duration {
	return time.Since(op.StartTime)
}
