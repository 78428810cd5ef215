// Package observability provides OpenTelemetry tracing and metrics for
// photoflow runs.
//
// The telemetry Component installs OTLP exporters when enabled and exposes
// PipelineMetrics, which counts items entering, leaving and filtered by each
// stage, item-local faults and output writes:
//
//	tel := observability.NewComponent(cfg, "photoflow", version, env)
//	_ = tel.Start(ctx)
//	defer tel.Stop(ctx)
//	tel.Metrics().RecordFault(ctx, "landscape", "DECODE_ERROR")
//
// Output writes are traced as spans:
//
//	ctx, op := observability.StartWrite(ctx, "2024/a.jpg", "out/2024/a.jpg", metrics)
//	err := store.Upload(ctx, dst, r)
//	op.End(ctx, n, err)
package observability
