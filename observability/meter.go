package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/photoflow/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	Interval time.Duration
}

// InitMeter initializes the OpenTelemetry meter provider and installs it globally.
// The provider should be shut down when the run ends so the last
// measurements are flushed.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Debug("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Write outcome values for the status attribute.
const (
	WriteOK     = "ok"
	WriteFailed = "failed"
)

// PipelineMetrics holds the instruments recorded while items flow through
// stages. A nil *PipelineMetrics records nothing.
type PipelineMetrics struct {
	itemsIn       metric.Int64Counter
	itemsOut      metric.Int64Counter
	itemsFiltered metric.Int64Counter
	faults        metric.Int64Counter
	writes        metric.Int64Counter
	writeBytes    metric.Int64Counter
	writeDuration metric.Float64Histogram
}

// NewPipelineMetrics creates the pipeline instruments on the given meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	var (
		m   PipelineMetrics
		err error
	)
	if m.itemsIn, err = meter.Int64Counter("photoflow.stage.items.in",
		metric.WithDescription("Items offered to a stage")); err != nil {
		return nil, fmt.Errorf("creating stage.items.in counter: %w", err)
	}
	if m.itemsOut, err = meter.Int64Counter("photoflow.stage.items.out",
		metric.WithDescription("Items emitted by a stage")); err != nil {
		return nil, fmt.Errorf("creating stage.items.out counter: %w", err)
	}
	if m.itemsFiltered, err = meter.Int64Counter("photoflow.stage.items.filtered",
		metric.WithDescription("Items rejected by a stage filter")); err != nil {
		return nil, fmt.Errorf("creating stage.items.filtered counter: %w", err)
	}
	if m.faults, err = meter.Int64Counter("photoflow.stage.faults",
		metric.WithDescription("Item-local faults by stage and code")); err != nil {
		return nil, fmt.Errorf("creating stage.faults counter: %w", err)
	}
	if m.writes, err = meter.Int64Counter("photoflow.output.writes",
		metric.WithDescription("Output writes by status")); err != nil {
		return nil, fmt.Errorf("creating output.writes counter: %w", err)
	}
	if m.writeBytes, err = meter.Int64Counter("photoflow.output.bytes",
		metric.WithDescription("Bytes written to the destination"),
		metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("creating output.bytes counter: %w", err)
	}
	if m.writeDuration, err = meter.Float64Histogram("photoflow.output.duration",
		metric.WithDescription("Duration of output writes in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating output.duration histogram: %w", err)
	}
	return &m, nil
}

func stageAttr(stage string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String(AttrStage, stage))
}

// RecordIn counts an item offered to stage.
func (m *PipelineMetrics) RecordIn(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.itemsIn.Add(ctx, 1, stageAttr(stage))
}

// RecordOut counts an item emitted by stage.
func (m *PipelineMetrics) RecordOut(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.itemsOut.Add(ctx, 1, stageAttr(stage))
}

// RecordFiltered counts an item rejected by the filter of stage.
func (m *PipelineMetrics) RecordFiltered(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.itemsFiltered.Add(ctx, 1, stageAttr(stage))
}

// RecordFault counts an item-local fault raised by stage.
func (m *PipelineMetrics) RecordFault(ctx context.Context, stage, code string) {
	if m == nil {
		return
	}
	m.faults.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrStage, stage),
		attribute.String(AttrFaultCode, code),
	))
}

// RecordWrite records one output write.
func (m *PipelineMetrics) RecordWrite(ctx context.Context, status string, bytes int64, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrStatus, status))
	m.writes.Add(ctx, 1, attrs)
	if bytes > 0 {
		m.writeBytes.Add(ctx, bytes)
	}
	m.writeDuration.Record(ctx, d.Seconds(), attrs)
}
