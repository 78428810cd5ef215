package observability

import (
	"context"
	"errors"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/photoflow/component"
	"github.com/kbukum/photoflow/logger"
)

// Component owns the telemetry providers of a run and the pipeline
// instruments created from them.
type Component struct {
	cfg     Config
	service string
	version string
	env     string

	mp      *sdkmetric.MeterProvider
	tp      *sdktrace.TracerProvider
	metrics *PipelineMetrics
}

var _ component.Component = (*Component)(nil)

// NewComponent creates a telemetry component for the named service.
func NewComponent(cfg Config, service, version, env string) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, service: service, version: version, env: env}
}

// Name returns the component name.
func (c *Component) Name() string { return "telemetry" }

// Start installs the exporters when telemetry is enabled and creates the
// pipeline instruments on the global meter.
func (c *Component) Start(ctx context.Context) error {
	if c.cfg.Enabled {
		mp, err := InitMeter(ctx, MeterConfig{
			ServiceName:    c.service,
			ServiceVersion: c.version,
			Environment:    c.env,
			Endpoint:       c.cfg.Endpoint,
			Insecure:       c.cfg.Insecure,
			Interval:       c.cfg.Interval,
		})
		if err != nil {
			return fmt.Errorf("telemetry start: %w", err)
		}
		c.mp = mp

		tp, err := InitTracer(ctx, TracerConfig{
			ServiceName:    c.service,
			ServiceVersion: c.version,
			Environment:    c.env,
			Endpoint:       c.cfg.Endpoint,
			Insecure:       c.cfg.Insecure,
			SampleRate:     c.cfg.SampleRate,
		})
		if err != nil {
			_ = mp.Shutdown(ctx)
			c.mp = nil
			return fmt.Errorf("telemetry start: %w", err)
		}
		c.tp = tp
	}

	m, err := NewPipelineMetrics(Meter(defaultTracerName))
	if err != nil {
		return fmt.Errorf("telemetry start: %w", err)
	}
	c.metrics = m
	return nil
}

// Stop flushes and shuts down the providers.
func (c *Component) Stop(ctx context.Context) error {
	var errs []error
	if c.tp != nil {
		errs = append(errs, c.tp.Shutdown(ctx))
		c.tp = nil
	}
	if c.mp != nil {
		errs = append(errs, c.mp.Shutdown(ctx))
		c.mp = nil
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("telemetry shutdown incomplete", logger.Fields(logger.FieldError, err.Error()))
		return err
	}
	return nil
}

// Health reports healthy once the instruments exist. Export failures are
// reported by the SDK and never fail a run.
func (c *Component) Health(_ context.Context) component.Health {
	if c.metrics == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Metrics returns the pipeline instruments, or nil before Start.
func (c *Component) Metrics() *PipelineMetrics { return c.metrics }

// Describe returns summary info for the run summary.
func (c *Component) Describe() component.Description {
	details := "disabled"
	if c.cfg.Enabled {
		details = fmt.Sprintf("otlp=%s sample_rate=%v", c.cfg.Endpoint, c.cfg.SampleRate)
	}
	return component.Description{Name: "Telemetry", Type: "telemetry", Details: details}
}
