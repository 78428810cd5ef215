package config

import (
	"strings"

	"github.com/kbukum/photoflow/errors"
	"github.com/kbukum/photoflow/observability"
	"github.com/kbukum/photoflow/resilience"
	"github.com/kbukum/photoflow/storage"
	"github.com/kbukum/photoflow/validation"
)

// Defaults for IngestConfig.
const (
	DefaultMaxLongEdge = 3840
	DefaultBatchSize   = 10
	DefaultFaultPolicy = FaultPolicyDrop
)

// Fault policies for item-local faults.
const (
	FaultPolicyDrop  = "drop"
	FaultPolicyAbort = "abort"
)

// IngestConfig is the complete configuration of one ingest run.
type IngestConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	// Input is the root directory scanned for photos.
	Input string `yaml:"input" mapstructure:"input" validate:"required"`
	// Output is the destination root. For the local provider it becomes
	// Storage.BasePath when that is unset.
	Output string `yaml:"output" mapstructure:"output"`
	// Stages are the registered stage names applied in order on a linear run.
	Stages []string `yaml:"stages" mapstructure:"stages"`
	// Topology is the path of a YAML stream topology. It replaces Stages.
	Topology string `yaml:"topology" mapstructure:"topology"`

	DateStart string `yaml:"date_start" mapstructure:"date_start" validate:"omitempty,date"`
	DateEnd   string `yaml:"date_end" mapstructure:"date_end" validate:"omitempty,date"`

	// MaxLongEdge and BatchSize are nil when unset; an explicit zero is
	// kept so Validate can reject it.
	MaxLongEdge *int   `yaml:"max_long_edge" mapstructure:"max_long_edge"`
	BatchSize   *int   `yaml:"batch_size" mapstructure:"batch_size"`
	FaultPolicy string `yaml:"fault_policy" mapstructure:"fault_policy" validate:"oneof=drop abort"`
	// RunID identifies the run in logs and traces; generated when empty.
	RunID string `yaml:"run_id" mapstructure:"run_id" validate:"omitempty,uuid"`

	Storage storage.Config `yaml:"storage" mapstructure:"storage"`
	// WriteRetry governs upload retries while the destination still answers.
	WriteRetry resilience.RetryConfig `yaml:"write_retry" mapstructure:"write_retry"`
	Telemetry  observability.Config   `yaml:"telemetry" mapstructure:"telemetry"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *IngestConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.MaxLongEdge == nil {
		c.MaxLongEdge = intPtr(DefaultMaxLongEdge)
	}
	if c.BatchSize == nil {
		c.BatchSize = intPtr(DefaultBatchSize)
	}
	if c.FaultPolicy == "" {
		c.FaultPolicy = DefaultFaultPolicy
	}
	c.Stages = SplitStages(c.Stages)
	c.Storage.ApplyDefaults()
	if c.Storage.Provider == storage.ProviderLocal && c.Storage.BasePath == "" {
		c.Storage.BasePath = c.Output
	}
	if c.WriteRetry.MaxAttempts == 0 {
		c.WriteRetry = resilience.DefaultRetryConfig()
	}
	c.WriteRetry.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
}

// Validate checks the configuration and returns a configuration fault
// describing every invalid field.
func (c *IngestConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return errors.ConfigFault(err.Error())
	}
	if err := validation.Validate(c); err != nil {
		return err
	}

	v := validation.New().
		DateOrder("date_start", c.DateStart, "date_end", c.DateEnd).
		Positive("max_long_edge", c.LongEdge()).
		Positive("batch_size", c.WindowSize()).
		Custom(c.Topology == "" || len(c.Stages) == 0, "stages", "cannot be combined with topology").
		Custom(c.WriteRetry.MaxAttempts >= 1, "write_retry.max_attempts", "must be at least 1").
		Custom(c.WriteRetry.Jitter >= 0 && c.WriteRetry.Jitter <= 1, "write_retry.jitter", "must be between 0 and 1")
	if c.Storage.Provider == storage.ProviderLocal {
		v.Required("output", c.Output)
	}
	for _, s := range c.Stages {
		v.Pattern("stages", s, `^[a-z][a-z0-9_-]*$`)
	}
	if err := v.Err(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return errors.ConfigFault(err.Error())
	}
	if err := c.Telemetry.Validate(); err != nil {
		return errors.ConfigFault(err.Error())
	}
	return nil
}

// LongEdge returns the configured long-edge bound, or the default when unset.
func (c *IngestConfig) LongEdge() int {
	if c.MaxLongEdge == nil {
		return DefaultMaxLongEdge
	}
	return *c.MaxLongEdge
}

// WindowSize returns the configured batch size, or the default when unset.
func (c *IngestConfig) WindowSize() int {
	if c.BatchSize == nil {
		return DefaultBatchSize
	}
	return *c.BatchSize
}

func intPtr(n int) *int { return &n }

// HasDateRange reports whether a capture date bound was given.
func (c *IngestConfig) HasDateRange() bool {
	return c.DateStart != "" || c.DateEnd != ""
}

// SplitStages flattens comma-separated entries and drops blanks, so that
// "landscape,date" and ["landscape", "date"] mean the same.
func SplitStages(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, name := range strings.Split(entry, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}
