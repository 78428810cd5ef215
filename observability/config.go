package observability

import (
	"fmt"
	"time"
)

// Default telemetry settings.
const (
	DefaultEndpoint = "localhost:4318"
	DefaultInterval = 15 * time.Second
)

// Config configures OpenTelemetry export for a run. With Enabled false the
// global no-op providers stay in place and instruments cost nothing.
type Config struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64       `yaml:"sample_rate" mapstructure:"sample_rate"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
}

// Validate checks the sampling rate bounds.
func (c *Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be between 0 and 1 (got: %v)", c.SampleRate)
	}
	return nil
}
