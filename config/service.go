package config

import (
	"fmt"
	"slices"

	"github.com/kbukum/photoflow/logger"
)

// Environments accepted in ServiceConfig.Environment.
var Environments = []string{"development", "staging", "production"}

// ServiceConfig contains the identity and logging settings of the process.
// Run configurations embed it:
//
//	type IngestConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Input string `yaml:"input" mapstructure:"input"`
//	}
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
}

// GetServiceConfig returns the base ServiceConfig.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}

// ApplyDefaults applies default values to the base configuration.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "photoflow"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.Debug && c.Logging.Level == "" {
		c.Logging.Level = "debug"
	}
	c.Logging.ApplyDefaults()
}

// Validate validates the base configuration fields.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config.name is required")
	}
	if !slices.Contains(Environments, c.Environment) {
		return fmt.Errorf("config.environment must be one of %v (got: %s)", Environments, c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}
