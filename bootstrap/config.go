package bootstrap

import (
	"github.com/kbukum/photoflow/config"
)

// Config is the interface constraint for application configuration types.
// Any struct that embeds config.ServiceConfig satisfies it through the
// promoted methods, and may override ApplyDefaults and Validate:
//
//	type IngestConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Input string `yaml:"input" mapstructure:"input"`
//	}
//
//	app, err := bootstrap.NewApp[*IngestConfig](&cfg)
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
