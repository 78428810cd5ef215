package storage

import (
	"errors"
	"fmt"
)

// Provider constants for supported storage backends.
const (
	ProviderLocal  = "local"
	ProviderS3     = "s3"
	ProviderMemory = "memory"
)

// Default configuration values.
const (
	DefaultProvider = ProviderLocal
	DefaultRegion   = "us-east-1"
)

// Config holds storage configuration.
type Config struct {
	// Provider selects the storage backend: "local", "s3" or "memory".
	Provider string `mapstructure:"provider" json:"provider"`

	// BasePath is the root directory for local storage.
	BasePath string `mapstructure:"base_path" json:"base_path"`

	// Bucket is the S3 bucket name.
	Bucket string `mapstructure:"bucket" json:"bucket"`

	// Prefix is prepended to every S3 object key.
	Prefix string `mapstructure:"prefix" json:"prefix"`

	// Region is the AWS region for S3.
	Region string `mapstructure:"region" json:"region"`

	// Endpoint is a custom S3-compatible endpoint (e.g. MinIO).
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`

	// AccessKey is the AWS access key ID.
	AccessKey string `mapstructure:"access_key" json:"access_key"`

	// SecretKey is the AWS secret access key.
	SecretKey string `mapstructure:"secret_key" json:"secret_key"`

	// ForcePathStyle forces path-style URLs instead of virtual-hosted-style.
	ForcePathStyle bool `mapstructure:"force_path_style" json:"force_path_style"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.Provider == ProviderS3 && c.Region == "" {
		c.Region = DefaultRegion
	}
}

// Validate checks that the configuration is valid for the selected provider.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderLocal:
		if c.BasePath == "" {
			return errors.New("storage: base_path is required for local provider")
		}
	case ProviderS3:
		var errs []error
		if c.Bucket == "" {
			errs = append(errs, errors.New("storage: bucket is required for s3 provider"))
		}
		if c.Region == "" {
			errs = append(errs, errors.New("storage: region is required for s3 provider"))
		}
		if len(errs) > 0 {
			return fmt.Errorf("storage: invalid s3 config: %w", errors.Join(errs...))
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("storage: unsupported provider %q", c.Provider)
	}
	return nil
}

// Describe returns a one-line summary of the destination for logs.
func (c *Config) Describe() string {
	switch c.Provider {
	case ProviderS3:
		if c.Prefix != "" {
			return fmt.Sprintf("s3://%s/%s", c.Bucket, c.Prefix)
		}
		return fmt.Sprintf("s3://%s", c.Bucket)
	case ProviderLocal:
		return c.BasePath
	default:
		return c.Provider
	}
}
