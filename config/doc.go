// Package config loads photoflow run configuration.
//
// It uses Viper to read an optional YAML file, a .env file (godotenv) and
// PHOTOFLOW_-prefixed environment variables, in increasing precedence, and
// unmarshals the result into IngestConfig. Command-line flags are applied
// on top by the caller.
//
// # Usage
//
//	var cfg config.IngestConfig
//	err := config.LoadConfig("photoflow", &cfg, config.WithConfigFile(path))
//	cfg.ApplyDefaults()
//	err = cfg.Validate()
//
// Environment variables map to nested keys by replacing dots with
// underscores, e.g. PHOTOFLOW_STORAGE_BUCKET sets storage.bucket.
package config
