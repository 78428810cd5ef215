package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix marks the environment variables that override configuration keys.
const EnvPrefix = "PHOTOFLOW_"

// FileSystem interface for file operations (useful for testing).
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem implements FileSystem using actual file operations.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (rfs *RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Resolver handles finding and resolving config and env files.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
	// Explicit is true when ConfigFile was given by the caller rather than found.
	Explicit bool
}

// ResolveFiles finds config and env files for a service.
// Returns explicit paths if provided, otherwise searches for them.
func (cr *Resolver) ResolveFiles(serviceName string, opts LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{
		ConfigFile: opts.ConfigFile,
		EnvFile:    opts.EnvFile,
		Explicit:   opts.ConfigFile != "",
	}
	if resolved.ConfigFile == "" {
		resolved.ConfigFile = cr.findFirst(configSearchPaths(serviceName))
	}
	if resolved.EnvFile == "" {
		resolved.EnvFile = cr.findFirst(envSearchPaths(serviceName))
	}
	return resolved
}

func (cr *Resolver) findFirst(paths []string) string {
	for _, p := range paths {
		if cr.FileSystem.Exists(p) {
			return p
		}
	}
	return ""
}

func configSearchPaths(serviceName string) []string {
	return []string{
		fmt.Sprintf("./%s.yml", serviceName),
		fmt.Sprintf("./%s.yaml", serviceName),
		fmt.Sprintf("./cmd/%s/config.yml", serviceName),
		"./config/config.yml",
		"./config.yml",
	}
}

func envSearchPaths(serviceName string) []string {
	var paths []string
	for _, name := range []string{".env." + serviceName, ".env"} {
		paths = append(paths, "./"+name, "./config/"+name)
	}
	return paths
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string // Direct config file path (optional)
	EnvFile    string // Direct env file path (optional)
	Environ    func() []string
}

// LoaderOption is a functional option for LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path. A missing explicit
// file is an error, unlike the search paths.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithEnviron replaces os.Environ as the source of environment variables.
func WithEnviron(environ func() []string) LoaderOption {
	return func(lc *LoaderConfig) { lc.Environ = environ }
}

// LoadConfig loads configuration for a service into the provided cfg struct.
// Sources, lowest precedence first: the YAML file, the .env file and
// PHOTOFLOW_-prefixed environment variables.
func LoadConfig(serviceName string, cfg interface{}, opts ...LoaderOption) error {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = &RealFileSystem{}
	}
	if lc.Environ == nil {
		lc.Environ = os.Environ
	}

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(serviceName, lc)
	return loadFromResolvedFiles(cfg, files, lc)
}

func loadFromResolvedFiles(cfg interface{}, files ResolvedFiles, lc LoaderConfig) error {
	v := viper.New()

	if files.ConfigFile != "" {
		if !lc.FileSystem.Exists(files.ConfigFile) {
			if files.Explicit {
				return fmt.Errorf("config file %s not found", files.ConfigFile)
			}
		} else {
			v.SetConfigFile(files.ConfigFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("read config file %s: %w", files.ConfigFile, err)
			}
		}
	}

	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			return fmt.Errorf("load env file %s: %w", files.EnvFile, err)
		}
	}
	bindPrefixedEnv(v, lc.Environ())

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// bindPrefixedEnv sets every PHOTOFLOW_ variable under each nested key
// shape its name could stand for.
func bindPrefixedEnv(v *viper.Viper, environ []string) {
	for _, env := range environ {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		for _, variant := range generateEnvKeyVariants(strings.TrimPrefix(key, EnvPrefix)) {
			v.Set(variant, value)
		}
	}
}

// generateEnvKeyVariants creates all possible key variants for environment variable binding.
// Examples:
//
//	STORAGE_BASE_PATH -> [storage_base_path, storage.base.path, storage.base_path]
//	TELEMETRY_SAMPLE_RATE -> [telemetry_sample_rate, telemetry.sample.rate, telemetry.sample_rate]
func generateEnvKeyVariants(envKey string) []string {
	lowerKey := strings.ToLower(envKey)
	parts := strings.Split(lowerKey, "_")

	if len(parts) <= 1 {
		return []string{lowerKey}
	}

	variants := []string{
		lowerKey,
		strings.ReplaceAll(lowerKey, "_", "."),
	}
	for i := 1; i < len(parts); i++ {
		prefix := strings.Join(parts[:i], ".")
		suffix := strings.Join(parts[i:], "_")
		variants = append(variants, prefix+"."+suffix)
	}
	return removeDuplicates(variants)
}

// removeDuplicates removes duplicate strings from a slice.
func removeDuplicates(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}
