// Package config loads stackcollector configuration.
//
// Values are layered, each layer overriding the previous one: defaults, the
// YAML file, STACKCOLLECTOR_* environment variables, then command-line flags
// (applied by the CLI).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stackcollector/stackcollector/internal/constants"
)

// ResolvePath returns the config file to load: the flag value when set,
// otherwise STACKCOLLECTOR_CONFIG. An empty result means no file.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(constants.ConfigEnvVar)
}

// Load builds a configuration from defaults, the file at path (skipped when
// path is empty) and the environment. The result is not validated; flags may
// still change it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // G304: Path is chosen by the operator.
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML into cfg. Keys absent from data keep their current value.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Marshal encodes cfg as YAML that Parse reads back unchanged.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Save writes cfg as YAML to path.
func Save(path string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	//nolint:gosec // G306: Config holds no secrets.
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
