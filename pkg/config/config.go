// Package config provides YAML-based configuration loading with environment variable expansion.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// Load loads configuration from a YAML file with environment variable expansion.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	if err := Decode(data, target); err != nil {
		return fmt.Errorf("config file %s: %w", filename, err)
	}
	return nil
}

// Decode expands ${VAR} references in data, decodes it into target, and
// runs target's Validate hook. Unknown keys are rejected so that typos do
// not silently fall back to defaults. Empty input leaves target unchanged.
func Decode[T any](data []byte, target *T) error {
	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}
