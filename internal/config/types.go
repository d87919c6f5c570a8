package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"manifestctl/internal/merge"
)

const (
	// ValuesFileName is the overlay file holding template values.
	ValuesFileName = "values.yaml"
	// ConfigFileName is the overlay file holding tool configuration.
	ConfigFileName = "config.yaml"
	// DefaultEnvPrefix marks environment variables that become values.
	DefaultEnvPrefix = "MANIFESTCTL_VALUE_"
)

// Settings is the typed view of a merged config.yaml.
type Settings struct {
	Secrets *SecretsSettings `yaml:"secrets,omitempty"`
}

// SecretsSettings configures secret lookups from templates.
type SecretsSettings struct {
	Provider string `yaml:"provider"`           // Registered provider name, e.g. "random", "age"
	Prefix   string `yaml:"prefix,omitempty"`   // Optional: prepended to every secret key
	File     string `yaml:"file,omitempty"`     // Optional: provider specific data file
	Identity string `yaml:"identity,omitempty"` // Optional: provider specific identity/key file
}

// Overrides are the overlays appended after the hierarchical value files.
type Overrides struct {
	ValueFiles []string   // Value files, merged in order
	Values     []KeyValue // Single key/value pairs; dotted keys create nesting
	EnvPrefix  string     // Prefix of value environment variables; empty disables them
}

// KeyValue is a single value override.
type KeyValue struct {
	Key   string
	Value string
}

// MalformedDocumentError is returned when an overlay file cannot be parsed.
type MalformedDocumentError struct {
	Path string
	Err  error
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed document %s: %v", e.Path, e.Err)
}

func (e *MalformedDocumentError) Unwrap() error {
	return e.Err
}

// InvalidConfigurationError is returned when a merged config is unusable.
type InvalidConfigurationError struct {
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// ParseSettings decodes a merged config tree into Settings.
func ParseSettings(tree merge.Tree) (Settings, error) {
	var settings Settings
	data, err := yaml.Marshal(tree)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, &InvalidConfigurationError{Reason: err.Error()}
	}
	return settings, nil
}
