// Package config parses `.ghostflow.yaml` (spec.md §6): the per-repository
// declaration of checks, reformat kinds, and formatter definitions.
// Grounded on tozd-gitlab-config's config.go/yaml.go — the same
// YAML-node-based load/save idiom, generalized from GitLab project
// settings to Ghostflow's check/reformat/formatter schema.
package config

import (
	"time"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// CheckConfig is one entry in the `checks` list: a registered check kind
// plus its opaque, check-specific configuration.
type CheckConfig struct {
	Kind   string    `yaml:"kind"`
	Config yaml.Node `yaml:"config,omitempty"`
}

// FormatterConfig is one entry in the `formatters` map.
type FormatterConfig struct {
	Name        string   `yaml:"name,omitempty"`
	Formatter   string   `yaml:"formatter"`
	ConfigFiles []string `yaml:"config_files,omitempty"`
	Timeout     *int     `yaml:"timeout,omitempty"` // seconds; nil means no timeout
}

// TimeoutDuration returns f's configured timeout, or 0 if unset.
func (f FormatterConfig) TimeoutDuration() time.Duration {
	if f.Timeout == nil {
		return 0
	}
	return time.Duration(*f.Timeout) * time.Second
}

// Configuration is the parsed `.ghostflow.yaml` document (spec.md §6).
type Configuration struct {
	Checks     []CheckConfig              `yaml:"checks,omitempty"`
	Reformat   []string                   `yaml:"reformat,omitempty"`
	Formatters map[string]FormatterConfig `yaml:"formatters,omitempty"`
}

// Load parses contents (the raw bytes of `.ghostflow.yaml` at a commit's
// tree) and resolves YAML merge keys (`<<:`), matching yaml.v3's native
// merge-key support used as-is (no custom resolution needed: yaml.v3
// resolves `<<` during Unmarshal itself).
func Load(contents []byte) (*Configuration, errors.E) {
	var cfg Configuration
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, errors.Wrap(err, "cannot parse .ghostflow.yaml")
	}
	for kind, f := range cfg.Formatters {
		if f.Formatter == "" {
			return nil, errors.Errorf("formatter %q is missing a `formatter` executable path", kind)
		}
	}
	return &cfg, nil
}
