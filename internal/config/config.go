// Package config loads optional YAML defaults for repeated hikview runs
// against the same case, so an examiner scripting many extract calls
// doesn't have to repeat the same flags every time.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Defaults holds values that CLI flags fall back to when unset.
type Defaults struct {
	Image       string `yaml:"image"`
	OutputDir   string `yaml:"output_dir"`
	ExtraOffset int64  `yaml:"extra_offset"`
}

// Load reads a YAML defaults file. A missing file is not an error: it
// simply yields a zero-value Defaults, since the config layer is optional.
func Load(path string) (*Defaults, error) {
	d := &Defaults{}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}
	return d, nil
}

// ApplyString returns override if non-empty, otherwise fallback.
func ApplyString(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
