package config

import (
	"fmt"
	"slices"
)

var (
	validOutputFormats = []string{"auto", "text", "markdown", "json"}
	validLogFormats    = []string{"text", "json"}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.CounterFile == "" {
		return fmt.Errorf("counter_file is required")
	}
	if c.Deploy.Parallel < 1 {
		return fmt.Errorf("deploy.parallel must be at least 1, got %d", c.Deploy.Parallel)
	}
	if !slices.Contains(validOutputFormats, c.OutputFormat) {
		return fmt.Errorf("invalid output format %q (expected one of %v)", c.OutputFormat, validOutputFormats)
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		return fmt.Errorf("invalid log format %q (expected one of %v)", c.LogFormat, validLogFormats)
	}
	return nil
}

// ValidateHome checks that a deployment root is configured.
func (c *Config) ValidateHome() error {
	if c.HomeDir == "" {
		return fmt.Errorf("home directory is unknown\nHint: set home_dir in shipver.yaml or pass --home")
	}
	return nil
}
