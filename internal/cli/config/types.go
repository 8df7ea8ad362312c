// Package config provides configuration management for the shipver CLI.
package config

import "github.com/leapstack-labs/shipver/internal/buildctx"

// DeployConfig holds artifact deployment settings.
type DeployConfig struct {
	AppsDir  string `koanf:"apps_dir"`
	Parallel int    `koanf:"parallel"`
	Strict   bool   `koanf:"strict"`
}

// LedgerConfig holds build ledger settings.
type LedgerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// Config holds all CLI configuration options.
type Config struct {
	ProjectName  string       `koanf:"project_name"`
	CounterFile  string       `koanf:"counter_file"`
	MetadataFile string       `koanf:"metadata_file"`
	OutputDir    string       `koanf:"output_dir"`
	HomeDir      string       `koanf:"home_dir"`
	Ctx          string       `koanf:"ctx"`
	Alpha        bool         `koanf:"alpha"`
	Beta         bool         `koanf:"beta"`
	RC           bool         `koanf:"rc"`
	Stable       bool         `koanf:"stable"`
	Verbose      bool         `koanf:"verbose"`
	OutputFormat string       `koanf:"output"`
	LogFormat    string       `koanf:"log_format"`
	Deploy       DeployConfig `koanf:"deploy"`
	Ledger       LedgerConfig `koanf:"ledger"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// Params returns the context selection parameters for the given tasks.
func (c *Config) Params(tasks []string) buildctx.Params {
	return buildctx.Params{
		Explicit: c.Ctx,
		Alpha:    c.Alpha,
		Beta:     c.Beta,
		RC:       c.RC,
		Stable:   c.Stable,
		Tasks:    tasks,
	}
}

// Default configuration values.
const (
	DefaultCounterFile  = "version.properties"
	DefaultMetadataFile = ".shipver/metadata.json"
	DefaultOutputDir    = "build/app/outputs/flutter-apk"
	DefaultLedgerFile   = ".shipver/ledger.db"
	DefaultAppsDir      = "Apps"
	DefaultParallel     = 1
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogFormat    = "text"
)

// Config file names, in lookup order.
var configFileNames = []string{"shipver.yaml", "shipver.yml"}
