package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// envPrefix prefixes every environment variable read as configuration.
const envPrefix = "SHIPVER_"

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// flagKeys maps CLI flag names to config keys. Flags missing from the map
// are command options, not configuration.
var flagKeys = map[string]string{
	"ctx":           "ctx",
	"alpha":         "alpha",
	"beta":          "beta",
	"rc":            "rc",
	"stable":        "stable",
	"project-name":  "project_name",
	"counter-file":  "counter_file",
	"metadata-file": "metadata_file",
	"metadata":      "metadata_file",
	"output-dir":    "output_dir",
	"home":          "home_dir",
	"verbose":       "verbose",
	"output":        "output",
	"log-format":    "log_format",
	"apps-dir":      "deploy.apps_dir",
	"parallel":      "deploy.parallel",
	"strict":        "deploy.strict",
	"ledger":        "ledger.enabled",
	"ledger-path":   "ledger.path",
}

// configExistsIn returns the config file in dir, or "" if there is none.
func configExistsIn(dir string) string {
	for _, name := range configFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a shipver config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if found := configExistsIn(dir); found != "" {
			return found
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")
	configFileUsed = ""

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	// The directory holding the config file is the project root; without
	// one, the working directory is.
	if cfgFile == "" {
		cfgFile = findConfigUpward(cwd)
	}
	projectRoot := cwd
	if cfgFile != "" {
		abs, err := filepath.Abs(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path %s: %w", cfgFile, err)
		}
		cfgFile = abs
		projectRoot = filepath.Dir(abs)
	}

	// 1. Load defaults
	home, _ := os.UserHomeDir()
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"counter_file":    DefaultCounterFile,
		"metadata_file":   DefaultMetadataFile,
		"output_dir":      DefaultOutputDir,
		"home_dir":        home,
		"verbose":         false,
		"output":          DefaultOutput,
		"log_format":      DefaultLogFormat,
		"deploy.apps_dir": DefaultAppsDir,
		"deploy.parallel": DefaultParallel,
		"deploy.strict":   false,
		"ledger.enabled":  false,
		"ledger.path":     DefaultLedgerFile,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Load config file
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		configFileUsed = cfgFile
	}

	// 3. Load environment variables (SHIPVER_ prefix)
	// Transform: SHIPVER_COUNTER_FILE -> counter_file, SHIPVER_DEPLOY__PARALLEL -> deploy.parallel
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	// Paths given on the command line are relative to the working directory,
	// not the project root.
	flagPaths := map[string]string{}
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			val := posflag.FlagVal(flags, f)
			if s, ok := val.(string); ok && isPathKey(key) && s != "" {
				if abs, err := filepath.Abs(expandEnvVars(s)); err == nil {
					flagPaths[key] = abs
				}
			}
			return key, val
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Set project root and resolve relative paths
	cfg.ProjectRoot = projectRoot
	if cfg.ProjectName == "" {
		cfg.ProjectName = filepath.Base(projectRoot)
	}
	cfg.HomeDir = expandEnvVars(cfg.HomeDir)
	cfg.OutputDir = expandEnvVars(cfg.OutputDir)

	for key, target := range map[string]*string{
		"counter_file":  &cfg.CounterFile,
		"metadata_file": &cfg.MetadataFile,
		"output_dir":    &cfg.OutputDir,
		"home_dir":      &cfg.HomeDir,
		"ledger.path":   &cfg.Ledger.Path,
	} {
		if abs, ok := flagPaths[key]; ok {
			*target = abs
			continue
		}
		*target = resolvePathRelativeTo(*target, projectRoot)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Store config for access by commands
	currentConfig = &cfg

	return &cfg, nil
}

func isPathKey(key string) bool {
	switch key {
	case "counter_file", "metadata_file", "output_dir", "home_dir", "ledger.path":
		return true
	}
	return false
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR}
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}
