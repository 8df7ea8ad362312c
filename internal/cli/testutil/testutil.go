// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/shipver/internal/cli/config"
)

// Project is a scratch shipver project created for a test.
type Project struct {
	Root      string
	Home      string
	OutputDir string
}

// ReleaseArtifacts are the files a split-per-ABI release build produces.
var ReleaseArtifacts = []string{
	"app-arm64-v8a-release.apk",
	"app-armeabi-v7a-release.apk",
	"app-x86_64-release.apk",
	"app-arm64-v8a-release.apk.sha1",
	"output-metadata.json",
}

// SetupTestProject creates a temporary project named "rootify" with a
// shipver.yaml, makes it the working directory and clears any previously
// loaded configuration. Extra YAML is appended to the config file.
func SetupTestProject(t *testing.T, extraYAML string) *Project {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	base, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("failed to resolve temp dir: %v", err)
	}
	p := &Project{
		Root: filepath.Join(base, "rootify"),
		Home: filepath.Join(base, "home"),
	}
	p.OutputDir = filepath.Join(p.Root, config.DefaultOutputDir)

	for _, dir := range []string{p.Root, p.Home} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}

	cfg := "home_dir: " + p.Home + "\n" + extraYAML
	if err := os.WriteFile(filepath.Join(p.Root, "shipver.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("failed to create shipver.yaml: %v", err)
	}

	// Isolate from the caller's environment.
	t.Setenv("HOME", p.Home)
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, "SHIPVER_") {
			t.Setenv(name, "")
			_ = os.Unsetenv(name)
		}
	}
	t.Chdir(p.Root)
	return p
}

// WriteArtifacts creates the named files in the project's output directory.
func (p *Project) WriteArtifacts(t *testing.T, names ...string) {
	t.Helper()
	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		t.Fatalf("failed to create output directory: %v", err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(p.OutputDir, name), []byte(name), 0o644); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}
}

// ReadCounterFile returns the project's counter file, or "" if it does not exist.
func (p *Project) ReadCounterFile(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(p.Root, config.DefaultCounterFile))
	if os.IsNotExist(err) {
		return ""
	}
	if err != nil {
		t.Fatalf("failed to read counter file: %v", err)
	}
	return string(data)
}

// DeployedFiles lists the files deployed for the capitalized context dir.
func (p *Project) DeployedFiles(t *testing.T, contextDir string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(p.Home, config.DefaultAppsDir, contextDir))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("failed to list deployed files: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and basic structure.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	// Check for balanced code fences
	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	// Check that headers have content
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
