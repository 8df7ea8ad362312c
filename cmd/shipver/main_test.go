// Package main provides tests for the shipver CLI.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/shipver/internal/cli"
	"github.com/leapstack-labs/shipver/internal/cli/testutil"
)

// run executes the root command with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, "version")
	if err != nil {
		t.Errorf("version command error = %v", err)
	}
	if !strings.Contains(out, "shipver") {
		t.Errorf("version output should contain 'shipver', got: %s", out)
	}
}

func TestHelpCommand(t *testing.T) {
	out, _, err := run(t, "--help")
	if err != nil {
		t.Errorf("help command error = %v", err)
	}

	expectedCommands := []string{"resolve", "deploy", "build", "counters", "history", "completion"}
	for _, expected := range expectedCommands {
		if !strings.Contains(out, expected) {
			t.Errorf("help output should contain '%s', got: %s", expected, out)
		}
	}
}

func TestCompletionCommand(t *testing.T) {
	out, _, err := run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "shipver")
}

func TestResolveAndDeploy(t *testing.T) {
	p := testutil.SetupTestProject(t, "")
	p.WriteArtifacts(t, testutil.ReleaseArtifacts...)

	out, _, err := run(t, "resolve", "--beta", "--task", "assembleRelease", "--format", "json")
	require.NoError(t, err)

	var m struct {
		Context     string `json:"context"`
		BuildNumber int    `json:"build_number"`
		Name        string `json:"version_name"`
		Release     bool   `json:"release"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, "beta", m.Context)
	assert.Equal(t, 1, m.BuildNumber)
	assert.Equal(t, "0.9.1-beta", m.Name)
	assert.True(t, m.Release)
	assert.Contains(t, p.ReadCounterFile(t), "beta_count=1\n")

	out, _, err = run(t, "deploy", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "0.9.1-beta"`)

	deployed := p.DeployedFiles(t, "Beta")
	require.Len(t, deployed, 2)
	for _, name := range deployed {
		assert.True(t, strings.HasPrefix(name, "rootify-arm"), "unexpected deployed file %s", name)
		assert.True(t, strings.HasSuffix(name, "-b1.apk"), "unexpected deployed file %s", name)
	}
}

func TestResolveDebugBuildKeepsCounter(t *testing.T) {
	p := testutil.SetupTestProject(t, "")

	out, _, err := run(t, "resolve", "--ctx", "rc", "--task", "assembleDebug", "--format", "env")
	require.NoError(t, err)
	assert.Contains(t, out, "SHIPVER_VERSION_NAME=0.9.9.0-rc")
	assert.Contains(t, out, "SHIPVER_RELEASE=false")
	assert.NotContains(t, p.ReadCounterFile(t), "rc_count")

	_, _, err = run(t, "deploy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not resolved for a release build")
}

func TestResolveUnknownContext(t *testing.T) {
	testutil.SetupTestProject(t, "")

	_, _, err := run(t, "resolve", "--ctx", "gamma")
	require.Error(t, err)
	assert.Equal(t, 1, cli.ExitCode(err))
}

func TestBuildCommandExitCode(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
	p := testutil.SetupTestProject(t, "")

	_, _, err := run(t, "build", "--alpha", "--task", "assembleRelease", "--", "/bin/sh", "-c", "exit 3")
	require.Error(t, err)
	assert.Equal(t, 3, cli.ExitCode(err))

	// The counter advanced before the build ran.
	assert.Contains(t, p.ReadCounterFile(t), "alpha_count=1\n")
	_, statErr := os.Stat(filepath.Join(p.Home, "Apps", "Alpha"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, cli.ExitCode(nil))
	assert.Equal(t, 1, cli.ExitCode(errors.New("boom")))
}
