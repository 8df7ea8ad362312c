// Package commands_test provides tests for CLI command creation.
package commands

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/shipver/internal/cli/config"
)

// execute runs cmd on its own, loading configuration from its flags.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	config.ResetConfig()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestNewResolveCommand(t *testing.T) {
	cmd := NewResolveCommand()

	assert.Equal(t, "resolve", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	for _, flag := range []string{"task", "format"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewDeployCommand(t *testing.T) {
	cmd := NewDeployCommand()

	assert.Equal(t, "deploy", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")

	flags := []string{"output-dir", "home", "metadata", "apps-dir", "parallel", "strict", "force", "watch"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
	assert.Equal(t, "w", cmd.Flags().Lookup("watch").Shorthand)
}

func TestNewBuildCommand(t *testing.T) {
	cmd := NewBuildCommand()

	assert.Equal(t, "build [flags] -- <command> [args...]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	for _, flag := range []string{"task", "no-deploy", "output-dir", "home", "strict"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}

	// Requires the command to run
	assert.Error(t, cmd.Args(cmd, nil))
}

func TestNewCountersCommand(t *testing.T) {
	cmd := NewCountersCommand()

	assert.Equal(t, "counters", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.Error(t, cmd.Args(cmd, []string{"extra"}))
}

func TestNewHistoryCommand(t *testing.T) {
	cmd := NewHistoryCommand()

	assert.Equal(t, "history", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")

	for _, flag := range []string{"limit", "context", "artifacts"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
	assert.Equal(t, "20", cmd.Flags().Lookup("limit").DefValue)
}

func TestCompleteContexts(t *testing.T) {
	names, directive := CompleteContexts(nil, nil, "")

	require.Equal(t, []string{"alpha", "beta", "rc", "stable"}, names)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
}
