package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command. A leading "v" on version,
// as module and tag versions carry, is dropped.
func NewVersionCommand(version, commit, date string) *cobra.Command {
	version = strings.TrimPrefix(version, "v")
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display shipver version and build information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "shipver v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "commit %s, built %s\n", commit, date)
		},
	}
}
