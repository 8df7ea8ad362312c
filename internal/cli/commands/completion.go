package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/shipver/internal/buildctx"
)

// CompleteContexts completes build context names for flags.
func CompleteContexts(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	names := make([]string, 0, len(buildctx.All))
	for _, c := range buildctx.All {
		names = append(names, c.String())
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
