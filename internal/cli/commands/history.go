package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/shipver/internal/buildctx"
	"github.com/leapstack-labs/shipver/internal/cli/output"
	"github.com/leapstack-labs/shipver/internal/ledger"
)

// historyEntry is one build in the history output.
type historyEntry struct {
	*ledger.Build
	Deployments []*ledger.Deployment `json:"deployments,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var (
		limit       int
		contextName string
		artifacts   bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded release builds",
		Long: `List the release builds recorded in the build ledger, newest first.

The ledger is enabled with "ledger.enabled: true" in shipver.yaml or the
--ledger flag.`,
		Example: `  shipver history --limit 5
  shipver history --context beta --artifacts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}

			var filter buildctx.Context
			if contextName != "" {
				if filter, err = buildctx.Parse(contextName); err != nil {
					return err
				}
			}

			store, err := cc.OpenLedger()
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("the build ledger is disabled\nHint: set ledger.enabled: true in shipver.yaml or pass --ledger")
			}
			defer func() { _ = store.Close() }()

			builds, err := store.Builds(cmd.Context(), filter, limit)
			if err != nil {
				return err
			}

			entries := make([]historyEntry, 0, len(builds))
			for _, b := range builds {
				e := historyEntry{Build: b}
				if artifacts {
					if e.Deployments, err = store.Deployments(cmd.Context(), b.ID); err != nil {
						return err
					}
				}
				entries = append(entries, e)
			}
			return renderHistory(cc.Renderer, entries, artifacts)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of builds to list (0 for all)")
	cmd.Flags().StringVar(&contextName, "context", "", "Only list builds of this context")
	cmd.Flags().BoolVar(&artifacts, "artifacts", false, "Include deployed artifacts")
	_ = cmd.RegisterFlagCompletionFunc("context", CompleteContexts)

	return cmd
}

func renderHistory(r *output.Renderer, entries []historyEntry, artifacts bool) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(entries)
	}

	r.Header(1, fmt.Sprintf("Release builds (%d)", len(entries)))
	if len(entries) == 0 {
		r.Muted("No builds recorded yet")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			e.Context.String(),
			e.Name,
			strconv.FormatInt(int64(e.Code), 10),
			strconv.Itoa(e.BuildNumber),
		})
	}
	r.Table([]string{"Recorded", "Context", "Version", "Code", "Build"}, rows)

	if !artifacts {
		return nil
	}
	for _, e := range entries {
		if len(e.Deployments) == 0 {
			continue
		}
		r.Header(2, e.Name)
		for _, d := range e.Deployments {
			detail := d.DestPath
			if d.Error != "" {
				detail = d.Error
			}
			r.StatusLine(d.Artifact, string(d.Status), detail)
		}
	}
	return nil
}
