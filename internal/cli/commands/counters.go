package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/shipver/internal/buildctx"
	"github.com/leapstack-labs/shipver/internal/cli/output"
	"github.com/leapstack-labs/shipver/internal/counter"
)

// countersJSON is the JSON form of the counters command.
type countersJSON struct {
	Path    string          `json:"path"`
	Exists  bool            `json:"exists"`
	Entries []counter.Entry `json:"entries"`
}

// NewCountersCommand creates the counters command.
func NewCountersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "counters",
		Short: "Show the per-context build counters",
		Long: `Show the counter file: the number of release builds made so far in each
context. The file is only read; it is not created when missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}

			store, err := counter.Open(cc.Cfg.CounterFile, counter.ReadOnly(), counter.WithLogger(cc.Logger))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			return renderCounters(cc.Renderer, store)
		},
	}
}

func renderCounters(r *output.Renderer, store *counter.Store) error {
	entries := store.Entries()
	if r.EffectiveMode() == output.ModeJSON {
		if entries == nil {
			entries = []counter.Entry{}
		}
		return r.JSON(countersJSON{Path: store.Path(), Exists: store.Exists(), Entries: entries})
	}

	r.Header(1, "Build counters")
	if !store.Exists() {
		r.Muted(fmt.Sprintf("%s does not exist yet; every context starts at 0", store.Path()))
		return nil
	}
	r.Muted(store.Path())

	// Every context is listed, followed by any other keys in the file.
	known := make(map[string]bool, len(buildctx.All))
	rows := make([][]string, 0, len(entries)+len(buildctx.All))
	for _, c := range buildctx.All {
		known[c.CounterKey()] = true
		count := store.Count(c)
		rows = append(rows, []string{c.String(), strconv.Itoa(count), c.Label(count + 1)})
	}
	for _, e := range entries {
		if known[e.Key] {
			continue
		}
		rows = append(rows, []string{e.Key, e.Value, ""})
	}
	r.Table([]string{"Context", "Count", "Next label"}, rows)

	for _, w := range store.Warnings() {
		r.Warning(fmt.Sprintf("%s has malformed value %q, treated as 0", w.Key, w.Value))
	}
	return nil
}
