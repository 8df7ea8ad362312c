package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/shipver/internal/cli/output"
	"github.com/leapstack-labs/shipver/internal/version"
)

// Formats accepted by resolve --format.
var resolveFormats = []string{"text", "json", "yaml", "env"}

// NewResolveCommand creates the resolve command.
func NewResolveCommand() *cobra.Command {
	var (
		tasks  []string
		format string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the version of the current build",
		Long: `Determine the build context, advance its counter for release builds and
print the resulting version metadata.

The metadata is also written to the handoff record (metadata_file) so that a
later "shipver deploy" names artifacts after this build.`,
		Example: `  # Version of a beta release build
  shipver resolve --beta --task assembleRelease

  # Shell-friendly output
  eval "$(shipver resolve --ctx rc --format env)"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResolve(cmd, tasks, format)
		},
	}

	cmd.Flags().StringSliceVar(&tasks, "task", nil, "Requested build task (repeatable)")
	cmd.Flags().StringVar(&format, "format", "", "Output format (text|json|yaml|env), defaults to --output")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return resolveFormats, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runResolve(cmd *cobra.Command, tasks []string, format string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	m, err := resolveAndRecord(cmd, cc, tasks)
	if err != nil {
		return err
	}
	return renderMetadata(cc.Renderer, m, format)
}

// resolveAndRecord resolves the version, writes the handoff record and
// records release builds in the ledger.
func resolveAndRecord(cmd *cobra.Command, cc *CommandContext, tasks []string) (version.Metadata, error) {
	ctx := cmd.Context()
	m, err := cc.Resolver().Resolve(ctx, cc.Cfg.Params(tasks))
	if err != nil {
		return version.Metadata{}, err
	}

	if err := version.WriteRecord(cc.Cfg.MetadataFile, m); err != nil {
		return version.Metadata{}, err
	}
	cc.Logger.Debug("wrote version record", "path", cc.Cfg.MetadataFile)

	cc.recordBuild(ctx, m)
	return m, nil
}

func renderMetadata(r *output.Renderer, m version.Metadata, format string) error {
	switch format {
	case "json":
		return r.JSON(m)
	case "yaml":
		data, err := yaml.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to encode YAML output: %w", err)
		}
		r.Printf("%s", data)
		return nil
	case "env":
		r.Println(strings.Join(m.Environ(), "\n"))
		return nil
	case "", "text":
	default:
		return fmt.Errorf("unknown format %q (expected one of %v)", format, resolveFormats)
	}

	if format == "" && r.EffectiveMode() == output.ModeJSON {
		return r.JSON(m)
	}

	r.Header(2, "Version "+m.Name)
	r.KeyValues([]output.KeyValue{
		{Key: "context", Value: r.Styles().Context.Render(m.Context.String())},
		{Key: "build", Value: strconv.Itoa(m.BuildNumber)},
		{Key: "code", Value: strconv.FormatInt(int64(m.Code), 10)},
		{Key: "label", Value: m.Label},
		{Key: "name", Value: m.Name},
		{Key: "date", Value: m.Date.Format("2006-01-02")},
		{Key: "release", Value: strconv.FormatBool(m.Release)},
	})
	return nil
}
