package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/shipver/internal/cli/output"
	"github.com/leapstack-labs/shipver/internal/deploy"
	"github.com/leapstack-labs/shipver/internal/version"
)

// NewDeployCommand creates the deploy command.
func NewDeployCommand() *cobra.Command {
	var (
		force bool
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Copy release artifacts into the deployment directory",
		Long: `Copy the ARM release artifacts of the last build into
<home>/<apps_dir>/<Context>, renamed after the version recorded by
"shipver resolve".

Artifacts for other architectures are skipped. A missing output directory
is not an error. Failed copies are reported; use --strict to exit non-zero
when any copy fails.`,
		Example: `  # Deploy the last resolved release
  shipver deploy

  # Keep deploying as the build writes new artifacts
  shipver deploy --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			if err := cc.Cfg.ValidateHome(); err != nil {
				return err
			}

			load := func() (version.Metadata, error) {
				return loadRecord(cc.Cfg.MetadataFile, force)
			}
			if watch {
				return watchDeploy(cmd.Context(), cc, load)
			}

			m, err := load()
			if err != nil {
				return err
			}
			return deployBuild(cmd.Context(), cc, m)
		},
	}

	cmd.Flags().String("output-dir", "", "Build output directory holding release artifacts")
	cmd.Flags().String("home", "", "Root of the deployment tree (default: user home)")
	cmd.Flags().String("metadata", "", "Version record to deploy (default: metadata_file)")
	cmd.Flags().String("apps-dir", "", "Directory under home receiving artifacts")
	cmd.Flags().Int("parallel", 1, "Number of concurrent copies")
	cmd.Flags().Bool("strict", false, "Exit non-zero when any artifact fails to copy")
	cmd.Flags().BoolVar(&force, "force", false, "Deploy even if the record is not a release build")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Redeploy whenever new release artifacts appear")

	return cmd
}

// loadRecord reads the handoff record, refusing non-release builds unless force is set.
func loadRecord(path string, force bool) (version.Metadata, error) {
	m, err := version.ReadRecord(path)
	if err != nil {
		return version.Metadata{}, err
	}
	if !m.Release && !force {
		return version.Metadata{}, fmt.Errorf("version %s was not resolved for a release build\nHint: use --force to deploy it anyway", m.Name)
	}
	return m, nil
}

// deployBuild deploys the artifacts of m and renders the report.
func deployBuild(ctx context.Context, cc *CommandContext, m version.Metadata) error {
	report, err := cc.Deployer().Deploy(ctx, cc.Cfg.OutputDir, m, cc.Cfg.HomeDir)
	if err != nil {
		return err
	}
	cc.recordDeployment(ctx, m, report)

	if err := renderReport(cc.Renderer, m, report); err != nil {
		return err
	}
	if cc.Cfg.Deploy.Strict {
		return report.Err()
	}
	return nil
}

func watchDeploy(ctx context.Context, cc *CommandContext, load func() (version.Metadata, error)) error {
	r := cc.Renderer
	var lastWatched version.Metadata
	r.Muted(fmt.Sprintf("Watching %s (Ctrl+C to stop)", cc.Cfg.OutputDir))

	return cc.Deployer().Watch(ctx, deploy.WatchOptions{
		OutputDir: cc.Cfg.OutputDir,
		HomeDir:   cc.Cfg.HomeDir,
		Load: func() (version.Metadata, error) {
			m, err := load()
			if err != nil {
				return m, err
			}
			lastWatched = m
			return m, nil
		},
		OnReport: func(report *deploy.Report, err error) {
			if err != nil {
				r.Error(err.Error())
				return
			}
			cc.recordDeployment(ctx, lastWatched, report)
			_ = renderReport(r, lastWatched, report)
		},
	})
}

// reportJSON is the JSON form of a deployment report.
type reportJSON struct {
	Version   string            `json:"version"`
	OutputDir string            `json:"output_dir"`
	DestDir   string            `json:"dest_dir"`
	Missing   bool              `json:"output_missing,omitempty"`
	Copied    []deploy.Artifact `json:"copied"`
	Skipped   []deploy.Skip     `json:"skipped"`
	Failed    []failureJSON     `json:"failed"`
}

type failureJSON struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

func renderReport(r *output.Renderer, m version.Metadata, report *deploy.Report) error {
	if r.EffectiveMode() == output.ModeJSON {
		out := reportJSON{
			Version:   m.Name,
			OutputDir: report.OutputDir,
			DestDir:   report.DestDir,
			Missing:   report.Missing,
			Copied:    report.Copied,
			Skipped:   report.Skipped,
			Failed:    []failureJSON{},
		}
		for _, f := range report.Failed {
			out.Failed = append(out.Failed, failureJSON{Name: f.Artifact.Name, Error: f.Err.Error()})
		}
		return r.JSON(out)
	}

	if report.Missing {
		r.Muted(fmt.Sprintf("Output directory %s does not exist, nothing to deploy", report.OutputDir))
		return nil
	}

	r.Header(2, fmt.Sprintf("Deploying %s to %s", m.Name, report.DestDir))
	for _, a := range report.Copied {
		r.StatusLine(a.Name, "copied", a.DestName)
	}
	for _, s := range report.Skipped {
		r.StatusLine(s.Name, "skipped", string(s.Reason))
	}
	for _, f := range report.Failed {
		r.StatusLine(f.Artifact.Name, "failed", f.Err.Error())
	}

	switch {
	case len(report.Failed) > 0:
		r.Warning(fmt.Sprintf("%d of %d artifacts failed to deploy",
			len(report.Failed), len(report.Failed)+len(report.Copied)))
	case len(report.Copied) == 0:
		r.Muted("No release artifacts to deploy")
	default:
		r.Success(fmt.Sprintf("Deployed %d artifacts", len(report.Copied)))
	}
	return nil
}
