package commands

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
)

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	var (
		tasks    []string
		noDeploy bool
	)

	cmd := &cobra.Command{
		Use:   "build [flags] -- <command> [args...]",
		Short: "Resolve the version, run a build command and deploy its artifacts",
		Long: `Resolve the version of the build, run the given command with the
version exported in its environment (SHIPVER_VERSION_CODE,
SHIPVER_VERSION_NAME, ...) and, when the command succeeds for a release
build, deploy the produced artifacts.

Without --task the command's arguments are used as the requested tasks.`,
		Example: `  shipver build --beta -- ./gradlew assembleRelease
  shipver build --ctx rc --task assembleRelease -- flutter build apk --split-per-abi`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				tasks = args
			}

			m, err := resolveAndRecord(cmd, cc, tasks)
			if err != nil {
				return err
			}
			cc.Logger.Info("running build",
				"command", strings.Join(args, " "),
				"version", m.Name,
				"version_code", m.Code)

			child := exec.CommandContext(cmd.Context(), args[0], args[1:]...) //nolint:gosec // G204: the command is the user's own build
			child.Env = append(os.Environ(), m.Environ()...)
			child.Stdin = cmd.InOrStdin()
			child.Stdout = cc.Renderer.Writer()
			child.Stderr = cmd.ErrOrStderr()
			if err := child.Run(); err != nil {
				return fmt.Errorf("build command %q failed: %w", args[0], err)
			}

			if !m.Release || noDeploy {
				cc.Renderer.Muted(fmt.Sprintf("Built %s (code %d), not deploying", m.Name, m.Code))
				return nil
			}
			if err := cc.Cfg.ValidateHome(); err != nil {
				return err
			}
			return deployBuild(cmd.Context(), cc, m)
		},
	}

	cmd.Flags().StringSliceVar(&tasks, "task", nil, "Requested build task (repeatable, default: the command's arguments)")
	cmd.Flags().BoolVar(&noDeploy, "no-deploy", false, "Do not deploy after a successful release build")
	cmd.Flags().String("output-dir", "", "Build output directory holding release artifacts")
	cmd.Flags().String("home", "", "Root of the deployment tree (default: user home)")
	cmd.Flags().Bool("strict", false, "Exit non-zero when any artifact fails to copy")

	return cmd
}
