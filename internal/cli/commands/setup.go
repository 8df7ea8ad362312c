package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/shipver/internal/cli/config"
	"github.com/leapstack-labs/shipver/internal/cli/output"
	"github.com/leapstack-labs/shipver/internal/deploy"
	"github.com/leapstack-labs/shipver/internal/ledger"
	"github.com/leapstack-labs/shipver/internal/version"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}, nil
}

// getConfig returns the configuration loaded by the root command, loading it
// from the command's flags when the command runs on its own.
func getConfig(cmd *cobra.Command) (*config.Config, error) {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg, nil
	}
	cfgFile, _ := cmd.Flags().GetString("config")
	return config.LoadConfig(cfgFile, cmd.Flags())
}

// Resolver returns a version resolver over the configured counter file.
func (c *CommandContext) Resolver() *version.Resolver {
	return version.NewResolver(version.Config{
		CounterPath: c.Cfg.CounterFile,
		Logger:      c.Logger,
	})
}

// Deployer returns an artifact deployer for the configured project.
func (c *CommandContext) Deployer() *deploy.Deployer {
	return deploy.New(deploy.Config{
		ProjectName: c.Cfg.ProjectName,
		AppsDir:     c.Cfg.Deploy.AppsDir,
		Parallel:    c.Cfg.Deploy.Parallel,
		Logger:      c.Logger,
	})
}

// OpenLedger opens the build ledger, or returns nil if it is disabled.
func (c *CommandContext) OpenLedger() (*ledger.Store, error) {
	if !c.Cfg.Ledger.Enabled {
		return nil, nil
	}
	store, err := ledger.Open(c.Cfg.Ledger.Path, ledger.WithLogger(c.Logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", c.Cfg.Ledger.Path, err)
	}
	return store, nil
}

// recordBuild stores a release resolution in the ledger. The ledger is an
// audit trail, so failures are logged and do not fail the command.
func (c *CommandContext) recordBuild(ctx context.Context, m version.Metadata) *ledger.Build {
	if !m.Release {
		return nil
	}
	store, err := c.OpenLedger()
	if err != nil {
		c.Logger.Warn("ledger unavailable", slog.Any("error", err))
		return nil
	}
	if store == nil {
		return nil
	}
	defer func() { _ = store.Close() }()

	b, err := store.RecordBuild(ctx, m)
	if err != nil {
		c.Logger.Warn("failed to record build", slog.Any("error", err))
		return nil
	}
	return b
}

// recordDeployment stores a deployment report against the build of m,
// recording the build first when the ledger has not seen it.
func (c *CommandContext) recordDeployment(ctx context.Context, m version.Metadata, report *deploy.Report) {
	store, err := c.OpenLedger()
	if err != nil {
		c.Logger.Warn("ledger unavailable", slog.Any("error", err))
		return
	}
	if store == nil {
		return
	}
	defer func() { _ = store.Close() }()

	b, err := store.FindBuild(ctx, m.Name)
	if err == nil && b == nil {
		b, err = store.RecordBuild(ctx, m)
	}
	if err != nil {
		c.Logger.Warn("failed to record build", slog.Any("error", err))
		return
	}
	if _, err := store.RecordDeployment(ctx, b.ID, report); err != nil {
		c.Logger.Warn("failed to record deployment", slog.Any("error", err))
	}
}
