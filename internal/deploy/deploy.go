// Package deploy copies release artifacts from the build output directory
// into a per-context directory under the user's home, renaming them after
// the version they were built as.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/shipver/internal/fsutil"
	"github.com/leapstack-labs/shipver/internal/version"
)

// DefaultAppsDir is the directory under the home directory that receives
// deployed artifacts.
const DefaultAppsDir = "Apps"

// SkipReason explains why a release artifact was not deployed.
type SkipReason string

// Skip reasons.
const (
	// SkipUnsupportedABI marks artifacts built for an architecture that is not deployed.
	SkipUnsupportedABI SkipReason = "unsupported-abi"
	// SkipDuplicateDestination marks an artifact whose destination name was
	// already taken by an earlier artifact, e.g. a second flavor of one ABI.
	SkipDuplicateDestination SkipReason = "duplicate-destination"
)

// Skip is a release artifact that was deliberately not deployed.
type Skip struct {
	Name   string     `json:"name"`
	Reason SkipReason `json:"reason"`
}

// Failure is an artifact whose copy failed.
type Failure struct {
	Artifact Artifact `json:"artifact"`
	Err      error    `json:"-"`
}

// Report summarizes one deployment pass.
type Report struct {
	OutputDir string     `json:"output_dir"`
	DestDir   string     `json:"dest_dir"`
	Missing   bool       `json:"output_missing,omitempty"`
	Copied    []Artifact `json:"copied"`
	Skipped   []Skip     `json:"skipped"`
	Failed    []Failure  `json:"failed"`
}

// Err joins the per-file copy failures, or returns nil if every copy succeeded.
func (r *Report) Err() error {
	if r == nil || len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.Artifact.Name, f.Err))
	}
	return fmt.Errorf("%d of %d artifacts failed to deploy: %w",
		len(r.Failed), len(r.Failed)+len(r.Copied), errors.Join(errs...))
}

// Config holds deployer configuration.
type Config struct {
	// ProjectName prefixes every deployed file name.
	ProjectName string
	// AppsDir is the directory under home receiving artifacts (default "Apps").
	AppsDir string
	// Parallel bounds concurrent copies (default 1).
	Parallel int
	// Rules classifies artifacts by ABI (default DefaultABIRules).
	Rules []ABIRule
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Deployer copies release artifacts into the deployment tree.
type Deployer struct {
	project  string
	appsDir  string
	parallel int
	rules    []ABIRule
	logger   *slog.Logger
}

// New creates a deployer.
func New(cfg Config) *Deployer {
	d := &Deployer{
		project:  cfg.ProjectName,
		appsDir:  cfg.AppsDir,
		parallel: cfg.Parallel,
		rules:    cfg.Rules,
		logger:   cfg.Logger,
	}
	if d.appsDir == "" {
		d.appsDir = DefaultAppsDir
	}
	if d.parallel < 1 {
		d.parallel = 1
	}
	if d.rules == nil {
		d.rules = DefaultABIRules
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// DestDir returns "<homeDir>/<AppsDir>/<Capitalized context>".
func (d *Deployer) DestDir(homeDir string, m version.Metadata) string {
	return filepath.Join(homeDir, d.appsDir, m.Context.Capitalized())
}

// Plan lists the release artifacts in outputDir and decides which of them
// to deploy into destDir. Directories and files not following the release
// naming convention are ignored. Names are visited in lexical order and the
// first artifact mapping to a destination wins it.
func (d *Deployer) Plan(outputDir, destDir string, m version.Metadata) ([]Artifact, []Skip, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading output directory %s: %w", outputDir, err)
	}

	var (
		artifacts []Artifact
		skipped   []Skip
	)
	claimed := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		_, ext, ok := parseArtifactName(name)
		if !ok {
			d.logger.Debug("ignoring non-release file", "name", name)
			continue
		}
		abi, ok := Classify(d.rules, name)
		if !ok {
			d.logger.Debug("skipping artifact with unsupported ABI", "name", name)
			skipped = append(skipped, Skip{Name: name, Reason: SkipUnsupportedABI})
			continue
		}
		destName := DestName(d.project, abi, m, ext)
		destPath := filepath.Join(destDir, destName)
		if owner, taken := claimed[destPath]; taken {
			d.logger.Warn("skipping artifact with the same destination as another",
				"name", name, "deployed", owner, "dest", destName)
			skipped = append(skipped, Skip{Name: name, Reason: SkipDuplicateDestination})
			continue
		}
		claimed[destPath] = name
		artifacts = append(artifacts, Artifact{
			Name:     name,
			Source:   filepath.Join(outputDir, name),
			ABI:      abi,
			Ext:      ext,
			DestName: destName,
			DestPath: destPath,
		})
	}
	return artifacts, skipped, nil
}

// Deploy copies every supported release artifact of outputDir into the
// context directory under homeDir.
//
// A missing outputDir is not an error: the report is empty and flagged
// Missing. Per-file copy failures are logged and collected in the report
// (see Report.Err) without stopping the remaining copies. The returned error
// is reserved for failures that prevent deployment as a whole.
func (d *Deployer) Deploy(ctx context.Context, outputDir string, m version.Metadata, homeDir string) (*Report, error) {
	destDir := d.DestDir(homeDir, m)
	report := &Report{OutputDir: outputDir, DestDir: destDir}

	info, err := os.Stat(outputDir)
	if errors.Is(err, fs.ErrNotExist) {
		d.logger.Info("output directory does not exist, nothing to deploy", "output_dir", outputDir)
		report.Missing = true
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checking output directory %s: %w", outputDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("output path %s is not a directory", outputDir)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating deployment directory %s: %w", destDir, err)
	}

	artifacts, skipped, err := d.Plan(outputDir, destDir, m)
	if err != nil {
		return nil, err
	}
	report.Skipped = skipped

	errs := make([]error, len(artifacts))
	var g errgroup.Group
	g.SetLimit(d.parallel)
	for i, a := range artifacts {
		g.Go(func() error {
			errs[i] = d.copyArtifact(ctx, a)
			return nil
		})
	}
	_ = g.Wait()

	for i, a := range artifacts {
		if errs[i] != nil {
			report.Failed = append(report.Failed, Failure{Artifact: a, Err: errs[i]})
			continue
		}
		report.Copied = append(report.Copied, a)
	}

	d.logger.Info("deployment finished",
		slog.String("dest_dir", destDir),
		slog.Int("copied", len(report.Copied)),
		slog.Int("skipped", len(report.Skipped)),
		slog.Int("failed", len(report.Failed)))
	return report, nil
}

func (d *Deployer) copyArtifact(ctx context.Context, a Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fsutil.CopyFile(a.Source, a.DestPath, 0o644); err != nil {
		d.logger.Warn("failed to deploy artifact",
			slog.String("name", a.Name),
			slog.String("dest", a.DestPath),
			slog.Any("error", err))
		return err
	}
	d.logger.Info("deployed artifact", slog.String("name", a.Name), slog.String("dest", a.DestPath))
	return nil
}
