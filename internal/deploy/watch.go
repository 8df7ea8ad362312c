package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/shipver/internal/version"
)

// DefaultDebounce is how long the watcher waits after the last file event
// before deploying.
const DefaultDebounce = 100 * time.Millisecond

// WatchOptions configures Watch.
type WatchOptions struct {
	OutputDir string
	HomeDir   string
	// Load returns the metadata to deploy with. It is called before every
	// pass so a newer handoff record is picked up.
	Load func() (version.Metadata, error)
	// OnReport receives the outcome of every pass.
	OnReport func(*Report, error)
	Debounce time.Duration
}

// Watch deploys the contents of OutputDir whenever release artifacts are
// created or written there. It blocks until ctx is cancelled.
func (d *Deployer) Watch(ctx context.Context, opts WatchOptions) error {
	if opts.Load == nil {
		return fmt.Errorf("watch: metadata loader is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.OnReport == nil {
		opts.OnReport = func(*Report, error) {}
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("watch: ensure output directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(opts.OutputDir); err != nil {
		return fmt.Errorf("watch %s: %w", opts.OutputDir, err)
	}
	d.logger.Info("watching for release artifacts", "output_dir", opts.OutputDir)

	// Debounce
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !IsReleaseArtifact(filepath.Base(event.Name)) {
				continue
			}
			d.logger.Debug("artifact changed", "file", event.Name)
			timer.Reset(opts.Debounce)

		case <-timer.C:
			m, err := opts.Load()
			if err != nil {
				d.logger.Warn("cannot load version record", "error", err)
				opts.OnReport(nil, err)
				continue
			}
			report, err := d.Deploy(ctx, opts.OutputDir, m, opts.HomeDir)
			opts.OnReport(report, err)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.Error("watcher error", "error", err)
		}
	}
}
