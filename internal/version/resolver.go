package version

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/shipver/internal/buildctx"
	"github.com/leapstack-labs/shipver/internal/counter"
)

// Config holds resolver configuration.
type Config struct {
	// CounterPath is the path of the counter properties file.
	CounterPath string
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// Now returns the current time (optional, defaults to time.Now)
	Now func() time.Time
}

// Resolver computes version metadata for build invocations.
type Resolver struct {
	counterPath string
	logger      *slog.Logger
	now         func() time.Time
}

// NewResolver creates a resolver backed by the counter file in cfg.
func NewResolver(cfg Config) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		counterPath: cfg.CounterPath,
		logger:      logger,
		now:         now,
	}
}

// Resolve determines the context of the invocation, advances the context's
// counter when the invocation is a release build, and derives the metadata.
//
// Non-release invocations never write the counter file. Any failure to open,
// read or write the file is returned as a *counter.StoreError.
func (r *Resolver) Resolve(ctx context.Context, p buildctx.Params) (Metadata, error) {
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}

	c, err := buildctx.Select(p)
	if err != nil {
		return Metadata{}, err
	}
	release := buildctx.IsRelease(p.Tasks)
	now := r.now()

	r.logger.Debug("resolving version",
		slog.String("context", string(c)),
		slog.Bool("release", release),
		slog.Any("tasks", p.Tasks))

	opts := []counter.Option{counter.WithLogger(r.logger), counter.WithClock(r.now)}
	if release {
		opts = append(opts, counter.WithLock())
	}
	store, err := counter.Open(r.counterPath, opts...)
	if err != nil {
		return Metadata{}, err
	}
	defer func() { _ = store.Close() }()

	build := store.Count(c)
	if release {
		build = store.Increment(c)
	}

	m, err := New(c, build, now, release)
	if err != nil {
		return Metadata{}, fmt.Errorf("deriving version for %s build %d: %w", c, build, err)
	}

	if store.Dirty() {
		if err := store.Save(); err != nil {
			return Metadata{}, err
		}
		r.logger.Info("advanced build counter",
			slog.String("context", string(c)),
			slog.Int("build", build),
			slog.String("path", r.counterPath))
	}
	if build >= BuildsPerDay {
		r.logger.Warn("build number exceeds the daily code range; codes may overlap the next day's",
			slog.String("context", string(c)),
			slog.Int("build", build))
	}

	return m, nil
}
