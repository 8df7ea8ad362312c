package version

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/shipver/internal/buildctx"
	"github.com/leapstack-labs/shipver/internal/counter"
	"github.com/leapstack-labs/shipver/internal/testutil"
)

var march1 = time.Date(2026, 3, 1, 14, 5, 0, 0, time.UTC)

func clockAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestResolver(t *testing.T, counterContent string) (*Resolver, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "version.properties")
	if counterContent != "" {
		require.NoError(t, os.WriteFile(path, []byte(counterContent), 0o644))
	}
	r := NewResolver(Config{
		CounterPath: path,
		Logger:      testutil.NewTestLogger(t),
		Now:         clockAt(march1),
	})
	return r, path
}

var releaseTasks = []string{"assembleRelease"}

func TestResolve_BetaRelease(t *testing.T) {
	r, _ := newTestResolver(t, "beta_count=3\n")

	m, err := r.Resolve(context.Background(), buildctx.Params{Beta: true, Tasks: releaseTasks})
	require.NoError(t, err)

	assert.Equal(t, buildctx.Beta, m.Context)
	assert.Equal(t, 4, m.BuildNumber)
	assert.Equal(t, "0.9.4", m.Label)
	assert.Equal(t, "0.9.4-beta", m.Name)
	assert.Equal(t, int32(26030104), m.Code)
	assert.True(t, m.Release)
	assert.Equal(t, "20260301", m.DeployStamp())
}

func TestResolve_ConsecutiveReleasesAreContiguous(t *testing.T) {
	for _, c := range buildctx.All {
		t.Run(string(c), func(t *testing.T) {
			r, path := newTestResolver(t, c.CounterKey()+"=5\n")
			const runs = 6

			for i := 1; i <= runs; i++ {
				m, err := r.Resolve(context.Background(), buildctx.Params{Explicit: string(c), Tasks: releaseTasks})
				require.NoError(t, err)
				assert.Equal(t, 5+i, m.BuildNumber)
			}

			store, err := counter.Open(path, counter.ReadOnly())
			require.NoError(t, err)
			assert.Equal(t, 5+runs, store.Count(c))
		})
	}
}

func TestResolve_ContextsAreIndependent(t *testing.T) {
	r, path := newTestResolver(t, "alpha_count=9\nstable_count=1\n")

	_, err := r.Resolve(context.Background(), buildctx.Params{RC: true, Tasks: releaseTasks})
	require.NoError(t, err)

	store, err := counter.Open(path, counter.ReadOnly())
	require.NoError(t, err)
	assert.Equal(t, 9, store.Count(buildctx.Alpha))
	assert.Equal(t, 1, store.Count(buildctx.RC))
	assert.Equal(t, 1, store.Count(buildctx.Stable))
}

func TestResolve_NonReleaseDoesNotWrite(t *testing.T) {
	original := "# hand written\nbeta_count=3\nstable_count=12\n"
	r, path := newTestResolver(t, original)

	for i := 0; i < 3; i++ {
		m, err := r.Resolve(context.Background(), buildctx.Params{Beta: true, Tasks: []string{"assembleDebug"}})
		require.NoError(t, err)
		assert.Equal(t, 3, m.BuildNumber)
		assert.False(t, m.Release)
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestResolve_MissingFileDefaultsToZero(t *testing.T) {
	r, path := newTestResolver(t, "")

	m, err := r.Resolve(context.Background(), buildctx.Params{})
	require.NoError(t, err)
	assert.Equal(t, buildctx.Stable, m.Context)
	assert.Equal(t, 0, m.BuildNumber)
	assert.Equal(t, "1.0.0-stable", m.Name)
	assert.Equal(t, int32(26030100), m.Code)

	_, err = os.Stat(path)
	assert.NoError(t, err, "counter file is created lazily on first read")
}

func TestResolve_MalformedCounterWarns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "version.properties")
	require.NoError(t, os.WriteFile(path, []byte("beta_count=abc\n"), 0o644))
	logger, logs := testutil.NewCaptureLogger()
	r := NewResolver(Config{CounterPath: path, Logger: logger, Now: clockAt(march1)})

	m, err := r.Resolve(context.Background(), buildctx.Params{Beta: true})
	require.NoError(t, err)
	assert.Equal(t, 0, m.BuildNumber)

	warnings := logs.Lines("WARN")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "beta_count")
}

func TestResolve_UnknownContext(t *testing.T) {
	r, path := newTestResolver(t, "")

	_, err := r.Resolve(context.Background(), buildctx.Params{Explicit: "nightly", Tasks: releaseTasks})
	require.ErrorIs(t, err, buildctx.ErrUnknownContext)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing is touched when the context is invalid")
}

func TestResolve_StoreFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	r := NewResolver(Config{CounterPath: filepath.Join(blocker, "version.properties"), Now: clockAt(march1)})

	for _, tasks := range [][]string{releaseTasks, {"assembleDebug"}} {
		_, err := r.Resolve(context.Background(), buildctx.Params{Tasks: tasks})
		var storeErr *counter.StoreError
		require.ErrorAs(t, err, &storeErr, "tasks %v", tasks)
		assert.Contains(t, err.Error(), blocker)
	}
}

func TestResolve_CodeOutOfRangeLeavesCounter(t *testing.T) {
	r, path := newTestResolver(t, "stable_count=2100000000\n")

	_, err := r.Resolve(context.Background(), buildctx.Params{Tasks: releaseTasks})
	require.ErrorIs(t, err, ErrCodeRange)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "stable_count=2100000000\n", string(data))
}

func TestResolve_CancelledContext(t *testing.T) {
	r, _ := newTestResolver(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, buildctx.Params{Tasks: releaseTasks})
	require.ErrorIs(t, err, context.Canceled)
}

func TestResolve_HighBuildNumberWarns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "version.properties")
	require.NoError(t, os.WriteFile(path, []byte("alpha_count=99\n"), 0o644))
	logger, logs := testutil.NewCaptureLogger()
	r := NewResolver(Config{CounterPath: path, Logger: logger, Now: clockAt(march1)})

	m, err := r.Resolve(context.Background(), buildctx.Params{Alpha: true, Tasks: releaseTasks})
	require.NoError(t, err)
	assert.Equal(t, 100, m.BuildNumber)
	assert.Len(t, logs.Lines("WARN"), 1)
}
