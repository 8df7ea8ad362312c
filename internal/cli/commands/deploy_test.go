package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/shipver/internal/buildctx"
	"github.com/leapstack-labs/shipver/internal/cli/config"
	"github.com/leapstack-labs/shipver/internal/cli/testutil"
	"github.com/leapstack-labs/shipver/internal/deploy"
	"github.com/leapstack-labs/shipver/internal/ledger"
	"github.com/leapstack-labs/shipver/internal/version"
)

var buildDate = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

// writeRecord stores a resolved version as the project's handoff record.
func writeRecord(t *testing.T, p *testutil.Project, c buildctx.Context, build int, release bool) version.Metadata {
	t.Helper()
	m, err := version.New(c, build, buildDate, release)
	require.NoError(t, err)
	require.NoError(t, version.WriteRecord(filepath.Join(p.Root, config.DefaultMetadataFile), m))
	return m
}

func TestDeploy_CopiesArmArtifacts(t *testing.T) {
	p := testutil.SetupTestProject(t, "")
	p.WriteArtifacts(t, testutil.ReleaseArtifacts...)
	writeRecord(t, p, buildctx.Beta, 4, true)

	out, _, err := execute(t, NewDeployCommand())
	require.NoError(t, err)

	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "## Deploying 0.9.4-beta to ")
	assert.Contains(t, out, "**Deployed 2 artifacts**")
	assert.Contains(t, out, "- `app-x86_64-release.apk` skipped (unsupported-abi)")

	assert.ElementsMatch(t, []string{
		"rootify-arm64-v8a-0.9.4-beta-20260301-b4.apk",
		"rootify-armeabi-v7a-0.9.4-beta-20260301-b4.apk",
	}, p.DeployedFiles(t, "Beta"))

	data, err := os.ReadFile(filepath.Join(p.Home, "Apps", "Beta", "rootify-arm64-v8a-0.9.4-beta-20260301-b4.apk"))
	require.NoError(t, err)
	assert.Equal(t, "app-arm64-v8a-release.apk", string(data))
}

func TestDeploy_JSONReport(t *testing.T) {
	p := testutil.SetupTestProject(t, "output: json\nproject_name: demo\n")
	p.WriteArtifacts(t, "app-arm64-v8a-release.apk")
	writeRecord(t, p, buildctx.Stable, 2, true)

	out, _, err := execute(t, NewDeployCommand(), "--apps-dir", "Releases")
	require.NoError(t, err)

	var report struct {
		Version string            `json:"version"`
		DestDir string            `json:"dest_dir"`
		Copied  []deploy.Artifact `json:"copied"`
		Failed  []failureJSON     `json:"failed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "1.0.2-stable", report.Version)
	assert.Equal(t, filepath.Join(p.Home, "Releases", "Stable"), report.DestDir)
	require.Len(t, report.Copied, 1)
	assert.Equal(t, "demo-arm64-v8a-1.0.2-stable-20260301-b2.apk", report.Copied[0].DestName)
	assert.Empty(t, report.Failed)
}

func TestDeploy_MissingOutputDir(t *testing.T) {
	p := testutil.SetupTestProject(t, "")
	writeRecord(t, p, buildctx.Alpha, 1, true)

	out, _, err := execute(t, NewDeployCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "does not exist, nothing to deploy")

	_, statErr := os.Stat(filepath.Join(p.Home, "Apps"))
	assert.True(t, os.IsNotExist(statErr), "nothing should be created under home")
}

func TestDeploy_RefusesDebugRecord(t *testing.T) {
	p := testutil.SetupTestProject(t, "")
	p.WriteArtifacts(t, testutil.ReleaseArtifacts...)
	writeRecord(t, p, buildctx.RC, 0, false)

	_, _, err := execute(t, NewDeployCommand())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not resolved for a release build")
	assert.Empty(t, p.DeployedFiles(t, "Rc"))

	_, _, err = execute(t, NewDeployCommand(), "--force")
	require.NoError(t, err)
	assert.Len(t, p.DeployedFiles(t, "Rc"), 2)
}

func TestDeploy_NoRecord(t *testing.T) {
	testutil.SetupTestProject(t, "")

	_, _, err := execute(t, NewDeployCommand())
	require.Error(t, err)
	assert.ErrorIs(t, err, version.ErrNoRecord)
}

func TestDeploy_Strict(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "failures are reported", args: nil, wantErr: false},
		{name: "strict fails the command", args: []string{"--strict"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testutil.SetupTestProject(t, "")
			p.WriteArtifacts(t, testutil.ReleaseArtifacts...)
			writeRecord(t, p, buildctx.Beta, 4, true)

			// A directory in the way of one destination file makes its copy fail.
			blocked := filepath.Join(p.Home, "Apps", "Beta", "rootify-arm64-v8a-0.9.4-beta-20260301-b4.apk")
			require.NoError(t, os.MkdirAll(filepath.Join(blocked, "keep"), 0o755))

			out, stderr, err := execute(t, NewDeployCommand(), tt.args...)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Contains(t, out, "- `app-armeabi-v7a-release.apk` copied")
			assert.Contains(t, out, "- `app-arm64-v8a-release.apk` failed")
			assert.Contains(t, stderr, "warning: 1 of 2 artifacts failed to deploy")
		})
	}
}

func TestDeploy_RecordsLedger(t *testing.T) {
	p := testutil.SetupTestProject(t, "ledger:\n  enabled: true\n")
	p.WriteArtifacts(t, testutil.ReleaseArtifacts...)
	writeRecord(t, p, buildctx.Beta, 4, true)

	_, _, err := execute(t, NewDeployCommand())
	require.NoError(t, err)

	store, err := ledger.Open(filepath.Join(p.Root, config.DefaultLedgerFile))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	b, err := store.FindBuild(t.Context(), "0.9.4-beta")
	require.NoError(t, err)
	require.NotNil(t, b, "deploy should record the build")

	deployments, err := store.Deployments(t.Context(), b.ID)
	require.NoError(t, err)
	assert.Len(t, deployments, 3)
}
