package publisher

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeup-rs/nodeup/internal/cargometa"
	"github.com/nodeup-rs/nodeup/internal/executil"
	"github.com/nodeup-rs/nodeup/internal/gitutil"
	"github.com/nodeup-rs/nodeup/internal/versioning"
	"github.com/nodeup-rs/nodeup/internal/workspace"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("skipping because git binary not found")
	}
}

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		require.NoError(t, cmd.Run())
	}
	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "core"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "core", "Cargo.toml"), nil, 0644))
	return dir
}

func testGraph(t *testing.T, root string) *workspace.Graph {
	t.Helper()
	coreManifest := filepath.Join(root, "core", "Cargo.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(coreManifest), 0755))
	require.NoError(t, os.WriteFile(coreManifest, []byte("[package]\nname = \"core\"\nversion = \"1.0.0\"\n"), 0644))

	members := []cargometa.Package{
		{Name: "core", Version: "1.0.0", ManifestPath: coreManifest, Publishable: true},
	}
	g, err := workspace.Build(root, members)
	require.NoError(t, err)
	return g
}

type fakeRegistry struct {
	responses []executil.Result
	errs      []error
	calls     int
}

func (f *fakeRegistry) Publish(ctx context.Context, pkgDir, pkgName string, dryRun bool, registry string) (executil.Result, error) {
	i := f.calls
	f.calls++
	var res executil.Result
	var err error
	if i < len(f.responses) {
		res = f.responses[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return res, err
}

func commitAll(t *testing.T, dir string) {
	t.Helper()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		require.NoError(t, cmd.Run())
	}
	run("add", "-A")
	run("commit", "-m", "initial")
}

func TestPublishSucceedsOnFirstAttempt(t *testing.T) {
	requireGit(t)
	dir := initTestRepo(t)
	g := testGraph(t, dir)
	commitAll(t, dir)

	repo, err := gitutil.Open(dir)
	require.NoError(t, err)

	reg := &fakeRegistry{responses: []executil.Result{{ExitCode: 0}}}
	p := New(repo, reg)

	report, err := p.Publish(context.Background(), g, []string{"core"}, false, "", false)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusPublished, report.Results[0].Status)
	assert.False(t, report.AnyFailed())
}

func TestPublishTreatsAlreadyPublishedAsSuccessLike(t *testing.T) {
	requireGit(t)
	dir := initTestRepo(t)
	g := testGraph(t, dir)
	commitAll(t, dir)

	repo, err := gitutil.Open(dir)
	require.NoError(t, err)

	reg := &fakeRegistry{responses: []executil.Result{{ExitCode: 1, Stderr: "crate already exists on crates.io"}}}
	p := New(repo, reg)

	report, err := p.Publish(context.Background(), g, []string{"core"}, false, "", false)
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyPublished, report.Results[0].Status)
	assert.False(t, report.AnyFailed())
}

func TestPublishRetriesTransientFailureThenSucceeds(t *testing.T) {
	requireGit(t)
	dir := initTestRepo(t)
	g := testGraph(t, dir)
	commitAll(t, dir)

	repo, err := gitutil.Open(dir)
	require.NoError(t, err)

	reg := &fakeRegistry{responses: []executil.Result{
		{ExitCode: 1, Stderr: "no matching package named `core` found"},
		{ExitCode: 0},
	}}
	p := New(repo, reg)
	p.sleep = func(time.Duration) {}

	report, err := p.Publish(context.Background(), g, []string{"core"}, false, "", false)
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, report.Results[0].Status)
	assert.Equal(t, 2, report.Results[0].Attempts)
}

func TestPublishFailsAfterExhaustingRetries(t *testing.T) {
	requireGit(t)
	dir := initTestRepo(t)
	g := testGraph(t, dir)
	commitAll(t, dir)

	repo, err := gitutil.Open(dir)
	require.NoError(t, err)

	transient := executil.Result{ExitCode: 1, Stderr: "no matching package named `core` found"}
	reg := &fakeRegistry{responses: []executil.Result{transient, transient, transient}}
	p := New(repo, reg)
	p.sleep = func(time.Duration) {}

	report, err := p.Publish(context.Background(), g, []string{"core"}, false, "", false)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, report.Results[0].Status)
	assert.True(t, report.AnyFailed())
}

func TestPublishRefusesDirtyWorkingTree(t *testing.T) {
	requireGit(t)
	dir := initTestRepo(t)
	g := testGraph(t, dir)

	repo, err := gitutil.Open(dir)
	require.NoError(t, err)

	p := New(repo, &fakeRegistry{})
	_, err = p.Publish(context.Background(), g, []string{"core"}, false, "", false)
	require.Error(t, err)
}

func TestBumpAndTagBumpsAndTagsPublishablePackages(t *testing.T) {
	requireGit(t)
	dir := initTestRepo(t)
	g := testGraph(t, dir)
	commitAll(t, dir)

	repo, err := gitutil.Open(dir)
	require.NoError(t, err)

	p := New(repo, &fakeRegistry{})
	result, err := p.BumpAndTag(context.Background(), g, []string{"core"}, versioning.Minor, "", false)
	require.NoError(t, err)
	assert.NotNil(t, result)

	cmd := exec.Command("git", "tag", "-l", "core-v1.1.0")
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "core-v1.1.0")
}
