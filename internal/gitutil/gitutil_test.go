package gitutil

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("skipping because git binary not found")
	}
}

func initRepo(t *testing.T) string {
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
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello"), 0644))
	run("add", "README.md")
	run("commit", "-m", "initial commit")
	return dir
}

func TestIsCleanOnFreshRepo(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)
	repo, err := Open(dir)
	require.NoError(t, err)
	assert.True(t, repo.IsClean())
}

func TestIsCleanFalseAfterUncommittedChange(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("changed"), 0644))

	repo, err := Open(dir)
	require.NoError(t, err)
	assert.False(t, repo.IsClean())
}

func TestUncommittedPathsReportsModifiedFile(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("changed"), 0644))

	repo, err := Open(dir)
	require.NoError(t, err)
	paths, err := repo.UncommittedPaths(context.Background())
	require.NoError(t, err)
	assert.Contains(t, paths, "README.md")
}

func TestStageCommitTagCreatesTag(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pkg.txt"), []byte("v2"), 0644))

	repo, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, repo.StageCommitTag(context.Background(), []string{"pkg.txt"}, "Bump pkg to 2.0.0", "pkg-v2.0.0"))

	cmd := exec.Command("git", "tag", "-l", "pkg-v2.0.0")
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "pkg-v2.0.0")
	assert.True(t, repo.IsClean())
}
