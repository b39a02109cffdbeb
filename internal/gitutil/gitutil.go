// Package gitutil wraps the git operations the release publisher needs:
// clean-tree checks, the merge-base diff that feeds the workspace
// change-impact computation, and commit/tag for bump-and-publish.
// Grounded on Masterminds/vcs.GitRepo for the status predicates golang-dep
// already depends on, and on executil.RunCmd (itself grounded on
// golang-dep's gps.runFromRepoDir) for the raw git subcommands vcs.Repo
// does not expose a typed method for.
package gitutil

import (
	"context"
	"strings"
	"time"

	"github.com/Masterminds/vcs"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/executil"
)

const cmdTimeout = 2 * time.Minute

// Repo wraps a local git working tree.
type Repo struct {
	vcs *vcs.GitRepo
	dir string
}

// Open wraps an existing git working tree rooted at dir.
func Open(dir string) (*Repo, error) {
	repo, err := vcs.NewGitRepo("", dir)
	if err != nil {
		return nil, errs.Wrap(errs.Git, err, "opening git repository at %s", dir)
	}
	return &Repo{vcs: repo, dir: dir}, nil
}

// IsClean reports whether the working tree has no uncommitted changes.
func (r *Repo) IsClean() bool {
	return !r.vcs.IsDirty()
}

// CurrentBranch returns the checked-out branch name.
func (r *Repo) CurrentBranch() (string, error) {
	b, err := r.vcs.Current()
	if err != nil {
		return "", errs.Wrap(errs.Git, err, "determining current branch")
	}
	return b, nil
}

// ChangedPathsSinceMergeBase returns the repo-relative paths that differ
// between base and HEAD, via `git diff --name-only`.
func (r *Repo) ChangedPathsSinceMergeBase(ctx context.Context, base string) ([]string, error) {
	res, err := executil.RunCmd(ctx, r.vcs.CmdFromDir("diff", "--name-only", base+"...HEAD"), cmdTimeout)
	if err != nil {
		return nil, errs.Wrap(errs.Git, err, "git diff against %s: %s", base, res.Combined())
	}
	return splitNonEmptyLines(res.Stdout), nil
}

// UncommittedPaths returns repo-relative paths with working-tree or
// staged changes, via `git status --porcelain`.
func (r *Repo) UncommittedPaths(ctx context.Context) ([]string, error) {
	res, err := executil.RunCmd(ctx, r.vcs.CmdFromDir("status", "--porcelain"), cmdTimeout)
	if err != nil {
		return nil, errs.Wrap(errs.Git, err, "git status: %s", res.Combined())
	}

	var paths []string
	for _, line := range splitNonEmptyLines(res.Stdout) {
		if len(line) > 3 {
			paths = append(paths, strings.TrimSpace(line[3:]))
		}
	}
	return paths, nil
}

// CommitPaths stages paths and commits them with message.
func (r *Repo) CommitPaths(ctx context.Context, paths []string, message string) error {
	addArgs := append([]string{"add"}, paths...)
	if res, err := executil.RunCmd(ctx, r.vcs.CmdFromDir(addArgs[0], addArgs[1:]...), cmdTimeout); err != nil {
		return errs.Wrap(errs.Git, err, "git add: %s", res.Combined())
	}
	if res, err := executil.RunCmd(ctx, r.vcs.CmdFromDir("commit", "-m", message), cmdTimeout); err != nil {
		return errs.Wrap(errs.Git, err, "git commit: %s", res.Combined())
	}
	return nil
}

// Tag tags HEAD as tag.
func (r *Repo) Tag(ctx context.Context, tag string) error {
	if res, err := executil.RunCmd(ctx, r.vcs.CmdFromDir("tag", tag), cmdTimeout); err != nil {
		return errs.Wrap(errs.Git, err, "git tag %s: %s", tag, res.Combined())
	}
	return nil
}

// StageCommitTag stages paths, commits with message, and tags HEAD as tag.
func (r *Repo) StageCommitTag(ctx context.Context, paths []string, message, tag string) error {
	if err := r.CommitPaths(ctx, paths, message); err != nil {
		return err
	}
	return r.Tag(ctx, tag)
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
