// Package publisher implements topologically-ordered publish with
// retry-classified errors (spec.md §4.L). Error classification by
// combined stdout+stderr substring matching and a fixed retry/backoff
// schedule are both explicit in the spec rather than delegated to
// cenkalti/backoff's own policies, so retries are driven by a literal
// sleep schedule (2s/4s/8s) instead.
package publisher

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/executil"
	"github.com/nodeup-rs/nodeup/internal/gitutil"
	"github.com/nodeup-rs/nodeup/internal/versioning"
	"github.com/nodeup-rs/nodeup/internal/workspace"
)

const maxAttempts = 3

var retryDelays = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// Status is the terminal state of one package's publish attempt.
type Status string

const (
	StatusPublished      Status = "published"
	StatusAlreadyPublished Status = "already-published"
	StatusNonPublishable Status = "non-publishable"
	StatusFailed         Status = "failed"
)

// PackageResult records the outcome of publishing one package.
type PackageResult struct {
	Name     string
	Status   Status
	Attempts int
	Detail   string
}

// Report is the outcome of a full Publish run.
type Report struct {
	Results []PackageResult
}

// AnyFailed reports whether any package ended in StatusFailed, which
// determines the process exit code (1 vs 0).
func (r Report) AnyFailed() bool {
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			return true
		}
	}
	return false
}

var transientMarkers = []string{
	"no matching package named",
	"failed to select a version for the requirement",
	"candidate versions found which didn't match",
}

var alreadyPublishedMarkers = []string{
	"already uploaded",
	"already exists",
	"already on crates.io",
}

// Registry is the narrow interface over the external registry-publish
// tool the publisher invokes, so tests can substitute a stub.
type Registry interface {
	Publish(ctx context.Context, pkgDir, pkgName string, dryRun bool, registry string) (executil.Result, error)
}

// CargoRegistry shells out to `cargo publish`.
type CargoRegistry struct{}

// Publish invokes cargo publish for pkgName from pkgDir.
func (CargoRegistry) Publish(ctx context.Context, pkgDir, pkgName string, dryRun bool, registry string) (executil.Result, error) {
	args := []string{"publish", "-p", pkgName}
	if dryRun {
		args = append(args, "--dry-run")
	}
	if registry != "" {
		args = append(args, "--registry", registry)
	}
	return executil.Run(ctx, pkgDir, "cargo", args...)
}

// Publisher runs the pre-flight check, ordering, and retry-classified
// publish loop over a selection of workspace packages.
type Publisher struct {
	repo     *gitutil.Repo
	registry Registry
	sleep    func(time.Duration)
}

// New builds a Publisher.
func New(repo *gitutil.Repo, registry Registry) *Publisher {
	return &Publisher{repo: repo, registry: registry, sleep: time.Sleep}
}

// Publish runs the publish pipeline over the graph's selected package
// names, in topological order.
func (p *Publisher) Publish(ctx context.Context, g *workspace.Graph, selected []string, dryRun bool, registry string, allowDirty bool) (*Report, error) {
	if !allowDirty && !p.repo.IsClean() {
		return nil, errs.New(errs.Conflict, "working tree is dirty; pass --allow-dirty to override")
	}

	order, err := g.TopologicalOrder(selected)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, name := range order {
		pkg := g.Packages[name]
		if !pkg.Publishable {
			report.Results = append(report.Results, PackageResult{Name: name, Status: StatusNonPublishable})
			continue
		}

		result := p.publishOne(ctx, g.Root, pkg, dryRun, registry)
		report.Results = append(report.Results, result)
	}

	return report, nil
}

func (p *Publisher) publishOne(ctx context.Context, root string, pkg workspace.Package, dryRun bool, registry string) PackageResult {
	pkgDir := filepath.Join(root, pkg.DirectoryRelativePath)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, runErr := p.registry.Publish(ctx, pkgDir, pkg.Name, dryRun, registry)
		combined := strings.ToLower(res.Combined())

		if runErr == nil && res.ExitCode == 0 {
			return PackageResult{Name: pkg.Name, Status: StatusPublished, Attempts: attempt}
		}

		if containsAny(combined, alreadyPublishedMarkers) {
			return PackageResult{Name: pkg.Name, Status: StatusAlreadyPublished, Attempts: attempt, Detail: excerpt(res.Combined())}
		}

		if containsAny(combined, transientMarkers) {
			if attempt < maxAttempts {
				p.sleep(retryDelays[attempt-1])
				continue
			}
			return PackageResult{Name: pkg.Name, Status: StatusFailed, Attempts: attempt, Detail: excerpt(res.Combined())}
		}

		return PackageResult{Name: pkg.Name, Status: StatusFailed, Attempts: attempt, Detail: excerpt(res.Combined())}
	}

	return PackageResult{Name: pkg.Name, Status: StatusFailed, Attempts: maxAttempts, Detail: "exhausted retries"}
}

func containsAny(haystack string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(haystack, m) {
			return true
		}
	}
	return false
}

func excerpt(s string) string {
	const maxLen = 500
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "…"
}

// BumpAndTag selects targets, filters to publishable, bumps and
// cross-updates manifests via the versioning package, then stages,
// commits, and tags each bumped package (`name-vX.Y.Z`).
func (p *Publisher) BumpAndTag(ctx context.Context, g *workspace.Graph, selected []string, level versioning.Level, preid string, bumpDependents bool) (*versioning.BumpResult, error) {
	targets := map[string]bool{}
	for _, name := range selected {
		if pkg, ok := g.Packages[name]; ok && pkg.Publishable {
			targets[name] = true
		}
	}
	if bumpDependents {
		targets = closeOverDependents(g, targets)
	}

	bumps := map[string]*semver.Version{}
	for name := range targets {
		pkg := g.Packages[name]
		nextVersion, err := versioning.BumpVersion(pkg.Version, level, preid)
		if err != nil {
			return nil, err
		}
		bumps[name] = nextVersion
	}

	result, err := versioning.ApplyWorkspaceBump(g, bumps)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(bumps))
	for name := range bumps {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(result.UpdatedManifests) > 0 {
		summary := make([]string, len(names))
		for i, name := range names {
			summary[i] = fmt.Sprintf("%s to %s", name, bumps[name].String())
		}
		message := fmt.Sprintf("Bump %s", strings.Join(summary, ", "))
		if err := p.repo.CommitPaths(ctx, result.UpdatedManifests, message); err != nil {
			return nil, err
		}
	}

	for _, name := range names {
		tag := fmt.Sprintf("%s-v%s", name, bumps[name].String())
		if err := p.repo.Tag(ctx, tag); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// closeOverDependents expands targets to their transitive dependents, so
// bump_dependents produces a consistent, fully cross-updated set.
func closeOverDependents(g *workspace.Graph, targets map[string]bool) map[string]bool {
	visited := map[string]bool{}
	var queue []string
	for name := range targets {
		visited[name] = true
		queue = append(queue, name)
	}
	for i := 0; i < len(queue); i++ {
		for dep := range g.Dependents[queue[i]] {
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return visited
}
