// Package versioning implements semver bumping and the cross-manifest
// dependency rewrite of spec.md §4.K. The rewrite uses pelletier/go-toml's
// Tree API directly (rather than round-tripping through marshaled structs)
// and writes the manifest back with Tree.String(). It is not
// format-preserving: comments in the manifest are not kept, and the key
// order and layout of the output are go-toml's own.
package versioning

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/pelletier/go-toml"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/fsutil"
	"github.com/nodeup-rs/nodeup/internal/workspace"
)

// Level is a semver bump level.
type Level int

const (
	Major Level = iota
	Minor
	Patch
	Prerelease
)

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "major":
		return Major, nil
	case "minor":
		return Minor, nil
	case "patch":
		return Patch, nil
	case "prerelease":
		return Prerelease, nil
	default:
		return 0, errs.New(errs.InvalidInput, "%q is not a known bump level", s)
	}
}

// BumpVersion implements spec.md §4.K's bump_version.
func BumpVersion(current *semver.Version, level Level, preid string) (*semver.Version, error) {
	switch level {
	case Major:
		return semver.NewVersion(fmt.Sprintf("%d.0.0", current.Major()+1))
	case Minor:
		return semver.NewVersion(fmt.Sprintf("%d.%d.0", current.Major(), current.Minor()+1))
	case Patch:
		return semver.NewVersion(fmt.Sprintf("%d.%d.%d", current.Major(), current.Minor(), current.Patch()+1))
	case Prerelease:
		if preid == "" {
			return nil, errs.New(errs.InvalidInput, "prerelease bump requires a preid")
		}
		return bumpPrerelease(current, preid)
	default:
		return nil, errs.New(errs.InvalidInput, "unknown bump level %v", level)
	}
}

func bumpPrerelease(current *semver.Version, preid string) (*semver.Version, error) {
	pre := current.Prerelease()
	if pre == "" || !strings.HasPrefix(pre, preid+".") {
		return semver.NewVersion(fmt.Sprintf("%d.%d.%d-%s.1", current.Major(), current.Minor(), current.Patch()+1, preid))
	}

	suffix := strings.TrimPrefix(pre, preid+".")
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 {
		return semver.NewVersion(fmt.Sprintf("%d.%d.%d-%s.1", current.Major(), current.Minor(), current.Patch(), preid))
	}
	return semver.NewVersion(fmt.Sprintf("%d.%d.%d-%s.%d", current.Major(), current.Minor(), current.Patch(), preid, n+1))
}

// dependencySectionKeys are the manifest sections apply_workspace_bump
// scans for dependency entries naming a bumped package.
var dependencySectionKeys = []string{
	"dependencies",
	"dev-dependencies",
	"build-dependencies",
}

// BumpResult is the outcome of ApplyWorkspaceBump.
type BumpResult struct {
	UpdatedManifests  []string
	DependencyUpdates int
}

// ApplyWorkspaceBump rewrites each package's manifest: its own version
// field if bumped, and any dependency entry across the standard sections
// (plus [workspace.dependencies] and per-platform target sections) naming
// a package present in bumps.
func ApplyWorkspaceBump(g *workspace.Graph, bumps map[string]*semver.Version) (*BumpResult, error) {
	result := &BumpResult{}

	for _, pkg := range g.Packages {
		data, err := os.ReadFile(pkg.ManifestPath)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, err, "reading %s", pkg.ManifestPath)
		}
		tree, err := toml.LoadBytes(data)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, err, "parsing %s", pkg.ManifestPath)
		}

		changed := false

		if newVersion, ok := bumps[pkg.Name]; ok {
			tree.SetPath([]string{"package", "version"}, newVersion.String())
			changed = true
		}

		updates := rewriteDependencySections(tree, bumps)
		if updates > 0 {
			changed = true
			result.DependencyUpdates += updates
		}

		if !changed {
			continue
		}

		if err := fsutil.WriteFileAtomic(pkg.ManifestPath, []byte(tree.String()), 0644); err != nil {
			return nil, errs.Wrap(errs.Internal, err, "writing %s", pkg.ManifestPath)
		}
		result.UpdatedManifests = append(result.UpdatedManifests, pkg.ManifestRelativePath)
	}

	return result, nil
}

// rewriteDependencySections walks every dependency table reachable from
// root and rewrites entries naming a bumped package, returning the count
// of entries changed.
func rewriteDependencySections(root *toml.Tree, bumps map[string]*semver.Version) int {
	updates := 0

	for _, section := range dependencySectionKeys {
		if sub, ok := root.Get(section).(*toml.Tree); ok {
			updates += rewriteDependencyTable(sub, bumps)
		}
	}

	if wsTree, ok := root.Get("workspace").(*toml.Tree); ok {
		if deps, ok := wsTree.Get("dependencies").(*toml.Tree); ok {
			updates += rewriteDependencyTable(deps, bumps)
		}
	}

	if targetTree, ok := root.Get("target").(*toml.Tree); ok {
		for _, cfg := range targetTree.Keys() {
			cfgTree, ok := targetTree.Get(cfg).(*toml.Tree)
			if !ok {
				continue
			}
			for _, section := range dependencySectionKeys {
				if sub, ok := cfgTree.Get(section).(*toml.Tree); ok {
					updates += rewriteDependencyTable(sub, bumps)
				}
			}
		}
	}

	return updates
}

// rewriteDependencyTable rewrites every entry in deps naming a bumped
// package, skipping entries marked workspace = true.
func rewriteDependencyTable(deps *toml.Tree, bumps map[string]*semver.Version) int {
	updates := 0
	for _, name := range deps.Keys() {
		newVersion, ok := bumps[name]
		if !ok {
			continue
		}

		switch entry := deps.Get(name).(type) {
		case string:
			deps.Set(name, newVersion.String())
			updates++
		case *toml.Tree:
			if ws, ok := entry.Get("workspace").(bool); ok && ws {
				continue
			}
			if entry.Has("version") {
				entry.Set("version", newVersion.String())
				updates++
			}
		}
	}
	return updates
}
