// Package cargometa provides the metadata used to build the workspace
// model (spec.md §4.J): it shells out to `cargo metadata --format-version
// 1` and decodes the subset of fields the workspace graph needs. Grounded
// on golang-dep's pattern of treating an external tool's output as the
// sole source of truth (gps's SourceManager deducing import graphs from
// externally-run tooling) rather than parsing Cargo.toml by hand.
package cargometa

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/executil"
)

const metadataTimeout = 2 * time.Minute

// Package is one workspace member, as reported by cargo metadata.
type Package struct {
	Name         string
	Version      string
	ManifestPath string
	Dependencies []string // names of other workspace members this package depends on
	Publishable  bool
}

// Provider fetches workspace metadata from a cargo invocation rooted at
// a manifest directory.
type Provider struct {
	manifestDir string
}

// NewProvider builds a Provider rooted at manifestDir (the directory
// containing the workspace's root Cargo.toml).
func NewProvider(manifestDir string) *Provider {
	return &Provider{manifestDir: manifestDir}
}

type rawMetadata struct {
	Packages        []rawPackage `json:"packages"`
	WorkspaceMembers []string    `json:"workspace_members"`
	WorkspaceRoot   string       `json:"workspace_root"`
}

type rawPackage struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	ID           string          `json:"id"`
	ManifestPath string          `json:"manifest_path"`
	Publish      *[]string       `json:"publish"`
	Dependencies []rawDependency `json:"dependencies"`
}

type rawDependency struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// Members fetches workspace member packages and their intra-workspace
// dependency edges, restricted to members (spec.md §3's "Package graph").
func (p *Provider) Members(ctx context.Context) ([]Package, string, error) {
	res, err := executil.RunTimeout(ctx, p.manifestDir, metadataTimeout, "cargo", "metadata", "--format-version", "1")
	if err != nil {
		return nil, "", errs.Wrap(errs.Cargo, err, "running cargo metadata: %s", res.Combined())
	}
	if res.ExitCode != 0 {
		return nil, "", errs.New(errs.Cargo, "cargo metadata exited %d: %s", res.ExitCode, res.Combined())
	}

	var raw rawMetadata
	if err := json.Unmarshal([]byte(res.Stdout), &raw); err != nil {
		return nil, "", errs.Wrap(errs.Cargo, err, "decoding cargo metadata output")
	}

	memberIDs := make(map[string]bool, len(raw.WorkspaceMembers))
	for _, id := range raw.WorkspaceMembers {
		memberIDs[id] = true
	}

	memberNames := make(map[string]bool)
	for _, pkg := range raw.Packages {
		if memberIDs[pkg.ID] {
			memberNames[pkg.Name] = true
		}
	}

	var out []Package
	for _, pkg := range raw.Packages {
		if !memberIDs[pkg.ID] {
			continue
		}

		var deps []string
		for _, d := range pkg.Dependencies {
			if d.Path != "" && memberNames[d.Name] {
				deps = append(deps, d.Name)
			}
		}

		publishable := true
		if pkg.Publish != nil && len(*pkg.Publish) == 0 {
			publishable = false
		}

		out = append(out, Package{
			Name:         pkg.Name,
			Version:      pkg.Version,
			ManifestPath: pkg.ManifestPath,
			Dependencies: deps,
			Publishable:  publishable,
		})
	}
	return out, raw.WorkspaceRoot, nil
}
