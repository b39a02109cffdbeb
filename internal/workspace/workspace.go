// Package workspace builds the package graph and computes change-impact
// and topological publish order (spec.md §4.J). The graph shape — two
// reciprocal name→set(name) maps restricted to workspace members — mirrors
// golang-dep's gps.ProjectConstraints bookkeeping of dependency edges,
// rebuilt here for a Cargo workspace rather than a Go module graph.
package workspace

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver"

	"github.com/nodeup-rs/nodeup/internal/cargometa"
	"github.com/nodeup-rs/nodeup/internal/errs"
)

// GlobalImpactFiles are repo-relative paths whose change invalidates
// per-package blast-radius analysis and expands to every member.
var GlobalImpactFiles = []string{
	"Cargo.toml",
	"Cargo.lock",
	"rust-toolchain",
}

// Package is a workspace member (spec.md §3's "Workspace package").
type Package struct {
	Name                  string
	Version               *semver.Version
	ManifestPath          string
	ManifestRelativePath  string
	DirectoryRelativePath string
	Publishable           bool
}

// Graph is the package graph: two directed maps restricted to workspace
// members, which must form a DAG.
type Graph struct {
	Root         string
	Packages     map[string]Package
	Dependencies map[string]map[string]bool
	Dependents   map[string]map[string]bool
}

// Build constructs a Graph from cargometa members, rooted at root.
func Build(root string, members []cargometa.Package) (*Graph, error) {
	g := &Graph{
		Root:         root,
		Packages:     make(map[string]Package, len(members)),
		Dependencies: make(map[string]map[string]bool, len(members)),
		Dependents:   make(map[string]map[string]bool, len(members)),
	}

	for _, m := range members {
		v, err := semver.NewVersion(m.Version)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, err, "parsing version of package %s", m.Name)
		}

		manifestRel, err := filepath.Rel(root, m.ManifestPath)
		if err != nil {
			manifestRel = m.ManifestPath
		}
		dirRel := filepath.Dir(manifestRel)
		if dirRel == "." {
			dirRel = ""
		}

		g.Packages[m.Name] = Package{
			Name:                  m.Name,
			Version:               v,
			ManifestPath:          m.ManifestPath,
			ManifestRelativePath:  filepath.ToSlash(manifestRel),
			DirectoryRelativePath: filepath.ToSlash(dirRel),
			Publishable:           m.Publishable,
		}
		g.Dependencies[m.Name] = map[string]bool{}
		g.Dependents[m.Name] = map[string]bool{}
	}

	for _, m := range members {
		for _, dep := range m.Dependencies {
			if _, ok := g.Packages[dep]; !ok {
				continue
			}
			g.Dependencies[m.Name][dep] = true
			g.Dependents[dep][m.Name] = true
		}
	}

	return g, nil
}

// normalizeRelPath strips a leading "./" (but not intermediate "./" or
// "../" components — an intentional known limitation, see spec.md §9)
// and any absolute workspace-root prefix.
func normalizeRelPath(root, p string) string {
	if filepath.IsAbs(p) {
		if rel, err := filepath.Rel(root, p); err == nil {
			p = rel
		}
	}
	p = filepath.ToSlash(p)
	return strings.TrimPrefix(p, "./")
}

// ChangedPackages implements spec.md §4.J's changed_packages: any
// global-impact path forces the full member set; otherwise every package
// whose directory is a prefix of a changed path is selected; optionally
// expanded to the transitive closure over dependents.
func (g *Graph) ChangedPackages(paths []string, includeDependents bool) []string {
	normalized := make([]string, len(paths))
	for i, p := range paths {
		normalized[i] = normalizeRelPath(g.Root, p)
	}

	for _, p := range normalized {
		for _, gi := range GlobalImpactFiles {
			if p == gi {
				return g.allMemberNames()
			}
		}
	}

	seeds := map[string]bool{}
	for name, pkg := range g.Packages {
		for _, p := range normalized {
			if pkg.DirectoryRelativePath != "" && (p == pkg.DirectoryRelativePath || strings.HasPrefix(p, pkg.DirectoryRelativePath+"/")) {
				seeds[name] = true
				break
			}
		}
	}

	if includeDependents {
		seeds = g.expandDependents(seeds)
	}

	return sortedKeys(seeds)
}

func (g *Graph) expandDependents(seeds map[string]bool) map[string]bool {
	visited := map[string]bool{}
	queue := sortedKeys(seeds)
	for _, name := range queue {
		visited[name] = true
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

func (g *Graph) allMemberNames() []string {
	return sortedKeysFromPackages(g.Packages)
}

func sortedKeysFromPackages(m map[string]Package) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// TopologicalOrder orders selected by intra-selection dependency: a
// dependency always precedes its dependent. Ties broken by minimum name
// for determinism. Returns Conflict if selected contains a cycle.
func (g *Graph) TopologicalOrder(selected []string) ([]string, error) {
	inSelection := make(map[string]bool, len(selected))
	for _, s := range selected {
		inSelection[s] = true
	}

	inDegree := make(map[string]int, len(selected))
	for _, name := range selected {
		count := 0
		for dep := range g.Dependencies[name] {
			if inSelection[dep] {
				count++
			}
		}
		inDegree[name] = count
	}

	var ready []string
	for name, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for dependent := range g.Dependents[next] {
			if !inSelection[dependent] {
				continue
			}
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(selected) {
		return nil, errs.New(errs.Conflict, "cycle detected among selected packages")
	}
	return order, nil
}
