package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeup-rs/nodeup/internal/cargometa"
	"github.com/nodeup-rs/nodeup/internal/errs"
)

func testMembers() []cargometa.Package {
	return []cargometa.Package{
		{Name: "core", Version: "1.0.0", ManifestPath: "/repo/core/Cargo.toml", Publishable: true},
		{Name: "mid", Version: "1.0.0", ManifestPath: "/repo/mid/Cargo.toml", Dependencies: []string{"core"}, Publishable: true},
		{Name: "top", Version: "1.0.0", ManifestPath: "/repo/top/Cargo.toml", Dependencies: []string{"mid"}, Publishable: false},
	}
}

func TestBuildComputesDependentsReciprocally(t *testing.T) {
	g, err := Build("/repo", testMembers())
	require.NoError(t, err)

	assert.True(t, g.Dependencies["mid"]["core"])
	assert.True(t, g.Dependents["core"]["mid"])
	assert.True(t, g.Dependencies["top"]["mid"])
	assert.True(t, g.Dependents["mid"]["top"])
	assert.False(t, g.Packages["top"].Publishable)
}

func TestChangedPackagesDirectoryPrefixMatch(t *testing.T) {
	g, err := Build("/repo", testMembers())
	require.NoError(t, err)

	changed := g.ChangedPackages([]string{"core/src/lib.rs"}, false)
	assert.Equal(t, []string{"core"}, changed)
}

func TestChangedPackagesExpandsDependentsWhenRequested(t *testing.T) {
	g, err := Build("/repo", testMembers())
	require.NoError(t, err)

	changed := g.ChangedPackages([]string{"core/src/lib.rs"}, true)
	assert.Equal(t, []string{"core", "mid", "top"}, changed)
}

func TestChangedPackagesGlobalImpactFileSelectsEverything(t *testing.T) {
	g, err := Build("/repo", testMembers())
	require.NoError(t, err)

	changed := g.ChangedPackages([]string{"Cargo.lock"}, false)
	assert.ElementsMatch(t, []string{"core", "mid", "top"}, changed)
}

func TestTopologicalOrderRespectsDependencies(t *testing.T) {
	g, err := Build("/repo", testMembers())
	require.NoError(t, err)

	order, err := g.TopologicalOrder([]string{"top", "mid", "core"})
	require.NoError(t, err)
	assert.Equal(t, []string{"core", "mid", "top"}, order)
}

func TestTopologicalOrderDetectsCycle(t *testing.T) {
	members := []cargometa.Package{
		{Name: "a", Version: "1.0.0", ManifestPath: "/repo/a/Cargo.toml", Dependencies: []string{"b"}},
		{Name: "b", Version: "1.0.0", ManifestPath: "/repo/b/Cargo.toml", Dependencies: []string{"a"}},
	}
	g, err := Build("/repo", members)
	require.NoError(t, err)

	_, err = g.TopologicalOrder([]string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, errs.Conflict, errs.KindOf(err))
}
