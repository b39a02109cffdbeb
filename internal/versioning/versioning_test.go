package versioning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeup-rs/nodeup/internal/cargometa"
	"github.com/nodeup-rs/nodeup/internal/workspace"
)

func mustVersion(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := semver.NewVersion(s)
	require.NoError(t, err)
	return v
}

func TestBumpVersionMajorMinorPatch(t *testing.T) {
	v := mustVersion(t, "1.2.3")

	major, err := BumpVersion(v, Major, "")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", major.String())

	minor, err := BumpVersion(v, Minor, "")
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", minor.String())

	patch, err := BumpVersion(v, Patch, "")
	require.NoError(t, err)
	assert.Equal(t, "1.2.4", patch.String())
}

func TestBumpVersionPrereleaseRequiresPreid(t *testing.T) {
	v := mustVersion(t, "1.2.3")
	_, err := BumpVersion(v, Prerelease, "")
	require.Error(t, err)
}

func TestBumpVersionPrereleaseFirstBump(t *testing.T) {
	v := mustVersion(t, "1.2.3")
	next, err := BumpVersion(v, Prerelease, "beta")
	require.NoError(t, err)
	assert.Equal(t, "1.2.4-beta.1", next.String())
}

func TestBumpVersionPrereleaseIncrementsExisting(t *testing.T) {
	v := mustVersion(t, "1.2.4-beta.1")
	next, err := BumpVersion(v, Prerelease, "beta")
	require.NoError(t, err)
	assert.Equal(t, "1.2.4-beta.2", next.String())
}

func TestBumpVersionPrereleaseDifferentPreidStartsFresh(t *testing.T) {
	v := mustVersion(t, "1.2.4-alpha.3")
	next, err := BumpVersion(v, Prerelease, "beta")
	require.NoError(t, err)
	assert.Equal(t, "1.2.5-beta.1", next.String())
}

func writeManifest(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}

func TestApplyWorkspaceBumpRewritesOwnVersionAndDependents(t *testing.T) {
	dir := t.TempDir()
	coreManifest := filepath.Join(dir, "core", "Cargo.toml")
	midManifest := filepath.Join(dir, "mid", "Cargo.toml")

	writeManifest(t, coreManifest, "[package]\nname = \"core\"\nversion = \"1.0.0\"\n")
	writeManifest(t, midManifest, "[package]\nname = \"mid\"\nversion = \"1.0.0\"\n\n[dependencies]\ncore = { path = \"../core\", version = \"1.0.0\" }\n")

	members := []cargometa.Package{
		{Name: "core", Version: "1.0.0", ManifestPath: coreManifest, Publishable: true},
		{Name: "mid", Version: "1.0.0", ManifestPath: midManifest, Dependencies: []string{"core"}, Publishable: true},
	}
	g, err := workspace.Build(dir, members)
	require.NoError(t, err)

	bumps := map[string]*semver.Version{"core": mustVersion(t, "1.1.0")}
	result, err := ApplyWorkspaceBump(g, bumps)
	require.NoError(t, err)

	assert.Equal(t, 1, result.DependencyUpdates)
	assert.ElementsMatch(t, []string{"core/Cargo.toml", "mid/Cargo.toml"}, result.UpdatedManifests)

	coreBytes, err := os.ReadFile(coreManifest)
	require.NoError(t, err)
	assert.Contains(t, string(coreBytes), "1.1.0")

	midBytes, err := os.ReadFile(midManifest)
	require.NoError(t, err)
	assert.Contains(t, string(midBytes), "1.1.0")
}
