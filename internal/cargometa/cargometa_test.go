package cargometa

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireCargo(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("cargo"); err != nil {
		t.Skip("skipping because cargo binary not found")
	}
}

func writeWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	root := `[workspace]
members = ["core", "mid"]
resolver = "2"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(root), 0644))

	core := `[package]
name = "core"
version = "1.0.0"
edition = "2021"
publish = false
`
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "core", "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "core", "Cargo.toml"), []byte(core), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "core", "src", "lib.rs"), []byte(""), 0644))

	mid := `[package]
name = "mid"
version = "1.0.0"
edition = "2021"

[dependencies]
core = { path = "../core" }
`
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "mid", "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mid", "Cargo.toml"), []byte(mid), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mid", "src", "lib.rs"), []byte(""), 0644))

	return dir
}

func TestMembersReportsPublishabilityAndDependencies(t *testing.T) {
	requireCargo(t)
	dir := writeWorkspace(t)

	provider := NewProvider(dir)
	members, root, err := provider.Members(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dir, root)
	require.Len(t, members, 2)

	byName := map[string]Package{}
	for _, m := range members {
		byName[m.Name] = m
	}

	assert.False(t, byName["core"].Publishable)
	assert.True(t, byName["mid"].Publishable)
	assert.Equal(t, []string{"core"}, byName["mid"].Dependencies)
}
