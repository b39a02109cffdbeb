package dispatcher

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeup-rs/nodeup/internal/installer"
	"github.com/nodeup-rs/nodeup/internal/logging"
	"github.com/nodeup-rs/nodeup/internal/overrides"
	"github.com/nodeup-rs/nodeup/internal/paths"
	"github.com/nodeup-rs/nodeup/internal/releaseindex"
	"github.com/nodeup-rs/nodeup/internal/resolver"
	"github.com/nodeup-rs/nodeup/internal/store"
)

func TestShimCommandRecognizesDispatchTargets(t *testing.T) {
	name, ok := ShimCommand("/usr/local/bin/npm")
	assert.True(t, ok)
	assert.Equal(t, "npm", name)

	_, ok = ShimCommand("/usr/local/bin/nodeup")
	assert.False(t, ok)
}

func newTestDispatch(t *testing.T) (*resolver.Resolver, *store.Store, *installer.Installer) {
	t.Helper()
	t.Setenv("NODEUP_DATA_HOME", t.TempDir())
	t.Setenv("NODEUP_CACHE_HOME", t.TempDir())
	t.Setenv("NODEUP_CONFIG_HOME", t.TempDir())

	layout, err := paths.NewLayout()
	require.NoError(t, err)

	st := store.New(layout)
	ov := overrides.New(layout)
	index := releaseindex.New(layout, logging.Nop())
	res := resolver.New(st, ov, index)
	in := installer.New(layout, index)
	return res, st, in
}

func writeShimScript(t *testing.T, runtimeDir, name string, exitCode int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(runtimeDir, "bin"), 0755))
	script := "#!/bin/sh\nexit " + strconv.Itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(runtimeDir, "bin", name), []byte(script), 0755))
}

func TestDispatchLinkedRuntimeSuccess(t *testing.T) {
	res, st, in := newTestDispatch(t)
	dir := t.TempDir()
	writeShimScript(t, dir, "node", 0)
	require.NoError(t, st.LinkRuntime("myrt", dir))
	require.NoError(t, st.SaveSettings(&store.Settings{SchemaVersion: 1, DefaultSelector: "myrt", LinkedRuntimes: map[string]string{"myrt": dir}}))

	outcome, err := Dispatch(context.Background(), res, st, in, t.TempDir(), "node", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.ExitCode)
}

func TestDispatchLinkedRuntimeNonzeroExit(t *testing.T) {
	res, st, in := newTestDispatch(t)
	dir := t.TempDir()
	writeShimScript(t, dir, "node", 7)
	require.NoError(t, st.LinkRuntime("myrt", dir))
	require.NoError(t, st.SaveSettings(&store.Settings{SchemaVersion: 1, DefaultSelector: "myrt", LinkedRuntimes: map[string]string{"myrt": dir}}))

	outcome, err := Dispatch(context.Background(), res, st, in, t.TempDir(), "node", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, outcome.ExitCode)
}

func TestDispatchMissingCommandIsNotFound(t *testing.T) {
	res, st, in := newTestDispatch(t)
	dir := t.TempDir()
	writeShimScript(t, dir, "node", 0)
	require.NoError(t, st.LinkRuntime("myrt", dir))
	require.NoError(t, st.SaveSettings(&store.Settings{SchemaVersion: 1, DefaultSelector: "myrt", LinkedRuntimes: map[string]string{"myrt": dir}}))

	_, err := Dispatch(context.Background(), res, st, in, t.TempDir(), "npm", nil)
	require.Error(t, err)
}
