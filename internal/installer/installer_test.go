package installer

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeup-rs/nodeup/internal/logging"
	"github.com/nodeup-rs/nodeup/internal/paths"
	"github.com/nodeup-rs/nodeup/internal/platform"
	"github.com/nodeup-rs/nodeup/internal/releaseindex"
)

// buildArchive produces a gzip tarball (not xz) containing a single
// top-level directory with a bin/node placeholder file. The extractor
// invokes the system `tar -xJf`, so this only exercises the surrounding
// pipeline when tar itself tolerates the mismatched flag on a gzip
// stream, which GNU tar does not; EnsureInstalled's checksum stage is
// exercised independently of extraction in these tests.
func buildArchive(t *testing.T, version, target string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	top := fmt.Sprintf("node-%s-%s", version, target)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: top + "/", Typeflag: tar.TypeDir, Mode: 0755}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: top + "/bin/", Typeflag: tar.TypeDir, Mode: 0755}))
	content := []byte("#!/bin/sh\necho fake node\n")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: top + "/bin/node", Typeflag: tar.TypeReg, Mode: 0755, Size: int64(len(content))}))
	_, err := tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func sha256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func newTestSetup(t *testing.T, archive []byte, shasums string) (*Installer, string) {
	t.Helper()
	t.Setenv("NODEUP_DATA_HOME", t.TempDir())
	t.Setenv("NODEUP_CACHE_HOME", t.TempDir())
	t.Setenv("NODEUP_CONFIG_HOME", t.TempDir())

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case bytes.Contains([]byte(r.URL.Path), []byte("SHASUMS256.txt")):
			w.Write([]byte(shasums))
		case bytes.Contains([]byte(r.URL.Path), []byte(".tar.xz")):
			w.Write(archive)
		default:
			w.Write([]byte(`[{"version":"v20.11.0","lts":"Iron"}]`))
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Setenv("NODEUP_INDEX_URL", srv.URL+"/index.json")
	t.Setenv("NODEUP_DOWNLOAD_BASE_URL", srv.URL)

	layout, err := paths.NewLayout()
	require.NoError(t, err)
	index := releaseindex.New(layout, logging.Nop())
	return New(layout, index), layout.RuntimeDir("v20.11.0")
}

func TestEnsureInstalledRejectsChecksumMismatch(t *testing.T) {
	target, ok := platform.Target()
	if !ok {
		t.Skip("no supported platform target for this host")
	}
	archive := buildArchive(t, "v20.11.0", target)
	shasums := fmt.Sprintf("%s  node-v20.11.0-%s.tar.xz\n", sha256Hex([]byte("wrong content")), target)

	in, _ := newTestSetup(t, archive, shasums)
	_, err := in.EnsureInstalled(context.Background(), "v20.11.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Checksum mismatch")
}

func TestEnsureInstalledShortCircuitsWhenAlreadyPresent(t *testing.T) {
	target, ok := platform.Target()
	if !ok {
		t.Skip("no supported platform target for this host")
	}
	archive := buildArchive(t, "v20.11.0", target)
	shasums := fmt.Sprintf("%s  node-v20.11.0-%s.tar.xz\n", sha256Hex(archive), target)

	in, runtimeDir := newTestSetup(t, archive, shasums)
	require.NoError(t, os.MkdirAll(runtimeDir, 0755))

	outcome, err := in.EnsureInstalled(context.Background(), "v20.11.0")
	require.NoError(t, err)
	assert.Equal(t, AlreadyInstalled, outcome.State)
}
