package releaseindex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/logging"
	"github.com/nodeup-rs/nodeup/internal/paths"
)

func newTestClient(t *testing.T, indexBody string) (*Client, *int) {
	t.Helper()
	t.Setenv("NODEUP_DATA_HOME", t.TempDir())
	t.Setenv("NODEUP_CACHE_HOME", t.TempDir())
	t.Setenv("NODEUP_CONFIG_HOME", t.TempDir())

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(indexBody))
	}))
	t.Cleanup(srv.Close)
	t.Setenv("NODEUP_INDEX_URL", srv.URL)
	t.Setenv("NODEUP_DOWNLOAD_BASE_URL", srv.URL)

	layout, err := paths.NewLayout()
	require.NoError(t, err)

	c := New(layout, logging.Nop())
	return c, &hits
}

const sampleIndex = `[
  {"version": "v20.11.0", "lts": "Iron"},
  {"version": "v21.6.0", "lts": false}
]`

func TestFetchIndexFetchesFromNetworkOnMiss(t *testing.T) {
	c, hits := newTestClient(t, sampleIndex)
	entries, err := c.FetchIndex(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, *hits)
}

func TestFetchIndexServesUnexpiredCacheWithoutRefetching(t *testing.T) {
	c, hits := newTestClient(t, sampleIndex)
	_, err := c.FetchIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, *hits)

	_, err = c.FetchIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, *hits, "second call should be served from cache")
}

func TestResolveChannelLTSPicksFirstLTSEntry(t *testing.T) {
	c, _ := newTestClient(t, sampleIndex)
	v, err := c.ResolveChannel(context.Background(), "lts")
	require.NoError(t, err)
	assert.Equal(t, "v20.11.0", v)
}

func TestResolveChannelCurrentPicksHeadEntry(t *testing.T) {
	c, _ := newTestClient(t, sampleIndex)
	v, err := c.ResolveChannel(context.Background(), "current")
	require.NoError(t, err)
	assert.Equal(t, "v20.11.0", v)
}

func TestResolveChannelUnknownIsInvalidInput(t *testing.T) {
	c, _ := newTestClient(t, sampleIndex)
	_, err := c.ResolveChannel(context.Background(), "nightly")
	require.Error(t, err)
	assert.Equal(t, errs.InvalidInput, errs.KindOf(err))
}

func TestEnsureVersionAvailableSuggestsSameMajor(t *testing.T) {
	c, _ := newTestClient(t, sampleIndex)
	err := c.EnsureVersionAvailable(context.Background(), "v20.9.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "v20.11.0")
}

func TestEnsureVersionAvailableSucceedsForPresentVersion(t *testing.T) {
	c, _ := newTestClient(t, sampleIndex)
	require.NoError(t, c.EnsureVersionAvailable(context.Background(), "v21.6.0"))
}

func TestNewerVersionsThanReturnsAscendingStrictlyGreater(t *testing.T) {
	c, _ := newTestClient(t, sampleIndex)
	versions, err := c.NewerVersionsThan(context.Background(), "v20.11.0")
	require.NoError(t, err)
	assert.Equal(t, []string{"v21.6.0"}, versions)
}

func TestArchiveAndShasumsURLsUseDownloadBase(t *testing.T) {
	c, _ := newTestClient(t, sampleIndex)
	assert.Contains(t, c.ArchiveURL("v20.11.0", "linux-x64"), "/v20.11.0/node-v20.11.0-linux-x64.tar.xz")
	assert.Contains(t, c.ShasumsURL("v20.11.0"), "/v20.11.0/SHASUMS256.txt")
}

func TestFetchIndexFallsBackToStaleCacheOnNetworkFailure(t *testing.T) {
	c, hits := newTestClient(t, sampleIndex)
	_, err := c.FetchIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, *hits)

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	c.indexURL = "http://127.0.0.1:1/unreachable"

	entries, err := c.FetchIndex(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
