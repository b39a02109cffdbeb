// Package releaseindex fetches, caches, and queries Node.js release
// metadata (spec.md §4.C). The cache envelope and fallback-on-stale
// behavior follow golang-dep's own approach to durable, schema-versioned
// side state (context.go's manifest/lock loading, txn_writer.go's atomic
// rewrite), and the retry loop is grounded on the pack's use of
// cenkalti/backoff (google-skia-buildbot, malbeclabs-doublezero) rather
// than a hand-rolled sleep loop.
package releaseindex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/Masterminds/semver"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/fsutil"
	"github.com/nodeup-rs/nodeup/internal/logging"
	"github.com/nodeup-rs/nodeup/internal/paths"
)

const (
	schemaVersion        = 1
	defaultTTLSeconds    = 600
	defaultIndexURL      = "https://nodejs.org/dist/index.json"
	defaultDownloadBase  = "https://nodejs.org/dist"
	maxFetchAttempts     = 3
	retryBaseDelay       = 200 * time.Millisecond
	envIndexURL          = "NODEUP_INDEX_URL"
	envDownloadBase      = "NODEUP_DOWNLOAD_BASE_URL"
	envTTLSeconds        = "NODEUP_RELEASE_INDEX_TTL_SECONDS"
)

// Entry is a single release, per spec.md §3.
type Entry struct {
	Version string      `json:"version"`
	LTS     interface{} `json:"lts"`
}

// IsLTS is true iff LTS is a non-empty string codename or the boolean true.
func (e Entry) IsLTS() bool {
	switch v := e.LTS.(type) {
	case bool:
		return v
	case string:
		return v != ""
	default:
		return false
	}
}

type cacheEnvelope struct {
	SchemaVersion    uint32  `json:"schema_version"`
	FetchedAtEpochS  uint64  `json:"fetched_at_epoch_seconds"`
	Entries          []Entry `json:"entries"`
}

// HTTPDoer is the narrow interface Client needs from an HTTP client; it is
// satisfied by *http.Client and lets tests substitute a stub.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches, caches, and queries the release index.
type Client struct {
	layout     *paths.Layout
	httpClient HTTPDoer
	log        *logging.Logger
	now        func() time.Time

	indexURL     string
	downloadBase string
	ttl          time.Duration
}

// New builds a Client from the environment, per spec.md §6's
// NODEUP_INDEX_URL, NODEUP_DOWNLOAD_BASE_URL, and
// NODEUP_RELEASE_INDEX_TTL_SECONDS overrides.
func New(layout *paths.Layout, log *logging.Logger) *Client {
	return &Client{
		layout:       layout,
		httpClient:   http.DefaultClient,
		log:          log,
		now:          time.Now,
		indexURL:     envOrDefault(envIndexURL, defaultIndexURL),
		downloadBase: envOrDefault(envDownloadBase, defaultDownloadBase),
		ttl:          ttlFromEnv(),
	}
}

func envOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func ttlFromEnv() time.Duration {
	v, ok := os.LookupEnv(envTTLSeconds)
	if !ok {
		return defaultTTLSeconds * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultTTLSeconds * time.Second
	}
	return time.Duration(n) * time.Second
}

// FetchIndex returns the release entries, preferring an unexpired disk
// cache, falling back to the network with retries, and falling back again
// to a stale cache on total network failure. See spec.md §4.C's fetch
// protocol.
func (c *Client) FetchIndex(ctx context.Context) ([]Entry, error) {
	cached, cacheErr := c.readCache()
	if cacheErr == nil && c.now().Unix()-int64(cached.FetchedAtEpochS) <= int64(c.ttl.Seconds()) && int64(cached.FetchedAtEpochS) <= c.now().Unix() {
		return cached.Entries, nil
	}

	entries, err := c.fetchWithRetry(ctx)
	if err != nil {
		if cacheErr == nil {
			c.log.WithError(err).Warn("release index refresh failed, serving stale cache")
			return cached.Entries, nil
		}
		return nil, err
	}

	if err := c.writeCache(entries); err != nil {
		c.log.WithError(err).Warn("failed to persist refreshed release index cache")
	}
	return entries, nil
}

func (c *Client) readCache() (*cacheEnvelope, error) {
	data, err := os.ReadFile(c.layout.ReleaseIndexCachePath())
	if err != nil {
		return nil, err
	}
	var env cacheEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.SchemaVersion != schemaVersion {
		return nil, errors.Errorf("unsupported release index cache schema %d", env.SchemaVersion)
	}
	if int64(env.FetchedAtEpochS) > c.now().Unix() {
		return nil, errors.New("release index cache timestamp is in the future")
	}
	return &env, nil
}

func (c *Client) writeCache(entries []Entry) error {
	env := cacheEnvelope{
		SchemaVersion:   schemaVersion,
		FetchedAtEpochS: uint64(c.now().Unix()),
		Entries:         entries,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.layout.CacheRoot, 0700); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(c.layout.ReleaseIndexCachePath(), data, 0600)
}

// fetchWithRetry performs the network fetch with up to maxFetchAttempts
// attempts in total and linear backoff (~200ms * attempt), per spec.md §4.C.
func (c *Client) fetchWithRetry(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	attempt := 0

	b := &linearBackOff{base: retryBaseDelay}
	op := func() error {
		attempt++
		e, err := c.fetchOnce(ctx)
		if err != nil {
			return err
		}
		entries = e
		return nil
	}

	err := backoff.Retry(op, backoff.WithMaxRetries(b, maxFetchAttempts-1))
	if err != nil {
		return nil, errs.Wrap(errs.Network, err, "fetching release index from %s", c.indexURL)
	}
	return entries, nil
}

func (c *Client) fetchOnce(ctx context.Context) ([]Entry, error) {
	httpCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(httpCtx, http.MethodGet, c.indexURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("%s: unexpected status %d", c.indexURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, errors.Wrap(err, "decoding release index")
	}
	return entries, nil
}

// linearBackOff implements backoff.BackOff with spec.md's literal
// "200ms * attempt" schedule, rather than cenkalti/backoff's default
// exponential curve.
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (l *linearBackOff) Reset() { l.attempt = 0 }

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	return time.Duration(l.attempt) * l.base
}

// ResolveChannel resolves a channel token to a concrete "vX.Y.Z" version.
// lts picks the first entry where IsLTS(); current/latest both pick the
// head of the index, per spec.md §4.C and §9's documented coupling.
func (c *Client) ResolveChannel(ctx context.Context, channel string) (string, error) {
	entries, err := c.FetchIndex(ctx)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errs.New(errs.NotFound, "release index has no entries for channel %q", channel)
	}

	switch channel {
	case "lts":
		for _, e := range entries {
			if e.IsLTS() {
				return paths.CanonicalizeVTag(e.Version), nil
			}
		}
		return "", errs.New(errs.NotFound, "no lts entry found in release index")
	case "current", "latest":
		return paths.CanonicalizeVTag(entries[0].Version), nil
	default:
		return "", errs.New(errs.InvalidInput, "%q is not a known channel", channel)
	}
}

// EnsureVersionAvailable validates that v is present in the release index,
// returning a NotFound error carrying a nearby-version suggestion otherwise.
func (c *Client) EnsureVersionAvailable(ctx context.Context, v string) error {
	entries, err := c.FetchIndex(ctx)
	if err != nil {
		return err
	}
	canon := paths.CanonicalizeVTag(v)
	for _, e := range entries {
		if paths.CanonicalizeVTag(e.Version) == canon {
			return nil
		}
	}
	return errs.New(errs.NotFound, "%s is not an available Node.js release%s", canon, suggestionSuffix(canon, entries))
}

// suggestionSuffix prefers the same-major candidate obtained by swapping
// minor and patch in the requested version, if that exact version exists
// in entries; otherwise it falls back to the first same-major entry in
// entries' own order.
func suggestionSuffix(canon string, entries []Entry) string {
	sv, err := semver.NewVersion(trimV(canon))
	if err != nil {
		return ""
	}

	swapped := fmt.Sprintf("v%d.%d.%d", sv.Major(), sv.Patch(), sv.Minor())
	for _, e := range entries {
		if paths.CanonicalizeVTag(e.Version) == swapped {
			return fmt.Sprintf(" (did you mean %s?)", swapped)
		}
	}

	for _, e := range entries {
		v, err := semver.NewVersion(trimV(paths.CanonicalizeVTag(e.Version)))
		if err != nil {
			continue
		}
		if v.Major() == sv.Major() {
			return fmt.Sprintf(" (did you mean v%s?)", v.String())
		}
	}
	return ""
}

func trimV(s string) string {
	if len(s) > 0 && s[0] == 'v' {
		return s[1:]
	}
	return s
}

// ArchiveURL returns the download URL for version's platform-specific
// archive.
func (c *Client) ArchiveURL(version, target string) string {
	v := paths.CanonicalizeVTag(version)
	return fmt.Sprintf("%s/%s/node-%s-%s.tar.xz", c.downloadBase, v, v, target)
}

// ShasumsURL returns the download URL for version's signed checksums file.
func (c *Client) ShasumsURL(version string) string {
	v := paths.CanonicalizeVTag(version)
	return fmt.Sprintf("%s/%s/SHASUMS256.txt", c.downloadBase, v)
}

// NewerVersionsThan returns every version in the index strictly greater
// than v, per spec.md §4.G's newer_versions_than.
func (c *Client) NewerVersionsThan(ctx context.Context, v string) ([]string, error) {
	entries, err := c.FetchIndex(ctx)
	if err != nil {
		return nil, err
	}
	base, err := semver.NewVersion(trimV(paths.CanonicalizeVTag(v)))
	if err != nil {
		return nil, errs.New(errs.InvalidInput, "%q is not a valid version", v)
	}

	var out []*semver.Version
	for _, e := range entries {
		ev, err := semver.NewVersion(trimV(paths.CanonicalizeVTag(e.Version)))
		if err != nil {
			continue
		}
		if ev.GreaterThan(base) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })

	result := make([]string, len(out))
	for i, v := range out {
		result[i] = "v" + v.String()
	}
	return result, nil
}
