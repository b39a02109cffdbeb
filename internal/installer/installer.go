// Package installer implements the download-verify-extract-lock pipeline
// of spec.md §4.F. The lock-then-download-then-atomic-rename shape follows
// golang-dep's SafeWriter/vendor install path (txn_writer.go writes the
// vendor tree to a sibling tempdir, then renames it into place); the
// cross-process exclusivity is theckman/go-flock's TryLock rather than an
// in-process mutex, since installs race across manager invocations, not
// goroutines.
package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/theckman/go-flock"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/executil"
	"github.com/nodeup-rs/nodeup/internal/fsutil"
	"github.com/nodeup-rs/nodeup/internal/paths"
	"github.com/nodeup-rs/nodeup/internal/platform"
	"github.com/nodeup-rs/nodeup/internal/releaseindex"
)

// State is the outcome of EnsureInstalled.
type State int

const (
	AlreadyInstalled State = iota
	Installed
)

func (s State) String() string {
	if s == AlreadyInstalled {
		return "already-installed"
	}
	return "installed"
}

// Outcome is the result of a successful EnsureInstalled call.
type Outcome struct {
	Version string
	State   State
}

// Installer downloads, verifies, and extracts runtime archives.
type Installer struct {
	layout *paths.Layout
	index  *releaseindex.Client
	http   *http.Client
}

// New builds an Installer.
func New(layout *paths.Layout, index *releaseindex.Client) *Installer {
	return &Installer{layout: layout, index: index, http: http.DefaultClient}
}

// EnsureInstalled runs the full pipeline of spec.md §4.F, short-circuiting
// if version is already installed.
func (in *Installer) EnsureInstalled(ctx context.Context, version string) (*Outcome, error) {
	canon := paths.CanonicalizeVTag(version)

	if ok, err := fsutil.IsDir(in.layout.RuntimeDir(canon)); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "checking runtime directory")
	} else if ok {
		return &Outcome{Version: canon, State: AlreadyInstalled}, nil
	}

	if err := in.index.EnsureVersionAvailable(ctx, canon); err != nil {
		return nil, err
	}

	target, ok := platform.Target()
	if !ok {
		return nil, errs.New(errs.UnsupportedPlatform, "no supported platform target for this host (target=%q)", target)
	}

	if err := os.MkdirAll(in.layout.ToolchainsDir(), 0700); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "creating toolchains directory")
	}

	lockPath := in.layout.InstallLockPath(canon)
	fl := flock.NewFlock(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "acquiring install lock %s", lockPath)
	}
	if !locked {
		return nil, errs.New(errs.Conflict, "another process is already installing %s", canon)
	}
	defer func() {
		_ = fl.Unlock()
		_ = os.Remove(lockPath)
	}()

	if ok, err := fsutil.IsDir(in.layout.RuntimeDir(canon)); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "re-checking runtime directory")
	} else if ok {
		return &Outcome{Version: canon, State: AlreadyInstalled}, nil
	}

	archivePath, err := in.download(ctx, canon, target)
	if err != nil {
		return nil, err
	}

	if err := in.verifyChecksum(ctx, canon, archivePath); err != nil {
		os.Remove(archivePath)
		return nil, err
	}

	if err := in.extract(ctx, archivePath, canon, target); err != nil {
		return nil, err
	}

	return &Outcome{Version: canon, State: Installed}, nil
}

func (in *Installer) download(ctx context.Context, version, target string) (string, error) {
	url := in.index.ArchiveURL(version, target)
	if err := os.MkdirAll(in.layout.DownloadsDir(), 0700); err != nil {
		return "", errs.Wrap(errs.Internal, err, "creating downloads directory")
	}
	dest := filepath.Join(in.layout.DownloadsDir(), fmt.Sprintf("node-%s-%s.tar.xz", version, target))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errs.Wrap(errs.Internal, err, "building download request")
	}
	resp, err := in.http.Do(req)
	if err != nil {
		return "", errs.Wrap(errs.Network, err, "downloading %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errs.New(errs.Network, "%s: unexpected status %d", url, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return "", errs.Wrap(errs.Internal, err, "creating %s", dest)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", errs.Wrap(errs.Network, err, "writing %s", dest)
	}
	if err := out.Sync(); err != nil {
		return "", errs.Wrap(errs.Internal, err, "flushing %s", dest)
	}
	return dest, nil
}

func (in *Installer) verifyChecksum(ctx context.Context, version, archivePath string) error {
	shaURL := in.index.ShasumsURL(version)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, shaURL, nil)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "building sums request")
	}
	resp, err := in.http.Do(req)
	if err != nil {
		return errs.Wrap(errs.Network, err, "downloading %s", shaURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errs.New(errs.Network, "%s: unexpected status %d", shaURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.Network, err, "reading %s", shaURL)
	}

	archiveName := filepath.Base(archivePath)
	expected, err := findExpectedDigest(string(body), archiveName)
	if err != nil {
		return err
	}

	observed, err := sha256File(archivePath)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "hashing %s", archivePath)
	}

	if observed != strings.ToLower(expected) {
		return errs.New(errs.Conflict, "Checksum mismatch for %s: expected %s, observed %s", archiveName, expected, observed)
	}
	return nil
}

// findExpectedDigest parses a SHASUMS256.txt body: lines of
// "HEXDIGEST  [*]FILENAME".
func findExpectedDigest(sums, filename string) (string, error) {
	for _, line := range strings.Split(sums, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		name := strings.TrimPrefix(fields[1], "*")
		if name == filename {
			return fields[0], nil
		}
	}
	return "", errs.New(errs.NotFound, "no checksum entry for %s in sums file", filename)
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// extract unpacks archivePath into a sibling tempdir of the toolchains
// directory, then renames the single top-level entry into place.
func (in *Installer) extract(ctx context.Context, archivePath, version, target string) error {
	tmpDir, err := os.MkdirTemp(in.layout.ToolchainsDir(), ".extract-"+version+"-*")
	if err != nil {
		return errs.Wrap(errs.Internal, err, "creating extraction tempdir")
	}
	defer os.RemoveAll(tmpDir)

	res, err := executil.Run(ctx, "", "tar", "-xJf", archivePath, "-C", tmpDir)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "running tar: %s", res.Combined())
	}
	if res.ExitCode != 0 {
		return errs.New(errs.Internal, "tar extraction of %s failed: %s", archivePath, res.Combined())
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "reading extraction tempdir")
	}
	var topLevel string
	count := 0
	for _, e := range entries {
		if e.IsDir() {
			topLevel = e.Name()
			count++
		}
	}
	if count != 1 {
		return errs.New(errs.Internal, "expected exactly one top-level directory in %s, found %d", archivePath, count)
	}

	return fsutil.RenameWithFallback(filepath.Join(tmpDir, topLevel), in.layout.RuntimeDir(version))
}
