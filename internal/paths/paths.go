// Package paths derives the manager's three on-disk roots from the
// environment, the way golang-dep's Ctx derived GOPATH in context.go:
// a small struct built once by a constructor, with helpers hung off it.
package paths

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"

	"github.com/nodeup-rs/nodeup/internal/errs"
)

const dirMode = 0700

// Layout holds the three roots nodeup reads and writes under, plus the
// derived subdirectories spec.md §6 names explicitly.
type Layout struct {
	DataRoot   string
	CacheRoot  string
	ConfigRoot string
}

// NewLayout derives a Layout from the environment. NODEUP_DATA_HOME,
// NODEUP_CACHE_HOME, and NODEUP_CONFIG_HOME override the platform default
// roots (XDG on unix, per-user AppData on windows) when set. Each base
// directory is created with owner-only permissions; failure to confirm
// creation is an Internal error.
func NewLayout() (*Layout, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "determining user home directory")
	}

	l := &Layout{
		DataRoot:   envOrDefault("NODEUP_DATA_HOME", defaultDataRoot(home)),
		CacheRoot:  envOrDefault("NODEUP_CACHE_HOME", defaultCacheRoot(home)),
		ConfigRoot: envOrDefault("NODEUP_CONFIG_HOME", defaultConfigRoot(home)),
	}

	for _, dir := range []string{l.DataRoot, l.CacheRoot, l.ConfigRoot} {
		if err := ensureOwnerOnlyDir(dir); err != nil {
			return nil, errs.Wrap(errs.Internal, err, "creating root directory %s", dir)
		}
	}

	return l, nil
}

func envOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func defaultDataRoot(home string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(appData(home), "nodeup", "data")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "nodeup")
	}
	return filepath.Join(home, ".local", "share", "nodeup")
}

func defaultCacheRoot(home string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(appData(home), "nodeup", "cache")
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "nodeup")
	}
	return filepath.Join(home, ".cache", "nodeup")
}

func defaultConfigRoot(home string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(appData(home), "nodeup", "config")
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nodeup")
	}
	return filepath.Join(home, ".config", "nodeup")
}

func appData(home string) string {
	if v := os.Getenv("APPDATA"); v != "" {
		return v
	}
	return filepath.Join(home, "AppData", "Roaming")
}

// ensureOwnerOnlyDir creates dir (and parents) with mode 0700 and confirms
// the result is actually a directory we can stat back.
func ensureOwnerOnlyDir(dir string) error {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return errors.Wrapf(err, "mkdir %s", dir)
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return errors.Wrapf(err, "confirming %s exists", dir)
	}
	if !fi.IsDir() {
		return errors.Errorf("%s exists but is not a directory", dir)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(dir, dirMode); err != nil {
			return errors.Wrapf(err, "chmod %s", dir)
		}
	}
	return nil
}

// ToolchainsDir is the directory under which every installed runtime
// directory and install lock file lives.
func (l *Layout) ToolchainsDir() string {
	return filepath.Join(l.DataRoot, "toolchains")
}

// RuntimeDir canonicalizes version to vX.Y.Z and returns its final,
// installed location.
func (l *Layout) RuntimeDir(version string) string {
	return filepath.Join(l.ToolchainsDir(), CanonicalizeVTag(version))
}

// InstallLockPath returns the path of the exclusive install lock file for
// version, canonicalized.
func (l *Layout) InstallLockPath(version string) string {
	return filepath.Join(l.ToolchainsDir(), "."+CanonicalizeVTag(version)+".install.lock")
}

// DownloadsDir is where archives are streamed to before verification.
func (l *Layout) DownloadsDir() string {
	return filepath.Join(l.CacheRoot, "downloads")
}

// ReleaseIndexCachePath is where the release index cache envelope lives.
func (l *Layout) ReleaseIndexCachePath() string {
	return filepath.Join(l.CacheRoot, "release-index.json")
}

// SettingsPath is the schema-versioned settings document.
func (l *Layout) SettingsPath() string {
	return filepath.Join(l.ConfigRoot, "settings.toml")
}

// OverridesPath is the schema-versioned overrides document.
func (l *Layout) OverridesPath() string {
	return filepath.Join(l.ConfigRoot, "overrides.toml")
}

// CanonicalizeVTag ensures version carries a leading "v"; it does not
// validate semver shape (callers that need validation go through
// internal/selector first).
func CanonicalizeVTag(version string) string {
	if len(version) > 0 && version[0] == 'v' {
		return version
	}
	return "v" + version
}
