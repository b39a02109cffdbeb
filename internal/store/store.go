// Package store owns the settings document and the installed-runtime
// directory enumeration (spec.md §4.D). It follows golang-dep's Ctx/Lock
// split between "durable document" (context.go's manifest/lock read path)
// and "directory scan" (project.go's vendor walk), rebuilt here around a
// single schema-versioned settings.toml.
package store

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/karrick/godirwalk"
	"github.com/pelletier/go-toml"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/fsutil"
	"github.com/nodeup-rs/nodeup/internal/paths"
)

const currentSchemaVersion = 1

// Settings is the schema-versioned settings document of spec.md §3.
type Settings struct {
	SchemaVersion    int               `toml:"schema_version"`
	DefaultSelector  string            `toml:"default_selector,omitempty"`
	LinkedRuntimes   map[string]string `toml:"linked_runtimes"`
	TrackedSelectors []string          `toml:"tracked_selectors"`
}

func defaultSettings() *Settings {
	return &Settings{
		SchemaVersion:    currentSchemaVersion,
		LinkedRuntimes:   map[string]string{},
		TrackedSelectors: []string{},
	}
}

// Store wraps a Layout with settings I/O and installed-runtime queries.
type Store struct {
	layout *paths.Layout
}

// New builds a Store over layout.
func New(layout *paths.Layout) *Store {
	return &Store{layout: layout}
}

// LoadSettings reads settings.toml, returning defaults on a read-miss and
// InvalidInput if schema_version is not the current version.
func (s *Store) LoadSettings() (*Settings, error) {
	data, err := os.ReadFile(s.layout.SettingsPath())
	if os.IsNotExist(err) {
		return defaultSettings(), nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "reading settings")
	}

	var st Settings
	if err := toml.Unmarshal(data, &st); err != nil {
		return nil, errs.Wrap(errs.InvalidInput, err, "parsing settings.toml")
	}
	if st.SchemaVersion != currentSchemaVersion {
		return nil, errs.New(errs.InvalidInput, "settings.toml has schema_version %d, expected %d", st.SchemaVersion, currentSchemaVersion)
	}
	if st.LinkedRuntimes == nil {
		st.LinkedRuntimes = map[string]string{}
	}
	return &st, nil
}

// SaveSettings writes st atomically.
func (s *Store) SaveSettings(st *Settings) error {
	sort.Strings(st.TrackedSelectors)
	data, err := toml.Marshal(*st)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "encoding settings.toml")
	}
	if err := os.MkdirAll(s.layout.ConfigRoot, 0700); err != nil {
		return errs.Wrap(errs.Internal, err, "creating config root")
	}
	if err := fsutil.WriteFileAtomic(s.layout.SettingsPath(), data, 0600); err != nil {
		return errs.Wrap(errs.Internal, err, "writing settings.toml")
	}
	return nil
}

// TrackSelector inserts sel into the sorted-unique tracked-selectors set
// and persists the result.
func (s *Store) TrackSelector(sel string) error {
	st, err := s.LoadSettings()
	if err != nil {
		return err
	}
	for _, existing := range st.TrackedSelectors {
		if existing == sel {
			return nil
		}
	}
	st.TrackedSelectors = append(st.TrackedSelectors, sel)
	sort.Strings(st.TrackedSelectors)
	return s.SaveSettings(st)
}

// ListInstalledVersions scans the toolchains directory for installed
// runtime directories, returning canonicalized "vX.Y.Z" names sorted
// lexically for deterministic output.
func (s *Store) ListInstalledVersions() ([]string, error) {
	dir := s.layout.ToolchainsDir()
	entries, err := godirwalk.ReadDirents(dir, nil)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.Internal, err, "reading toolchains directory")
	}

	var versions []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) == 0 || name[0] == '.' {
			continue
		}
		versions = append(versions, name)
	}
	sort.Strings(versions)
	return versions, nil
}

// IsInstalled reports whether version's runtime directory exists.
func (s *Store) IsInstalled(version string) (bool, error) {
	return fsutil.IsDir(s.layout.RuntimeDir(version))
}

// RuntimeDir is the installed location of version.
func (s *Store) RuntimeDir(version string) string {
	return s.layout.RuntimeDir(version)
}

// RuntimeExecutable joins cmd onto version's bin directory.
func (s *Store) RuntimeExecutable(version, cmd string) string {
	return filepath.Join(s.layout.RuntimeDir(version), "bin", cmd)
}

// RemoveRuntime recursively deletes version's runtime directory, failing
// NotFound if it does not exist.
func (s *Store) RemoveRuntime(version string) error {
	dir := s.layout.RuntimeDir(version)
	installed, err := fsutil.IsDir(dir)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "checking runtime directory %s", dir)
	}
	if !installed {
		return errs.New(errs.NotFound, "%s is not installed", paths.CanonicalizeVTag(version))
	}
	if err := os.RemoveAll(dir); err != nil {
		return errs.Wrap(errs.Internal, err, "removing runtime directory %s", dir)
	}
	return nil
}

// LinkRuntime registers name as an alias for the canonicalized absolute
// path abs, which must contain bin/node.
func (s *Store) LinkRuntime(name, abs string) error {
	nodeBin := filepath.Join(abs, "bin", "node")
	ok, err := fsutil.IsRegular(nodeBin)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "checking %s", nodeBin)
	}
	if !ok {
		return errs.New(errs.InvalidInput, "%s does not contain bin/node", abs)
	}

	st, err := s.LoadSettings()
	if err != nil {
		return err
	}
	st.LinkedRuntimes[name] = abs
	return s.SaveSettings(st)
}

// LinkedRuntimePath looks up name among the registered linked runtimes.
func (s *Store) LinkedRuntimePath(name string) (string, error) {
	st, err := s.LoadSettings()
	if err != nil {
		return "", err
	}
	abs, ok := st.LinkedRuntimes[name]
	if !ok {
		return "", errs.New(errs.NotFound, "no linked runtime named %q", name)
	}
	return abs, nil
}
