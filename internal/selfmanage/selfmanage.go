// Package selfmanage implements the manager's self-update, self-uninstall,
// and schema upgrade-data operations (spec.md §4.I). The backup-rename-
// restore update sequence mirrors golang-dep's SafeWriter (txn_writer.go):
// stage next to the target, swap by rename, keep the old version as a
// recovery path until the swap is confirmed.
package selfmanage

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/fsutil"
	"github.com/nodeup-rs/nodeup/internal/overrides"
	"github.com/nodeup-rs/nodeup/internal/paths"
	"github.com/nodeup-rs/nodeup/internal/store"
)

const (
	envSelfUpdateSource = "NODEUP_SELF_UPDATE_SOURCE"
	envSelfBinPath      = "NODEUP_SELF_BIN_PATH"
	backupSuffix        = ".nodeup-backup"
)

// UpdateResult is the outcome of Update.
type UpdateResult string

const (
	UpdateAlreadyUpToDate UpdateResult = "already-up-to-date"
	UpdateUpdated         UpdateResult = "updated"
)

// Update implements "self update": compares the SHA-256 of the source and
// target binaries, and if they differ, atomically swaps the target for
// the source, keeping a recovery backup until the swap is confirmed.
func Update() (UpdateResult, error) {
	source := os.Getenv(envSelfUpdateSource)
	if source == "" {
		return "", errs.New(errs.InvalidInput, "%s is not set", envSelfUpdateSource)
	}

	target := os.Getenv(envSelfBinPath)
	if target == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", errs.Wrap(errs.Internal, err, "determining current executable path")
		}
		target = exe
	}

	sourceSum, err := sha256File(source)
	if err != nil {
		return "", errs.Wrap(errs.Internal, err, "hashing %s", source)
	}
	targetSum, err := sha256File(target)
	if err != nil {
		return "", errs.Wrap(errs.Internal, err, "hashing %s", target)
	}
	if sourceSum == targetSum {
		return UpdateAlreadyUpToDate, nil
	}

	fi, err := os.Stat(source)
	if err != nil {
		return "", errs.Wrap(errs.Internal, err, "stat %s", source)
	}

	staged := filepath.Join(filepath.Dir(target), ".nodeup-update-staged")
	if err := fsutil.CopyFile(source, staged); err != nil {
		return "", errs.Wrap(errs.Internal, err, "staging update from %s", source)
	}
	defer os.Remove(staged)
	if err := os.Chmod(staged, fi.Mode()); err != nil {
		return "", errs.Wrap(errs.Internal, err, "preserving mode on staged update")
	}

	backup := target + backupSuffix
	os.Remove(backup)
	if err := os.Rename(target, backup); err != nil {
		return "", errs.Wrap(errs.Internal, err, "backing up %s", target)
	}

	if err := os.Rename(staged, target); err != nil {
		if restoreErr := os.Rename(backup, target); restoreErr != nil {
			return "", errs.Wrap(errs.Internal, restoreErr,
				"swap failed (%v) and restoring backup also failed", err)
		}
		return "", errs.Wrap(errs.Internal, err, "swapping staged update into %s (restored backup)", target)
	}

	os.Remove(backup)
	return UpdateUpdated, nil
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

// UninstallResult is the outcome of Uninstall.
type UninstallResult string

const (
	UninstallRemoved      UninstallResult = "removed"
	UninstallAlreadyClean UninstallResult = "already-clean"
)

// Uninstall removes the manager's three on-disk roots, refusing to touch
// any root that does not carry a "nodeup"-owned path component, per
// spec.md §4.I. Every root is attempted regardless of an earlier
// failure, and any failures are reported together: a partial failure
// (e.g. a permissions error on the cache root) shouldn't hide whether
// the other two roots were removed.
func Uninstall(layout *paths.Layout) (UninstallResult, error) {
	roots := []string{layout.DataRoot, layout.CacheRoot, layout.ConfigRoot}

	var result *multierror.Error
	anyRemoved := false
	for _, root := range roots {
		empty, err := isEffectivelyEmpty(root)
		if err != nil {
			result = multierror.Append(result, errs.Wrap(errs.Internal, err, "checking %s", root))
			continue
		}
		if empty {
			continue
		}

		if !isOwnedPath(root) {
			result = multierror.Append(result, errs.New(errs.Conflict, "%s does not look like a nodeup-owned directory, refusing to remove", root))
			continue
		}
		if err := os.RemoveAll(root); err != nil {
			result = multierror.Append(result, errs.Wrap(errs.Internal, err, "removing %s", root))
			continue
		}
		anyRemoved = true
	}

	if result.ErrorOrNil() != nil {
		return "", result.ErrorOrNil()
	}
	if !anyRemoved {
		return UninstallAlreadyClean, nil
	}
	return UninstallRemoved, nil
}

// isEffectivelyEmpty treats a missing root, or a root whose only content
// is an empty directory tree, as empty.
func isEffectivelyEmpty(root string) (bool, error) {
	_, err := os.Stat(root)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	empty := true
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if !d.IsDir() {
			empty = false
		}
		return nil
	})
	return empty, err
}

// isOwnedPath reports whether any canonicalized path component names
// "nodeup" exactly (case-insensitive) or carries it as a
// nodeup-/-nodeup/nodeup_/_nodeup affix.
func isOwnedPath(p string) bool {
	for _, comp := range strings.Split(filepath.Clean(p), string(filepath.Separator)) {
		lower := strings.ToLower(comp)
		if lower == "nodeup" {
			return true
		}
		for _, affix := range []string{"nodeup-", "-nodeup", "nodeup_", "_nodeup"} {
			if strings.Contains(lower, affix) {
				return true
			}
		}
	}
	return false
}

// UpgradeResult is the outcome of an UpgradeData step for one document.
type UpgradeResult string

const (
	UpgradeCreated        UpgradeResult = "created"
	UpgradeAlreadyCurrent UpgradeResult = "already-current"
	UpgradeUpgraded       UpgradeResult = "upgraded"
)

// UpgradeSettings runs the explicit 0→1 settings migration of spec.md §9.
func UpgradeSettings(st *store.Store, layout *paths.Layout) (UpgradeResult, error) {
	data, err := os.ReadFile(layout.SettingsPath())
	if os.IsNotExist(err) {
		if err := st.SaveSettings(&store.Settings{SchemaVersion: 1, LinkedRuntimes: map[string]string{}}); err != nil {
			return "", err
		}
		return UpgradeCreated, nil
	}
	if err != nil {
		return "", errs.Wrap(errs.Internal, err, "reading settings.toml")
	}

	version := legacySchemaVersion(data)
	switch {
	case version == 1:
		if _, err := st.LoadSettings(); err != nil {
			return "", err
		}
		return UpgradeAlreadyCurrent, nil
	case version == 0:
		migrated := migrateLegacySettings(data)
		if err := st.SaveSettings(migrated); err != nil {
			return "", err
		}
		return UpgradeUpgraded, nil
	default:
		return "", errs.New(errs.InvalidInput, "settings.toml has schema_version %d, newer than supported", version)
	}
}

// UpgradeOverrides runs the explicit 0→1 overrides migration.
func UpgradeOverrides(ov *overrides.Store, layout *paths.Layout) (UpgradeResult, error) {
	data, err := os.ReadFile(layout.OverridesPath())
	if os.IsNotExist(err) {
		out, err := toml.Marshal(overrides.Document{SchemaVersion: 1})
		if err != nil {
			return "", errs.Wrap(errs.Internal, err, "encoding default overrides.toml")
		}
		if err := fsutil.WriteFileAtomic(layout.OverridesPath(), out, 0600); err != nil {
			return "", errs.Wrap(errs.Internal, err, "writing default overrides.toml")
		}
		return UpgradeCreated, nil
	}
	if err != nil {
		return "", errs.Wrap(errs.Internal, err, "reading overrides.toml")
	}

	version := legacySchemaVersion(data)
	switch {
	case version == 1:
		if _, err := ov.Load(); err != nil {
			return "", err
		}
		return UpgradeAlreadyCurrent, nil
	case version == 0:
		if err := fsutil.WriteFileAtomic(layout.OverridesPath(), migrateLegacyOverrides(data), 0600); err != nil {
			return "", errs.Wrap(errs.Internal, err, "writing migrated overrides.toml")
		}
		return UpgradeUpgraded, nil
	default:
		return "", errs.New(errs.InvalidInput, "overrides.toml has schema_version %d, newer than supported", version)
	}
}

// legacySchemaVersion sniffs schema_version out of a raw TOML document
// without requiring it to already conform to the current shape; a
// missing field is legacy (schema_version 0), per spec.md §9.
func legacySchemaVersion(data []byte) int {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return 0
	}
	v, ok := tree.Get("schema_version").(int64)
	if !ok {
		return 0
	}
	return int(v)
}

// migrateLegacySettings upgrades a schema-0 settings document (no
// schema_version field, otherwise the same shape) to schema 1.
func migrateLegacySettings(data []byte) *store.Settings {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return &store.Settings{SchemaVersion: 1, LinkedRuntimes: map[string]string{}}
	}

	st := &store.Settings{SchemaVersion: 1, LinkedRuntimes: map[string]string{}}
	if v, ok := tree.Get("default_selector").(string); ok {
		st.DefaultSelector = v
	}
	if linked, ok := tree.Get("linked_runtimes").(*toml.Tree); ok {
		for _, k := range linked.Keys() {
			if v, ok := linked.Get(k).(string); ok {
				st.LinkedRuntimes[k] = v
			}
		}
	}
	if tracked, ok := tree.Get("tracked_selectors").([]interface{}); ok {
		for _, v := range tracked {
			if s, ok := v.(string); ok {
				st.TrackedSelectors = append(st.TrackedSelectors, s)
			}
		}
	}
	return st
}

// migrateLegacyOverrides rewrites a schema-0 overrides document (same
// entries shape, schema_version absent or 0) to schema 1 bytes.
func migrateLegacyOverrides(data []byte) []byte {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		out, _ := toml.Marshal(overrides.Document{SchemaVersion: 1})
		return out
	}

	doc := overrides.Document{SchemaVersion: 1}
	if entries, ok := tree.Get("entries").([]*toml.Tree); ok {
		for _, e := range entries {
			path, _ := e.Get("path").(string)
			sel, _ := e.Get("selector").(string)
			doc.Entries = append(doc.Entries, overrides.Entry{Path: path, Selector: sel})
		}
	}
	out, err := toml.Marshal(doc)
	if err != nil {
		out, _ = toml.Marshal(overrides.Document{SchemaVersion: 1})
	}
	return out
}
