package fsutil

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// WriteFileAtomic writes data to path by first writing to a tempfile in the
// same directory as path, then renaming it into place. This is the pattern
// golang-dep's SafeWriter.Write (txn_writer.go) uses for the manifest, lock,
// and vendor tree: stage in the same directory (so the final rename is
// same-filesystem and atomic), then swap. Every schema-versioned document
// nodeup and cargo-mono persist (settings.toml, overrides.toml, the release
// index cache, rewritten Cargo.toml manifests) goes through this function so
// a reader never observes a partially written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return errors.Wrapf(err, "creating tempfile in %s", dir)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrapf(err, "writing tempfile %s", tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrapf(err, "flushing tempfile %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "closing tempfile %s", tmpPath)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "chmod tempfile %s", tmpPath)
	}

	if err := RenameWithFallback(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "renaming tempfile into place at %s", path)
	}
	return nil
}
