// Package fsutil provides the filesystem primitives atomic writers and the
// installer build on: directory/file predicates, recursive copy, and
// rename-with-cross-device-fallback. Adapted from golang-dep's
// internal/fs/fs.go, trimmed to the subset nodeup's disk layout needs (no
// Windows long-path or case-insensitive-prefix handling, since nodeup's
// own paths never approach those limits).
package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/pkg/errors"
)

// IsDir reports whether name exists and is a directory. A non-existent
// path reports (false, nil), matching os.IsNotExist semantics callers
// expect from a "does this exist yet" check.
func IsDir(name string) (bool, error) {
	fi, err := os.Stat(name)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}

// IsRegular reports whether name exists and is a regular file.
func IsRegular(name string) (bool, error) {
	fi, err := os.Stat(name)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return fi.Mode().IsRegular(), nil
}

// RenameWithFallback attempts os.Rename, falling back to a recursive copy
// plus source removal when the rename fails across a device boundary
// (EXDEV). This is the same fallback golang-dep's renameWithFallback
// (fs.go) and internal/fs.RenameWithFallback implement; nodeup needs it
// because the downloads/tempdir staging area and the final toolchains
// directory are not guaranteed to share a filesystem.
func RenameWithFallback(src, dst string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return errors.Wrapf(err, "stat %s", src)
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	} else if !isCrossDevice(err) {
		return errors.Wrapf(err, "rename %s to %s", src, dst)
	}

	var cerr error
	if fi.IsDir() {
		cerr = CopyDir(src, dst)
	} else {
		cerr = CopyFile(src, dst)
	}
	if cerr != nil {
		return errors.Wrapf(cerr, "rename fallback: copying %s to %s", src, dst)
	}
	return errors.Wrapf(os.RemoveAll(src), "removing %s after fallback copy", src)
}

func isCrossDevice(err error) bool {
	terr, ok := err.(*os.LinkError)
	if !ok {
		return false
	}
	errno, ok := terr.Err.(syscall.Errno)
	if !ok {
		return false
	}
	return errno == syscall.EXDEV
}

// CopyDir recursively copies a directory tree, preserving file modes. The
// destination must not already exist.
func CopyDir(src, dst string) error {
	src = filepath.Clean(src)
	dst = filepath.Clean(dst)

	fi, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return errors.Errorf("%s is not a directory", src)
	}
	if _, err := os.Stat(dst); err == nil {
		return errors.Errorf("destination %s already exists", dst)
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(dst, fi.Mode()); err != nil {
		return errors.Wrapf(err, "mkdir %s", dst)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return errors.Wrapf(err, "reading %s", src)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := CopyDir(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := CopyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

// CopyFile copies src to dst, preserving the source file mode, flushing the
// destination to stable storage before returning.
func CopyFile(src, dst string) error {
	if isSym, err := isSymlink(src); err != nil {
		return errors.Wrapf(err, "checking symlink %s", src)
	} else if isSym {
		target, err := os.Readlink(src)
		if err != nil {
			return errors.Wrapf(err, "reading symlink %s", src)
		}
		return os.Symlink(target, dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}

	si, err := os.Stat(src)
	if err != nil {
		return err
	}
	if runtime.GOOS != "windows" {
		return os.Chmod(dst, si.Mode())
	}
	return nil
}

func isSymlink(path string) (bool, error) {
	l, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	return l.Mode()&os.ModeSymlink != 0, nil
}
