// Package errs defines the shared error vocabulary used across the manager
// and the release tool: a small set of Kinds, each mapped to a stable exit
// code, so that every entrypoint can render and exit consistently no matter
// which subsystem produced the failure.
package errs

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies a failure for exit-code mapping and rendering. See
// spec.md §7 for the full trigger table.
type Kind int

const (
	// Internal covers unexpected I/O, serialization, or path errors.
	Internal Kind = iota
	// InvalidInput covers malformed selectors, missing flags, schema mismatches.
	InvalidInput
	// UnsupportedPlatform means no platform target mapping exists for the host.
	UnsupportedPlatform
	// Network covers transport failures, non-2xx status, and decode failures on wire data.
	Network
	// NotFound covers missing runtimes, release entries, or command binaries.
	NotFound
	// Conflict covers dirty trees, lock contention, checksum mismatches, and cycles.
	Conflict
	// NotImplemented marks a command stub.
	NotImplemented
	// Cargo covers metadata-provider or registry-tool failures (release tool only).
	Cargo
	// Git covers git command failures (release tool only).
	Git
)

// ExitCode returns the process exit code associated with the Kind, per
// spec.md §7's mapping table. Cargo and Git are only produced by the
// release tool, which maps them to 4 and 3 respectively as spec.md
// specifies.
func (k Kind) ExitCode() int {
	switch k {
	case Internal:
		return 1
	case InvalidInput:
		return 2
	case UnsupportedPlatform:
		return 3
	case Network:
		return 4
	case NotFound:
		return 5
	case Conflict:
		return 6
	case NotImplemented:
		return 7
	case Cargo:
		return 4
	case Git:
		return 3
	default:
		return 1
	}
}

func (k Kind) String() string {
	switch k {
	case Internal:
		return "internal"
	case InvalidInput:
		return "invalid-input"
	case UnsupportedPlatform:
		return "unsupported-platform"
	case Network:
		return "network"
	case NotFound:
		return "not-found"
	case Conflict:
		return "conflict"
	case NotImplemented:
		return "not-implemented"
	case Cargo:
		return "cargo"
	case Git:
		return "git"
	default:
		return "unknown"
	}
}

// Error is a Kind-tagged error with an optional wrapped cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a Kind-tagged error from a format string.
func New(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an existing error, preserving it as the cause.
func Wrap(k Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// Wrapf is like Wrap, but first attaches a pkg/errors stack trace to the
// cause.
func Wrapf(k Kind, cause error, format string, args ...interface{}) *Error {
	return Wrap(k, pkgerrors.WithStack(cause), format, args...)
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise it returns Internal, since an un-tagged error is always
// an unexpected condition.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err (or a cause in its chain) carries the given Kind.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}
