// Package logging wraps logrus the way golang-dep's log package wrapped an
// io.Writer: a thin struct around the real thing plus a constructor, just
// upgraded to a structured, leveled logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the ambient logger threaded through the manager and release
// tool. It embeds *logrus.Logger so callers can use the full logrus API
// (WithField, WithError, ...) while New centralizes the one true
// construction path.
type Logger struct {
	*logrus.Logger
}

// New returns a Logger writing human-readable (non-JSON) lines to w, at the
// given level. cmd/nodeup constructs one at startup (via Default) and passes
// it down; nothing in internal/ constructs its own.
func New(w io.Writer, level logrus.Level) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: false,
		FullTimestamp:    true,
	})
	return &Logger{Logger: l}
}

// Default returns a Logger at Info level writing to stderr, for contexts
// (tests, small helper commands) that don't need a custom sink.
func Default() *Logger {
	return New(os.Stderr, logrus.InfoLevel)
}

// Nop returns a Logger that discards everything, for tests that don't want
// log noise but still need to pass a *Logger through a constructor.
func Nop() *Logger {
	l := New(io.Discard, logrus.InfoLevel)
	l.SetOutput(io.Discard)
	return l
}
