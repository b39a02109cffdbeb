// Package render implements the --output human|json switch shared by
// both CLI surfaces: every command produces one Go value, and this
// package is the only place that decides how it reaches the terminal.
package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/nodeup-rs/nodeup/internal/errs"
)

// Mode selects the rendering format.
type Mode string

const (
	Human Mode = "human"
	JSON  Mode = "json"
)

// ParseMode validates the --output flag value.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Human, JSON:
		return Mode(s), nil
	default:
		return "", errs.New(errs.InvalidInput, "%q is not a valid output mode (want human or json)", s)
	}
}

// Value emits v to w as a human-readable line (via humanize) or a JSON
// envelope, depending on mode.
func Value(w io.Writer, mode Mode, v interface{}, humanize func(interface{}) string) {
	if mode == JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(v)
		return
	}
	fmt.Fprintln(w, humanize(v))
}

// Error emits err to w as a single line (or a JSON envelope), per
// spec.md §7.
func Error(w io.Writer, mode Mode, err error) {
	kind := errs.KindOf(err)
	if mode == JSON {
		enc := json.NewEncoder(w)
		_ = enc.Encode(map[string]interface{}{
			"error": err.Error(),
			"kind":  kind.String(),
		})
		return
	}
	fmt.Fprintf(w, "error: %s\n", err.Error())
}
