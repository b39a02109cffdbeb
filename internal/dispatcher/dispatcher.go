// Package dispatcher implements shim routing (spec.md §4.H): when invoked
// as node/npm/npx, resolve the active runtime for the working directory,
// install it if missing, and exec the real binary with the caller's argv
// and exit status.
package dispatcher

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/nodeup-rs/nodeup/internal/errs"
	"github.com/nodeup-rs/nodeup/internal/fsutil"
	"github.com/nodeup-rs/nodeup/internal/installer"
	"github.com/nodeup-rs/nodeup/internal/resolver"
	"github.com/nodeup-rs/nodeup/internal/store"
)

var shimNames = map[string]bool{
	"node": true,
	"npm":  true,
	"npx":  true,
}

// ShimCommand returns the basename of argv0 if it names a shim dispatch
// target, and ok=false otherwise, so the CLI can fall through to normal
// cobra parsing.
func ShimCommand(argv0 string) (string, bool) {
	name := filepath.Base(argv0)
	return name, shimNames[name]
}

// Outcome records the dispatched child's terminal state.
type Outcome struct {
	ExitCode int
	Signal   string // non-empty if the child was terminated by a signal
}

// Dispatch resolves the active runtime for cwd, installing it on demand,
// then execs cmd with args, forwarding stdio and exit status.
func Dispatch(ctx context.Context, res *resolver.Resolver, st *store.Store, in *installer.Installer, cwd, cmd string, args []string) (*Outcome, error) {
	resolved, err := res.ResolveWithPrecedence(ctx, nil, cwd)
	if err != nil {
		return nil, err
	}

	if resolved.Kind == resolver.TargetVersion {
		installed, err := st.IsInstalled(resolved.Version)
		if err != nil {
			return nil, err
		}
		if !installed {
			if _, err := in.EnsureInstalled(ctx, resolved.Version); err != nil {
				return nil, err
			}
		}
	}

	execPath := resolved.ExecutablePath(st, cmd)
	if ok, err := fsutil.IsRegular(execPath); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "checking %s", execPath)
	} else if !ok {
		return nil, errs.New(errs.NotFound, "%s does not provide command %q", resolved.RuntimeID(), cmd)
	}

	child := exec.CommandContext(ctx, execPath, args...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr

	runErr := child.Run()
	if runErr == nil {
		return &Outcome{ExitCode: 0}, nil
	}

	exitErr, ok := runErr.(*exec.ExitError)
	if !ok {
		return nil, errs.Wrap(errs.Internal, runErr, "spawning %s", execPath)
	}

	if sig, ok := terminatingSignal(exitErr); ok {
		return &Outcome{ExitCode: 1, Signal: sig}, nil
	}
	return &Outcome{ExitCode: exitErr.ExitCode()}, nil
}
