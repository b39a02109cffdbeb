//go:build windows

package dispatcher

import "os/exec"

// terminatingSignal is always absent on windows, which has no POSIX
// signal-based termination for child processes.
func terminatingSignal(exitErr *exec.ExitError) (string, bool) {
	return "", false
}
