//go:build !windows

package process

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
	"github.com/oshokin/batect-launcher/internal/logger"
)

// replaceSupported reports whether the launcher can replace its own process image.
const replaceSupported = true

// canForward reports whether signals can be delivered to a child process.
const canForward = true

// forwardedSignals are relayed to a spawned child.
var forwardedSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT}

// ReplaceRunner replaces the launcher with the application, so the application
// inherits the process ID, the terminal and the parent's signal handling.
type ReplaceRunner struct {
	// exec replaces the process image; tests substitute it.
	exec func(argv0 string, argv, envv []string) error
}

// Run implements Runner. It only returns when the replacement failed.
func (r *ReplaceRunner) Run(ctx context.Context, invocation Invocation) (int, error) {
	execFunction := r.exec
	if execFunction == nil {
		execFunction = unix.Exec
	}

	argv := append([]string{invocation.Path}, invocation.Args...)

	logger.DebugKV(ctx, "Replacing launcher with application", "path", invocation.Path)

	if err := execFunction(invocation.Path, argv, invocation.Env); err != nil {
		return bootstrap.ExitFailure, fmt.Errorf("exec %s: %w", invocation.Path, err)
	}

	return bootstrap.ExitOK, nil
}

// exitCode maps a finished child to the launcher's exit code, using the shell
// convention 128+signal for children killed by a signal.
func exitCode(state *os.ProcessState) int {
	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return signalExitBase + int(status.Signal())
	}

	return state.ExitCode()
}

// signalExitBase is added to the signal number of a killed child.
const signalExitBase = 128
