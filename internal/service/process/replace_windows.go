//go:build windows

package process

import (
	"context"
	"os"
)

// replaceSupported reports whether the launcher can replace its own process image.
const replaceSupported = false

// canForward reports whether signals can be delivered to a child process.
// The console already delivers Ctrl+C to the child, so the launcher only swallows it.
const canForward = false

// forwardedSignals are caught while a child runs.
var forwardedSignals = []os.Signal{os.Interrupt}

// ReplaceRunner falls back to spawning: Windows cannot replace a process image.
type ReplaceRunner struct{}

// Run implements Runner.
func (r *ReplaceRunner) Run(ctx context.Context, invocation Invocation) (int, error) {
	return (&SpawnRunner{}).Run(ctx, invocation)
}

// exitCode returns the exit code of a finished child.
func exitCode(state *os.ProcessState) int {
	return state.ExitCode()
}
