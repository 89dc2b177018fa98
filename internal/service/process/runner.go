package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"

	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
	"github.com/oshokin/batect-launcher/internal/logger"
)

// Invocation is a fully resolved application command.
type Invocation struct {
	// Path is the absolute path of the executable.
	Path string
	// Args are the arguments after argv[0].
	Args []string
	// Env is the complete environment of the application.
	Env []string
}

// Runner starts an invocation and reports the exit code the launcher should exit with.
type Runner interface {
	Run(ctx context.Context, invocation Invocation) (int, error)
}

// Default returns the runner for this platform. forceSpawn selects SpawnRunner even where
// the launcher could replace itself.
func Default(forceSpawn bool) Runner {
	if forceSpawn || !replaceSupported {
		return &SpawnRunner{}
	}

	return &ReplaceRunner{}
}

// SpawnRunner runs the application as a child process with the launcher's standard streams.
type SpawnRunner struct {
	// Stdin overrides the child's standard input; nil inherits the launcher's.
	Stdin io.Reader
	// Stdout overrides the child's standard output; nil inherits the launcher's.
	Stdout io.Writer
	// Stderr overrides the child's standard error; nil inherits the launcher's.
	Stderr io.Writer
}

// Run implements Runner. The child's exit code is returned with a nil error;
// an error means the child could not be started.
func (r *SpawnRunner) Run(ctx context.Context, invocation Invocation) (int, error) {
	cmd := exec.Command(invocation.Path, invocation.Args...) //nolint:gosec,noctx // The child outlives cancellation and receives forwarded signals instead.
	cmd.Env = invocation.Env
	cmd.Stdin = orDefault[io.Reader](r.Stdin, os.Stdin)
	cmd.Stdout = orDefault[io.Writer](r.Stdout, os.Stdout)
	cmd.Stderr = orDefault[io.Writer](r.Stderr, os.Stderr)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, forwardedSignals...)

	defer signal.Stop(signals)

	if err := cmd.Start(); err != nil {
		return bootstrap.ExitFailure, fmt.Errorf("start %s: %w", invocation.Path, err)
	}

	logger.DebugKV(ctx, "Started application", "pid", cmd.Process.Pid, "path", invocation.Path)

	done := make(chan struct{})
	defer close(done)

	go forward(ctx, cmd.Process, signals, done)

	err := cmd.Wait()
	if err == nil {
		return bootstrap.ExitOK, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return bootstrap.ExitFailure, fmt.Errorf("wait for %s: %w", invocation.Path, err)
	}

	return exitCode(exitErr.ProcessState), nil
}

// forward relays signals received by the launcher to the child until done is closed.
func forward(ctx context.Context, child *os.Process, signals <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case sig := <-signals:
			if !canForward {
				continue
			}

			if err := child.Signal(sig); err != nil {
				logger.DebugKV(ctx, "Unable to forward signal", "signal", sig, "error", err)
			}
		case <-done:
			return
		}
	}
}

// orDefault returns value unless it is nil.
func orDefault[T comparable](value, fallback T) T {
	var zero T
	if value == zero {
		return fallback
	}

	return value
}
