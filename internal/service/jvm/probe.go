package jvm

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// probeTimeout bounds a single "java -version" run.
const probeTimeout = 10 * time.Second

// Prober runs "java -version" for an executable and returns its combined output.
type Prober interface {
	Probe(ctx context.Context, executable string) (string, error)
}

// CommandProber runs the executable directly, without a shell.
type CommandProber struct {
	// Env is the environment of the probe; nil inherits the launcher's.
	Env []string
}

// Probe implements Prober. A non-zero exit still returns the output,
// since the placeholder stub reports itself that way.
func (p *CommandProber) Probe(ctx context.Context, executable string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, executable, "-version")
	cmd.Env = p.Env

	output, err := cmd.CombinedOutput()
	if err != nil && len(output) == 0 {
		return "", fmt.Errorf("run %s -version: %w", executable, err)
	}

	return string(output), nil
}
