//go:build !windows

package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// runReplaceHelper replaces itself with a child helper, which exits with the configured code.
func runReplaceHelper() {
	invocation := helperInvocation(42, "after exec", "second")

	_, err := (&ReplaceRunner{}).Run(context.Background(), invocation)
	if err != nil {
		os.Exit(99)
	}
}

// TestReplaceRunner_ReplacesProcess checks that the replacement keeps arguments and takes over the exit code.
func TestReplaceRunner_ReplacesProcess(t *testing.T) {
	t.Parallel()

	cmd := exec.Command(os.Args[0])
	cmd.Env = append(os.Environ(), helperModeVariable+"=replace")

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	err := cmd.Run()

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 42, exitErr.ExitCode())
	require.Equal(t, []string{"after exec", "second", "echo=hello world"},
		strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n"))
}

// TestReplaceRunner_Failure reports an exec that did not happen.
func TestReplaceRunner_Failure(t *testing.T) {
	t.Parallel()

	var gotArgv []string

	runner := &ReplaceRunner{exec: func(_ string, argv, _ []string) error {
		gotArgv = argv

		return errors.New("permission denied")
	}}

	code, err := runner.Run(context.Background(), Invocation{Path: "/usr/bin/java", Args: []string{"-jar", "a b.jar"}})
	require.ErrorContains(t, err, "permission denied")
	require.Equal(t, 1, code)
	require.Equal(t, []string{"/usr/bin/java", "-jar", "a b.jar"}, gotArgv)
}

// TestSpawnRunner_KilledChild maps death by signal to 128+signal.
func TestSpawnRunner_KilledChild(t *testing.T) {
	t.Parallel()

	code, err := (&SpawnRunner{}).Run(context.Background(), Invocation{
		Path: "/bin/sh",
		Args: []string{"-c", "kill -TERM $$"},
	})
	require.NoError(t, err)
	require.Equal(t, 128+15, code)
}
