package jvm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
	"github.com/oshokin/batect-launcher/internal/service/common"
)

// fakeProber answers probes from a table keyed by executable path.
type fakeProber map[string]string

// Probe implements Prober.
func (p fakeProber) Probe(_ context.Context, executable string) (string, error) {
	output, ok := p[executable]
	if !ok {
		return "", errors.New("unexpected probe of " + executable)
	}

	return output, nil
}

// installJava creates <dir>/bin/java[.exe] and returns the installation and executable paths.
func installJava(t *testing.T) (string, string) {
	t.Helper()

	home := t.TempDir()
	bin := filepath.Join(home, "bin")
	require.NoError(t, os.MkdirAll(bin, 0o755))

	executable := filepath.Join(bin, common.ExecutableName("java"))
	require.NoError(t, os.WriteFile(executable, []byte("#!/bin/sh\n"), 0o755))

	return home, executable
}

// searchPath joins installation bin directories into a PATH value.
func searchPath(homes ...string) string {
	dirs := make([]string, 0, len(homes))
	for _, home := range homes {
		dirs = append(dirs, filepath.Join(home, "bin"))
	}

	return strings.Join(dirs, string(os.PathListSeparator))
}

// TestResolve_OverrideTakesPrecedence picks JAVA_HOME over a runtime on PATH.
func TestResolve_OverrideTakesPrecedence(t *testing.T) {
	t.Parallel()

	overrideHome, overrideJava := installJava(t)
	pathHome, pathJava := installJava(t)

	locator := NewLocator(overrideHome, searchPath(pathHome), "", fakeProber{
		overrideJava: java11Output,
		pathJava:     java8Output,
	})

	candidate, err := locator.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, overrideJava, candidate.ExecutablePath)
	require.Equal(t, bootstrap.OriginOverride, candidate.Origin)
	require.Equal(t, 11, candidate.Major)
}

// TestResolve_OverrideWithoutExecutable never falls back to PATH.
func TestResolve_OverrideWithoutExecutable(t *testing.T) {
	t.Parallel()

	pathHome, pathJava := installJava(t)
	overrideHome := t.TempDir()

	locator := NewLocator(overrideHome, searchPath(pathHome), "", fakeProber{pathJava: java11Output})

	_, err := locator.Resolve(context.Background())

	var notFound *bootstrap.RuntimeNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, bootstrap.OriginOverride, notFound.Origin)
	require.Equal(t, overrideHome, notFound.OverrideValue)
	require.Equal(t, filepath.Join(overrideHome, "bin", common.ExecutableName("java")), notFound.ExpectedPath)
	require.Contains(t, err.Error(), "JAVA_HOME is set to '"+overrideHome+"'")
	require.Equal(t, bootstrap.ExitRuntimeUnavailable, bootstrap.ExitCode(err))
}

// TestResolve_OverridePlaceholder treats a stub under JAVA_HOME as missing.
func TestResolve_OverridePlaceholder(t *testing.T) {
	t.Parallel()

	overrideHome, overrideJava := installJava(t)

	locator := NewLocator(overrideHome, "", "", fakeProber{overrideJava: placeholderOutput})

	_, err := locator.Resolve(context.Background())

	var notFound *bootstrap.RuntimeNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, bootstrap.OriginOverride, notFound.Origin)
}

// TestResolve_SkipsPlaceholderOnPath moves on to later PATH entries.
func TestResolve_SkipsPlaceholderOnPath(t *testing.T) {
	t.Parallel()

	stubHome, stubJava := installJava(t)
	realHome, realJava := installJava(t)

	locator := NewLocator("", searchPath(stubHome, realHome), "", fakeProber{
		stubJava: placeholderOutput,
		realJava: java8Output,
	})

	candidate, err := locator.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, realJava, candidate.ExecutablePath)
	require.Equal(t, bootstrap.OriginSearchPath, candidate.Origin)
	require.Equal(t, "1.8", candidate.RawVersion)
}

// TestResolve_NothingFound names PATH in the diagnostic.
func TestResolve_NothingFound(t *testing.T) {
	t.Parallel()

	stubHome, stubJava := installJava(t)

	for _, path := range []string{"", t.TempDir(), searchPath(stubHome)} {
		locator := NewLocator("", path, "", fakeProber{stubJava: placeholderOutput})

		_, err := locator.Resolve(context.Background())
		require.EqualError(t, err, "Java is not installed or not on your PATH. Please install it and try again.")
		require.Equal(t, bootstrap.ExitRuntimeUnavailable, bootstrap.ExitCode(err))
	}
}

// TestResolve_VersionGating accepts Java 8 and later only.
func TestResolve_VersionGating(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		output  string
		wantErr bool
	}{
		"java 7":  {strings.Replace(java7Output32, "Client VM", "64-Bit Server VM", 1), true},
		"java 8":  {java8Output, false},
		"java 11": {java11Output, false},
		"java 17": {java17Output, false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			home, java := installJava(t)
			locator := NewLocator("", searchPath(home), "", fakeProber{java: tc.output})

			_, err := locator.Resolve(context.Background())
			if !tc.wantErr {
				require.NoError(t, err)

				return
			}

			var incompatible *bootstrap.RuntimeIncompatibleError
			require.ErrorAs(t, err, &incompatible)
			require.Contains(t, err.Error(), "is version 1.7, but version 1.8 or greater is required")
			require.Equal(t, bootstrap.ExitRuntimeUnavailable, bootstrap.ExitCode(err))
		})
	}
}

// TestResolve_OverrideTooOld mentions that JAVA_HOME takes precedence.
func TestResolve_OverrideTooOld(t *testing.T) {
	t.Parallel()

	home, java := installJava(t)
	locator := NewLocator(home, "", "", fakeProber{java: strings.Replace(java7Output32, "Client VM", "64-Bit Server VM", 1)})

	_, err := locator.Resolve(context.Background())
	require.ErrorContains(t, err, "available in JAVA_HOME is version 1.7")
	require.ErrorContains(t, err, "JAVA_HOME takes precedence over any versions of Java available on your PATH.")
}

// TestResolve_32Bit rejects runtimes that are not 64-bit.
func TestResolve_32Bit(t *testing.T) {
	t.Parallel()

	home, java := installJava(t)
	locator := NewLocator("", searchPath(home), "", fakeProber{
		java: strings.Replace(java8Output, "64-Bit Server VM", "Client VM", 1),
	})

	_, err := locator.Resolve(context.Background())

	var bitness *bootstrap.RuntimeBitnessError
	require.ErrorAs(t, err, &bitness)
	require.Equal(t, bootstrap.Bitness32, bitness.Bitness)
	require.Contains(t, err.Error(), "is a 32-bit version")
}

// TestResolve_ProbeFailure surfaces runtimes that cannot report a version.
func TestResolve_ProbeFailure(t *testing.T) {
	t.Parallel()

	home, java := installJava(t)
	locator := NewLocator("", searchPath(home), "", fakeProber{java: "Error: could not find libjava.so"})

	_, err := locator.Resolve(context.Background())
	require.ErrorIs(t, err, errUnrecognizedVersion)
	require.Equal(t, bootstrap.ExitFailure, bootstrap.ExitCode(err))
}

// TestCommandProber merges stderr into the probe output.
func TestCommandProber(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("fake java is a shell script")
	}

	dir := t.TempDir()
	executable := filepath.Join(dir, "java")
	script := "#!/bin/sh\ncat >&2 <<'EOF'\n" + java11Output + "\nEOF\n"
	require.NoError(t, os.WriteFile(executable, []byte(script), 0o755))

	output, err := (&CommandProber{}).Probe(context.Background(), executable)
	require.NoError(t, err)

	descriptor, err := ParseProbeOutput(output)
	require.NoError(t, err)
	require.Equal(t, 11, descriptor.Major)
	require.Equal(t, bootstrap.Bitness64, descriptor.Bitness)
}
