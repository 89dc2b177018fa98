package launcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/batect-launcher/internal/config"
	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
	"github.com/oshokin/batect-launcher/internal/repository/cache"
	"github.com/oshokin/batect-launcher/internal/service/fetcher"
	"github.com/oshokin/batect-launcher/internal/service/process"
)

// artifactContents is what the fake fetcher downloads.
var artifactContents = []byte("fake batect jar")

// artifactDigest is the sha256 of artifactContents.
func artifactDigest() string {
	sum := sha256.Sum256(artifactContents)

	return hex.EncodeToString(sum[:])
}

// countingFetcher writes the artifact into a cache temp file and counts calls.
type countingFetcher struct {
	store *cache.FileStore
	err   error

	mu    sync.Mutex
	calls int
}

// Fetch implements Fetcher.
func (f *countingFetcher) Fetch(_ context.Context, spec bootstrap.DownloadSpec) (*fetcher.Download, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	file, err := f.store.TempFile(spec.VersionID)
	if err != nil {
		return nil, err
	}

	if _, err = file.Write(artifactContents); err != nil {
		return nil, err
	}

	if err = file.Close(); err != nil {
		return nil, err
	}

	return &fetcher.Download{TempPath: file.Name(), Checksum: "sha256:" + artifactDigest(), Size: int64(len(artifactContents))}, nil
}

// Calls returns how many downloads were requested.
func (f *countingFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

// staticLocator returns a fixed runtime or error.
type staticLocator struct {
	candidate bootstrap.RuntimeCandidate
	err       error
	calls     int
}

// Resolve implements RuntimeLocator.
func (l *staticLocator) Resolve(context.Context) (bootstrap.RuntimeCandidate, error) {
	l.calls++

	return l.candidate, l.err
}

// recordingRunner captures invocations instead of starting them.
type recordingRunner struct {
	exitCode    int
	invocations []process.Invocation
}

// Run implements process.Runner.
func (r *recordingRunner) Run(_ context.Context, invocation process.Invocation) (int, error) {
	r.invocations = append(r.invocations, invocation)

	return r.exitCode, nil
}

// last returns the most recent invocation.
func (r *recordingRunner) last(t *testing.T) process.Invocation {
	t.Helper()
	require.NotEmpty(t, r.invocations)

	return r.invocations[len(r.invocations)-1]
}

// java11 is a runtime that needs module access flags.
var java11 = bootstrap.RuntimeCandidate{
	ExecutablePath: "/opt/java/bin/java",
	RawVersion:     "11.0",
	Major:          11,
	Bitness:        bootstrap.Bitness64,
}

// fixture wires a launcher with fakes around a real cache.
type fixture struct {
	cfg     *config.Config
	store   *cache.FileStore
	fetcher *countingFetcher
	locator *staticLocator
	runner  *recordingRunner
}

// newFixture builds a launcher environment rooted in a temporary cache.
func newFixture(t *testing.T, extraEnv ...string) *fixture {
	t.Helper()

	home := t.TempDir()
	environ := append([]string{
		"HOME=" + home,
		"USERPROFILE=" + home,
		"PATH=/usr/bin",
		config.EnvCacheDir + "=" + filepath.Join(home, "cache"),
		config.EnvVersion + "=0.79.1",
		config.EnvDownloadURL + "=http://localhost/batect-0.79.1.jar",
		config.EnvDownloadChecksum + "=" + artifactDigest(),
	}, extraEnv...)

	cfg, err := config.Load(environ)
	require.NoError(t, err)

	store := cache.NewFileStore(cfg.CacheDir)

	return &fixture{
		cfg:     cfg,
		store:   store,
		fetcher: &countingFetcher{store: store},
		locator: &staticLocator{candidate: java11},
		runner:  &recordingRunner{},
	}
}

// launcher builds a Launcher over the fixture's fakes.
func (f *fixture) launcher() *Launcher {
	return New(context.Background(), f.cfg,
		WithCache(f.store),
		WithFetcher(f.fetcher),
		WithLocator(f.locator),
		WithRunner(f.runner),
		WithScriptDir("/opt/batect"),
		WithHostname("build-agent-1"),
		WithClock(func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }),
	)
}

// envValue returns the value of name in env and whether it is present.
func envValue(env []string, name string) (string, bool) {
	for _, entry := range slices.Backward(env) {
		if variableName(entry) == name {
			return entry[len(name)+1:], true
		}
	}

	return "", false
}

// TestRun_WarmCacheIsIdempotent downloads once and reuses the cache afterwards.
func TestRun_WarmCacheIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	launcher := f.launcher()

	code, err := launcher.Run(context.Background(), []string{"arg 1", "arg 2"})
	require.NoError(t, err)
	require.Equal(t, 0, code)
	require.Equal(t, 1, f.fetcher.Calls())

	first := f.runner.last(t)
	didDownload, _ := envValue(first.Env, EnvWrapperDidDownload)
	require.Equal(t, "true", didDownload)

	code, err = launcher.Run(context.Background(), []string{"arg 3", "arg 4"})
	require.NoError(t, err)
	require.Equal(t, 0, code)
	require.Equal(t, 1, f.fetcher.Calls(), "a warm cache must not download again")

	second := f.runner.last(t)
	didDownload, _ = envValue(second.Env, EnvWrapperDidDownload)
	require.Equal(t, "false", didDownload)

	require.Equal(t, []string{"arg 3", "arg 4"}, second.Args[len(second.Args)-2:])

	entry, ok := f.store.Entry("0.79.1")
	require.True(t, ok)
	require.NotNil(t, entry.LastUsed)
	require.NotNil(t, entry.Metadata)
	require.Equal(t, "sha256:"+artifactDigest(), entry.Metadata.Checksum)
	require.Equal(t, "http://localhost/batect-0.79.1.jar", entry.Metadata.SourceURL)
}

// TestRun_Invocation builds the documented command line and environment.
func TestRun_Invocation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "HOSTNAME=stale", "BATECT_WRAPPER_DID_DOWNLOAD=stale", "CUSTOM=kept")

	_, err := f.launcher().Run(context.Background(), []string{"--config-file", "my batect.yml", "build"})
	require.NoError(t, err)

	invocation := f.runner.last(t)
	require.Equal(t, "/opt/java/bin/java", invocation.Path)

	wantArgs := []string{
		"-Djava.net.useSystemProxies=true",
		"--add-opens", "java.base/sun.nio.ch=ALL-UNNAMED",
		"--add-opens", "java.base/java.io=ALL-UNNAMED",
		"-jar", f.store.ArtifactPath("0.79.1"),
		"--config-file", "my batect.yml", "build",
	}
	if diff := cmp.Diff(wantArgs, invocation.Args); diff != "" {
		t.Fatalf("unexpected arguments (-want +got):\n%s", diff)
	}

	wantEnv := map[string]string{
		EnvWrapperScriptDir:   "/opt/batect",
		EnvWrapperCacheDir:    f.cfg.CacheDir,
		EnvWrapperDidDownload: "true",
		EnvHostname:           "build-agent-1",
		"CUSTOM":              "kept",
	}
	for name, want := range wantEnv {
		got, ok := envValue(invocation.Env, name)
		require.True(t, ok, name)
		require.Equal(t, want, got, name)
	}

	for _, entry := range invocation.Env {
		require.NotEqual(t, "HOSTNAME=stale", entry)
		require.NotEqual(t, "BATECT_WRAPPER_DID_DOWNLOAD=stale", entry)
	}

	_, ok := envValue(invocation.Env, config.EnvJavaToolOptions)
	require.False(t, ok, "JAVA_TOOL_OPTIONS must not be invented")
}

// TestBuildEnvironment_DropsInheritedWrapperVariables keeps a nested invocation from seeing stale launcher state.
func TestBuildEnvironment_DropsInheritedWrapperVariables(t *testing.T) {
	t.Parallel()

	parent := []string{
		"PATH=/usr/bin",
		"BATECT_WRAPPER_LEFTOVER=1",
		"BATECT_WRAPPER_SCRIPT_DIR=/old/batect",
		"BATECT_WRAPPER_CACHE_DIR=/old/cache",
		"BATECT_CACHE_DIR=/kept/cache",
	}

	env := BuildEnvironment(parent, bootstrap.LaunchContext{
		ScriptDir: "/opt/batect",
		CacheDir:  "/home/user/.batect/cache",
	})

	want := []string{
		"PATH=/usr/bin",
		"BATECT_CACHE_DIR=/kept/cache",
		EnvWrapperScriptDir + "=/opt/batect",
		EnvWrapperCacheDir + "=/home/user/.batect/cache",
		EnvWrapperDidDownload + "=false",
	}
	if diff := cmp.Diff(want, env); diff != "" {
		t.Fatalf("unexpected environment (-want +got):\n%s", diff)
	}
}

// TestRun_Java8HasNoAddOpens leaves module flags out for runtimes without a module system.
func TestRun_Java8HasNoAddOpens(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.locator.candidate = bootstrap.RuntimeCandidate{
		ExecutablePath: "/usr/bin/java",
		RawVersion:     "1.8",
		Major:          8,
		Bitness:        bootstrap.Bitness64,
	}

	_, err := f.launcher().Run(context.Background(), nil)
	require.NoError(t, err)

	want := []string{"-Djava.net.useSystemProxies=true", "-jar", f.store.ArtifactPath("0.79.1")}
	if diff := cmp.Diff(want, f.runner.last(t).Args); diff != "" {
		t.Fatalf("unexpected arguments (-want +got):\n%s", diff)
	}
}

// TestRun_JavaToolOptionsPassThrough keeps JAVA_TOOL_OPTIONS when present, even when empty.
func TestRun_JavaToolOptionsPassThrough(t *testing.T) {
	t.Parallel()

	for _, value := range []string{"-XX:+UseG1GC", ""} {
		f := newFixture(t, config.EnvJavaToolOptions+"="+value)

		_, err := f.launcher().Run(context.Background(), nil)
		require.NoError(t, err)

		got, ok := envValue(f.runner.last(t).Env, config.EnvJavaToolOptions)
		require.True(t, ok)
		require.Equal(t, value, got)
	}
}

// TestRun_PropagatesExitCode returns the application's exit code unchanged.
func TestRun_PropagatesExitCode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.runner.exitCode = 123

	code, err := f.launcher().Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 123, code)
}

// TestRun_DownloadFailure stops before resolving a runtime.
func TestRun_DownloadFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fetcher.err = &bootstrap.DownloadError{URL: f.cfg.DownloadURL, Status: "404 Not Found"}

	code, err := f.launcher().Run(context.Background(), nil)
	require.Error(t, err)
	require.Equal(t, bootstrap.ExitDownloadFailed, code)
	require.Zero(t, f.locator.calls)
	require.Empty(t, f.runner.invocations)

	_, ok := f.store.Lookup("0.79.1")
	require.False(t, ok)
}

// TestRun_RuntimeFailure reports runtime problems with their reserved code.
func TestRun_RuntimeFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.locator.err = &bootstrap.RuntimeNotFoundError{Origin: bootstrap.OriginSearchPath}

	code, err := f.launcher().Run(context.Background(), nil)
	require.Error(t, err)
	require.Equal(t, bootstrap.ExitRuntimeUnavailable, code)
	require.Empty(t, f.runner.invocations)

	_, ok := f.store.Lookup("0.79.1")
	require.True(t, ok, "the artifact stays cached for the next attempt")
}

// TestRun_ForcedVerification detects a truncated cached artifact and leaves it in place.
func TestRun_ForcedVerification(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.EnvVerifyCache+"=true")

	_, err := f.launcher().Run(context.Background(), nil)
	require.NoError(t, err)

	artifactPath := f.store.ArtifactPath("0.79.1")
	require.NoError(t, os.Truncate(artifactPath, 4))

	code, err := f.launcher().Run(context.Background(), nil)
	require.Equal(t, bootstrap.ExitChecksumMismatch, code)

	var corrupt *bootstrap.CorruptArtifactError
	require.ErrorAs(t, err, &corrupt)
	require.True(t, corrupt.Cached)
	require.Equal(t, artifactPath, corrupt.Path)
	require.Equal(t, 1, f.fetcher.Calls())
	require.Len(t, f.runner.invocations, 1)

	_, statErr := os.Stat(artifactPath)
	require.NoError(t, statErr)
}

// TestRun_TrustsCacheByDefault does not re-hash cached artifacts without forced verification.
func TestRun_TrustsCacheByDefault(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.launcher().Run(context.Background(), nil)
	require.NoError(t, err)

	require.NoError(t, os.Truncate(f.store.ArtifactPath("0.79.1"), 4))

	code, err := f.launcher().Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, code)
	require.Equal(t, 1, f.fetcher.Calls())
}

// TestRun_WrappedErrorsKeepTheirCode maps wrapped errors to their reserved code.
func TestRun_WrappedErrorsKeepTheirCode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fetcher.err = errors.Join(errors.New("context"), &bootstrap.MissingDependencyError{Tool: "curl"})

	code, err := f.launcher().Run(context.Background(), nil)
	require.Error(t, err)
	require.Equal(t, bootstrap.ExitMissingDependency, code)
}
