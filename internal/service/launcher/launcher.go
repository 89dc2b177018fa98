package launcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/batect-launcher/internal/checksum"
	"github.com/oshokin/batect-launcher/internal/config"
	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
	"github.com/oshokin/batect-launcher/internal/logger"
	"github.com/oshokin/batect-launcher/internal/repository/cache"
	"github.com/oshokin/batect-launcher/internal/service/common"
	"github.com/oshokin/batect-launcher/internal/service/fetcher"
	"github.com/oshokin/batect-launcher/internal/service/jvm"
	"github.com/oshokin/batect-launcher/internal/service/process"
)

// stage names a step of an invocation in logs.
type stage string

const (
	stageResolveVersion stage = "resolve-version"
	stageCheckCache     stage = "check-cache"
	stageFetch          stage = "fetch"
	stagePublish        stage = "publish"
	stageResolveRuntime stage = "resolve-runtime"
	stageBuildContext   stage = "build-context"
	stageExec           stage = "exec"
)

// Cache is the part of the artifact cache an invocation needs.
type Cache interface {
	Root() string
	Lookup(versionID bootstrap.VersionID) (bootstrap.CacheEntry, bool)
	Publish(ctx context.Context, versionID bootstrap.VersionID, tempPath string, meta *cache.Metadata) (bootstrap.CacheEntry, error)
	Verify(entry bootstrap.CacheEntry, expected checksum.Digest) error
	Touch(versionID bootstrap.VersionID, at time.Time) error
}

// Fetcher downloads and verifies an artifact into a private temporary file.
type Fetcher interface {
	Fetch(ctx context.Context, spec bootstrap.DownloadSpec) (*fetcher.Download, error)
}

// RuntimeLocator finds a compatible Java runtime.
type RuntimeLocator interface {
	Resolve(ctx context.Context) (bootstrap.RuntimeCandidate, error)
}

// Launcher runs invocations for one configuration.
type Launcher struct {
	// cfg is the resolved configuration.
	cfg *config.Config
	// cache stores artifacts.
	cache Cache
	// fetcher downloads on a cache miss.
	fetcher Fetcher
	// locator finds the runtime.
	locator RuntimeLocator
	// runner hands over control.
	runner process.Runner
	// scriptDir is the directory of the launcher executable.
	scriptDir string
	// hostname is exported to the application.
	hostname string
	// now is the clock used for cache bookkeeping.
	now func() time.Time
}

// Option customizes a Launcher.
type Option func(*Launcher)

// WithCache replaces the artifact cache.
func WithCache(c Cache) Option {
	return func(l *Launcher) {
		l.cache = c
	}
}

// WithFetcher replaces the downloader.
func WithFetcher(f Fetcher) Option {
	return func(l *Launcher) {
		l.fetcher = f
	}
}

// WithLocator replaces the runtime locator.
func WithLocator(locator RuntimeLocator) Option {
	return func(l *Launcher) {
		l.locator = locator
	}
}

// WithRunner replaces the process hand-off.
func WithRunner(runner process.Runner) Option {
	return func(l *Launcher) {
		l.runner = runner
	}
}

// WithScriptDir sets the directory reported as the launcher's location.
func WithScriptDir(dir string) Option {
	return func(l *Launcher) {
		l.scriptDir = dir
	}
}

// WithHostname sets the hostname exported to the application.
func WithHostname(hostname string) Option {
	return func(l *Launcher) {
		l.hostname = hostname
	}
}

// WithClock replaces the clock.
func WithClock(now func() time.Time) Option {
	return func(l *Launcher) {
		l.now = now
	}
}

// New creates a Launcher. Components not provided through options are built from cfg.
func New(ctx context.Context, cfg *config.Config, options ...Option) *Launcher {
	l := &Launcher{
		cfg: cfg,
		now: time.Now,
	}

	for _, option := range options {
		option(l)
	}

	if l.cache == nil {
		l.cache = cache.NewFileStore(cfg.CacheDir)
	}

	if l.fetcher == nil {
		l.fetcher = newFetcher(cfg)
	}

	if l.locator == nil {
		l.locator = jvm.NewLocator(cfg.JavaHome, cfg.SearchPath, cfg.PathExt, &jvm.CommandProber{Env: cfg.Environ})
	}

	if l.runner == nil {
		l.runner = process.Default(cfg.ForceSpawn)
	}

	if l.scriptDir == "" {
		l.scriptDir = detectScriptDir(ctx)
	}

	if l.hostname == "" {
		hostname, err := common.DetectHostname()
		if err != nil {
			logger.WarnKV(ctx, "Unable to detect hostname", "error", err)
		}

		l.hostname = hostname
	}

	return l
}

// newFetcher builds the downloader for the configured transport.
func newFetcher(cfg *config.Config) *fetcher.Fetcher {
	reporter := fetcher.NewReporter(os.Stderr, cfg.QuietDownload)

	var transport fetcher.Transport
	if cfg.DownloadTool == config.DownloadToolCurl {
		transport = fetcher.NewCurlTransport(cfg.SearchPath, cfg.PathExt, cfg.DownloadTimeout, reporter)
	} else {
		transport = fetcher.NewHTTPTransport(cfg.DownloadTimeout, reporter)
	}

	return fetcher.New(cache.NewFileStore(cfg.CacheDir), transport, reporter)
}

// detectScriptDir returns the directory of the running executable without a trailing separator.
func detectScriptDir(ctx context.Context) string {
	executable, err := os.Executable()
	if err != nil {
		logger.WarnKV(ctx, "Unable to locate the launcher executable", "error", err)

		return ""
	}

	return filepath.Dir(executable)
}

// Run executes one invocation with the forwarded arguments. On success the
// returned code is the application's exit code; on failure it is the reserved
// code of the returned error.
func (l *Launcher) Run(ctx context.Context, args []string) (int, error) {
	ctx = logger.WithName(ctx, "launcher")

	code, err := l.run(ctx, args)
	if err != nil {
		return bootstrap.ExitCode(err), err
	}

	return code, nil
}

// run walks the invocation stages.
func (l *Launcher) run(ctx context.Context, args []string) (int, error) {
	versionID := l.cfg.Version
	ctx = logger.WithKV(ctx, "version", versionID)

	logger.DebugKV(ctx, "Entering stage", "stage", stageResolveVersion, "url", l.cfg.DownloadURL)

	entry, didDownload, err := l.ensureArtifact(ctx, versionID)
	if err != nil {
		return 0, err
	}

	logger.DebugKV(ctx, "Entering stage", "stage", stageResolveRuntime)

	candidate, err := l.locator.Resolve(ctx)
	if err != nil {
		return 0, err
	}

	if err = l.cache.Touch(versionID, l.now()); err != nil {
		logger.WarnKV(ctx, "Unable to record when the cached version was last used", "error", err)
	}

	logger.DebugKV(ctx, "Entering stage", "stage", stageBuildContext)

	launchContext := bootstrap.LaunchContext{
		ScriptDir:          l.scriptDir,
		CacheDir:           l.cache.Root(),
		DidDownload:        didDownload,
		ForwardedArgs:      append([]string(nil), args...),
		Hostname:           l.hostname,
		ExtraJVMOptions:    l.cfg.JavaToolOptions,
		HasExtraJVMOptions: l.cfg.HasJavaToolOptions,
	}

	invocation := BuildInvocation(candidate, entry, launchContext, l.cfg.Environ)

	logger.DebugKV(ctx, "Entering stage", "stage", stageExec,
		"java", invocation.Path, "args", invocation.Args)

	return l.runner.Run(ctx, invocation)
}

// ensureArtifact returns the cached artifact, downloading and publishing it on a miss.
func (l *Launcher) ensureArtifact(ctx context.Context, versionID bootstrap.VersionID) (bootstrap.CacheEntry, bool, error) {
	logger.DebugKV(ctx, "Entering stage", "stage", stageCheckCache, "cache", l.cache.Root())

	if entry, ok := l.cache.Lookup(versionID); ok {
		if err := l.verifyCached(ctx, entry); err != nil {
			return bootstrap.CacheEntry{}, false, err
		}

		return entry, false, nil
	}

	logger.DebugKV(ctx, "Entering stage", "stage", stageFetch)

	download, err := l.fetcher.Fetch(ctx, bootstrap.DownloadSpec{
		SourceURL:        l.cfg.DownloadURL,
		ExpectedChecksum: l.cfg.Checksum,
		VersionID:        versionID,
	})
	if err != nil {
		return bootstrap.CacheEntry{}, false, err
	}

	logger.DebugKV(ctx, "Entering stage", "stage", stagePublish, "temp", download.TempPath)

	entry, err := l.cache.Publish(ctx, versionID, download.TempPath, &cache.Metadata{
		Checksum:     download.Checksum,
		SourceURL:    l.cfg.DownloadURL,
		DownloadedAt: l.now().UTC(),
	})
	if err != nil {
		return bootstrap.CacheEntry{}, false, err
	}

	return entry, true, nil
}

// verifyCached re-checks a cached artifact when forced verification is enabled.
func (l *Launcher) verifyCached(ctx context.Context, entry bootstrap.CacheEntry) error {
	if !l.cfg.VerifyCache {
		return nil
	}

	if l.cfg.Checksum == "" {
		logger.DebugKV(ctx, "No checksum configured, skipping cache verification", "path", entry.ArtifactPath)

		return nil
	}

	expected, err := checksum.Parse(l.cfg.Checksum)
	if err != nil {
		return fmt.Errorf("expected checksum: %w", err)
	}

	return l.cache.Verify(entry, expected)
}
