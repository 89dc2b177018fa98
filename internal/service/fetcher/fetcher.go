package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/oshokin/batect-launcher/internal/checksum"
	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
	"github.com/oshokin/batect-launcher/internal/logger"
)

// errNoTransport is returned when a Fetcher is built without a transport.
var errNoTransport = errors.New("download transport is not set")

// TempFileCreator creates private download files in the cache.
type TempFileCreator interface {
	TempFile(versionID bootstrap.VersionID) (*os.File, error)
}

// Transport copies the resource at sourceURL into the file at destination.
// Failures are reported as *bootstrap.DownloadError or *bootstrap.MissingDependencyError.
type Transport interface {
	Download(ctx context.Context, sourceURL, destination string) error
}

// Download is a completed, verified artifact waiting to be published.
type Download struct {
	// TempPath is the private file holding the artifact.
	TempPath string
	// Checksum is the verified digest in "algorithm:hex" form; empty when verification is disabled.
	Checksum string
	// Size is the downloaded size in bytes.
	Size int64
}

// Fetcher downloads and verifies artifacts.
type Fetcher struct {
	// store creates the download files.
	store TempFileCreator
	// transport performs the transfer.
	transport Transport
	// reporter announces downloads to the user.
	reporter *Reporter
}

// New creates a Fetcher. A nil reporter keeps downloads silent.
func New(store TempFileCreator, transport Transport, reporter *Reporter) *Fetcher {
	if reporter == nil {
		reporter = NewReporter(nil, true)
	}

	return &Fetcher{
		store:     store,
		transport: transport,
		reporter:  reporter,
	}
}

// Fetch downloads the artifact described by spec into a temporary file of its version directory.
func (f *Fetcher) Fetch(ctx context.Context, spec bootstrap.DownloadSpec) (*Download, error) {
	if f.transport == nil {
		return nil, errNoTransport
	}

	ctx = logger.WithKV(ctx, "version", spec.VersionID)

	var (
		expected checksum.Digest
		verify   = spec.ExpectedChecksum != ""
	)

	if verify {
		parsed, err := checksum.Parse(spec.ExpectedChecksum)
		if err != nil {
			return nil, fmt.Errorf("expected checksum: %w", err)
		}

		expected = parsed
	}

	file, err := f.store.TempFile(spec.VersionID)
	if err != nil {
		return nil, err
	}

	tempPath := file.Name()

	if err = file.Close(); err != nil {
		_ = os.Remove(tempPath)

		return nil, &bootstrap.CacheWriteError{Path: tempPath, Err: err}
	}

	f.reporter.Started(spec.VersionID, spec.SourceURL)
	logger.InfoKV(ctx, "Downloading artifact", "url", spec.SourceURL, "destination", tempPath)

	if err = f.transport.Download(ctx, spec.SourceURL, tempPath); err != nil {
		_ = os.Remove(tempPath)

		logger.DebugKV(ctx, "Download failed", "url", spec.SourceURL, "error", err)

		return nil, err
	}

	info, err := os.Stat(tempPath)
	if err != nil {
		_ = os.Remove(tempPath)

		return nil, &bootstrap.CacheWriteError{Path: tempPath, Err: err}
	}

	download := &Download{
		TempPath: tempPath,
		Size:     info.Size(),
	}

	if !verify {
		logger.WarnKV(ctx, "No checksum configured, publishing the download unverified",
			"path", tempPath, "url", spec.SourceURL)

		return download, nil
	}

	actual, ok, err := checksum.VerifyFile(tempPath, expected)
	if err != nil {
		_ = os.Remove(tempPath)

		return nil, fmt.Errorf("verify download: %w", err)
	}

	if !ok {
		logger.DebugKV(ctx, "Checksum mismatch",
			"path", tempPath, "expected", expected.String(), "actual", actual.String())

		return nil, &bootstrap.CorruptArtifactError{
			Path:     tempPath,
			Expected: expected.String(),
			Actual:   actual.String(),
		}
	}

	download.Checksum = expected.String()

	logger.DebugKV(ctx, "Download verified", "path", tempPath, "checksum", download.Checksum)

	return download, nil
}
