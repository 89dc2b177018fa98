package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/batect-launcher/internal/checksum"
	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
	"github.com/oshokin/batect-launcher/internal/logger"
	"github.com/oshokin/batect-launcher/internal/service/fetcher"
)

const (
	// DefaultFileMode is applied to the replaced executable.
	DefaultFileMode os.FileMode = 0o755

	// downloadPattern names the temporary download of the new executable.
	downloadPattern = ".batect-upgrade-*"
	// oldSuffix ends the hidden name go-update gives the previous executable.
	oldSuffix = ".old"
)

var (
	// errSourceRequired is returned without a download URL.
	errSourceRequired = errors.New("a download URL is required")
	// errChecksumRequired is returned when the upgrade would be unverified.
	errChecksumRequired = errors.New("a checksum is required; pass --insecure to skip verification")
)

// Options are inputs accepted by the updater entry point.
type Options struct {
	// SourceURL is where the new executable is downloaded from.
	SourceURL string
	// Checksum is the expected digest of the new executable.
	Checksum string
	// Insecure allows an upgrade without a checksum.
	Insecure bool
	// TargetPath is the executable to replace; empty means the running executable.
	TargetPath string
	// Timeout bounds connecting to the server.
	Timeout time.Duration
	// Quiet suppresses download progress.
	Quiet bool
	// Transport overrides the download transport.
	Transport fetcher.Transport
}

// Run downloads, verifies and applies a new executable.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "updater")

	if opts.SourceURL == "" {
		return errSourceRequired
	}

	if opts.Checksum == "" && !opts.Insecure {
		return errChecksumRequired
	}

	target, err := targetPath(opts.TargetPath)
	if err != nil {
		return err
	}

	reporter := fetcher.NewReporter(os.Stderr, opts.Quiet)

	transport := opts.Transport
	if transport == nil {
		transport = fetcher.NewHTTPTransport(opts.Timeout, reporter)
	}

	downloads := &siblingFiles{dir: filepath.Dir(target)}

	download, err := fetcher.New(downloads, transport, reporter).Fetch(ctx, bootstrap.DownloadSpec{
		SourceURL:        opts.SourceURL,
		ExpectedChecksum: opts.Checksum,
		VersionID:        "self-upgrade",
	})
	if err != nil {
		var corrupt *bootstrap.CorruptArtifactError
		if errors.As(err, &corrupt) {
			_ = os.Remove(corrupt.Path)
		}

		return err
	}

	defer func() {
		_ = os.Remove(download.TempPath)
	}()

	logger.InfoKV(ctx, "Applying update", "target", target, "checksum", download.Checksum)

	if err = apply(download, target); err != nil {
		return fmt.Errorf("apply update to %s: %w", target, err)
	}

	oldPath := filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+oldSuffix)
	if _, err = os.Stat(oldPath); err == nil {
		_ = os.Remove(oldPath)
	}

	logger.InfoKV(ctx, "Updated executable", "target", target)

	return nil
}

// apply swaps the executable, letting go-update re-check sha digests while it reads the file.
func apply(download *fetcher.Download, target string) error {
	file, err := os.Open(download.TempPath)
	if err != nil {
		return err
	}

	defer func() {
		_ = file.Close()
	}()

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: DefaultFileMode,
	}

	if download.Checksum != "" {
		digest, parseErr := checksum.Parse(download.Checksum)
		if parseErr != nil {
			return parseErr
		}

		if hash, ok := digest.Algorithm.CryptoHash(); ok {
			options.Checksum = digest.Sum
			options.Hash = hash
		}
	}

	return goupdate.Apply(file, options)
}

// targetPath resolves the executable to replace.
func targetPath(path string) (string, error) {
	if path == "" {
		executable, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("locate running executable: %w", err)
		}

		path = executable
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}

	return resolved, nil
}

// siblingFiles creates downloads in the target's directory, on the same filesystem as the swap.
type siblingFiles struct {
	// dir is the directory of the executable being replaced.
	dir string
}

// TempFile implements fetcher.TempFileCreator.
func (s *siblingFiles) TempFile(bootstrap.VersionID) (*os.File, error) {
	file, err := os.CreateTemp(s.dir, downloadPattern)
	if err != nil {
		return nil, fmt.Errorf("create download file in %s: %w", s.dir, err)
	}

	return file, nil
}
