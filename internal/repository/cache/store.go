package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/batect-launcher/internal/checksum"
	"github.com/oshokin/batect-launcher/internal/config"
	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
	"github.com/oshokin/batect-launcher/internal/logger"
)

const (
	// MetadataFilename stores the download metadata of a cached version.
	MetadataFilename = "entry.yaml"
	// LastUsedFilename stores when a cached version was last launched.
	LastUsedFilename = "lastUsed"

	// DefaultDirPermissions is used for the cache root and version directories.
	DefaultDirPermissions os.FileMode = 0o755
	// DefaultFilePermissions is used for published artifacts, so a shared cache stays readable.
	DefaultFilePermissions os.FileMode = 0o644

	// artifactPrefix and artifactExtension build the artifact file name.
	artifactPrefix    = "batect-"
	artifactExtension = ".jar"

	// downloadPattern names private temporary downloads inside a version directory.
	downloadPattern = ".download-*.tmp"
	// metadataPattern names temporary metadata files before they are renamed into place.
	metadataPattern = ".entry-*.tmp"
)

// errVersionNotCached is returned when an operation needs an existing version directory.
var errVersionNotCached = errors.New("version is not cached")

// Repository defines the cache operations used by the launcher.
type Repository interface {
	Root() string
	Lookup(versionID bootstrap.VersionID) (bootstrap.CacheEntry, bool)
	TempFile(versionID bootstrap.VersionID) (*os.File, error)
	Publish(ctx context.Context, versionID bootstrap.VersionID, tempPath string, meta *Metadata) (bootstrap.CacheEntry, error)
	Verify(entry bootstrap.CacheEntry, expected checksum.Digest) error
	Touch(versionID bootstrap.VersionID, at time.Time) error
}

// Metadata describes how a cached artifact was obtained.
type Metadata struct {
	// Version is the cached release.
	Version string `yaml:"version"`
	// Checksum is the verified digest in "algorithm:hex" form; empty when unverified.
	Checksum string `yaml:"checksum,omitempty"`
	// Size is the artifact size in bytes at publish time.
	Size int64 `yaml:"size"`
	// SourceURL is where the artifact was downloaded from.
	SourceURL string `yaml:"source_url,omitempty"`
	// DownloadedAt is when the artifact was published.
	DownloadedAt time.Time `yaml:"downloaded_at"`
}

// FileStore keeps the cache in a directory tree on the local filesystem.
type FileStore struct {
	// root is the absolute cache root.
	root string
}

// NewFileStore creates a store rooted at the provided directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{
		root: filepath.Clean(root),
	}
}

// Root returns the cache root.
func (s *FileStore) Root() string {
	return s.root
}

// VersionDir returns the directory holding everything cached for a version.
func (s *FileStore) VersionDir(versionID bootstrap.VersionID) string {
	return filepath.Join(s.root, versionID.String())
}

// ArtifactPath returns the deterministic artifact location for a version.
func (s *FileStore) ArtifactPath(versionID bootstrap.VersionID) string {
	return filepath.Join(s.VersionDir(versionID), ArtifactName(versionID))
}

// ArtifactName returns the artifact file name for a version.
func ArtifactName(versionID bootstrap.VersionID) string {
	return artifactPrefix + versionID.String() + artifactExtension
}

// Lookup reports the cached artifact of a version. Absence is a normal outcome:
// anything other than a regular file at the artifact path counts as a miss.
func (s *FileStore) Lookup(versionID bootstrap.VersionID) (bootstrap.CacheEntry, bool) {
	path := s.ArtifactPath(versionID)

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return bootstrap.CacheEntry{}, false
	}

	return bootstrap.CacheEntry{
		VersionID:    versionID,
		ArtifactPath: path,
		Size:         info.Size(),
	}, true
}

// EnsureVersionDir creates the version directory. It succeeds when another process created it first.
func (s *FileStore) EnsureVersionDir(versionID bootstrap.VersionID) error {
	if err := config.ValidateVersion(versionID); err != nil {
		return err
	}

	dir := s.VersionDir(versionID)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return &bootstrap.CacheWriteError{Path: dir, Err: err}
	}

	return nil
}

// TempFile creates a private file for a download in the version directory,
// on the same filesystem as the final artifact so publishing is a plain rename.
func (s *FileStore) TempFile(versionID bootstrap.VersionID) (*os.File, error) {
	if err := s.EnsureVersionDir(versionID); err != nil {
		return nil, err
	}

	dir := s.VersionDir(versionID)

	file, err := os.CreateTemp(dir, downloadPattern)
	if err != nil {
		return nil, &bootstrap.CacheWriteError{Path: dir, Err: err}
	}

	return file, nil
}

// Publish moves a verified temporary file to the artifact path of its version.
// When the artifact already exists, because a concurrent launcher won the race,
// the temporary file is discarded and the existing entry is returned.
func (s *FileStore) Publish(
	ctx context.Context,
	versionID bootstrap.VersionID,
	tempPath string,
	meta *Metadata,
) (bootstrap.CacheEntry, error) {
	if entry, ok := s.Lookup(versionID); ok {
		logger.DebugKV(ctx, "Artifact already published, discarding download",
			"version", versionID, "path", entry.ArtifactPath)

		_ = os.Remove(tempPath)

		return entry, nil
	}

	destination := s.ArtifactPath(versionID)

	if err := os.Chmod(tempPath, DefaultFilePermissions); err != nil {
		logger.DebugKV(ctx, "Unable to relax artifact permissions", "path", tempPath, "error", err)
	}

	if err := os.Rename(tempPath, destination); err != nil {
		if entry, ok := s.Lookup(versionID); ok {
			_ = os.Remove(tempPath)

			return entry, nil
		}

		return bootstrap.CacheEntry{}, &bootstrap.CacheWriteError{Path: destination, Err: err}
	}

	entry, ok := s.Lookup(versionID)
	if !ok {
		return bootstrap.CacheEntry{}, &bootstrap.CacheWriteError{Path: destination, Err: os.ErrNotExist}
	}

	logger.InfoKV(ctx, "Published artifact", "version", versionID, "path", destination, "size", entry.Size)

	if meta != nil {
		meta.Version = versionID.String()
		meta.Size = entry.Size

		if err := s.writeMetadata(versionID, meta); err != nil {
			logger.WarnKV(ctx, "Unable to record cache metadata", "version", versionID, "error", err)
		}
	}

	return entry, nil
}

// Verify re-hashes a cached artifact. A mismatch, including a truncated file,
// is reported as a CorruptArtifactError pointing at the cached path.
func (s *FileStore) Verify(entry bootstrap.CacheEntry, expected checksum.Digest) error {
	actual, ok, err := checksum.VerifyFile(entry.ArtifactPath, expected)
	if err != nil {
		return fmt.Errorf("verify %s: %w", entry.ArtifactPath, err)
	}

	if !ok {
		return &bootstrap.CorruptArtifactError{
			Path:     entry.ArtifactPath,
			Expected: expected.String(),
			Actual:   actual.String(),
			Cached:   true,
		}
	}

	return nil
}

// Touch records when a version was last launched.
func (s *FileStore) Touch(versionID bootstrap.VersionID, at time.Time) error {
	dir := s.VersionDir(versionID)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("%s: %w", versionID, errVersionNotCached)
	}

	contents := []byte(at.UTC().Format(time.RFC3339Nano) + "\n")

	return writeFileAtomic(dir, LastUsedFilename, metadataPattern, contents)
}

// writeMetadata stores entry.yaml next to the artifact.
func (s *FileStore) writeMetadata(versionID bootstrap.VersionID, meta *Metadata) error {
	contents, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	return writeFileAtomic(s.VersionDir(versionID), MetadataFilename, metadataPattern, contents)
}

// writeFileAtomic writes a file next to its final location and renames it into place,
// so readers never see a partial write.
func writeFileAtomic(dir, name, pattern string, contents []byte) error {
	file, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	temporaryPath := file.Name()

	if _, err = file.Write(contents); err != nil {
		_ = file.Close()
		_ = os.Remove(temporaryPath)

		return fmt.Errorf("write temporary file: %w", err)
	}

	if err = file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(temporaryPath)

		return fmt.Errorf("sync temporary file: %w", err)
	}

	if err = file.Close(); err != nil {
		_ = os.Remove(temporaryPath)

		return fmt.Errorf("close temporary file: %w", err)
	}

	if err = os.Chmod(temporaryPath, DefaultFilePermissions); err != nil {
		_ = os.Remove(temporaryPath)

		return fmt.Errorf("set permissions: %w", err)
	}

	if err = os.Rename(temporaryPath, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(temporaryPath)

		return fmt.Errorf("rename %s into place: %w", name, err)
	}

	return nil
}
