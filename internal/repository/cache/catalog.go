package cache

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/batect-launcher/internal/config"
	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
)

// Entry describes one version directory found under the cache root.
type Entry struct {
	// VersionID is the directory name.
	VersionID bootstrap.VersionID
	// Directory is the absolute version directory.
	Directory string
	// ArtifactPath is where the artifact is expected.
	ArtifactPath string
	// HasArtifact reports whether the artifact is present.
	HasArtifact bool
	// Size is the artifact size; zero when absent.
	Size int64
	// Metadata is the parsed entry.yaml, nil when missing or unreadable.
	Metadata *Metadata
	// LastUsed is the recorded last launch, nil when never recorded or unreadable.
	LastUsed *time.Time
	// DownloadActivity is the latest modification of an unpublished download, nil when there is none.
	DownloadActivity *time.Time
}

// CacheEntry converts the catalog entry to the launcher's view of a cached artifact.
func (e *Entry) CacheEntry() bootstrap.CacheEntry {
	return bootstrap.CacheEntry{
		VersionID:    e.VersionID,
		ArtifactPath: e.ArtifactPath,
		Size:         e.Size,
	}
}

// Entries lists every version directory under the root, oldest version first.
// A missing root is an empty cache.
func (s *FileStore) Entries() ([]*Entry, error) {
	dirEntries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read cache directory: %w", err)
	}

	entries := make([]*Entry, 0, len(dirEntries))

	for _, dirEntry := range dirEntries {
		if !dirEntry.IsDir() {
			continue
		}

		versionID := bootstrap.VersionID(dirEntry.Name())
		if config.ValidateVersion(versionID) != nil {
			continue
		}

		entries = append(entries, s.entry(versionID))
	}

	slices.SortFunc(entries, func(a, b *Entry) int {
		return CompareVersions(a.VersionID, b.VersionID)
	})

	return entries, nil
}

// Entry returns the catalog entry of one version, or false when the version directory does not exist.
func (s *FileStore) Entry(versionID bootstrap.VersionID) (*Entry, bool) {
	if config.ValidateVersion(versionID) != nil {
		return nil, false
	}

	if info, err := os.Stat(s.VersionDir(versionID)); err != nil || !info.IsDir() {
		return nil, false
	}

	return s.entry(versionID), true
}

// entry reads everything known about a version directory.
func (s *FileStore) entry(versionID bootstrap.VersionID) *Entry {
	entry := &Entry{
		VersionID:    versionID,
		Directory:    s.VersionDir(versionID),
		ArtifactPath: s.ArtifactPath(versionID),
	}

	if cached, ok := s.Lookup(versionID); ok {
		entry.HasArtifact = true
		entry.Size = cached.Size
	}

	if contents, err := os.ReadFile(filepath.Join(entry.Directory, MetadataFilename)); err == nil {
		var meta Metadata
		if yaml.Unmarshal(contents, &meta) == nil {
			entry.Metadata = &meta
		}
	}

	if contents, err := os.ReadFile(filepath.Join(entry.Directory, LastUsedFilename)); err == nil {
		if lastUsed, parseErr := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(contents))); parseErr == nil {
			entry.LastUsed = &lastUsed
		}
	}

	entry.DownloadActivity = downloadActivity(entry.Directory)

	return entry
}

// downloadActivity returns the latest modification time of the downloads in dir.
func downloadActivity(dir string) *time.Time {
	downloads, err := filepath.Glob(filepath.Join(dir, downloadPattern))
	if err != nil {
		return nil
	}

	var latest *time.Time

	for _, download := range downloads {
		info, statErr := os.Stat(download)
		if statErr != nil {
			continue
		}

		if modified := info.ModTime(); latest == nil || modified.After(*latest) {
			latest = &modified
		}
	}

	return latest
}

// Delete removes a version directory. The lastUsed file goes last, so an
// interrupted delete still leaves the version visible to a later cleanup.
func (s *FileStore) Delete(versionID bootstrap.VersionID) error {
	if err := config.ValidateVersion(versionID); err != nil {
		return err
	}

	dir := s.VersionDir(versionID)

	children, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", versionID, errVersionNotCached)
		}

		return fmt.Errorf("read version directory: %w", err)
	}

	for _, child := range children {
		if child.Name() == LastUsedFilename {
			continue
		}

		if err = os.RemoveAll(filepath.Join(dir, child.Name())); err != nil {
			return fmt.Errorf("delete %s: %w", child.Name(), err)
		}
	}

	if err = os.Remove(filepath.Join(dir, LastUsedFilename)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", LastUsedFilename, err)
	}

	if err = os.Remove(dir); err != nil {
		return fmt.Errorf("delete version directory: %w", err)
	}

	return nil
}

// IsNotCached reports whether err means the requested version has no cache directory.
func IsNotCached(err error) bool {
	return errors.Is(err, errVersionNotCached)
}

// CompareVersions orders release identifiers such as "0.79.1" or "1.0.0-rc2".
// Numeric components compare numerically, everything else lexically.
func CompareVersions(a, b bootstrap.VersionID) int {
	left := splitVersion(a.String())
	right := splitVersion(b.String())

	for i := 0; i < len(left) && i < len(right); i++ {
		if result := compareComponent(left[i], right[i]); result != 0 {
			return result
		}
	}

	switch {
	case len(left) < len(right):
		return -1
	case len(left) > len(right):
		return 1
	default:
		return 0
	}
}

// splitVersion breaks a version at dots and dashes.
func splitVersion(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == '.' || r == '-'
	})
}

// compareComponent compares one version component.
func compareComponent(a, b string) int {
	left, leftErr := strconv.Atoi(a)
	right, rightErr := strconv.Atoi(b)

	switch {
	case leftErr == nil && rightErr == nil:
		return cmp.Compare(left, right)
	case leftErr == nil:
		return -1
	case rightErr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
