package janitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"
	"golang.org/x/sync/errgroup"

	"github.com/oshokin/batect-launcher/internal/checksum"
	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
	"github.com/oshokin/batect-launcher/internal/logger"
	"github.com/oshokin/batect-launcher/internal/repository/cache"
)

const (
	// DefaultRetention is how long an unused version is kept.
	DefaultRetention = 30 * 24 * time.Hour
	// DefaultParallelism bounds concurrent verifications.
	DefaultParallelism = 4
	// ActiveDownloadWindow is how recently a download must have been written to count as in progress.
	ActiveDownloadWindow = 10 * time.Minute

	// launcherProcessName is the executable name of running launchers.
	launcherProcessName = "batect"
)

var (
	// ErrLaunchersRunning is returned when pruning could remove an artifact in use.
	ErrLaunchersRunning = errors.New("batect is running")
	// errVersionNotFound is returned for versions without a cache directory.
	errVersionNotFound = errors.New("version is not cached")
)

// Store is the part of the cache the janitor works with.
type Store interface {
	Entries() ([]*cache.Entry, error)
	Entry(versionID bootstrap.VersionID) (*cache.Entry, bool)
	Verify(entry bootstrap.CacheEntry, expected checksum.Digest) error
	Delete(versionID bootstrap.VersionID) error
}

// ProcessLister enumerates running processes.
type ProcessLister func() ([]ps.Process, error)

// Janitor performs cache maintenance.
type Janitor struct {
	// store is the cache being maintained.
	store Store
	// processes lists running processes.
	processes ProcessLister
	// now is the clock used for retention.
	now func() time.Time
	// pid is excluded from the running-launcher check.
	pid int
}

// Option customizes a Janitor.
type Option func(*Janitor)

// WithProcessLister replaces the process enumeration.
func WithProcessLister(lister ProcessLister) Option {
	return func(j *Janitor) {
		j.processes = lister
	}
}

// WithClock replaces the clock.
func WithClock(now func() time.Time) Option {
	return func(j *Janitor) {
		j.now = now
	}
}

// New creates a Janitor for the store.
func New(store Store, options ...Option) *Janitor {
	j := &Janitor{
		store:     store,
		processes: ps.Processes,
		now:       time.Now,
		pid:       os.Getpid(),
	}

	for _, option := range options {
		option(j)
	}

	return j
}

// List returns every cached version, oldest first.
func (j *Janitor) List() ([]*cache.Entry, error) {
	return j.store.Entries()
}

// Remove deletes one cached version.
func (j *Janitor) Remove(ctx context.Context, versionID bootstrap.VersionID) error {
	if _, ok := j.store.Entry(versionID); !ok {
		return fmt.Errorf("%s: %w", versionID, errVersionNotFound)
	}

	if err := j.store.Delete(versionID); err != nil {
		return fmt.Errorf("delete %s: %w", versionID, err)
	}

	logger.InfoKV(ctx, "Deleted cached version", "version", versionID)

	return nil
}

// VerifyStatus is the outcome of verifying one cached version.
type VerifyStatus string

const (
	// StatusOK means the artifact matches its recorded checksum.
	StatusOK VerifyStatus = "ok"
	// StatusCorrupt means the artifact does not match its recorded checksum.
	StatusCorrupt VerifyStatus = "corrupt"
	// StatusMissing means the version directory has no artifact.
	StatusMissing VerifyStatus = "missing"
	// StatusUnverifiable means no checksum was recorded for the artifact.
	StatusUnverifiable VerifyStatus = "unverifiable"
)

// VerifyResult describes the verification of one cached version.
type VerifyResult struct {
	// VersionID is the verified version.
	VersionID bootstrap.VersionID
	// Status is the outcome.
	Status VerifyStatus
	// Err explains a corrupt artifact.
	Err error
}

// Verify re-hashes the given versions, or every cached version when none are given,
// with at most parallelism artifacts hashed at once. Results follow the order of versions.
func (j *Janitor) Verify(ctx context.Context, versions []bootstrap.VersionID, parallelism int) ([]VerifyResult, error) {
	entries, err := j.selectEntries(versions)
	if err != nil {
		return nil, err
	}

	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	results := make([]VerifyResult, len(entries))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)

	for i, entry := range entries {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			result, err := j.verifyEntry(entry)
			if err != nil {
				return err
			}

			results[i] = result

			logger.DebugKV(ctx, "Verified cached version", "version", entry.VersionID, "status", result.Status)

			return nil
		})
	}

	if err = group.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// selectEntries resolves the requested versions, or lists them all.
func (j *Janitor) selectEntries(versions []bootstrap.VersionID) ([]*cache.Entry, error) {
	if len(versions) == 0 {
		return j.store.Entries()
	}

	entries := make([]*cache.Entry, 0, len(versions))

	for _, versionID := range versions {
		entry, ok := j.store.Entry(versionID)
		if !ok {
			return nil, fmt.Errorf("%s: %w", versionID, errVersionNotFound)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// verifyEntry checks one artifact against the checksum recorded when it was downloaded.
func (j *Janitor) verifyEntry(entry *cache.Entry) (VerifyResult, error) {
	result := VerifyResult{VersionID: entry.VersionID}

	if !entry.HasArtifact {
		result.Status = StatusMissing

		return result, nil
	}

	if entry.Metadata == nil || entry.Metadata.Checksum == "" {
		result.Status = StatusUnverifiable

		return result, nil
	}

	expected, err := checksum.Parse(entry.Metadata.Checksum)
	if err != nil {
		return result, fmt.Errorf("%s: recorded checksum: %w", entry.VersionID, err)
	}

	err = j.store.Verify(entry.CacheEntry(), expected)

	var corrupt *bootstrap.CorruptArtifactError

	switch {
	case err == nil:
		result.Status = StatusOK
	case errors.As(err, &corrupt):
		result.Status = StatusCorrupt
		result.Err = err
	default:
		return result, err
	}

	return result, nil
}

// PruneOptions controls Prune.
type PruneOptions struct {
	// Current is the version in use; it and newer versions are never pruned.
	Current bootstrap.VersionID
	// Retention is how long a version is kept after its last use.
	Retention time.Duration
	// Force skips the running-launcher check.
	Force bool
	// DryRun reports what would be deleted without deleting.
	DryRun bool
}

// PruneResult lists the outcome of a prune.
type PruneResult struct {
	// Deleted are the versions removed, or that would be removed on a dry run.
	Deleted []bootstrap.VersionID
	// Failed maps versions that could not be deleted to the reason.
	Failed map[bootstrap.VersionID]error
}

// Prune deletes versions older than Current that have not been used within the retention period.
// A version without a recorded last use borrows the date of the closest newer version that has one;
// without such a version it is kept. A version with a download written within ActiveDownloadWindow
// is kept even with Force, since a launcher is still filling it.
//
// The running-launcher check only sees launchers that have not handed over yet:
// on Unix a launcher replaces itself with the Java process once the artifact is ready.
func (j *Janitor) Prune(ctx context.Context, opts PruneOptions) (*PruneResult, error) {
	ctx = logger.WithName(ctx, "prune")

	if !opts.Force {
		if err := j.ensureNoLaunchers(); err != nil {
			return nil, err
		}
	}

	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}

	entries, err := j.store.Entries()
	if err != nil {
		return nil, err
	}

	var (
		cutoff      = j.now().Add(-opts.Retention)
		activeSince = j.now().Add(-ActiveDownloadWindow)
		result      = &PruneResult{Failed: make(map[bootstrap.VersionID]error)}
	)

	for _, entry := range eligible(ctx, entries, opts.Current, cutoff, activeSince) {
		if opts.DryRun {
			result.Deleted = append(result.Deleted, entry.VersionID)

			continue
		}

		if err = j.store.Delete(entry.VersionID); err != nil {
			logger.WarnKV(ctx, "Deleting version failed", "version", entry.VersionID, "error", err)

			result.Failed[entry.VersionID] = err

			continue
		}

		logger.InfoKV(ctx, "Deleted cached version", "version", entry.VersionID)

		result.Deleted = append(result.Deleted, entry.VersionID)
	}

	return result, nil
}

// eligible selects the entries Prune may delete. entries are sorted oldest first.
// Entries with a download written at or after activeSince are kept.
func eligible(
	ctx context.Context,
	entries []*cache.Entry,
	current bootstrap.VersionID,
	cutoff time.Time,
	activeSince time.Time,
) []*cache.Entry {
	var (
		selected []*cache.Entry
		// borrowed is the last-used date of the closest newer version that has one.
		borrowed *time.Time
	)

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]

		dateToUse := entry.LastUsed
		if entry.LastUsed != nil {
			borrowed = entry.LastUsed
		} else {
			dateToUse = borrowed
		}

		switch {
		case current != "" && cache.CompareVersions(entry.VersionID, current) >= 0:
			logger.DebugKV(ctx, "Keeping current or newer version", "version", entry.VersionID)
		case entry.DownloadActivity != nil && !entry.DownloadActivity.Before(activeSince):
			logger.InfoKV(ctx, "Keeping version with a download in progress",
				"version", entry.VersionID, "written", entry.DownloadActivity)
		case dateToUse == nil:
			logger.DebugKV(ctx, "Keeping version without usage information", "version", entry.VersionID)
		case !dateToUse.Before(cutoff):
			logger.DebugKV(ctx, "Keeping recently used version", "version", entry.VersionID, "date", dateToUse)
		default:
			selected = append(selected, entry)
		}
	}

	return selected
}

// ensureNoLaunchers fails when another launcher process is running.
func (j *Janitor) ensureNoLaunchers() error {
	processes, err := j.processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	var running []string

	for _, process := range processes {
		if process.Pid() == j.pid {
			continue
		}

		name := strings.TrimSuffix(strings.ToLower(process.Executable()), ".exe")
		if name == launcherProcessName {
			running = append(running, strconv.Itoa(process.Pid()))
		}
	}

	if len(running) > 0 {
		return fmt.Errorf("%w (process %s); stop it or use --force", ErrLaunchersRunning, strings.Join(running, ", "))
	}

	return nil
}
