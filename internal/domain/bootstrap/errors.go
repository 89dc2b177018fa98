package bootstrap

import (
	"errors"
	"fmt"
)

// Reserved exit codes for failures raised by the launcher itself.
// Any other exit code is the application's own.
const (
	// ExitOK is returned when the launcher and the application succeed.
	ExitOK = 0
	// ExitFailure is returned for configuration and unexpected errors.
	ExitFailure = 1
	// ExitMissingDependency is returned when a required helper tool is absent.
	ExitMissingDependency = 2
	// ExitDownloadFailed is returned when the artifact cannot be downloaded.
	ExitDownloadFailed = 3
	// ExitChecksumMismatch is returned when an artifact fails verification.
	ExitChecksumMismatch = 4
	// ExitCacheWriteFailed is returned when a download cannot be published to the cache.
	ExitCacheWriteFailed = 5
	// ExitRuntimeUnavailable is returned when no usable Java runtime can be resolved.
	ExitRuntimeUnavailable = 6
)

// legacyVersionCutoff is the last major version Java reported with "1.x" numbering.
const legacyVersionCutoff = 8

// exitCoder is implemented by errors carrying a reserved exit code.
type exitCoder interface {
	ExitCode() int
}

// ExitCode maps an error returned by the launcher to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var coder exitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}

	return ExitFailure
}

// MissingDependencyError reports a helper tool absent from the search path.
type MissingDependencyError struct {
	// Tool is the executable name that could not be found.
	Tool string
}

// Error implements error.
func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("%s is not installed or not on your PATH. Please install it and try again.", e.Tool)
}

// ExitCode returns the reserved exit code.
func (e *MissingDependencyError) ExitCode() int {
	return ExitMissingDependency
}

// DownloadError reports a failed transfer or a non-success transport response.
type DownloadError struct {
	// URL is the source that was requested.
	URL string
	// Status is the transport status, e.g. "404 Not Found"; empty when no response arrived.
	Status string
	// Err is the underlying transport error, if any.
	Err error
}

// Error implements error.
func (e *DownloadError) Error() string {
	switch {
	case e.Status != "":
		return fmt.Sprintf("Downloading Batect from %s failed: %s. Check your network connection and try again.", e.URL, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("Downloading Batect from %s failed: %v. Check your network connection and try again.", e.URL, e.Err)
	default:
		return fmt.Sprintf("Downloading Batect from %s failed. Check your network connection and try again.", e.URL)
	}
}

// Unwrap returns the underlying transport error.
func (e *DownloadError) Unwrap() error {
	return e.Err
}

// ExitCode returns the reserved exit code.
func (e *DownloadError) ExitCode() int {
	return ExitDownloadFailed
}

// CorruptArtifactError reports an artifact whose digest does not match the expected checksum.
// The file is left in place so it can be inspected.
type CorruptArtifactError struct {
	// Path is the file that failed verification.
	Path string
	// Expected is the configured digest.
	Expected string
	// Actual is the computed digest.
	Actual string
	// Cached reports that the file was a previously published cache entry rather than a fresh download.
	Cached bool
}

// Error implements error.
func (e *CorruptArtifactError) Error() string {
	return fmt.Sprintf(
		"The downloaded version of Batect does not have the expected checksum. Delete '%s' and then re-run this command to download it again.",
		e.Path,
	)
}

// ExitCode returns the reserved exit code.
func (e *CorruptArtifactError) ExitCode() int {
	return ExitChecksumMismatch
}

// CacheWriteError reports that a verified download could not be published to the cache.
type CacheWriteError struct {
	// Path is the cache location that could not be written.
	Path string
	// Err is the filesystem error.
	Err error
}

// Error implements error.
func (e *CacheWriteError) Error() string {
	return fmt.Sprintf(
		"Could not store Batect in the cache at '%s' (%v). Make sure the cache directory is writable and try again.",
		e.Path, e.Err,
	)
}

// Unwrap returns the filesystem error.
func (e *CacheWriteError) Unwrap() error {
	return e.Err
}

// ExitCode returns the reserved exit code.
func (e *CacheWriteError) ExitCode() int {
	return ExitCacheWriteFailed
}

// RuntimeNotFoundError reports that no Java executable could be found.
type RuntimeNotFoundError struct {
	// Origin is the source that was searched last.
	Origin Origin
	// OverrideValue is the JAVA_HOME value when Origin is OriginOverride.
	OverrideValue string
	// ExpectedPath is where the executable was expected under the override.
	ExpectedPath string
}

// Error implements error.
func (e *RuntimeNotFoundError) Error() string {
	if e.Origin == OriginOverride {
		return fmt.Sprintf("%s is set to '%s', but there is no Java executable at '%s'.",
			OverrideVariable, e.OverrideValue, e.ExpectedPath)
	}

	return "Java is not installed or not on your PATH. Please install it and try again."
}

// ExitCode returns the reserved exit code.
func (e *RuntimeNotFoundError) ExitCode() int {
	return ExitRuntimeUnavailable
}

// RuntimeIncompatibleError reports a runtime older than the minimum supported version.
type RuntimeIncompatibleError struct {
	// Origin is the source that supplied the runtime.
	Origin Origin
	// Version is the version as reported by the runtime.
	Version string
	// MinimumMajor is the minimum supported normalized major version.
	MinimumMajor int
}

// Error implements error.
func (e *RuntimeIncompatibleError) Error() string {
	minimum := fmt.Sprintf("%d", e.MinimumMajor)
	if e.MinimumMajor <= legacyVersionCutoff {
		minimum = fmt.Sprintf("1.%d", e.MinimumMajor)
	}

	message := fmt.Sprintf(
		"The version of Java that is available %s is version %s, but version %s or greater is required. "+
			"If you have a newer version of Java installed, please make sure %s is set correctly.",
		e.Origin.availability(), e.Version, minimum, e.Origin.setting(),
	)

	return message + precedenceNote(e.Origin)
}

// ExitCode returns the reserved exit code.
func (e *RuntimeIncompatibleError) ExitCode() int {
	return ExitRuntimeUnavailable
}

// RuntimeBitnessError reports a runtime of the wrong word size.
type RuntimeBitnessError struct {
	// Origin is the source that supplied the runtime.
	Origin Origin
	// Bitness is the detected word size.
	Bitness Bitness
}

// Error implements error.
func (e *RuntimeBitnessError) Error() string {
	message := fmt.Sprintf(
		"The version of Java that is available %s is a %d-bit version, but Batect requires a 64-bit Java runtime. "+
			"If you have a 64-bit version of Java installed, please make sure %s is set correctly.",
		e.Origin.availability(), e.Bitness, e.Origin.setting(),
	)

	return message + precedenceNote(e.Origin)
}

// ExitCode returns the reserved exit code.
func (e *RuntimeBitnessError) ExitCode() int {
	return ExitRuntimeUnavailable
}

// RuntimePlaceholderError reports an OS stub executable. It is not terminal:
// the locator treats the stub as absent and moves on.
type RuntimePlaceholderError struct {
	// Path is the stub executable.
	Path string
}

// Error implements error.
func (e *RuntimePlaceholderError) Error() string {
	return fmt.Sprintf("'%s' is a placeholder and not a usable Java runtime.", e.Path)
}

// precedenceNote reminds the user that the override wins over PATH.
func precedenceNote(origin Origin) string {
	if origin != OriginOverride {
		return ""
	}

	return fmt.Sprintf(" %s takes precedence over any versions of Java available on your PATH.", OverrideVariable)
}
