package version

import "fmt"

var (
	// Version is the semantic version of the launcher build. It can be overridden via ldflags.
	Version = "1.0.0"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"

	// ArtifactVersion is the application release this launcher is pinned to.
	// Release builds inject it via ldflags; BATECT_VERSION overrides it at runtime.
	ArtifactVersion = "0.79.1"
	// ArtifactChecksum is the expected digest of the pinned release (hex SHA-256 or "algo:hex").
	// An empty value disables verification unless BATECT_DOWNLOAD_CHECKSUM is set.
	ArtifactChecksum = ""
	// DownloadURLTemplate is the default artifact location; every "{version}" is replaced.
	DownloadURLTemplate = "https://updates.batect.dev/v1/files/{version}/batect-{version}.jar"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit, build time and pinned artifact.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s, artifact: %s",
		Version, Commit, BuildTime, ArtifactVersion)
}
