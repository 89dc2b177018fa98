// Package version exposes build metadata for the project.
//
// Variables Version, Commit, and BuildTime describe the launcher itself, while
// ArtifactVersion, ArtifactChecksum and DownloadURLTemplate pin the application
// release the launcher bootstraps. All of them are injected at build time via
// Go ldflags and default to sensible values for local builds.
package version
