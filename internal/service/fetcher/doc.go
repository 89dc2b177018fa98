// Package fetcher downloads artifacts into private temporary files of the cache.
//
// A Fetcher streams the artifact with a Transport (the built-in HTTP client or
// an external curl), then verifies the complete file against the expected
// checksum. Failed downloads leave nothing behind; a checksum mismatch keeps
// the file so it can be inspected. Publishing is left to the cache.
package fetcher
