// Package cache stores downloaded artifacts keyed by version.
//
// Layout: <root>/<version>/batect-<version>.jar, next to an entry.yaml with the
// download metadata and a lastUsed timestamp. Deleting a version directory
// removes everything belonging to that version.
//
// Publishing is a rename of a private temporary file created in the version
// directory, so concurrent launchers never observe a partially written
// artifact and no locking is needed: the first rename wins and later
// publishers discard their copy. A file present under the root is trusted;
// Verify re-checks it only when a caller asks to.
package cache
