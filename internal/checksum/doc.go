// Package checksum computes and compares artifact digests.
//
// Expected checksums are written either as bare hex (SHA-256, the format
// release notes publish) or as "algorithm:hex" with sha256, sha512 or blake3.
// Files are streamed through the hash so memory use stays constant.
package checksum
