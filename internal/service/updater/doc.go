// Package updater replaces the launcher executable with a newer build.
//
// The new binary is downloaded next to nothing the launcher uses, verified
// against the expected checksum and applied with go-update, which swaps the
// executable atomically and keeps the previous one until the swap succeeded.
package updater
