// Package common holds helpers shared by several services.
//
// It detects the invoking host and searches executables on a PATH-style list
// the same way on every platform, honoring PATHEXT on Windows.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
