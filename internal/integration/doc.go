// Package integration holds end-to-end tests that run the launcher against
// a local download server, a real cache directory and a scripted Java runtime.
package integration
