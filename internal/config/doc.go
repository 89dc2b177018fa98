// Package config resolves the launcher settings once at startup.
//
// Settings come from the process environment (BATECT_* variables, JAVA_HOME,
// JAVA_TOOL_OPTIONS and PATH). Defaults, including the pinned release baked in
// at build time, are applied only when a variable is absent, and the resulting
// Config is passed down the call chain instead of re-reading the environment.
package config
