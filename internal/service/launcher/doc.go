// Package launcher runs one invocation of the application.
//
// Run walks a fixed sequence of stages: resolve the version, look it up in the
// cache, download and publish it on a miss, resolve a Java runtime, build the
// application context and hand over control. Any failure ends the sequence
// with a typed error that maps to a reserved exit code; otherwise the exit
// code is the application's own.
package launcher
