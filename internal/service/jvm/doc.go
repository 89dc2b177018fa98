// Package jvm discovers the Java runtime used to run the application.
//
// ParseProbeOutput turns the output of "java -version" into a Descriptor
// without touching the system. The Locator resolves JAVA_HOME first and the
// search path second, probes the executable it finds and rejects runtimes
// that are too old or not 64-bit. Results are never cached: the installed
// runtimes change independently of the artifact cache.
package jvm
