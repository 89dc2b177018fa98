// Package bootstrap contains the core domain types of the launcher.
//
// It defines the cache entry, download, runtime candidate and launch context
// values passed between the launcher's services, together with the typed
// error taxonomy every user-facing failure is expressed in. Each terminal
// error knows its reserved process exit code and renders as one sentence
// naming the remedy.
package bootstrap
