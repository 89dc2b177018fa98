//go:build windows

package process

// runReplaceHelper is never requested on Windows.
func runReplaceHelper() {}
