// Package process hands control to the application process.
//
// Arguments travel as an argv vector from end to end and no shell is involved,
// so spaces and shell metacharacters reach the application untouched.
// On Unix the launcher replaces its own image (ReplaceRunner); elsewhere, or
// when asked to, it runs the application as a child (SpawnRunner), forwards
// termination signals and exits with the child's exit code.
package process
