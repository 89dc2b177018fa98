// Package janitor maintains the artifact cache on behalf of batectctl.
//
// The launcher itself never removes anything from the cache. The janitor lists
// cached versions, re-verifies them against the checksum recorded at download
// time and prunes versions that have not been used for a while, refusing to do
// so while launchers are running.
package janitor
