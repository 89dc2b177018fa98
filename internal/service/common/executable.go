//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// defaultPathExt is used on Windows when PATHEXT is empty.
const defaultPathExt = ".COM;.EXE;.BAT;.CMD"

// ExecutableName appends ".exe" to a base name on Windows.
func ExecutableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}

	return base
}

// FindExecutables returns every executable called name found in searchPath, in PATH order.
// Empty entries are skipped rather than meaning the working directory.
func FindExecutables(name, searchPath, pathExt string) []string {
	var (
		names   = candidateNames(name, pathExt)
		results = make([]string, 0, 1)
		seen    = make(map[string]struct{})
	)

	for _, dir := range filepath.SplitList(searchPath) {
		if dir == "" {
			continue
		}

		for _, candidate := range names {
			path := filepath.Join(dir, candidate)
			if _, ok := seen[path]; ok {
				continue
			}

			if IsExecutable(path) {
				seen[path] = struct{}{}
				results = append(results, path)

				break
			}
		}
	}

	return results
}

// FindExecutable returns the first executable called name in searchPath.
func FindExecutable(name, searchPath, pathExt string) (string, bool) {
	found := FindExecutables(name, searchPath, pathExt)
	if len(found) == 0 {
		return "", false
	}

	return found[0], true
}

// IsExecutable reports whether path is a regular file this platform can run.
func IsExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	if runtime.GOOS == "windows" {
		return true
	}

	return info.Mode().Perm()&0o111 != 0
}

// candidateNames expands name with PATHEXT on Windows unless it already carries an extension.
func candidateNames(name, pathExt string) []string {
	if runtime.GOOS != "windows" || filepath.Ext(name) != "" {
		return []string{name}
	}

	if strings.TrimSpace(pathExt) == "" {
		pathExt = defaultPathExt
	}

	names := make([]string, 0, strings.Count(pathExt, ";")+1)

	for _, ext := range strings.Split(pathExt, ";") {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}

		names = append(names, name+strings.ToLower(ext))
	}

	return names
}
