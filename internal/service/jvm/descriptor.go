package jvm

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
)

const (
	// toolOptionsNotice prefixes the line the JVM prints when JAVA_TOOL_OPTIONS is set.
	toolOptionsNotice = "Picked up JAVA_TOOL_OPTIONS"
	// placeholderMarker is printed by the macOS stub installed in place of a runtime.
	placeholderMarker = "No Java runtime present"
	// sixtyFourBitMarker appears in the VM line of 64-bit builds.
	sixtyFourBitMarker = "64-Bit"
	// legacyMajor is the leading component of pre-9 versions such as "1.8.0_202".
	legacyMajor = 1
)

// errUnrecognizedVersion is returned when the probe output carries no version line.
var errUnrecognizedVersion = errors.New("unrecognized java -version output")

// versionPattern captures the first two numeric components of the quoted version.
var versionPattern = regexp.MustCompile(`.* version "([0-9]+)(?:\.([0-9]+))?[^"]*"`)

// Descriptor is what a runtime reports about itself.
type Descriptor struct {
	// RawVersion is the reported version reduced to its first two components, e.g. "1.8" or "11.0".
	RawVersion string
	// Major is the normalized major version.
	Major int
	// Minor is the component after the normalized major, zero when absent.
	Minor int
	// Bitness is the word size of the build.
	Bitness bootstrap.Bitness
	// IsPlaceholder reports an OS stub rather than a real runtime.
	IsPlaceholder bool
}

// ParseProbeOutput interprets the combined output of "java -version".
func ParseProbeOutput(output string) (Descriptor, error) {
	if strings.Contains(output, placeholderMarker) {
		return Descriptor{IsPlaceholder: true}, nil
	}

	var relevant []string

	for _, line := range strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), toolOptionsNotice) {
			continue
		}

		relevant = append(relevant, line)
	}

	for _, line := range relevant {
		match := versionPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		return describe(match[1], match[2], strings.Join(relevant, "\n"))
	}

	return Descriptor{}, errUnrecognizedVersion
}

// describe builds a Descriptor from the captured version components.
func describe(first, second, output string) (Descriptor, error) {
	major, err := strconv.Atoi(first)
	if err != nil {
		return Descriptor{}, errUnrecognizedVersion
	}

	descriptor := Descriptor{
		RawVersion: first,
		Major:      major,
		Bitness:    bootstrap.Bitness32,
	}

	if second != "" {
		minor, convErr := strconv.Atoi(second)
		if convErr != nil {
			return Descriptor{}, errUnrecognizedVersion
		}

		descriptor.RawVersion = first + "." + second
		descriptor.Minor = minor

		if major == legacyMajor {
			descriptor.Major = minor
			descriptor.Minor = 0
		}
	}

	if strings.Contains(output, sixtyFourBitMarker) {
		descriptor.Bitness = bootstrap.Bitness64
	}

	return descriptor, nil
}
