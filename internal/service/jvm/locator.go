package jvm

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
	"github.com/oshokin/batect-launcher/internal/logger"
	"github.com/oshokin/batect-launcher/internal/service/common"
)

// MinimumMajor is the oldest supported normalized Java major version.
const MinimumMajor = 8

// javaExecutable is the base name of the runtime launcher.
const javaExecutable = "java"

// Locator finds a compatible runtime.
type Locator struct {
	// javaHome is the JAVA_HOME override; empty when unset.
	javaHome string
	// searchPath is the PATH scanned when no override is set.
	searchPath string
	// pathExt lists executable extensions on Windows.
	pathExt string
	// prober asks a runtime for its version.
	prober Prober
}

// NewLocator creates a locator. The override wins over the search path whenever it is non-empty.
func NewLocator(javaHome, searchPath, pathExt string, prober Prober) *Locator {
	if prober == nil {
		prober = &CommandProber{}
	}

	return &Locator{
		javaHome:   javaHome,
		searchPath: searchPath,
		pathExt:    pathExt,
		prober:     prober,
	}
}

// Resolve returns a runtime that can run the application.
func (l *Locator) Resolve(ctx context.Context) (bootstrap.RuntimeCandidate, error) {
	ctx = logger.WithName(ctx, "jvm")

	candidate, err := l.find(ctx)
	if err != nil {
		return bootstrap.RuntimeCandidate{}, err
	}

	logger.DebugKV(ctx, "Found Java runtime",
		"path", candidate.ExecutablePath,
		"origin", candidate.Origin,
		"version", candidate.RawVersion,
		"bitness", candidate.Bitness)

	if err = Validate(candidate); err != nil {
		return bootstrap.RuntimeCandidate{}, err
	}

	return candidate, nil
}

// Validate checks that a runtime is recent enough and 64-bit.
func Validate(candidate bootstrap.RuntimeCandidate) error {
	if candidate.Major < MinimumMajor {
		return &bootstrap.RuntimeIncompatibleError{
			Origin:       candidate.Origin,
			Version:      candidate.RawVersion,
			MinimumMajor: MinimumMajor,
		}
	}

	if candidate.Bitness != bootstrap.Bitness64 {
		return &bootstrap.RuntimeBitnessError{
			Origin:  candidate.Origin,
			Bitness: candidate.Bitness,
		}
	}

	return nil
}

// find applies the override first; only without one is the search path scanned.
func (l *Locator) find(ctx context.Context) (bootstrap.RuntimeCandidate, error) {
	if l.javaHome != "" {
		return l.fromOverride(ctx)
	}

	for _, path := range common.FindExecutables(javaExecutable, l.searchPath, l.pathExt) {
		candidate, err := l.probe(ctx, path, bootstrap.OriginSearchPath)
		if err != nil {
			return bootstrap.RuntimeCandidate{}, err
		}

		if candidate.IsPlaceholder {
			logger.DebugKV(ctx, "Skipping placeholder Java executable", "path", path)

			continue
		}

		return candidate, nil
	}

	return bootstrap.RuntimeCandidate{}, &bootstrap.RuntimeNotFoundError{Origin: bootstrap.OriginSearchPath}
}

// fromOverride resolves the executable under JAVA_HOME. It never falls back to the search path.
func (l *Locator) fromOverride(ctx context.Context) (bootstrap.RuntimeCandidate, error) {
	path := filepath.Join(l.javaHome, "bin", common.ExecutableName(javaExecutable))

	notFound := &bootstrap.RuntimeNotFoundError{
		Origin:        bootstrap.OriginOverride,
		OverrideValue: l.javaHome,
		ExpectedPath:  path,
	}

	if !common.IsExecutable(path) {
		return bootstrap.RuntimeCandidate{}, notFound
	}

	candidate, err := l.probe(ctx, path, bootstrap.OriginOverride)
	if err != nil {
		return bootstrap.RuntimeCandidate{}, err
	}

	if candidate.IsPlaceholder {
		logger.DebugKV(ctx, "JAVA_HOME points at a placeholder", "error", &bootstrap.RuntimePlaceholderError{Path: path})

		return bootstrap.RuntimeCandidate{}, notFound
	}

	return candidate, nil
}

// probe runs the executable and describes it.
func (l *Locator) probe(ctx context.Context, path string, origin bootstrap.Origin) (bootstrap.RuntimeCandidate, error) {
	output, err := l.prober.Probe(ctx, path)
	if err != nil {
		return bootstrap.RuntimeCandidate{}, err
	}

	descriptor, err := ParseProbeOutput(output)
	if err != nil {
		return bootstrap.RuntimeCandidate{}, fmt.Errorf("%s: %w", path, err)
	}

	return bootstrap.RuntimeCandidate{
		ExecutablePath: path,
		Origin:         origin,
		RawVersion:     descriptor.RawVersion,
		Major:          descriptor.Major,
		Minor:          descriptor.Minor,
		Bitness:        descriptor.Bitness,
		IsPlaceholder:  descriptor.IsPlaceholder,
	}, nil
}
