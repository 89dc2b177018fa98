package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/batect-launcher/internal/repository/cache"
)

// testEntries returns one complete and one incomplete cache entry.
func testEntries() []*cache.Entry {
	lastUsed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	return []*cache.Entry{
		{
			VersionID:    "0.78.0",
			ArtifactPath: "/cache/0.78.0/batect-0.78.0.jar",
		},
		{
			VersionID:    "0.79.1",
			ArtifactPath: "/cache/0.79.1/batect-0.79.1.jar",
			HasArtifact:  true,
			Size:         2_500_000,
			LastUsed:     &lastUsed,
			Metadata:     &cache.Metadata{Checksum: "sha256:abcd"},
		},
	}
}

// TestPrintEntries_Table renders sizes and placeholders for missing values.
func TestPrintEntries_Table(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, printEntries(&out, testEntries(), outputTable))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "VERSION"))
	require.Contains(t, lines[1], "missing")
	require.Contains(t, lines[1], "never")
	require.Contains(t, lines[2], "2.5 MB")
	require.Contains(t, lines[2], "sha256:abcd")
}

// TestPrintEntries_YAML emits machine-readable entries.
func TestPrintEntries_YAML(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, printEntries(&out, testEntries(), outputYAML))

	var decoded []map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	require.Equal(t, "0.79.1", decoded[1]["version"])
	require.Equal(t, true, decoded[1]["available"])
	require.NotContains(t, decoded[0], "last_used")
}

// TestPrintEntries_UnknownFormat rejects formats other than table and yaml.
func TestPrintEntries_UnknownFormat(t *testing.T) {
	t.Parallel()

	require.Error(t, printEntries(&bytes.Buffer{}, nil, "json"))
}
