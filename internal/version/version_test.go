package version

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures Short and Full return non-empty consistent information.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Short())
	require.Contains(t, Full(), ArtifactVersion)
}

// TestDownloadURLTemplate ensures the default template is parameterised by version.
func TestDownloadURLTemplate(t *testing.T) {
	t.Parallel()

	require.Contains(t, DownloadURLTemplate, "{version}")
}

// TestAttachCobraVersionCommand runs the attached subcommand and checks its output.
func TestAttachCobraVersionCommand(t *testing.T) {
	t.Parallel()

	root := &cobra.Command{Use: "batectctl"}
	AttachCobraVersionCommand(root)

	var output bytes.Buffer

	root.SetOut(&output)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	require.Equal(t, Full()+"\n", output.String())
}
