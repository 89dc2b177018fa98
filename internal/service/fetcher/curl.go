package fetcher

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
	"github.com/oshokin/batect-launcher/internal/service/common"
)

// curlTool is the executable the curl transport needs.
const curlTool = "curl"

// errCurlFailed is reported when curl exits without a usable message.
var errCurlFailed = errors.New("curl failed")

// CurlTransport downloads with an external curl found on the configured search path.
type CurlTransport struct {
	// searchPath is the PATH curl is looked up in.
	searchPath string
	// pathExt lists executable extensions on Windows.
	pathExt string
	// timeout bounds connecting to the server.
	timeout time.Duration
	// reporter decides between the progress bar and silence.
	reporter *Reporter
}

// NewCurlTransport creates a curl based transport.
func NewCurlTransport(searchPath, pathExt string, timeout time.Duration, reporter *Reporter) *CurlTransport {
	if reporter == nil {
		reporter = NewReporter(nil, true)
	}

	return &CurlTransport{
		searchPath: searchPath,
		pathExt:    pathExt,
		timeout:    timeout,
		reporter:   reporter,
	}
}

// Download implements Transport.
func (t *CurlTransport) Download(ctx context.Context, sourceURL, destination string) error {
	curlPath, ok := common.FindExecutable(curlTool, t.searchPath, t.pathExt)
	if !ok {
		return &bootstrap.MissingDependencyError{Tool: curlTool}
	}

	var stderr strings.Builder

	cmd := exec.CommandContext(ctx, curlPath, t.arguments(sourceURL, destination)...)
	cmd.Stderr = &stderr

	if !t.reporter.Quiet() {
		cmd.Stderr = &teeWriter{primary: &stderr, secondary: t.reporter.Output()}
	}

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &bootstrap.DownloadError{URL: sourceURL, Err: ctxErr}
		}

		return &bootstrap.DownloadError{URL: sourceURL, Status: curlStatus(stderr.String()), Err: err}
	}

	return nil
}

// arguments builds the curl command line.
func (t *CurlTransport) arguments(sourceURL, destination string) []string {
	args := []string{"--fail", "--location", "--show-error", "--output", destination}

	if t.timeout > 0 {
		args = append(args, "--connect-timeout", strconv.FormatFloat(t.timeout.Seconds(), 'f', -1, 64))
	}

	if t.reporter.Quiet() {
		args = append(args, "--silent")
	} else {
		args = append(args, "--progress-bar")
	}

	return append(args, sourceURL)
}

// curlStatus extracts the last diagnostic line curl printed, e.g.
// "curl: (22) The requested URL returned error: 404".
func curlStatus(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "curl:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "curl:"))
		}
	}

	return errCurlFailed.Error()
}

// teeWriter copies curl's stderr to the user while keeping it for diagnostics.
type teeWriter struct {
	// primary collects the output.
	primary *strings.Builder
	// secondary shows the output; its errors are ignored.
	secondary io.Writer
}

// Write implements io.Writer.
func (w *teeWriter) Write(p []byte) (int, error) {
	_, _ = w.secondary.Write(p)

	return w.primary.Write(p)
}
