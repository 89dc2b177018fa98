package fetcher

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
)

// redrawInterval limits how often the progress line is repainted.
const redrawInterval = 100 * time.Millisecond

// Reporter tells the user about downloads. Reporting never affects download results:
// write errors on the output are ignored.
type Reporter struct {
	// out receives the messages; usually stderr, since stdout belongs to the application.
	out io.Writer
	// quiet suppresses all output.
	quiet bool
	// interactive enables the repainted progress line.
	interactive bool
}

// NewReporter creates a reporter writing to out. Progress lines are drawn only when out is a terminal.
func NewReporter(out io.Writer, quiet bool) *Reporter {
	if out == nil {
		out = io.Discard
		quiet = true
	}

	interactive := false
	if file, ok := out.(*os.File); ok {
		interactive = term.IsTerminal(int(file.Fd()))
	}

	return &Reporter{
		out:         out,
		quiet:       quiet,
		interactive: interactive,
	}
}

// Quiet reports whether output is suppressed.
func (r *Reporter) Quiet() bool {
	return r.quiet
}

// Output returns the writer used for user-facing messages.
func (r *Reporter) Output() io.Writer {
	return r.out
}

// Started announces a download.
func (r *Reporter) Started(versionID bootstrap.VersionID, sourceURL string) {
	if r.quiet {
		return
	}

	_, _ = fmt.Fprintf(r.out, "Downloading Batect version %s from %s...\n", versionID, sourceURL)
}

// Track returns a writer counting transferred bytes against total (negative when unknown).
// The returned finish function ends the progress line.
func (r *Reporter) Track(total int64) (io.Writer, func()) {
	if r.quiet || !r.interactive {
		return io.Discard, func() {}
	}

	bar := &progressBar{
		out:   r.out,
		total: total,
	}

	return bar, bar.finish
}

// progressBar repaints a single status line as bytes arrive.
type progressBar struct {
	// mu guards the counters; transports may write from another goroutine.
	mu sync.Mutex
	// out is the terminal.
	out io.Writer
	// total is the expected size, negative when the server did not announce it.
	total int64
	// written is the number of bytes seen so far.
	written int64
	// drawnAt is when the line was last repainted.
	drawnAt time.Time
}

// Write implements io.Writer.
func (b *progressBar) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.written += int64(len(p))

	if now := time.Now(); now.Sub(b.drawnAt) >= redrawInterval {
		b.drawnAt = now
		b.draw()
	}

	return len(p), nil
}

// finish paints the final state and moves to the next line.
func (b *progressBar) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.draw()

	_, _ = fmt.Fprintln(b.out)
}

// draw paints the current state.
func (b *progressBar) draw() {
	_, _ = fmt.Fprintf(b.out, "\r%s", formatProgress(b.written, b.total))
}

// formatProgress renders the transferred amount, with a percentage when the total is known.
func formatProgress(written, total int64) string {
	if total <= 0 {
		return humanize.Bytes(uint64(written)) + " downloaded"
	}

	percent := written * 100 / total
	if percent > 100 {
		percent = 100
	}

	return fmt.Sprintf("%s / %s (%d%%)",
		humanize.Bytes(uint64(written)), humanize.Bytes(uint64(total)), percent)
}
