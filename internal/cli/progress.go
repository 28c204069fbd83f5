package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// CLIProgressReporter shows extraction progress with a progress bar.
type CLIProgressReporter struct {
	w         io.Writer
	quiet     bool
	bar       *progressbar.ProgressBar
	startTime time.Time
	total     int
}

// NewCLIProgressReporter creates a new CLI progress reporter writing to w.
func NewCLIProgressReporter(w io.Writer, quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{
		w:         w,
		quiet:     quiet,
		startTime: time.Now(),
	}
}

func (c *CLIProgressReporter) OnDiscoveryComplete(files int) {
	if c.quiet {
		return
	}
	c.total = files
	fmt.Fprintf(c.w, "Indexing %d story files\n", files)

	c.bar = progressbar.NewOptions(files,
		progressbar.OptionSetWriter(c.w),
		progressbar.OptionSetDescription("Extracting"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.w)
		}),
	)
}

// OnFileExtracted is safe for concurrent use; the bar serializes updates.
func (c *CLIProgressReporter) OnFileExtracted(importPath string) {
	if c.quiet || c.bar == nil {
		return
	}
	c.bar.Add(1)
}

// Finish closes the bar and prints a summary line.
func (c *CLIProgressReporter) Finish(entries int) {
	if c.quiet {
		return
	}
	if c.bar != nil {
		c.bar.Finish()
		c.bar = nil
	}
	fmt.Fprintf(c.w, "✓ Indexed %d entries from %d files in %.1fs\n",
		entries, c.total, time.Since(c.startTime).Seconds())
}
