package progress

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a progress bar for batch evaluation.
type Tracker struct {
	bar    *progressbar.ProgressBar
	label  string
	w      io.Writer
	failed atomic.Int64
}

// NewTracker creates a progress bar on stderr with the given label and
// total count.
func NewTracker(label string, total int) *Tracker {
	return NewWriterTracker(os.Stderr, label, total)
}

// NewWriterTracker is NewTracker writing to w.
func NewWriterTracker(w io.Writer, label string, total int) *Tracker {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar, label: label, w: w}
}

// Tick increments the progress by 1. Safe for concurrent use.
func (t *Tracker) Tick() {
	_ = t.bar.Add(1)
}

// Fail records a failed item and ticks. Safe for concurrent use.
func (t *Tracker) Fail() {
	t.failed.Add(1)
	t.Tick()
}

// Failed returns the number of failed items.
func (t *Tracker) Failed() int {
	return int(t.failed.Load())
}

// FinishSuccess clears the bar. When items failed it prints a count.
func (t *Tracker) FinishSuccess() {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
	if n := t.Failed(); n > 0 {
		fmt.Fprintf(t.w, "  %s: %d failed\n", t.label, n)
	}
}

// FinishError clears the bar and prints an error message.
func (t *Tracker) FinishError(err error) {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
	fmt.Fprintf(t.w, "  %s error: %v\n", t.label, err)
}
