// Package progress renders scan pass progress on stderr.
package progress

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

const updateInterval = 50 * time.Millisecond

// Bar tracks progress through one scan pass.
// All methods are no-ops when the bar is disabled, so callers never branch
// on whether progress display is on.
type Bar struct {
	bar *progressbar.ProgressBar
}

// NewPass creates a progress bar for a pass over totalPaths paths.
// If enabled=false, returns a Bar where all methods are no-ops.
func NewPass(enabled bool, totalPaths int) *Bar {
	if !enabled || totalPaths <= 0 {
		return &Bar{}
	}

	return &Bar{bar: progressbar.NewOptions(totalPaths,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(updateInterval),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWidth(40),
	)}
}

// Advance marks one path as processed (hashed or skipped).
func (b *Bar) Advance() {
	if b.bar != nil {
		_ = b.bar.Add(1)
	}
}

// Describe updates the progress bar description.
func (b *Bar) Describe(s fmt.Stringer) {
	if b.bar != nil {
		b.bar.Describe(s.String())
	}
}

// Finish clears the bar. Pass summaries go through the logger and the
// notification sink, not the bar.
func (b *Bar) Finish() {
	if b.bar != nil {
		_ = b.bar.Finish()
	}
}
