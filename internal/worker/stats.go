package worker

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// passStats tracks one scan pass. Only the worker goroutine touches these
// counters, so plain fields suffice.
type passStats struct {
	hashedFiles int64
	hashedBytes int64
	failures    int64
	changed     int64
	dropped     int64
	startTime   time.Time
}

func (s *passStats) String() string {
	elapsed := time.Since(s.startTime).Seconds()
	if s.dropped > 0 {
		return fmt.Sprintf("Hashed %d files (%s), %d changed, %d failures, %d dropped in %.1fs",
			s.hashedFiles, humanize.IBytes(uint64(s.hashedBytes)),
			s.changed, s.failures, s.dropped, elapsed)
	}
	return fmt.Sprintf("Hashed %d files (%s), %d changed, %d failures in %.1fs",
		s.hashedFiles, humanize.IBytes(uint64(s.hashedBytes)),
		s.changed, s.failures, elapsed)
}
