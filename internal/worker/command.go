package worker

import "github.com/ivoronin/hashmon/internal/config"

// Command is a control instruction consumed by the worker between scan
// steps, never mid-hash. Commands are consumed exactly once, in FIFO order,
// by the single worker goroutine.
type Command interface {
	isCommand()
}

// Stop halts the worker before the next file begins hashing. A file already
// mid-read is allowed to complete. Stop is idempotent and terminal.
type Stop struct{}

func (Stop) isCommand() {}

// Pause suspends scanning until Resume or Stop arrives.
type Pause struct{}

func (Pause) isCommand() {}

// Resume continues scanning after a Pause. No-op while running.
type Resume struct{}

func (Resume) isCommand() {}

// UpdateConfig applies a partial configuration change. New limits are
// visible to the next path processed, never retroactively to an in-flight
// read; path list changes take effect at the next pass.
type UpdateConfig struct {
	Patch config.Patch
}

func (UpdateConfig) isCommand() {}
