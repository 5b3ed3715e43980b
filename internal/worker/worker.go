// Package worker implements the file-integrity monitoring loop.
//
// # Architecture Overview
//
// The worker runs as a single goroutine driving repeated scan passes over
// the configured paths. Two unidirectional channels cross the process
// boundary:
//
//	control (inbound)  - lifecycle and configuration commands
//	results (outbound) - successful hash records for the reporting layer
//
// # Data Flow
//
//	Run() starts
//	    │
//	    ├──► scan pass: for each watched path (in configured order)
//	    │        │
//	    │        ├──► drain control channel (stop / pause / reconfigure)
//	    │        ├──► hasher.Calculate(path, limits)
//	    │        │        ├──► success → baseline compare → results channel
//	    │        │        └──► failure → classified log emission, continue
//	    │        └──► next path
//	    │
//	    ├──► sink.ScanComplete(pass, summary)
//	    │
//	    └──► idle for the configured interval, then next pass
//
// # Synchronization
//
//	┌──────────────┬──────────────────────────────────────────────────┐
//	│ Primitive    │ Purpose                                          │
//	├──────────────┼──────────────────────────────────────────────────┤
//	│ cfg pointer  │ Whole-object config swap (no partial visibility) │
//	│ state        │ Lifecycle state, readable from other goroutines  │
//	│ results chan │ Bounded outbound queue (backpressure boundary)   │
//	│ ctrl chan    │ FIFO command queue, single consumer              │
//	└──────────────┴──────────────────────────────────────────────────┘
//
// A single file's failure never aborts a pass: every hasher error is
// classified, logged at its mapped severity, and skipped. Forward progress
// of the loop is the primary invariant.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ivoronin/hashmon/internal/baseline"
	"github.com/ivoronin/hashmon/internal/config"
	"github.com/ivoronin/hashmon/internal/hasher"
	"github.com/ivoronin/hashmon/internal/notify"
	"github.com/ivoronin/hashmon/internal/progress"
)

// Defaults for Options fields left zero.
const (
	DefaultQueueSize   = 100
	DefaultSendTimeout = 5 * time.Second
)

// Options tunes worker channel behavior and output.
type Options struct {
	QueueSize    int           // Results channel capacity
	SendTimeout  time.Duration // Bounded wait when the results channel is full
	ShowProgress bool          // Display a per-pass progress bar on stderr
	Once         bool          // Run a single pass, then stop
}

// Baseline provides the previously observed digest for change detection.
// A nil Baseline disables change detection entirely.
type Baseline interface {
	Lookup(path string) (*baseline.Entry, error)
	Store(res *hasher.Result) error
}

// Worker owns the scan loop state machine.
//
// The worker is designed for single use: create with New(), call Run() once.
type Worker struct {
	// Injected at construction
	ctrl   <-chan Command
	opts   Options
	logger *slog.Logger
	sink   notify.Sink
	base   Baseline

	// Runtime
	cfg     atomic.Pointer[config.Config]
	state   atomic.Int32
	results chan *hasher.Result
	pass    uint64 // Monotonically increasing pass index
}

// New validates the configuration and constructs a worker.
//
// ctrl must be non-nil: the control channel is the only way to stop a
// running worker. An invalid configuration is fatal here rather than
// tolerated at scan time. logger, sink, and base may be nil (discard
// logging, no-op sink, no change detection).
func New(cfg *config.Config, ctrl <-chan Command, opts Options, logger *slog.Logger, sink notify.Sink, base Baseline) (*Worker, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if ctrl == nil {
		return nil, errors.New("nil control channel")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if sink == nil {
		sink = notify.Nop{}
	}

	w := &Worker{
		ctrl:    ctrl,
		opts:    opts,
		logger:  logger,
		sink:    sink,
		base:    base,
		results: make(chan *hasher.Result, opts.QueueSize),
	}
	w.cfg.Store(cfg.Clone())
	w.state.Store(int32(StateInitializing))
	return w, nil
}

// Results returns the outbound channel of hash records. The channel is
// closed when the worker stops; it has at most one consumer.
func (w *Worker) Results() <-chan *hasher.Result { return w.results }

// State returns the current lifecycle state.
func (w *Worker) State() State { return State(w.state.Load()) }

// Run drives scan passes until a Stop command arrives, the control channel
// closes, or ctx is cancelled. It always closes the results channel on
// return, so the consumer's range loop terminates.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.results)
	defer w.state.Store(int32(StateStopped))

	w.state.Store(int32(StateRunning))
	for {
		w.pass++
		if !w.scanPass(ctx) {
			return
		}
		if w.opts.Once {
			return
		}
		if !w.idle(ctx) {
			return
		}
	}
}

// scanPass hashes every watched path once, in configured order.
// Returns false when the worker should stop.
//
// The path list is snapshotted at pass start; size limits are re-read per
// path so an UpdateConfig takes effect on the very next file.
func (w *Worker) scanPass(ctx context.Context) bool {
	paths := w.cfg.Load().WatchedPaths
	st := &passStats{startTime: time.Now()}
	bar := progress.NewPass(w.opts.ShowProgress, len(paths))
	defer bar.Finish()

	for _, path := range paths {
		if !w.pumpControl(ctx) {
			return false
		}

		cfg := w.cfg.Load()
		res, err := hasher.Calculate(path, cfg.MaxFileSize, cfg.ChunkSize)
		if err != nil {
			f := hasher.Classify(err, path)
			w.logger.Log(ctx, f.Level(), f.Message(), slog.String("path", path))
			st.failures++
			bar.Advance()
			continue
		}

		st.hashedFiles++
		st.hashedBytes += res.FileSize
		w.checkBaseline(res, st)
		w.dispatch(ctx, res, st)
		bar.Advance()
		bar.Describe(st)
	}

	summary := st.String()
	w.sink.ScanComplete(w.pass, summary)
	w.logger.Debug("scan pass complete", "pass", w.pass, "summary", summary)
	return true
}

// checkBaseline compares res against the stored digest and records the
// fresh one. Baseline failures degrade to warnings: change detection is an
// optional capability, never a reason to abort scanning.
func (w *Worker) checkBaseline(res *hasher.Result, st *passStats) {
	if w.base == nil {
		return
	}

	prev, err := w.base.Lookup(res.Path)
	switch {
	case err != nil:
		w.logger.Warn("baseline lookup failed", "path", res.Path, "err", err)
	case prev != nil && prev.SHA256 != res.SHA256:
		st.changed++
		w.sink.FileChanged(res.Path, prev.SHA256, res.SHA256)
		w.logger.Info("file content changed",
			"path", res.Path, "old_sha256", prev.SHA256, "new_sha256", res.SHA256)
	}

	if err := w.base.Store(res); err != nil {
		w.logger.Warn("baseline store failed", "path", res.Path, "err", err)
	}
}

// dispatch pushes a result to the outbound channel with a bounded wait.
// If the consumer cannot drain within SendTimeout the record is dropped
// with a warning; loop progress takes priority over delivery.
func (w *Worker) dispatch(ctx context.Context, res *hasher.Result, st *passStats) {
	select {
	case w.results <- res:
		return
	default:
	}

	t := time.NewTimer(w.opts.SendTimeout)
	defer t.Stop()
	select {
	case w.results <- res:
	case <-t.C:
		st.dropped++
		w.logger.Warn("dropping result: outbound queue full", "path", res.Path)
	case <-ctx.Done():
	}
}

// pumpControl drains pending control commands without blocking, except
// while paused, where it blocks until Resume, Stop, or cancellation.
// Returns false when the worker should stop.
func (w *Worker) pumpControl(ctx context.Context) bool {
	for {
		if w.State() == StatePaused {
			select {
			case cmd, ok := <-w.ctrl:
				if !ok {
					return false
				}
				if !w.apply(cmd) {
					return false
				}
			case <-ctx.Done():
				return false
			}
			continue
		}

		select {
		case cmd, ok := <-w.ctrl:
			if !ok {
				return false
			}
			if !w.apply(cmd) {
				return false
			}
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
}

// apply executes a single control command. Returns false on Stop.
func (w *Worker) apply(cmd Command) bool {
	switch c := cmd.(type) {
	case Stop:
		w.logger.Info("stop requested")
		return false
	case Pause:
		if w.State() == StateRunning {
			w.state.Store(int32(StatePaused))
			w.logger.Info("worker paused")
		}
		return true
	case Resume:
		if w.State() == StatePaused {
			w.state.Store(int32(StateRunning))
			w.logger.Info("worker resumed")
		}
		return true
	case UpdateConfig:
		next, err := c.Patch.Apply(w.cfg.Load())
		if err != nil {
			w.logger.Warn("rejected config update", "err", err)
			return true
		}
		w.cfg.Store(next) // Whole-object swap: no partial visibility
		w.logger.Info("config updated",
			"max_file_size", next.MaxFileSize,
			"chunk_size", next.ChunkSize,
			"paths", len(next.WatchedPaths),
			"interval", next.Interval)
		return true
	default:
		w.logger.Warn("unknown control command", "command", fmt.Sprintf("%T", cmd))
		return true
	}
}

// idle waits out the inter-pass interval while staying responsive to
// control commands. Returns false when the worker should stop.
func (w *Worker) idle(ctx context.Context) bool {
	interval := w.cfg.Load().Interval
	if interval <= 0 {
		return w.pumpControl(ctx)
	}

	t := time.NewTimer(interval)
	defer t.Stop()
	for {
		select {
		case cmd, ok := <-w.ctrl:
			if !ok {
				return false
			}
			if !w.apply(cmd) {
				return false
			}
			if w.State() == StatePaused {
				if !w.pumpControl(ctx) {
					return false
				}
			}
		case <-t.C:
			return true
		case <-ctx.Done():
			return false
		}
	}
}
