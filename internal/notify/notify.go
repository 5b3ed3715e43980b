// Package notify defines the outbound notification capability of the worker.
//
// A real deployment plugs in a push transport (websocket, message bus); the
// worker itself only sees the Sink interface. Absence of a transport is
// modeled by Nop rather than a nil reference, so the worker never checks for
// presence.
package notify

import "log/slog"

// Sink receives summary events emitted by the monitoring worker.
// Implementations are called from the worker goroutine and must not block
// for long; a slow sink delays the scan loop.
type Sink interface {
	// FileChanged reports that a watched file's content digest differs from
	// the previously recorded one.
	FileChanged(path, oldSHA256, newSHA256 string)
	// ScanComplete reports that a full pass over the watched paths finished.
	ScanComplete(pass uint64, summary string)
}

// Nop discards all events.
type Nop struct{}

func (Nop) FileChanged(string, string, string) {}
func (Nop) ScanComplete(uint64, string)        {}

// LogSink forwards events to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) FileChanged(path, oldSHA256, newSHA256 string) {
	s.Logger.Info("file changed",
		"path", path, "old_sha256", oldSHA256, "new_sha256", newSHA256)
}

func (s LogSink) ScanComplete(pass uint64, summary string) {
	s.Logger.Info("scan complete", "pass", pass, "summary", summary)
}
