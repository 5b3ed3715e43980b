package hasher

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
)

// Kind identifies the category of a scan failure. The set is closed: every
// filesystem error the hasher can encounter maps to exactly one Kind.
type Kind int

const (
	KindNotFound Kind = iota
	KindIsDirectory
	KindTooLarge
	KindPermissionDenied
	KindAccessError
)

// String returns a short identifier for the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindIsDirectory:
		return "is_directory"
	case KindTooLarge:
		return "too_large"
	case KindPermissionDenied:
		return "permission_denied"
	case KindAccessError:
		return "access_error"
	default:
		return "unknown"
	}
}

// Failure is a classified filesystem-access failure for a single path.
// Failures are always recovered by the scan loop: logged at Level and
// skipped. They never abort a pass.
type Failure struct {
	Kind  Kind
	Path  string
	Cause error // Underlying OS error, if any
}

// Error implements the error interface.
func (f *Failure) Error() string { return f.Message() }

// Unwrap exposes the underlying OS error for errors.Is checks.
func (f *Failure) Unwrap() error { return f.Cause }

// Level returns the log severity for the failure. Expected, recoverable
// conditions log at warning; unclassified OS errors may indicate a deeper
// host problem and log at error.
func (f *Failure) Level() slog.Level {
	if f.Kind == KindAccessError {
		return slog.LevelError
	}
	return slog.LevelWarn
}

// Message returns the log message for the failure. The exact text is part of
// the logging contract: downstream tooling greps for these patterns.
func (f *Failure) Message() string {
	switch f.Kind {
	case KindIsDirectory:
		return fmt.Sprintf("Skipping directory: %s", f.Path)
	case KindNotFound:
		return fmt.Sprintf("File not found: %s", f.Path)
	case KindTooLarge:
		return fmt.Sprintf("File too large for hashing: %s", f.Path)
	case KindPermissionDenied:
		return fmt.Sprintf("Permission denied accessing %s", f.Path)
	default: // KindAccessError
		msg := "unknown error"
		if f.Cause != nil {
			msg = f.Cause.Error()
		}
		return fmt.Sprintf("File access error: %s", msg)
	}
}

// Classify maps an arbitrary filesystem error to a Failure for path.
// Errors that are already Failures pass through unchanged; anything that is
// neither a missing-file nor a permission error becomes an AccessError.
func Classify(err error, path string) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &Failure{Kind: KindNotFound, Path: path, Cause: err}
	case errors.Is(err, fs.ErrPermission):
		return &Failure{Kind: KindPermissionDenied, Path: path, Cause: err}
	default:
		return &Failure{Kind: KindAccessError, Path: path, Cause: err}
	}
}
