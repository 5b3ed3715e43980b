package worker

// State is the lifecycle state of the worker.
//
// Transitions: Initializing → Running ⇄ Paused → Stopped. Stopped is
// terminal; after it no further hashing occurs and the results channel is
// closed. The worker owns its state exclusively - external components
// observe it only through emitted results or their absence.
type State int32

const (
	StateInitializing State = iota
	StateRunning
	StatePaused
	StateStopped
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
