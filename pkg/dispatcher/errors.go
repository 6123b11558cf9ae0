package dispatcher

import "errors"

var (
	// ErrNotFound is returned when the dispatcher has no executor
	// registered for the workload's node.
	ErrNotFound = errors.New("executor not found")
	// ErrAgentUnreachable is returned when a remote agent's connection
	// could not be dialed or the RPC failed at the transport level.
	ErrAgentUnreachable = errors.New("agent unreachable")
	// ErrExecutorNotRunning is returned when the owning executor exists
	// but has shut down (e.g. agent process exited).
	ErrExecutorNotRunning = errors.New("executor not running")
	// ErrTimeout is returned when a synchronous dispatch exceeds its
	// deadline (30s process / 60s microvm on start).
	ErrTimeout = errors.New("dispatch timeout")
)
