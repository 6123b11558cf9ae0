package coordinator

import "errors"

// Error taxonomy from §7: names are contracts, surfaced to the caller
// at whatever API boundary sits in front of the Coordinator.
var (
	// ErrNotFound is returned when the targeted record doesn't exist.
	ErrNotFound = errors.New("coordinator: not found")
	// ErrInvalidState is returned when an operation would violate the
	// workload lifecycle graph (e.g. stopping a workload that isn't
	// running or starting).
	ErrInvalidState = errors.New("coordinator: invalid state transition")
	// ErrNoCandidates names the no-placement-candidates outcome.
	// DeployWorkload does not return it: with no candidates it returns
	// the workload, still pending, and a nil error. RestartWorkload
	// reports the same case as placement.ErrNoCandidates.
	ErrNoCandidates = errors.New("coordinator: no placement candidates")
	// ErrUnsupportedPlatform is returned when deploy_workload is asked
	// for a workload type this fleet has no capability to run at all.
	ErrUnsupportedPlatform = errors.New("coordinator: unsupported workload type")
)
