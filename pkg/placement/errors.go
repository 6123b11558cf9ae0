package placement

import "errors"

// ErrNoCandidates is returned when a workload's candidate set is
// empty: no node currently satisfies can_place for it.
var ErrNoCandidates = errors.New("no placement candidates")
