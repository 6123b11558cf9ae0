package factstore

import (
	"github.com/cuemby/fleet/pkg/facts"
	"github.com/cuemby/fleet/pkg/placement"
	"github.com/cuemby/fleet/pkg/types"
)

// Query runs an arbitrary pattern against the live fact base. Results
// are deduplicated, matching the query result contract every caller
// relies on.
func (s *Store) Query(p facts.Pattern) ([]facts.Fact, error) {
	return s.eng.Query(p)
}

// PlacementCandidates returns every placement_candidate row for
// workloadID, ready for placement.CandidatesFromFacts.
func (s *Store) PlacementCandidates(workloadID string) ([]facts.Fact, error) {
	return s.eng.Query(facts.NewPattern(facts.PlacementCandidate,
		facts.Bound(facts.String(workloadID)), facts.Any(), facts.Any(), facts.Any()))
}

// PlacementCandidateList is a convenience wrapper returning already
// decoded placement.Candidate values for workloadID.
func (s *Store) PlacementCandidateList(workloadID string) ([]placement.Candidate, error) {
	rows, err := s.PlacementCandidates(workloadID)
	if err != nil {
		return nil, err
	}
	return placement.CandidatesFromFacts(rows), nil
}

// RestartCandidates returns every restart_candidate row for
// workloadID, ready for placement.CandidatesFromFacts.
func (s *Store) RestartCandidates(workloadID string) ([]facts.Fact, error) {
	return s.eng.Query(facts.NewPattern(facts.RestartCandidate,
		facts.Bound(facts.String(workloadID)), facts.Any(), facts.Any(), facts.Any()))
}

// RestartCandidateList is a convenience wrapper returning already
// decoded placement.Candidate values for workloadID, for
// RestartWorkload: can_restart(W) only derives for /failed workloads,
// which placement_candidate (built on can_place's /pending
// requirement) can never match, so restarts query this predicate
// instead.
func (s *Store) RestartCandidateList(workloadID string) ([]placement.Candidate, error) {
	rows, err := s.RestartCandidates(workloadID)
	if err != nil {
		return nil, err
	}
	return placement.CandidatesFromFacts(rows), nil
}

// WorkloadsToFail returns the ids of every workload currently
// satisfying should_fail/1.
func (s *Store) WorkloadsToFail() ([]string, error) {
	return s.queryIDs(facts.ShouldFail)
}

// WorkloadsToRestart returns the ids of every workload currently
// satisfying can_restart/1.
func (s *Store) WorkloadsToRestart() ([]string, error) {
	return s.queryIDs(facts.CanRestart)
}

// StaleNodes returns the ids of every node currently satisfying
// node_stale/1.
func (s *Store) StaleNodes() ([]string, error) {
	return s.queryIDs(facts.NodeStale)
}

// OrphanedWorkloads returns the ids of every workload currently
// satisfying workload_orphaned/1.
func (s *Store) OrphanedWorkloads() ([]string, error) {
	return s.queryIDs(facts.WorkloadOrphaned)
}

// OverloadedNodes returns the ids of every node currently satisfying
// node_overloaded/1.
func (s *Store) OverloadedNodes() ([]string, error) {
	return s.queryIDs(facts.NodeOverloaded)
}

// CanTransition reports whether workloadID may transition to the
// given status, per valid_transition/2 and the workload's current
// status in the fact base.
func (s *Store) CanTransition(workloadID string, to types.WorkloadStatus) (bool, error) {
	rows, err := s.eng.Query(facts.NewPattern(facts.CanTransition,
		facts.Bound(facts.String(workloadID)), facts.Bound(facts.Symbol(string(to)))))
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// AnyNodeHasCapability reports whether any node in the fleet currently
// advertises capType with capValue. Used to validate that a workload
// type is actually runnable somewhere before it is even created.
func (s *Store) AnyNodeHasCapability(capType, capValue string) (bool, error) {
	rows, err := s.eng.Query(facts.NewPattern(facts.NodeCapability,
		facts.Any(), facts.Bound(facts.String(capType)), facts.Bound(facts.String(capValue))))
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// AnyNodeHasCapabilityType reports whether any node advertises capType
// with any value at all.
func (s *Store) AnyNodeHasCapabilityType(capType string) (bool, error) {
	rows, err := s.eng.Query(facts.NewPattern(facts.NodeCapability,
		facts.Any(), facts.Bound(facts.String(capType)), facts.Any()))
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (s *Store) queryIDs(predicate string) ([]string, error) {
	rows, err := s.eng.Query(facts.NewPattern(predicate, facts.Any()))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, f := range rows {
		if len(f.Args) != 1 {
			continue
		}
		out = append(out, f.Args[0].Str())
	}
	return out, nil
}
