package placement

import (
	"math/rand"
	"sort"

	"github.com/cuemby/fleet/pkg/facts"
	"github.com/cuemby/fleet/pkg/types"
)

// Candidate is one eligible node for a pending workload, as surfaced
// by placement_candidate/4.
type Candidate struct {
	NodeID    string
	CPUFree   int
	MemFreeMB int
}

// score implements the scoring function from §4.7: a deliberately
// mixed-unit sum, kept as-is so it is deterministic and identical
// across strategies.
func (c Candidate) score() float64 {
	return float64(c.CPUFree) + float64(c.MemFreeMB)/1024.0
}

// CandidatesFromFacts converts placement_candidate/4 rows into
// Candidates. Rows that don't match the expected shape are skipped;
// callers query with a bound workload-id wildcard slot so every
// returned fact already belongs to one workload.
func CandidatesFromFacts(rows []facts.Fact) []Candidate {
	out := make([]Candidate, 0, len(rows))
	for _, f := range rows {
		if len(f.Args) != 4 {
			continue
		}
		nodeID := f.Args[1].Str()
		cpuFree := int(f.Args[2].Num())
		memFree := int(f.Args[3].Num())
		out = append(out, Candidate{NodeID: nodeID, CPUFree: cpuFree, MemFreeMB: memFree})
	}
	return out
}

// Select picks one candidate per the given strategy. Ties are always
// broken lexicographically by node id, so spread and pack are fully
// deterministic; random picks uniformly among all candidates,
// ignoring score.
func Select(strategy types.Strategy, candidates []Candidate) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, ErrNoCandidates
	}

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].NodeID < sorted[j].NodeID })

	switch strategy {
	case types.StrategyRandom:
		return sorted[rand.Intn(len(sorted))], nil
	case types.StrategyPack:
		return best(sorted, func(a, b float64) bool { return a < b }), nil
	case types.StrategySpread:
		fallthrough
	default:
		return best(sorted, func(a, b float64) bool { return a > b }), nil
	}
}

// best returns the first candidate (in node-id order) whose score is
// not improved on by any later one, per the ordering function
// `better`. Scanning in node-id order and keeping the first tie winner
// is what gives spread/pack their lexicographic tie-break.
func best(sorted []Candidate, better func(a, b float64) bool) Candidate {
	winner := sorted[0]
	winnerScore := winner.score()
	for _, c := range sorted[1:] {
		s := c.score()
		if better(s, winnerScore) {
			winner = c
			winnerScore = s
		}
	}
	return winner
}
