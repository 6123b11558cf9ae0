package placement

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleet/pkg/facts"
	"github.com/cuemby/fleet/pkg/types"
)

func candidateFact(workloadID, nodeID string, cpuFree, memFree int64) facts.Fact {
	return facts.New(facts.PlacementCandidate,
		facts.String(workloadID), facts.String(nodeID), facts.Int(cpuFree), facts.Int(memFree))
}

func TestSelectSpreadPicksMaxScore(t *testing.T) {
	candidates := CandidatesFromFacts([]facts.Fact{
		candidateFact("w1", "node-a", 2, 1024),
		candidateFact("w1", "node-b", 6, 2048),
	})
	winner, err := Select(types.StrategySpread, candidates)
	require.NoError(t, err)
	require.Equal(t, "node-b", winner.NodeID)
}

func TestSelectPackPicksMinScore(t *testing.T) {
	candidates := CandidatesFromFacts([]facts.Fact{
		candidateFact("w1", "node-a", 2, 1024),
		candidateFact("w1", "node-b", 6, 2048),
	})
	winner, err := Select(types.StrategyPack, candidates)
	require.NoError(t, err)
	require.Equal(t, "node-a", winner.NodeID)
}

func TestSelectTieBreaksLexicographically(t *testing.T) {
	candidates := CandidatesFromFacts([]facts.Fact{
		candidateFact("w1", "node-z", 4, 0),
		candidateFact("w1", "node-a", 4, 0),
	})
	winner, err := Select(types.StrategySpread, candidates)
	require.NoError(t, err)
	require.Equal(t, "node-a", winner.NodeID)

	winner, err = Select(types.StrategyPack, candidates)
	require.NoError(t, err)
	require.Equal(t, "node-a", winner.NodeID)
}

func TestSelectRandomPicksAmongCandidates(t *testing.T) {
	candidates := CandidatesFromFacts([]facts.Fact{
		candidateFact("w1", "node-a", 4, 0),
		candidateFact("w1", "node-b", 2, 0),
	})
	winner, err := Select(types.StrategyRandom, candidates)
	require.NoError(t, err)
	require.Contains(t, []string{"node-a", "node-b"}, winner.NodeID)
}

func TestSelectNoCandidates(t *testing.T) {
	_, err := Select(types.StrategySpread, nil)
	require.ErrorIs(t, err, ErrNoCandidates)
}
