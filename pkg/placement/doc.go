// Package placement selects one node from the FactStore's
// placement_candidate set for a pending workload, according to a
// configured strategy (spread, pack, random). It holds no state of
// its own: every call is a pure function of the candidate set handed
// to it.
package placement
