package facts

import (
	"sort"

	"github.com/cuemby/fleet/pkg/types"
)

// ProjectNode maps a Node record to its base fact set: node/3,
// node_resources/3, node_resources_used/3, node_resources_free/3,
// plus node_heartbeat/2 iff a heartbeat timestamp is present, one
// node_capability/3 per capability entry, and (if Hypervisor is set)
// a node_capability fact for it.
func ProjectNode(n types.Node) []Fact {
	free := n.CPUTotal - n.CPUUsed
	memFree := n.MemoryTotalMB - n.MemoryUsedMB

	out := []Fact{
		New(Node, String(n.ID), String(n.Hostname), Symbol(string(n.Status))),
		New(NodeResources, String(n.ID), Int(int64(n.CPUTotal)), Int(int64(n.MemoryTotalMB))),
		New(NodeResourcesUsed, String(n.ID), Int(int64(n.CPUUsed)), Int(int64(n.MemoryUsedMB))),
		New(NodeResourcesFree, String(n.ID), Int(int64(free)), Int(int64(memFree))),
	}

	if n.LastHeartbeatAt != nil {
		out = append(out, New(NodeHeartbeat, String(n.ID), Int(n.LastHeartbeatAt.Unix())))
	}

	for _, capType := range sortedKeys(n.Capabilities) {
		out = append(out, New(NodeCapability, String(n.ID), String(capType), String(n.Capabilities[capType])))
	}

	if n.Hypervisor != "" {
		out = append(out, New(NodeCapability, String(n.ID), String("hypervisor"), String(n.Hypervisor)))
	}

	return out
}

// ProjectWorkload maps a Workload record to its base fact set:
// workload/3, workload_resources/3, plus workload_placement/2 iff
// placed, plus one workload_constraint/3 per constraint entry.
func ProjectWorkload(w types.Workload) []Fact {
	out := []Fact{
		New(Workload, String(w.ID), Symbol(string(w.Type)), Symbol(string(w.Status))),
		New(WorkloadResources, String(w.ID), Int(int64(w.CPURequired)), Int(int64(w.MemoryRequiredMB))),
	}

	if w.NodeID != nil {
		out = append(out, New(WorkloadPlacement, String(w.ID), String(*w.NodeID)))
	}

	for _, capType := range sortedKeys(w.Constraints) {
		out = append(out, New(WorkloadConstraint, String(w.ID), String(capType), String(w.Constraints[capType])))
	}

	return out
}

// ProjectWorkloadEvent maps a WorkloadEvent record to its single
// base fact.
func ProjectWorkloadEvent(e types.WorkloadEvent) []Fact {
	return []Fact{
		New(WorkloadEvent, String(e.WorkloadID), Symbol(e.EventType), Int(e.InsertedAt.Unix())),
	}
}

// ProjectNow builds the now/1 singleton fact for the given Unix
// timestamp.
func ProjectNow(unixSeconds int64) Fact {
	return New(Now, Int(unixSeconds))
}

// ProjectNodeStaleThreshold builds the node_stale_threshold/1
// singleton fact from the configured threshold in seconds.
func ProjectNodeStaleThreshold(thresholdSeconds int) Fact {
	return New(NodeStaleThreshold, Int(int64(thresholdSeconds)))
}

// ProjectOverloadThresholdPct builds the overload_threshold_pct/1
// singleton fact from the configured percentage.
func ProjectOverloadThresholdPct(thresholdPct int) Fact {
	return New(OverloadThresholdPct, Int(int64(thresholdPct)))
}

// sortedKeys returns m's keys in sorted order so Project* is
// deterministic, which keeps Diff stable across repeated calls with
// unchanged input (the projection round-trip law depends on this).
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
