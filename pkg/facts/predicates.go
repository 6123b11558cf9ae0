package facts

// Base predicates, projected from durable records.
const (
	Node               = "node"
	NodeResources      = "node_resources"
	NodeResourcesUsed  = "node_resources_used"
	NodeResourcesFree  = "node_resources_free"
	NodeHeartbeat      = "node_heartbeat"
	NodeCapability     = "node_capability"
	Workload           = "workload"
	WorkloadPlacement  = "workload_placement"
	WorkloadResources  = "workload_resources"
	WorkloadConstraint = "workload_constraint"
	WorkloadEvent      = "workload_event"
	Now                = "now"
	ValidTransition    = "valid_transition"

	// NodeStaleThreshold and OverloadThresholdPct are config-derived
	// singleton facts, re-asserted from the config on every
	// reconciliation pass much as now/1 is asserted on every tick, so the shipped
	// rules can reference operator-configured thresholds instead of
	// hardcoded literals.
	NodeStaleThreshold  = "node_stale_threshold"
	OverloadThresholdPct = "overload_threshold_pct"
)

// Derived predicates, computed by the shipped and user rule sets.
const (
	NodeHealthy         = "node_healthy"
	ConstraintViolated  = "constraint_violated"
	CanPlace            = "can_place"
	PlacementCandidate  = "placement_candidate"
	CanTransition       = "can_transition"
	ShouldFail          = "should_fail"
	CanRestart          = "can_restart"
	RestartCandidate    = "restart_candidate"
	NodeStale           = "node_stale"
	NodeOverloaded      = "node_overloaded"
	WorkloadOrphaned    = "workload_orphaned"
)

// Arities gives the fixed argument count per predicate. Projection
// and pattern construction both use this table to catch shape
// mistakes early, in Go rather than at rule-evaluation time.
var Arities = map[string]int{
	Node:               3,
	NodeResources:      3,
	NodeResourcesUsed:  3,
	NodeResourcesFree:  3,
	NodeHeartbeat:      2,
	NodeCapability:     3,
	Workload:           3,
	WorkloadPlacement:  2,
	WorkloadResources:  3,
	WorkloadConstraint: 3,
	WorkloadEvent:      3,
	Now:                1,
	ValidTransition:    2,
	NodeStaleThreshold:   1,
	OverloadThresholdPct: 1,

	NodeHealthy:        1,
	ConstraintViolated: 2,
	CanPlace:           2,
	PlacementCandidate: 4,
	CanTransition:      2,
	ShouldFail:         1,
	CanRestart:         1,
	RestartCandidate:   4,
	NodeStale:          1,
	NodeOverloaded:     1,
	WorkloadOrphaned:   1,
}

// Projected lists the base predicates reconciliation is responsible
// for converging: everything except now/1 (ticked, not reconciled),
// valid_transition/2 (a static rule-file fact, not projected from any
// record), and workload_event/3 (append-only audit trail, asserted
// once on the record_changes notification that creates it and never
// reconciled or retracted — replaying the full event history into the
// engine on every 30s cycle would grow without bound for no rule that
// reads it), and excluding all derived predicates.
var Projected = []string{
	Node, NodeResources, NodeResourcesUsed, NodeResourcesFree,
	NodeHeartbeat, NodeCapability,
	Workload, WorkloadPlacement, WorkloadResources, WorkloadConstraint,
}
