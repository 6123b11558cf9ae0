/*
Package types defines the durable entity model used throughout the
fleet coordinator: nodes, workloads, workload events, and scheduling
rules.

These are the records the durable store owns; pkg/facts projects them
into the fact tuples the rules engine reasons over. Nothing outside
pkg/coordinator mutates them directly.

# Core Types

  - Node: one agent host, its resources, heartbeat, and capabilities.
  - Workload: one requested unit of work moving through the lifecycle
    graph (pending -> starting -> running -> stopping -> stopped, with
    starting/running -> failed).
  - WorkloadEvent: append-only audit of workload transitions.
  - SchedulingRule: a user-supplied rule loaded alongside the shipped
    rule set.
*/
package types
