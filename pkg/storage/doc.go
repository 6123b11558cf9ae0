/*
Package storage is the durable relational store: nodes, workloads,
workload_events, and scheduling_rules, backed by a pure-Go SQLite
driver and golang-migrate embedded migrations. It is the single
source of truth pkg/coordinator mutates and pkg/facts projects from.
*/
package storage
