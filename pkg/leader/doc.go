// Package leader elects a leader among coordinator replicas;
// cmd/fleetd serve waits for this replica to win before it starts the
// FactStore's timers and the reactor, and does not stop them if
// leadership is later lost. It uses
// HashiCorp Raft the same way Warren's pkg/manager uses it to
// replicate cluster state — except here Raft carries no application
// log at all. The durable record store is a single sqlite file, not
// a replicated FSM, so the only thing this package's FSM ever applies
// is silence: Raft is used purely for its leader-election primitive.
package leader
