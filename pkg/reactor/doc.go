// Package reactor is the Reactor service (H): it subscribes to the
// FactStore's derived_facts snapshots and executes idempotent
// corrective actions in response, debounced per (category, id) so a
// burst of identical snapshots across successive time ticks only
// acts once per window.
//
// Every write goes through pkg/coordinator, never the durable store
// or the fact engine directly, so record_changes events are always
// re-emitted and the fact base stays convergent.
package reactor
