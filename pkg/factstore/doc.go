/*
Package factstore is the heart of the fleet core: it owns the single
rules-engine handle for the process, keeps its fact base converged
with the durable store, and exposes the synchronous query surface the
Placement API and Reactor run against.

Store runs one background actor goroutine that serializes every
engine write behind a single loop: a 5s time tick that refreshes
now/1, a record_changes subscription that diffs one entity's facts on
each CRUD notification, and a 30s reconciliation pass that re-derives
the entire projected fact set from the durable store (and reloads the
rule set if the enabled scheduling rules changed). Queries are safe to
call concurrently from any goroutine; they never touch the actor loop.
*/
package factstore
