/*
Package facts defines the in-memory fact model: the normalized tuple
shape the rules engine reasons over, and the pure projection/diff
functions that keep it in sync with durable records.

A Fact is a ground tuple (predicate, args) where each argument is a
Value — a tagged union of symbol, string, and integer, matching the
type discipline of the rule language itself. A Pattern has the same
shape but each argument may be a wildcard, used for query matching.

Projection (Project*) and Diff are pure: no I/O, no mutation. They are
exercised directly by pkg/factstore, which owns the only mutable
fact base in the process.
*/
package facts
