/*
Package log provides structured logging using zerolog.

A single global Logger is configured once via Init with a level, an
output format (JSON for production, console for development) and a
destination writer. Callers needing consistent context across a chain
of calls derive a child logger with WithComponent, WithNodeID, or
WithWorkloadID rather than passing a logger argument everywhere:

	schedLog := log.WithComponent("placement")
	schedLog.Info().Str("strategy", "spread").Msg("selecting node")

	nodeLog := log.WithNodeID(node.ID)
	nodeLog.Warn().Msg("heartbeat overdue")

Package-level Info/Debug/Warn/Error/Errorf/Fatal cover one-off logging
against the global Logger without constructing a child logger first.
*/
package log
