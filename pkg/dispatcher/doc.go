// Package dispatcher resolves a placed workload's owning executor and
// issues start/stop/exec commands to it, per §4.7. In single-process
// mode it calls a local in-process executor directly; in multi-process
// mode it locates the agent publishing the workload's node-id and
// calls it over pkg/transport.
package dispatcher
