/*
Package metrics defines and registers all Prometheus metrics exposed by
a fleet process, and exposes them over HTTP for scraping.

Metrics are grouped by the component that owns them: cluster-level node
and workload gauges, Raft leader/log-index gauges from pkg/leader,
placement and dispatch histograms, fact-store evaluation and
reconciliation counters, reactor action counters, and gRPC request
counters and histograms. All metrics are registered at package init, so
importing the package is enough to make them visible on /metrics.

Collector samples the durable store and the leader election layer on a
fixed interval and republishes the results as gauges; histograms and
counters are instead updated inline via the Timer helper or direct
Observe/Inc calls. The placement and dispatch metrics are updated by
pkg/coordinator around its Placement and Dispatcher calls. The gRPC
request counter and histogram are registered but no package updates
them.
*/
package metrics
