package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleet_nodes_total",
			Help: "Total number of nodes by status",
		},
		[]string{"status"},
	)

	WorkloadsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleet_workloads_total",
			Help: "Total number of workloads by status",
		},
		[]string{"status"},
	)

	// Raft metrics (pkg/leader)
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleet_raft_is_leader",
			Help: "Whether this coordinator replica is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleet_raft_peers_total",
			Help: "Total number of Raft peers in the coordinator cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleet_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleet_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	// Placement metrics (pkg/placement)
	PlacementDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleet_placement_duration_seconds",
			Help:    "Time taken to select a node for a pending workload",
			Buckets: prometheus.DefBuckets,
		},
	)

	PlacementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_placements_total",
			Help: "Total placement decisions by strategy and outcome (placed, no_candidates)",
		},
		[]string{"strategy", "outcome"},
	)

	// Dispatch metrics (pkg/dispatcher)
	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleet_dispatch_duration_seconds",
			Help:    "Time taken to dispatch a start/stop/exec command to an executor",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DispatchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_dispatch_errors_total",
			Help: "Total dispatch failures by operation and error kind",
		},
		[]string{"operation", "kind"},
	)

	// FactStore metrics (pkg/factstore)
	FactStoreEvalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleet_factstore_eval_duration_seconds",
			Help:    "Time taken for a full rule re-evaluation pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	FactStoreReconcileCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_factstore_reconcile_cycles_total",
			Help: "Total reconciliation cycles completed by the fact store",
		},
	)

	FactStoreTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_factstore_ticks_total",
			Help: "Total time-tick cycles completed by the fact store",
		},
	)

	DerivedFactsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleet_derived_facts_total",
			Help: "Number of facts currently held per derived predicate",
		},
		[]string{"predicate"},
	)

	// Reactor metrics (pkg/reactor)
	ReactorActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_reactor_actions_total",
			Help: "Total actions taken by the reactor in response to derived facts, by rule",
		},
		[]string{"rule"},
	)

	ReactorDebouncedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_reactor_debounced_total",
			Help: "Total reactor actions suppressed by the debounce window, by rule",
		},
		[]string{"rule"},
	)

	// Transport metrics (pkg/transport)
	GRPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_grpc_requests_total",
			Help: "Total gRPC requests by method and outcome",
		},
		[]string{"method", "status"},
	)

	GRPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleet_grpc_request_duration_seconds",
			Help:    "gRPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Coordinator operation metrics (pkg/coordinator)
	DeployWorkloadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleet_deploy_workload_duration_seconds",
			Help:    "Time taken to deploy a workload end to end (validate, place, dispatch)",
			Buckets: prometheus.DefBuckets,
		},
	)

	HeartbeatsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_heartbeats_total",
			Help: "Total node heartbeats received by outcome (ok, registered)",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(WorkloadsTotal)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftPeers)
	prometheus.MustRegister(RaftLogIndex)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(PlacementDuration)
	prometheus.MustRegister(PlacementsTotal)
	prometheus.MustRegister(DispatchDuration)
	prometheus.MustRegister(DispatchErrorsTotal)
	prometheus.MustRegister(FactStoreEvalDuration)
	prometheus.MustRegister(FactStoreReconcileCyclesTotal)
	prometheus.MustRegister(FactStoreTicksTotal)
	prometheus.MustRegister(DerivedFactsTotal)
	prometheus.MustRegister(ReactorActionsTotal)
	prometheus.MustRegister(ReactorDebouncedTotal)
	prometheus.MustRegister(GRPCRequestsTotal)
	prometheus.MustRegister(GRPCRequestDuration)
	prometheus.MustRegister(DeployWorkloadDuration)
	prometheus.MustRegister(HeartbeatsTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
