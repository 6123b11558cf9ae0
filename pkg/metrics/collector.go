package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cuemby/fleet/pkg/storage"
	"github.com/cuemby/fleet/pkg/types"
)

// RaftStats is implemented by pkg/leader; kept as an interface here so
// this package never imports the raft stack directly.
type RaftStats interface {
	IsLeader() bool
	Stats() map[string]string
}

// Collector periodically samples the durable store and the leader
// election layer and publishes the results as gauges.
type Collector struct {
	store  *storage.Store
	raft   RaftStats
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector. raft may be nil on a
// single-node deployment with no leader election configured.
func NewCollector(store *storage.Store, raft RaftStats) *Collector {
	return &Collector{
		store:  store,
		raft:   raft,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15s interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectNodeMetrics()
	c.collectWorkloadMetrics()
	c.collectRaftMetrics()
}

func (c *Collector) collectNodeMetrics() {
	nodes, err := c.store.ListNodes(context.Background())
	if err != nil {
		return
	}

	counts := make(map[types.NodeStatus]int)
	for _, n := range nodes {
		counts[n.Status]++
	}
	for status, count := range counts {
		NodesTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}

func (c *Collector) collectWorkloadMetrics() {
	workloads, err := c.store.ListWorkloads(context.Background())
	if err != nil {
		return
	}

	counts := make(map[types.WorkloadStatus]int)
	for _, w := range workloads {
		counts[w.Status]++
	}
	for status, count := range counts {
		WorkloadsTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}

func (c *Collector) collectRaftMetrics() {
	if c.raft == nil {
		return
	}

	if c.raft.IsLeader() {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}

	stats := c.raft.Stats()
	for key, gauge := range map[string]prometheus.Gauge{
		"num_peers":      RaftPeers,
		"last_log_index": RaftLogIndex,
		"applied_index":  RaftAppliedIndex,
	} {
		if v, err := strconv.ParseFloat(stats[key], 64); err == nil {
			gauge.Set(v)
		}
	}
}
