// Package coordinator is the execution layer beneath the external
// API (I in the component design): CRUD over Node and Workload,
// heartbeat handling, workload deployment and teardown, and
// scheduling-rule management. It is the only component allowed to
// write durable records, and every successful mutation publishes a
// record_changes event before returning, so the FactStore's fact base
// never drifts from the store it's supposed to mirror.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/fleet/pkg/bus"
	"github.com/cuemby/fleet/pkg/config"
	"github.com/cuemby/fleet/pkg/dispatcher"
	"github.com/cuemby/fleet/pkg/factstore"
	"github.com/cuemby/fleet/pkg/log"
	"github.com/cuemby/fleet/pkg/metrics"
	"github.com/cuemby/fleet/pkg/storage"
	"github.com/cuemby/fleet/pkg/types"
)

// Coordinator is the façade every mutation to Node and Workload state
// goes through.
type Coordinator struct {
	db         *storage.Store
	facts      *factstore.Store
	dispatcher *dispatcher.Dispatcher
	bus        *bus.Bus
	cfg        config.Config
	log        zerolog.Logger
}

// New constructs a Coordinator.
func New(db *storage.Store, facts *factstore.Store, d *dispatcher.Dispatcher, b *bus.Bus, cfg config.Config) *Coordinator {
	return &Coordinator{
		db:         db,
		facts:      facts,
		dispatcher: d,
		bus:        b,
		cfg:        cfg,
		log:        log.WithComponent("coordinator"),
	}
}

// ListNodes returns every node.
func (c *Coordinator) ListNodes(ctx context.Context) ([]*types.Node, error) {
	return c.db.ListNodes(ctx)
}

// GetNode returns one node by id.
func (c *Coordinator) GetNode(ctx context.Context, id string) (*types.Node, error) {
	n, err := c.db.GetNode(ctx, id)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return n, nil
}

// CreateNode registers a new node.
func (c *Coordinator) CreateNode(ctx context.Context, n *types.Node) error {
	now := time.Now().UTC()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = now
	n.UpdatedAt = now

	if err := c.db.CreateNode(ctx, n); err != nil {
		return wrapStorageErr(err)
	}
	c.bus.PublishRecordChange(bus.RecordChange{Schema: bus.SchemaNode, Op: bus.OpCreate, Record: n})
	return nil
}

// UpdateNode persists changes to an existing node.
func (c *Coordinator) UpdateNode(ctx context.Context, n *types.Node) error {
	n.UpdatedAt = time.Now().UTC()
	if err := c.db.UpdateNode(ctx, n); err != nil {
		return wrapStorageErr(err)
	}
	c.bus.PublishRecordChange(bus.RecordChange{Schema: bus.SchemaNode, Op: bus.OpUpdate, Record: n})
	return nil
}

// DeleteNode removes a node. Workloads placed on it are left to the
// reactor's workload_orphaned handler once the FactStore notices the
// placement now points at a missing node.
func (c *Coordinator) DeleteNode(ctx context.Context, id string) error {
	n, err := c.db.GetNode(ctx, id)
	if err != nil {
		return wrapStorageErr(err)
	}
	if err := c.db.DeleteNode(ctx, id); err != nil {
		return wrapStorageErr(err)
	}
	c.bus.PublishRecordChange(bus.RecordChange{Schema: bus.SchemaNode, Op: bus.OpDelete, Record: n})
	return nil
}

// HeartbeatParams is the payload an agent sends every
// heartbeat_interval_s, per §6.2.
type HeartbeatParams struct {
	CPUUsed      int
	MemoryUsedMB int
	Status       types.NodeStatus
}

// HeartbeatNode stamps last_heartbeat_at and updates usage for an
// existing node, or auto-registers hostname as a brand new node with
// detected capabilities if this is its first contact.
func (c *Coordinator) HeartbeatNode(ctx context.Context, hostname string, params HeartbeatParams) (*types.Node, error) {
	n, err := c.db.GetNodeByHostname(ctx, hostname)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("coordinator: heartbeat lookup: %w", err)
	}

	now := time.Now().UTC()

	if errors.Is(err, storage.ErrNotFound) {
		n = &types.Node{
			ID:              uuid.NewString(),
			Hostname:        hostname,
			Status:          types.NodeAvailable,
			CPUUsed:         params.CPUUsed,
			MemoryUsedMB:    params.MemoryUsedMB,
			Capabilities:    dispatcher.DetectCapabilities(),
			LastHeartbeatAt: &now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if params.Status != "" {
			n.Status = params.Status
		}
		if err := c.db.CreateNode(ctx, n); err != nil {
			return nil, wrapStorageErr(err)
		}
		c.log.Info().Str("node_id", n.ID).Str("hostname", hostname).Msg("auto-registered node on first heartbeat")
		c.bus.PublishRecordChange(bus.RecordChange{Schema: bus.SchemaNode, Op: bus.OpCreate, Record: n})
		metrics.HeartbeatsTotal.WithLabelValues("registered").Inc()
		return n, nil
	}

	n.CPUUsed = params.CPUUsed
	n.MemoryUsedMB = params.MemoryUsedMB
	if params.Status != "" {
		n.Status = params.Status
	}
	n.LastHeartbeatAt = &now
	n.UpdatedAt = now

	if err := c.db.UpdateNode(ctx, n); err != nil {
		return nil, wrapStorageErr(err)
	}
	c.bus.PublishRecordChange(bus.RecordChange{Schema: bus.SchemaNode, Op: bus.OpUpdate, Record: n})
	metrics.HeartbeatsTotal.WithLabelValues("ok").Inc()
	return n, nil
}

// ListWorkloads returns every workload.
func (c *Coordinator) ListWorkloads(ctx context.Context) ([]*types.Workload, error) {
	return c.db.ListWorkloads(ctx)
}

// GetWorkload returns one workload by id.
func (c *Coordinator) GetWorkload(ctx context.Context, id string) (*types.Workload, error) {
	w, err := c.db.GetWorkload(ctx, id)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return w, nil
}

// UpdateWorkload persists changes to an existing workload; used by
// agents pushing status updates back per §6.3, and by the reactor's
// handlers.
func (c *Coordinator) UpdateWorkload(ctx context.Context, w *types.Workload) error {
	w.UpdatedAt = time.Now().UTC()
	if err := c.db.UpdateWorkload(ctx, w); err != nil {
		return wrapStorageErr(err)
	}
	c.bus.PublishRecordChange(bus.RecordChange{Schema: bus.SchemaWorkload, Op: bus.OpUpdate, Record: w})
	return nil
}

func (c *Coordinator) appendEvent(ctx context.Context, workloadID, eventType string, metadata map[string]string) {
	e := &types.WorkloadEvent{
		ID:         uuid.NewString(),
		WorkloadID: workloadID,
		EventType:  eventType,
		Metadata:   metadata,
		InsertedAt: time.Now().UTC(),
	}
	if err := c.db.CreateWorkloadEvent(ctx, e); err != nil {
		c.log.Error().Err(err).Str("workload_id", workloadID).Str("event_type", eventType).Msg("failed to append workload event")
		return
	}
	c.bus.PublishRecordChange(bus.RecordChange{Schema: bus.SchemaWorkloadEvent, Op: bus.OpCreate, Record: e})
}

// ClusterStatus aggregates counts and resource sums directly from
// durable records, deliberately bypassing derived facts per §4.9.
func (c *Coordinator) ClusterStatus(ctx context.Context) (types.ClusterStatus, error) {
	nodes, err := c.db.ListNodes(ctx)
	if err != nil {
		return types.ClusterStatus{}, wrapStorageErr(err)
	}
	workloads, err := c.db.ListWorkloads(ctx)
	if err != nil {
		return types.ClusterStatus{}, wrapStorageErr(err)
	}

	status := types.ClusterStatus{
		WorkloadsByStatus: make(map[types.WorkloadStatus]int),
	}
	for _, n := range nodes {
		status.NodeCount++
		status.CPUTotal += n.CPUTotal
		status.CPUUsed += n.CPUUsed
		status.MemoryTotalMB += n.MemoryTotalMB
		status.MemoryUsedMB += n.MemoryUsedMB
		switch n.Status {
		case types.NodeAvailable:
			status.NodesAvailable++
		case types.NodeUnavailable:
			status.NodesUnavailable++
		case types.NodeDraining:
			status.NodesDraining++
		}
	}
	for _, w := range workloads {
		status.WorkloadCount++
		status.WorkloadsByStatus[w.Status]++
	}
	return status, nil
}

func wrapStorageErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
