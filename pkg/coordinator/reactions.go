package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/fleet/pkg/metrics"
	"github.com/cuemby/fleet/pkg/placement"
	"github.com/cuemby/fleet/pkg/types"
)

// These operations exist for pkg/reactor: every corrective action the
// reactor takes in response to a derived fact is expressed as one of
// these Coordinator methods, so the write still goes through the
// façade and re-emits a record_changes event.

// MarkNodeStale transitions a node to unavailable, skipping the write
// entirely if it's already there so the handler stays idempotent.
func (c *Coordinator) MarkNodeStale(ctx context.Context, id string) error {
	n, err := c.db.GetNode(ctx, id)
	if err != nil {
		return wrapStorageErr(err)
	}
	if n.Status == types.NodeUnavailable {
		return nil
	}
	n.Status = types.NodeUnavailable
	return c.UpdateNode(ctx, n)
}

// AppendWorkloadEvent records a workload audit event. Exported for
// the reactor; coordinator.go's internal mutations use the
// unexported appendEvent helper directly.
func (c *Coordinator) AppendWorkloadEvent(ctx context.Context, workloadID, eventType string, metadata map[string]string) {
	c.appendEvent(ctx, workloadID, eventType, metadata)
}

// FailWorkload implements should_fail(W): best-effort stop, then mark
// the workload failed with reason. Skipped if already terminal, so
// processing the same derived fact twice is a no-op.
func (c *Coordinator) FailWorkload(ctx context.Context, id, reason string) error {
	w, err := c.db.GetWorkload(ctx, id)
	if err != nil {
		return wrapStorageErr(err)
	}
	if w.Status.Terminal() {
		return nil
	}

	if err := c.dispatcher.Stop(ctx, *w); err != nil {
		c.log.Warn().Err(err).Str("workload_id", id).Msg("best-effort stop failed while failing workload")
	}

	now := time.Now().UTC()
	w.Status = types.WorkloadFailed
	w.Error = reason
	w.StoppedAt = &now
	if err := c.UpdateWorkload(ctx, w); err != nil {
		return err
	}
	c.appendEvent(ctx, w.ID, "failed", map[string]string{"reason": reason})
	return nil
}

// OrphanWorkload implements workload_orphaned(W): the owning node no
// longer exists, so there is nothing to dispatch a stop to. The
// workload is marked failed and its placement cleared.
func (c *Coordinator) OrphanWorkload(ctx context.Context, id string) error {
	w, err := c.db.GetWorkload(ctx, id)
	if err != nil {
		return wrapStorageErr(err)
	}
	if w.Status.Terminal() {
		return nil
	}

	now := time.Now().UTC()
	w.Status = types.WorkloadFailed
	w.NodeID = nil
	w.Error = "Node no longer exists"
	w.StoppedAt = &now
	if err := c.UpdateWorkload(ctx, w); err != nil {
		return err
	}
	c.appendEvent(ctx, w.ID, "failed", map[string]string{"reason": w.Error})
	return nil
}

// RestartWorkload implements can_restart(W): re-run placement and, on
// success, transition back to starting on the chosen node. Returns
// placement.ErrNoCandidates if nothing is currently eligible; the
// caller treats that as "try again on the next snapshot", not a
// hard failure.
func (c *Coordinator) RestartWorkload(ctx context.Context, id string) error {
	w, err := c.db.GetWorkload(ctx, id)
	if err != nil {
		return wrapStorageErr(err)
	}

	candidates, err := c.facts.RestartCandidateList(id)
	if err != nil {
		return err
	}

	timer := metrics.NewTimer()
	chosen, err := placement.Select(c.cfg.Strategy(), candidates)
	timer.ObserveDuration(metrics.PlacementDuration)
	if err != nil {
		if errors.Is(err, placement.ErrNoCandidates) {
			metrics.PlacementsTotal.WithLabelValues(string(c.cfg.Strategy()), "no_candidates").Inc()
			return err
		}
		return err
	}
	metrics.PlacementsTotal.WithLabelValues(string(c.cfg.Strategy()), "placed").Inc()

	w.Status = types.WorkloadStarting
	w.NodeID = &chosen.NodeID
	w.Error = ""
	w.StoppedAt = nil
	if err := c.UpdateWorkload(ctx, w); err != nil {
		return err
	}

	dispatchTimer := metrics.NewTimer()
	err = c.dispatcher.Start(ctx, *w)
	dispatchTimer.ObserveDurationVec(metrics.DispatchDuration, "start")
	if err != nil {
		metrics.DispatchErrorsTotal.WithLabelValues("start", dispatchErrorKind(err)).Inc()
		return c.FailWorkload(ctx, id, err.Error())
	}
	c.appendEvent(ctx, w.ID, "starting", map[string]string{"node_id": chosen.NodeID, "restarted": "true"})
	return nil
}
