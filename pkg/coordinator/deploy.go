package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/fleet/pkg/bus"
	"github.com/cuemby/fleet/pkg/dispatcher"
	"github.com/cuemby/fleet/pkg/metrics"
	"github.com/cuemby/fleet/pkg/placement"
	"github.com/cuemby/fleet/pkg/types"
)

// DeployWorkload creates a workload from spec and attempts to place
// and start it immediately. A microvm request is only accepted if at
// least one node in the fleet currently advertises a hypervisor
// capability; otherwise the platform cannot run it at all and the
// workload is never created.
func (c *Coordinator) DeployWorkload(ctx context.Context, spec types.DeployRequest) (*types.Workload, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DeployWorkloadDuration)

	constraints := make(map[string]string, len(spec.Constraints)+1)
	for k, v := range spec.Constraints {
		constraints[k] = v
	}
	if spec.Type == types.WorkloadMicroVM {
		supported, err := c.anyNodeSupportsMicroVM()
		if err != nil {
			return nil, fmt.Errorf("coordinator: capability query: %w", err)
		}
		if !supported {
			return nil, ErrUnsupportedPlatform
		}
		constraints["microvm"] = "true"
	}

	now := time.Now().UTC()
	w := &types.Workload{
		ID:               uuid.NewString(),
		Type:             spec.Type,
		Status:           types.WorkloadPending,
		Command:          spec.Command,
		Args:             spec.Args,
		Env:              spec.Env,
		CPURequired:      spec.CPURequired,
		MemoryRequiredMB: spec.MemoryRequiredMB,
		Constraints:      constraints,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := c.db.CreateWorkload(ctx, w); err != nil {
		return nil, wrapStorageErr(err)
	}
	c.bus.PublishRecordChange(bus.RecordChange{Schema: bus.SchemaWorkload, Op: bus.OpCreate, Record: w})

	// Force the just-created workload's facts into the engine
	// synchronously before querying candidates (spec §4.9 step 3):
	// the record_changes bus above is asynchronous, so without this
	// the query below would almost always run before the FactStore
	// actor has even seen the create, leaving every deploy pending.
	if err := c.facts.SyncWorkload(*w); err != nil {
		c.log.Error().Err(err).Str("workload_id", w.ID).Msg("synchronous fact sync failed, leaving workload pending")
		return w, nil
	}

	candidates, err := c.facts.PlacementCandidateList(w.ID)
	if err != nil {
		c.log.Error().Err(err).Str("workload_id", w.ID).Msg("placement candidate query failed, leaving workload pending")
		return w, nil
	}

	placeTimer := metrics.NewTimer()
	chosen, err := placement.Select(c.cfg.Strategy(), candidates)
	placeTimer.ObserveDuration(metrics.PlacementDuration)
	if err != nil {
		if errors.Is(err, placement.ErrNoCandidates) {
			metrics.PlacementsTotal.WithLabelValues(string(c.cfg.Strategy()), "no_candidates").Inc()
			return w, nil
		}
		return nil, fmt.Errorf("coordinator: placement: %w", err)
	}
	metrics.PlacementsTotal.WithLabelValues(string(c.cfg.Strategy()), "placed").Inc()

	w.Status = types.WorkloadStarting
	w.NodeID = &chosen.NodeID
	if err := c.UpdateWorkload(ctx, w); err != nil {
		return nil, err
	}

	dispatchTimer := metrics.NewTimer()
	err = c.dispatcher.Start(ctx, *w)
	dispatchTimer.ObserveDurationVec(metrics.DispatchDuration, "start")
	if err != nil {
		metrics.DispatchErrorsTotal.WithLabelValues("start", dispatchErrorKind(err)).Inc()
		c.log.Error().Err(err).Str("workload_id", w.ID).Str("node_id", chosen.NodeID).Msg("dispatch start failed")
		w.Status = types.WorkloadFailed
		w.Error = err.Error()
		if uerr := c.UpdateWorkload(ctx, w); uerr != nil {
			c.log.Error().Err(uerr).Str("workload_id", w.ID).Msg("failed to record dispatch failure")
		}
		c.appendEvent(ctx, w.ID, "failed", map[string]string{"reason": err.Error()})
		return w, nil
	}

	c.appendEvent(ctx, w.ID, "starting", map[string]string{"node_id": chosen.NodeID})
	return w, nil
}

// StopWorkload transitions a running or starting workload to
// stopping and issues a best-effort stop to its executor. Dispatch
// failures are logged, not returned: the caller has already gotten a
// valid state transition, and the reactor/agent converges the rest.
func (c *Coordinator) StopWorkload(ctx context.Context, id string) error {
	w, err := c.db.GetWorkload(ctx, id)
	if err != nil {
		return wrapStorageErr(err)
	}
	if w.Status != types.WorkloadRunning && w.Status != types.WorkloadStarting {
		return ErrInvalidState
	}

	w.Status = types.WorkloadStopping
	if err := c.UpdateWorkload(ctx, w); err != nil {
		return err
	}

	dispatchTimer := metrics.NewTimer()
	err = c.dispatcher.Stop(ctx, *w)
	dispatchTimer.ObserveDurationVec(metrics.DispatchDuration, "stop")
	if err != nil {
		metrics.DispatchErrorsTotal.WithLabelValues("stop", dispatchErrorKind(err)).Inc()
		c.log.Warn().Err(err).Str("workload_id", id).Msg("dispatch stop failed, leaving state transition in place")
	}

	c.appendEvent(ctx, w.ID, "stopping", nil)
	return nil
}

// anyNodeSupportsMicroVM reports whether any node advertises a
// non-empty hypervisors capability, the way DetectCapabilities
// populates it on auto-registration, or an explicit microvm=true
// capability set by an operator.
func (c *Coordinator) anyNodeSupportsMicroVM() (bool, error) {
	ok, err := c.facts.AnyNodeHasCapability("microvm", "true")
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return c.facts.AnyNodeHasCapabilityType("hypervisors")
}

func dispatchErrorKind(err error) string {
	switch {
	case errors.Is(err, dispatcher.ErrNotFound):
		return "not_found"
	case errors.Is(err, dispatcher.ErrAgentUnreachable):
		return "unreachable"
	case errors.Is(err, dispatcher.ErrExecutorNotRunning):
		return "not_running"
	case errors.Is(err, dispatcher.ErrTimeout):
		return "timeout"
	default:
		return "other"
	}
}
