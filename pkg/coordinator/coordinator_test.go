package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleet/pkg/bus"
	"github.com/cuemby/fleet/pkg/config"
	"github.com/cuemby/fleet/pkg/dispatcher"
	"github.com/cuemby/fleet/pkg/facts"
	"github.com/cuemby/fleet/pkg/factstore"
	"github.com/cuemby/fleet/pkg/storage"
	"github.com/cuemby/fleet/pkg/types"
)

func newTestDB(t *testing.T) *storage.Store {
	t.Helper()
	db, err := storage.New(storage.Config{Path: ":memory:"})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, db.Init(ctx))
	require.NoError(t, db.Migrate(ctx))

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.TimeTickIntervalS = 1
	cfg.ReconcileIntervalS = 1
	return cfg
}

func newTestCoordinator(t *testing.T) (*Coordinator, *storage.Store) {
	t.Helper()
	db := newTestDB(t)
	b := bus.New()
	cfg := testConfig()

	fs := factstore.New(db, b, cfg)
	fs.Start(context.Background())
	t.Cleanup(fs.Stop)

	d := dispatcher.New(dispatcher.NewLocalExecutor(), nil)

	return New(db, fs, d, b, cfg), db
}

func newTestNode() *types.Node {
	now := time.Now().UTC()
	return &types.Node{
		ID:              uuid.NewString(),
		Hostname:        "host-" + uuid.NewString(),
		Status:          types.NodeAvailable,
		CPUTotal:        8,
		MemoryTotalMB:   16384,
		LastHeartbeatAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestCreateNodePublishesRecordChange(t *testing.T) {
	c, db := newTestCoordinator(t)
	ctx := context.Background()

	sub := c.bus.SubscribeRecordChanges()
	defer sub.Close()

	n := newTestNode()
	require.NoError(t, c.CreateNode(ctx, n))

	msg, ok := sub.Recv()
	require.True(t, ok)
	require.Equal(t, bus.SchemaNode, msg.Schema)
	require.Equal(t, bus.OpCreate, msg.Op)

	got, err := db.GetNode(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, n.Hostname, got.Hostname)
}

func TestGetNodeNotFoundTranslatesSentinel(t *testing.T) {
	c, _ := newTestCoordinator(t)
	_, err := c.GetNode(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHeartbeatAutoRegistersUnknownHostname(t *testing.T) {
	c, db := newTestCoordinator(t)
	ctx := context.Background()

	n, err := c.HeartbeatNode(ctx, "brand-new-host", HeartbeatParams{CPUUsed: 1, MemoryUsedMB: 256, Status: types.NodeAvailable})
	require.NoError(t, err)
	require.NotEmpty(t, n.ID)
	require.NotEmpty(t, n.Capabilities["os"])

	stored, err := db.GetNodeByHostname(ctx, "brand-new-host")
	require.NoError(t, err)
	require.Equal(t, n.ID, stored.ID)
}

func TestHeartbeatUpdatesExistingNode(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	n := newTestNode()
	require.NoError(t, c.CreateNode(ctx, n))

	updated, err := c.HeartbeatNode(ctx, n.Hostname, HeartbeatParams{CPUUsed: 4, MemoryUsedMB: 2048})
	require.NoError(t, err)
	require.Equal(t, n.ID, updated.ID)
	require.Equal(t, 4, updated.CPUUsed)
	require.Equal(t, 2048, updated.MemoryUsedMB)
}

func TestDeployWorkloadPlacesOnCandidateNode(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	n := newTestNode()
	require.NoError(t, c.CreateNode(ctx, n))

	var w *types.Workload
	require.Eventually(t, func() bool {
		var err error
		w, err = c.DeployWorkload(ctx, types.DeployRequest{
			Type: types.WorkloadProcess, Command: "/bin/true",
			CPURequired: 1, MemoryRequiredMB: 128,
		})
		return err == nil && w.Status == types.WorkloadStarting
	}, 2*time.Second, 20*time.Millisecond)

	require.NotNil(t, w.NodeID)
	require.Equal(t, n.ID, *w.NodeID)
}

func TestDeployWorkloadLeavesPendingWithNoCandidates(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	w, err := c.DeployWorkload(ctx, types.DeployRequest{
		Type: types.WorkloadProcess, Command: "/bin/true",
		CPURequired: 1, MemoryRequiredMB: 128,
	})
	require.NoError(t, err)
	require.Equal(t, types.WorkloadPending, w.Status)
}

func TestDeployMicroVMRejectedWithoutHypervisorCapability(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	n := newTestNode()
	require.NoError(t, c.CreateNode(ctx, n))

	_, err := c.DeployWorkload(ctx, types.DeployRequest{
		Type: types.WorkloadMicroVM, Command: "/bin/true",
		CPURequired: 1, MemoryRequiredMB: 128,
	})
	require.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestStopWorkloadRejectsInvalidState(t *testing.T) {
	c, db := newTestCoordinator(t)
	ctx := context.Background()

	now := time.Now().UTC()
	w := &types.Workload{
		ID: uuid.NewString(), Type: types.WorkloadProcess, Status: types.WorkloadPending,
		Command: "/bin/true", CPURequired: 1, MemoryRequiredMB: 128,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.CreateWorkload(ctx, w))

	err := c.StopWorkload(ctx, w.ID)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestStopWorkloadTransitionsRunningToStopping(t *testing.T) {
	c, db := newTestCoordinator(t)
	ctx := context.Background()

	now := time.Now().UTC()
	w := &types.Workload{
		ID: uuid.NewString(), Type: types.WorkloadProcess, Status: types.WorkloadRunning,
		Command: "/bin/true", CPURequired: 1, MemoryRequiredMB: 128,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.CreateWorkload(ctx, w))

	require.NoError(t, c.StopWorkload(ctx, w.ID))

	got, err := db.GetWorkload(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, types.WorkloadStopping, got.Status)
}

func TestSchedulingRuleCRUDRejectsBadSyntax(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	r := &types.SchedulingRule{
		Name: "broken", RuleText: "not valid {{{", Enabled: true, Priority: 1,
	}
	err := c.CreateSchedulingRule(ctx, r)
	require.ErrorIs(t, err, ErrRuleSyntax)
}

func TestSchedulingRuleCRUDAcceptsValidRuleAndReloadsEngine(t *testing.T) {
	c, db := newTestCoordinator(t)
	ctx := context.Background()

	n := newTestNode()
	require.NoError(t, db.CreateNode(ctx, n))

	r := &types.SchedulingRule{
		Name:     "tag-all",
		RuleText: "Decl node_tagged(node_id: string).\nnode_tagged(N) :- node(N, _, _).",
		Enabled:  true,
		Priority: 1,
	}
	require.NoError(t, c.CreateSchedulingRule(ctx, r))

	got, err := c.GetSchedulingRule(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, "tag-all", got.Name)

	require.Eventually(t, func() bool {
		rows, err := c.facts.Query(facts.NewPattern("node_tagged", facts.Bound(facts.String(n.ID))))
		return err == nil && len(rows) == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestRestartWorkloadPlacesFailedWorkloadViaRestartCandidates(t *testing.T) {
	c, db := newTestCoordinator(t)
	ctx := context.Background()

	n := newTestNode()
	require.NoError(t, c.CreateNode(ctx, n))

	now := time.Now().UTC()
	w := &types.Workload{
		ID: uuid.NewString(), Type: types.WorkloadProcess, Status: types.WorkloadFailed,
		Command: "/bin/true", CPURequired: 1, MemoryRequiredMB: 128,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.CreateWorkload(ctx, w))

	// A /failed workload never satisfies can_place/placement_candidate;
	// RestartWorkload must still find it a home via restart_candidate,
	// not placement_candidate.
	require.Eventually(t, func() bool {
		err := c.RestartWorkload(ctx, w.ID)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	got, err := c.GetWorkload(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, types.WorkloadStarting, got.Status)
	require.NotNil(t, got.NodeID)
	require.Equal(t, n.ID, *got.NodeID)
}

func TestExportImportRulesRoundTrips(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	r := &types.SchedulingRule{
		Name:     "export-me",
		RuleText: "Decl tagged2(node_id: string).\ntagged2(N) :- node(N, _, _).",
		Enabled:  true,
		Priority: 2,
	}
	require.NoError(t, c.CreateSchedulingRule(ctx, r))

	data, err := c.ExportRules(ctx)
	require.NoError(t, err)
	require.Contains(t, string(data), "export-me")

	require.NoError(t, c.DeleteSchedulingRule(ctx, r.ID))

	require.NoError(t, c.ImportRules(ctx, data))

	rules, err := c.ListSchedulingRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.Equal(t, "export-me", rules[0].Name)
}

func TestClusterStatusAggregatesFromRecords(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	n := newTestNode()
	require.NoError(t, c.CreateNode(ctx, n))

	status, err := c.ClusterStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, status.NodeCount)
	require.Equal(t, 8, status.CPUTotal)
}
