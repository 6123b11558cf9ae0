package factstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleet/pkg/bus"
	"github.com/cuemby/fleet/pkg/config"
	"github.com/cuemby/fleet/pkg/facts"
	"github.com/cuemby/fleet/pkg/storage"
	"github.com/cuemby/fleet/pkg/types"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(storage.Config{Path: ":memory:"})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.Migrate(ctx))

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.TimeTickIntervalS = 1
	cfg.ReconcileIntervalS = 1
	return cfg
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

func newTestWorkload() *types.Workload {
	now := time.Now().UTC()
	return &types.Workload{
		ID:               uuid.NewString(),
		Type:             types.WorkloadProcess,
		Status:           types.WorkloadPending,
		Command:          "/bin/sleep",
		CPURequired:      2,
		MemoryRequiredMB: 512,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func startStore(t *testing.T, db *storage.Store, b *bus.Bus, cfg config.Config) *Store {
	t.Helper()
	s := New(db, b, cfg)
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return s
}

func TestStartBulkLoadsExistingRecordsAsPlacementCandidates(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	n := newTestNode()
	require.NoError(t, db.CreateNode(ctx, n))
	w := newTestWorkload()
	require.NoError(t, db.CreateWorkload(ctx, w))

	s := startStore(t, db, bus.New(), testConfig())

	candidates, err := s.PlacementCandidateList(w.ID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, n.ID, candidates[0].NodeID)
}

func TestNowIsAlwaysASingleton(t *testing.T) {
	db := newTestStore(t)
	s := startStore(t, db, bus.New(), testConfig())

	rows, err := s.Query(facts.NewPattern(facts.Now, facts.Any()))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	time.Sleep(1200 * time.Millisecond)

	rows, err = s.Query(facts.NewPattern(facts.Now, facts.Any()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestRecordChangeSyncsNewNodeIntoFacts(t *testing.T) {
	db := newTestStore(t)
	b := bus.New()
	s := startStore(t, db, b, testConfig())

	n := newTestNode()
	require.NoError(t, db.CreateNode(context.Background(), n))
	b.PublishRecordChange(bus.RecordChange{Schema: bus.SchemaNode, Op: bus.OpCreate, Record: n})

	require.Eventually(t, func() bool {
		rows, err := s.Query(facts.NewPattern(facts.Node, facts.Bound(facts.String(n.ID)), facts.Any(), facts.Any()))
		return err == nil && len(rows) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRecordChangeRetractsDeletedNodeFacts(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	b := bus.New()

	n := newTestNode()
	require.NoError(t, db.CreateNode(ctx, n))
	s := startStore(t, db, b, testConfig())

	require.Eventually(t, func() bool {
		rows, err := s.Query(facts.NewPattern(facts.Node, facts.Bound(facts.String(n.ID)), facts.Any(), facts.Any()))
		return err == nil && len(rows) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, db.DeleteNode(ctx, n.ID))
	b.PublishRecordChange(bus.RecordChange{Schema: bus.SchemaNode, Op: bus.OpDelete, Record: n})

	require.Eventually(t, func() bool {
		rows, err := s.Query(facts.NewPattern(facts.Node, facts.Bound(facts.String(n.ID)), facts.Any(), facts.Any()))
		return err == nil && len(rows) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReconciliationConvergesOutOfBandWorkloadUpdate(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	w := newTestWorkload()
	require.NoError(t, db.CreateWorkload(ctx, w))

	s := startStore(t, db, bus.New(), testConfig())

	require.Eventually(t, func() bool {
		rows, err := s.Query(facts.NewPattern(facts.Workload, facts.Bound(facts.String(w.ID)), facts.Any(), facts.Any()))
		return err == nil && len(rows) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Mutate the durable record without going through the bus, simulating
	// a write the change-notification path missed; reconciliation alone
	// must still converge the fact base onto it.
	w.Status = types.WorkloadRunning
	require.NoError(t, db.UpdateWorkload(ctx, w))

	require.Eventually(t, func() bool {
		rows, err := s.Query(facts.NewPattern(facts.Workload, facts.Bound(facts.String(w.ID)), facts.Any(), facts.Symbol(string(types.WorkloadRunning))))
		return err == nil && len(rows) == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestReconciliationReloadsNewlyEnabledSchedulingRule(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	n := newTestNode()
	require.NoError(t, db.CreateNode(ctx, n))

	s := startStore(t, db, bus.New(), testConfig())

	rule := &types.SchedulingRule{
		ID:       uuid.NewString(),
		Name:     "tag-all-nodes",
		RuleText: "Decl node_tagged(node_id: string).\nnode_tagged(N) :- node(N, _, _).",
		Enabled:  true,
		Priority: 1,
	}
	require.NoError(t, db.CreateSchedulingRule(ctx, rule))

	require.Eventually(t, func() bool {
		rows, err := s.Query(facts.NewPattern("node_tagged", facts.Bound(facts.String(n.ID))))
		return err == nil && len(rows) == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestReconciliationSkipsUnparseableUserRule(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	rule := &types.SchedulingRule{
		ID:       uuid.NewString(),
		Name:     "broken",
		RuleText: "this is not valid rule syntax {{{",
		Enabled:  true,
		Priority: 1,
	}
	require.NoError(t, db.CreateSchedulingRule(ctx, rule))

	s := startStore(t, db, bus.New(), testConfig())

	// Starting up at all, and still answering shipped-rule queries, is
	// the assertion: a broken user rule must never be fatal.
	time.Sleep(1200 * time.Millisecond)
	rows, err := s.Query(facts.NewPattern(facts.Now, facts.Any()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestWorkloadEventSyncedWithoutReconciliation(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()
	b := bus.New()

	s := startStore(t, db, b, testConfig())

	e := &types.WorkloadEvent{
		ID:         uuid.NewString(),
		WorkloadID: uuid.NewString(),
		EventType:  "starting",
		InsertedAt: time.Now().UTC(),
	}
	require.NoError(t, db.CreateWorkloadEvent(ctx, e))
	b.PublishRecordChange(bus.RecordChange{Schema: bus.SchemaWorkloadEvent, Op: bus.OpCreate, Record: e})

	require.Eventually(t, func() bool {
		rows, err := s.Query(facts.NewPattern(facts.WorkloadEvent, facts.Bound(facts.String(e.WorkloadID)), facts.Any(), facts.Any()))
		return err == nil && len(rows) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestShouldFailForWorkloadOnUnhealthyNode(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	n := newTestNode()
	n.Status = types.NodeUnavailable
	require.NoError(t, db.CreateNode(ctx, n))

	w := newTestWorkload()
	w.Status = types.WorkloadRunning
	w.NodeID = &n.ID
	require.NoError(t, db.CreateWorkload(ctx, w))

	s := startStore(t, db, bus.New(), testConfig())

	require.Eventually(t, func() bool {
		ids, err := s.WorkloadsToFail()
		return err == nil && len(ids) == 1 && ids[0] == w.ID
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSyncWorkloadMakesPlacementCandidatesImmediatelyQueryable(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	n := newTestNode()
	require.NoError(t, db.CreateNode(ctx, n))
	s := startStore(t, db, bus.New(), testConfig())

	require.Eventually(t, func() bool {
		rows, err := s.Query(facts.NewPattern(facts.Node, facts.Bound(facts.String(n.ID)), facts.Any(), facts.Any()))
		return err == nil && len(rows) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Unlike the other record-change tests, this one never publishes a
	// bus event and makes no Eventually assertion: SyncWorkload must
	// make the candidate queryable on its own, synchronously.
	w := newTestWorkload()
	require.NoError(t, db.CreateWorkload(ctx, w))
	require.NoError(t, s.SyncWorkload(*w))

	candidates, err := s.PlacementCandidateList(w.ID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, n.ID, candidates[0].NodeID)
}

func TestRestartCandidateListFindsFitForFailedWorkload(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	n := newTestNode()
	require.NoError(t, db.CreateNode(ctx, n))

	w := newTestWorkload()
	w.Status = types.WorkloadFailed
	require.NoError(t, db.CreateWorkload(ctx, w))

	s := startStore(t, db, bus.New(), testConfig())

	// A /failed workload never satisfies placement_candidate (can_place
	// requires /pending); it must still surface as a restart_candidate.
	require.Eventually(t, func() bool {
		rows, err := s.Query(facts.NewPattern(facts.Workload, facts.Bound(facts.String(w.ID)), facts.Any(), facts.Any()))
		return err == nil && len(rows) == 1
	}, 2*time.Second, 10*time.Millisecond)

	placementCandidates, err := s.PlacementCandidateList(w.ID)
	require.NoError(t, err)
	require.Empty(t, placementCandidates)

	restartCandidates, err := s.RestartCandidateList(w.ID)
	require.NoError(t, err)
	require.Len(t, restartCandidates, 1)
	require.Equal(t, n.ID, restartCandidates[0].NodeID)
}

func TestCanTransitionFollowsLifecycleGraph(t *testing.T) {
	db := newTestStore(t)
	ctx := context.Background()

	w := newTestWorkload()
	require.NoError(t, db.CreateWorkload(ctx, w))

	s := startStore(t, db, bus.New(), testConfig())

	require.Eventually(t, func() bool {
		rows, err := s.Query(facts.NewPattern(facts.Workload, facts.Bound(facts.String(w.ID)), facts.Any(), facts.Any()))
		return err == nil && len(rows) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ok, err := s.CanTransition(w.ID, types.WorkloadStarting)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.CanTransition(w.ID, types.WorkloadRunning)
	require.NoError(t, err)
	require.False(t, ok)
}
