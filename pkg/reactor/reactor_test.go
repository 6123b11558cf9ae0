package reactor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleet/pkg/bus"
	"github.com/cuemby/fleet/pkg/config"
	"github.com/cuemby/fleet/pkg/coordinator"
	"github.com/cuemby/fleet/pkg/dispatcher"
	"github.com/cuemby/fleet/pkg/factstore"
	"github.com/cuemby/fleet/pkg/log"
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
	cfg.ReactorDebounceS = 1
	return cfg
}

func newHarness(t *testing.T) (*Reactor, *coordinator.Coordinator, *storage.Store) {
	t.Helper()
	db := newTestDB(t)
	b := bus.New()
	cfg := testConfig()

	fs := factstore.New(db, b, cfg)
	fs.Start(context.Background())
	t.Cleanup(fs.Stop)

	d := dispatcher.New(dispatcher.NewLocalExecutor(), nil)
	coord := coordinator.New(db, fs, d, b, cfg)

	r := New(coord, b, cfg)
	r.Start()
	t.Cleanup(r.Stop)

	return r, coord, db
}

func newNode(status types.NodeStatus) *types.Node {
	now := time.Now().UTC()
	return &types.Node{
		ID: uuid.NewString(), Hostname: "host-" + uuid.NewString(), Status: status,
		CPUTotal: 8, MemoryTotalMB: 16384, LastHeartbeatAt: &now,
		CreatedAt: now, UpdatedAt: now,
	}
}

func TestReactorMarksStaleNodeUnavailable(t *testing.T) {
	_, coord, db := newHarness(t)
	ctx := context.Background()

	stale := time.Now().Add(-time.Hour).UTC()
	n := newNode(types.NodeAvailable)
	n.LastHeartbeatAt = &stale
	require.NoError(t, db.CreateNode(ctx, n))

	require.Eventually(t, func() bool {
		got, err := coord.GetNode(ctx, n.ID)
		return err == nil && got.Status == types.NodeUnavailable
	}, 3*time.Second, 20*time.Millisecond)
}

func TestReactorFailsWorkloadOnUnhealthyNode(t *testing.T) {
	_, coord, db := newHarness(t)
	ctx := context.Background()

	n := newNode(types.NodeUnavailable)
	require.NoError(t, db.CreateNode(ctx, n))

	now := time.Now().UTC()
	w := &types.Workload{
		ID: uuid.NewString(), Type: types.WorkloadProcess, Status: types.WorkloadRunning,
		Command: "/bin/true", CPURequired: 1, MemoryRequiredMB: 128, NodeID: &n.ID,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.CreateWorkload(ctx, w))

	require.Eventually(t, func() bool {
		got, err := coord.GetWorkload(ctx, w.ID)
		return err == nil && got.Status == types.WorkloadFailed && got.Error == "Node unhealthy"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestReactorOrphansWorkloadWhenNodeMissing(t *testing.T) {
	_, coord, db := newHarness(t)
	ctx := context.Background()

	missingNodeID := uuid.NewString()
	now := time.Now().UTC()
	w := &types.Workload{
		ID: uuid.NewString(), Type: types.WorkloadProcess, Status: types.WorkloadRunning,
		Command: "/bin/true", CPURequired: 1, MemoryRequiredMB: 128, NodeID: &missingNodeID,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.CreateWorkload(ctx, w))

	require.Eventually(t, func() bool {
		got, err := coord.GetWorkload(ctx, w.ID)
		return err == nil && got.Status == types.WorkloadFailed && got.Error == "Node no longer exists"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestReactorActOnlyActsOnceWithinDebounceWindow(t *testing.T) {
	cfg := testConfig()
	cfg.ReactorDebounceS = 3600
	r := &Reactor{cfg: cfg, log: log.WithComponent("reactor-test"), lastActed: make(map[debounceKey]time.Time)}

	calls := 0
	r.act(context.Background(), categoryNodeOverloaded, "n1", func() error { calls++; return nil })
	r.act(context.Background(), categoryNodeOverloaded, "n1", func() error { calls++; return nil })

	require.Equal(t, 1, calls)
}

func TestReactorActRunsAgainAfterDebounceWindowElapses(t *testing.T) {
	cfg := testConfig()
	cfg.ReactorDebounceS = 1
	r := &Reactor{cfg: cfg, log: log.WithComponent("reactor-test"), lastActed: make(map[debounceKey]time.Time)}

	calls := 0
	r.act(context.Background(), categoryNodeOverloaded, "n1", func() error { calls++; return nil })
	time.Sleep(1100 * time.Millisecond)
	r.act(context.Background(), categoryNodeOverloaded, "n1", func() error { calls++; return nil })

	require.Equal(t, 2, calls)
}
