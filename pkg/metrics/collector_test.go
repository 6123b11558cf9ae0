package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

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

type fakeRaftStats struct{ leader bool }

func (f fakeRaftStats) IsLeader() bool           { return f.leader }
func (f fakeRaftStats) Stats() map[string]string { return map[string]string{} }

func TestCollectorPublishesNodeAndWorkloadGauges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.CreateNode(ctx, &types.Node{
		ID: uuid.NewString(), Hostname: "a", Status: types.NodeAvailable,
		CPUTotal: 4, MemoryTotalMB: 8192, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.CreateWorkload(ctx, &types.Workload{
		ID: uuid.NewString(), Type: types.WorkloadProcess, Command: "sleep",
		Status: types.WorkloadPending, CreatedAt: now, UpdatedAt: now,
	}))

	c := NewCollector(store, fakeRaftStats{leader: true})
	c.collect()

	require.Equal(t, float64(1), testutil.ToFloat64(NodesTotal.WithLabelValues("available")))
	require.Equal(t, float64(1), testutil.ToFloat64(WorkloadsTotal.WithLabelValues("pending")))
	require.Equal(t, float64(1), testutil.ToFloat64(RaftLeader))
}

func TestCollectorNilRaftStatsSkipsLeaderGauge(t *testing.T) {
	store := newTestStore(t)
	c := NewCollector(store, nil)
	require.NotPanics(t, func() { c.collect() })
}
