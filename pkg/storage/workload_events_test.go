package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleet/pkg/types"
)

func TestWorkloadEventAppendAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	w := newTestWorkload()
	require.NoError(t, store.CreateWorkload(ctx, w))

	e1 := &types.WorkloadEvent{
		ID:         uuid.NewString(),
		WorkloadID: w.ID,
		EventType:  "placed",
		Metadata:   map[string]string{"node_id": "node-1"},
		InsertedAt: time.Now().UTC().Add(-time.Minute),
	}
	e2 := &types.WorkloadEvent{
		ID:         uuid.NewString(),
		WorkloadID: w.ID,
		EventType:  "started",
		Metadata:   map[string]string{},
		InsertedAt: time.Now().UTC(),
	}

	require.NoError(t, store.CreateWorkloadEvent(ctx, e1))
	require.NoError(t, store.CreateWorkloadEvent(ctx, e2))

	events, err := store.ListWorkloadEventsByWorkload(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "placed", events[0].EventType)
	require.Equal(t, "started", events[1].EventType)
	require.Equal(t, "node-1", events[0].Metadata["node_id"])
}

func TestWorkloadEventsEmptyForUnknownWorkload(t *testing.T) {
	store := newTestStore(t)
	events, err := store.ListWorkloadEventsByWorkload(context.Background(), uuid.NewString())
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestWorkloadDeleteCascadesEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	w := newTestWorkload()
	require.NoError(t, store.CreateWorkload(ctx, w))

	e := &types.WorkloadEvent{
		ID:         uuid.NewString(),
		WorkloadID: w.ID,
		EventType:  "placed",
		Metadata:   map[string]string{},
		InsertedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateWorkloadEvent(ctx, e))

	_, err := store.db.ExecContext(ctx, "DELETE FROM workloads WHERE id = ?", w.ID)
	require.NoError(t, err)

	events, err := store.ListWorkloadEventsByWorkload(ctx, w.ID)
	require.NoError(t, err)
	require.Empty(t, events)
}
