package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleet/pkg/types"
)

func newTestNode(hostname string) *types.Node {
	now := time.Now().UTC()
	return &types.Node{
		ID:            uuid.NewString(),
		Hostname:      hostname,
		Status:        types.NodeAvailable,
		CPUTotal:      8,
		MemoryTotalMB: 16384,
		Hypervisor:    "lima",
		Capabilities:  map[string]string{"microvm": "true"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestNodeCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n := newTestNode("node-a")
	require.NoError(t, store.CreateNode(ctx, n))

	got, err := store.GetNode(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, n.Hostname, got.Hostname)
	require.Equal(t, n.Capabilities, got.Capabilities)

	byHost, err := store.GetNodeByHostname(ctx, "node-a")
	require.NoError(t, err)
	require.Equal(t, n.ID, byHost.ID)

	got.Status = types.NodeDraining
	now := time.Now().UTC()
	got.LastHeartbeatAt = &now
	require.NoError(t, store.UpdateNode(ctx, got))

	updated, err := store.GetNode(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, types.NodeDraining, updated.Status)
	require.NotNil(t, updated.LastHeartbeatAt)

	require.NoError(t, store.DeleteNode(ctx, n.ID))
	_, err = store.GetNode(ctx, n.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNodeListOrderedByHostname(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateNode(ctx, newTestNode("zebra")))
	require.NoError(t, store.CreateNode(ctx, newTestNode("alpha")))

	nodes, err := store.ListNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	require.Equal(t, "alpha", nodes[0].Hostname)
	require.Equal(t, "zebra", nodes[1].Hostname)
}

func TestNodeDuplicateHostnameConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateNode(ctx, newTestNode("dup")))
	err := store.CreateNode(ctx, newTestNode("dup"))
	require.ErrorIs(t, err, ErrConflict)
}

func TestUpdateMissingNodeNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n := newTestNode("ghost")
	n.ID = uuid.NewString()
	err := store.UpdateNode(ctx, n)
	require.ErrorIs(t, err, ErrNotFound)
}
