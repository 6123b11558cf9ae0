package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleet/pkg/types"
)

func TestDispatcherSingleProcessStartsLocally(t *testing.T) {
	d := New(NewLocalExecutor(), nil)
	w := types.Workload{ID: "w1", Type: types.WorkloadProcess, Command: "sleep", Args: []string{"5"}}

	require.NoError(t, d.Start(context.Background(), w))
	require.NoError(t, d.Stop(context.Background(), w))
}

type fakeLocator struct{}

func (fakeLocator) AgentAddr(string) (string, bool) { return "", false }

func TestDispatcherMultiProcessUnreachableAgent(t *testing.T) {
	d := New(NewLocalExecutor(), fakeLocator{})
	node := "node-1"
	w := types.Workload{ID: "w1", Type: types.WorkloadProcess, NodeID: &node}

	err := d.Start(context.Background(), w)
	require.ErrorIs(t, err, ErrAgentUnreachable)
}

func TestDispatcherMultiProcessNoNodeID(t *testing.T) {
	d := New(NewLocalExecutor(), fakeLocator{})
	w := types.Workload{ID: "w1", Type: types.WorkloadProcess}

	err := d.Start(context.Background(), w)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDetectCapabilitiesIncludesOSAndArch(t *testing.T) {
	caps := DetectCapabilities()
	require.NotEmpty(t, caps["os"])
	require.NotEmpty(t, caps["arch"])
}

func TestDispatcherExecUnknownWorkloadErrors(t *testing.T) {
	d := New(NewLocalExecutor(), nil)
	_, err := d.Exec(context.Background(), types.Workload{ID: "missing"}, []string{"echo"}, 10*time.Millisecond)
	require.Error(t, err)
}
