package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleet/pkg/types"
)

func TestLocalExecutorStartStop(t *testing.T) {
	e := NewLocalExecutor()
	w := types.Workload{ID: "w1", Command: "sleep", Args: []string{"5"}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.Start(ctx, w))
	require.True(t, e.IsRunning("w1"))

	require.NoError(t, e.Stop(context.Background(), "w1"))
}

func TestLocalExecutorStopUnknownNotFound(t *testing.T) {
	e := NewLocalExecutor()
	err := e.Stop(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalExecutorStartBadCommand(t *testing.T) {
	e := NewLocalExecutor()
	w := types.Workload{ID: "w2", Command: "/no/such/binary"}
	err := e.Start(context.Background(), w)
	require.Error(t, err)
}

func TestLocalExecutorExecUnknownWorkload(t *testing.T) {
	e := NewLocalExecutor()
	_, err := e.Exec(context.Background(), "missing", []string{"echo", "hi"}, time.Second)
	require.ErrorIs(t, err, ErrNotFound)
}
