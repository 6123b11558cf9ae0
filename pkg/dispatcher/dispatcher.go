package dispatcher

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cuemby/fleet/pkg/transport"
	"github.com/cuemby/fleet/pkg/types"
)

const (
	startProcessTimeout = 30 * time.Second
	startMicroVMTimeout = 60 * time.Second
)

// AgentLocator resolves a node id to the address of the agent process
// publishing it, in multi-process mode (§4.7's "discoverable via the
// distribution transport").
type AgentLocator interface {
	AgentAddr(nodeID string) (addr string, ok bool)
}

// Dispatcher resolves a workload's owning executor and issues
// start/stop/exec commands to it.
type Dispatcher struct {
	local   *LocalExecutor
	locator AgentLocator

	mu    chan struct{} // binary semaphore guarding conns
	conns map[string]*grpc.ClientConn
}

// New constructs a Dispatcher. locator may be nil in single-process
// mode, where every workload is dispatched to the local executor
// regardless of its recorded node-id.
func New(local *LocalExecutor, locator AgentLocator) *Dispatcher {
	d := &Dispatcher{
		local:   local,
		locator: locator,
		mu:      make(chan struct{}, 1),
		conns:   make(map[string]*grpc.ClientConn),
	}
	d.mu <- struct{}{}
	return d
}

// Start dispatches a start command, synchronous per §4.7, with a
// timeout that depends on the workload type.
func (d *Dispatcher) Start(ctx context.Context, w types.Workload) error {
	timeout := startProcessTimeout
	if w.Type == types.WorkloadMicroVM {
		timeout = startMicroVMTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if d.locator == nil {
		return d.local.Start(ctx, w)
	}

	if w.NodeID == nil {
		return ErrNotFound
	}
	addr, ok := d.locator.AgentAddr(*w.NodeID)
	if !ok {
		return ErrAgentUnreachable
	}
	client, err := d.agentClient(addr)
	if err != nil {
		return ErrAgentUnreachable
	}

	resp, err := client.StartWorkload(ctx, transport.StartWorkloadRequest{
		WorkloadID: w.ID,
		Type:       string(w.Type),
		Command:    w.Command,
		Args:       w.Args,
		Env:        w.Env,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ErrTimeout
		}
		return ErrAgentUnreachable
	}
	if !resp.Ok {
		return &executorError{msg: resp.Error}
	}
	return nil
}

// Stop dispatches a stop command. In multi-process mode it issues the
// RPC and waits for the agent's response, returning an error on a send
// failure or an Ok=false reply. The coordinator's callers log that
// error and keep the workload's state transition.
func (d *Dispatcher) Stop(ctx context.Context, w types.Workload) error {
	if d.locator == nil {
		return d.local.Stop(ctx, w.ID)
	}

	if w.NodeID == nil {
		return ErrNotFound
	}
	addr, ok := d.locator.AgentAddr(*w.NodeID)
	if !ok {
		return ErrAgentUnreachable
	}
	client, err := d.agentClient(addr)
	if err != nil {
		return ErrAgentUnreachable
	}

	resp, err := client.StopWorkload(ctx, transport.StopWorkloadRequest{WorkloadID: w.ID})
	if err != nil {
		return ErrAgentUnreachable
	}
	if !resp.Ok {
		return &executorError{msg: resp.Error}
	}
	return nil
}

// Exec runs a one-off command inside a running workload.
func (d *Dispatcher) Exec(ctx context.Context, w types.Workload, command []string, timeout time.Duration) (string, error) {
	if d.locator == nil {
		return d.local.Exec(ctx, w.ID, command, timeout)
	}

	if w.NodeID == nil {
		return "", ErrNotFound
	}
	addr, ok := d.locator.AgentAddr(*w.NodeID)
	if !ok {
		return "", ErrAgentUnreachable
	}
	client, err := d.agentClient(addr)
	if err != nil {
		return "", ErrAgentUnreachable
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := client.ExecInWorkload(ctx, transport.ExecRequest{
		WorkloadID: w.ID,
		Command:    command,
		TimeoutMS:  timeout.Milliseconds(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ErrTimeout
		}
		return "", ErrAgentUnreachable
	}
	if !resp.Ok {
		return resp.Output, &executorError{msg: resp.Error}
	}
	return resp.Output, nil
}

func (d *Dispatcher) agentClient(addr string) (*transport.AgentClient, error) {
	<-d.mu
	defer func() { d.mu <- struct{}{} }()

	if conn, ok := d.conns[addr]; ok {
		return transport.NewAgentClient(conn), nil
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	d.conns[addr] = conn
	return transport.NewAgentClient(conn), nil
}

// executorError wraps an executor-reported failure string (the
// "executor's own error" outcome from §4.7).
type executorError struct{ msg string }

func (e *executorError) Error() string { return e.msg }
