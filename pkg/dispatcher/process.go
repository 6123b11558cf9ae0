package dispatcher

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/cuemby/fleet/pkg/types"
)

// LocalExecutor is the single-process-mode in-process implementation
// of the executor contract from §6.3: it owns the OS processes for
// every workload placed on this node directly, with no RPC hop.
type LocalExecutor struct {
	mu      sync.Mutex
	running map[string]*exec.Cmd
}

// NewLocalExecutor constructs an empty LocalExecutor.
func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{running: make(map[string]*exec.Cmd)}
}

// processSpec shapes a workload's command into an OCI process spec,
// the same shape Warren's containerd runtime glue consumes, even
// though no container runtime sits underneath it here.
func processSpec(w types.Workload) specs.Process {
	env := make([]string, 0, len(w.Env))
	for k, v := range w.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return specs.Process{
		Args: append([]string{w.Command}, w.Args...),
		Env:  env,
		Cwd:  "/",
	}
}

// Start launches the workload's process and blocks until it either
// starts successfully or exceeds the deadline carried by ctx.
func (e *LocalExecutor) Start(ctx context.Context, w types.Workload) error {
	spec := processSpec(w)

	cmd := exec.CommandContext(context.Background(), spec.Args[0], spec.Args[1:]...)
	cmd.Env = spec.Env

	done := make(chan error, 1)
	go func() { done <- cmd.Start() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("dispatcher: start workload %s: %w", w.ID, err)
		}
	case <-ctx.Done():
		return ErrTimeout
	}

	e.mu.Lock()
	e.running[w.ID] = cmd
	e.mu.Unlock()

	go func() {
		_ = cmd.Wait()
		e.mu.Lock()
		delete(e.running, w.ID)
		e.mu.Unlock()
	}()

	return nil
}

// Stop kills the workload's process. Fire-and-forget per §4.7: any
// error here is reported to the caller but never retried by Stop
// itself.
func (e *LocalExecutor) Stop(_ context.Context, workloadID string) error {
	e.mu.Lock()
	cmd, ok := e.running[workloadID]
	e.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if cmd.Process == nil {
		return ErrExecutorNotRunning
	}
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("dispatcher: stop workload %s: %w", workloadID, err)
	}
	return nil
}

// Exec runs a one-off command against a running workload. The local
// executor has no sandbox boundary to execute "inside", so this runs
// the command directly with the given timeout, matching the
// in-process mode's no-isolation contract.
func (e *LocalExecutor) Exec(ctx context.Context, workloadID string, command []string, timeout time.Duration) (string, error) {
	e.mu.Lock()
	_, ok := e.running[workloadID]
	e.mu.Unlock()
	if !ok {
		return "", ErrNotFound
	}
	if len(command) == 0 {
		return "", fmt.Errorf("dispatcher: exec: empty command")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, command[0], command[1:]...).CombinedOutput()
	if ctx.Err() != nil {
		return "", ErrTimeout
	}
	if err != nil {
		return string(out), fmt.Errorf("dispatcher: exec workload %s: %w", workloadID, err)
	}
	return string(out), nil
}

// IsRunning reports whether a process for workloadID is tracked.
func (e *LocalExecutor) IsRunning(workloadID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.running[workloadID]
	return ok
}
