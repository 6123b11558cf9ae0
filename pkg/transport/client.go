package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// AgentClient calls a remote agent's executor endpoints.
type AgentClient struct {
	conn *grpc.ClientConn
}

// NewAgentClient wraps an already-dialed connection.
func NewAgentClient(conn *grpc.ClientConn) *AgentClient {
	return &AgentClient{conn: conn}
}

func (c *AgentClient) invoke(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+agentServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartWorkload issues a synchronous start command to the agent.
func (c *AgentClient) StartWorkload(ctx context.Context, req StartWorkloadRequest) (StartWorkloadResponse, error) {
	in, err := req.toStruct()
	if err != nil {
		return StartWorkloadResponse{}, err
	}
	out, err := c.invoke(ctx, "StartWorkload", in)
	if err != nil {
		return StartWorkloadResponse{}, err
	}
	return startWorkloadResponseFromStruct(out), nil
}

// StopWorkload issues a stop command. It performs a unary RPC, waits
// for the agent's response, and returns its outcome.
func (c *AgentClient) StopWorkload(ctx context.Context, req StopWorkloadRequest) (StopWorkloadResponse, error) {
	in, err := req.toStruct()
	if err != nil {
		return StopWorkloadResponse{}, err
	}
	out, err := c.invoke(ctx, "StopWorkload", in)
	if err != nil {
		return StopWorkloadResponse{}, err
	}
	return stopWorkloadResponseFromStruct(out), nil
}

// ExecInWorkload runs a one-off command inside a running workload.
func (c *AgentClient) ExecInWorkload(ctx context.Context, req ExecRequest) (ExecResponse, error) {
	in, err := req.toStruct()
	if err != nil {
		return ExecResponse{}, err
	}
	out, err := c.invoke(ctx, "ExecInWorkload", in)
	if err != nil {
		return ExecResponse{}, err
	}
	return execResponseFromStruct(out), nil
}

// CoordinatorClient lets an agent push heartbeats (§6.2) and status
// updates (§6.3) back to the coordinator.
type CoordinatorClient struct {
	conn *grpc.ClientConn
}

// NewCoordinatorClient wraps an already-dialed connection.
func NewCoordinatorClient(conn *grpc.ClientConn) *CoordinatorClient {
	return &CoordinatorClient{conn: conn}
}

// Heartbeat sends this agent's resource usage to the coordinator.
func (c *CoordinatorClient) Heartbeat(ctx context.Context, req HeartbeatRequest) (HeartbeatResponse, error) {
	in, err := req.toStruct()
	if err != nil {
		return HeartbeatResponse{}, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+coordinatorServiceName+"/Heartbeat", in, out); err != nil {
		return HeartbeatResponse{}, err
	}
	return heartbeatResponseFromStruct(out), nil
}

// UpdateWorkload pushes a status change to the coordinator.
func (c *CoordinatorClient) UpdateWorkload(ctx context.Context, req UpdateWorkloadRequest) (UpdateWorkloadResponse, error) {
	in, err := req.toStruct()
	if err != nil {
		return UpdateWorkloadResponse{}, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+coordinatorServiceName+"/UpdateWorkload", in, out); err != nil {
		return UpdateWorkloadResponse{}, err
	}
	return updateWorkloadResponseFromStruct(out), nil
}
