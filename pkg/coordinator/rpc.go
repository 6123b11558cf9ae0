package coordinator

import (
	"context"

	"github.com/cuemby/fleet/pkg/transport"
	"github.com/cuemby/fleet/pkg/types"
)

// RPCServer adapts a Coordinator to transport.CoordinatorServer, the
// gRPC surface an agent dials in multi-process mode to push
// heartbeats (§6.2) and workload status updates (§6.3) back.
type RPCServer struct {
	coord *Coordinator
}

// NewRPCServer wraps coord for gRPC registration via
// transport.RegisterCoordinatorServer.
func NewRPCServer(coord *Coordinator) *RPCServer {
	return &RPCServer{coord: coord}
}

// Heartbeat implements transport.CoordinatorServer.
func (s *RPCServer) Heartbeat(ctx context.Context, req transport.HeartbeatRequest) (transport.HeartbeatResponse, error) {
	_, err := s.coord.HeartbeatNode(ctx, req.Hostname, HeartbeatParams{
		CPUUsed:      req.CPUUsed,
		MemoryUsedMB: req.MemUsed,
		Status:       types.NodeStatus(req.Status),
	})
	if err != nil {
		return transport.HeartbeatResponse{Ok: false, Error: err.Error()}, nil
	}
	return transport.HeartbeatResponse{Ok: true}, nil
}

// UpdateWorkload implements transport.CoordinatorServer. The agent is
// trusted to only report on a workload it owns; this only copies the
// agent-owned fields (§3.1: "only agents report started_at,
// stopped_at, error, ip") onto the existing record.
func (s *RPCServer) UpdateWorkload(ctx context.Context, req transport.UpdateWorkloadRequest) (transport.UpdateWorkloadResponse, error) {
	w, err := s.coord.GetWorkload(ctx, req.WorkloadID)
	if err != nil {
		return transport.UpdateWorkloadResponse{Ok: false, Error: err.Error()}, nil
	}

	if req.Status != "" {
		w.Status = types.WorkloadStatus(req.Status)
	}
	if req.StartedAt != nil {
		w.StartedAt = req.StartedAt
	}
	if req.StoppedAt != nil {
		w.StoppedAt = req.StoppedAt
	}
	if req.Error != "" {
		w.Error = req.Error
	}
	if req.IP != "" {
		w.IP = req.IP
	}

	if err := s.coord.UpdateWorkload(ctx, w); err != nil {
		return transport.UpdateWorkloadResponse{Ok: false, Error: err.Error()}, nil
	}
	return transport.UpdateWorkloadResponse{Ok: true}, nil
}
