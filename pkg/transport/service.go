package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// AgentServer is implemented by whatever owns an agent's workload
// lifecycle (pkg/dispatcher's local executor wrapper, or a real agent
// process). Registered against a *grpc.Server via RegisterAgentServer.
type AgentServer interface {
	StartWorkload(ctx context.Context, req StartWorkloadRequest) (StartWorkloadResponse, error)
	StopWorkload(ctx context.Context, req StopWorkloadRequest) (StopWorkloadResponse, error)
	ExecInWorkload(ctx context.Context, req ExecRequest) (ExecResponse, error)
}

// CoordinatorServer is implemented by whatever owns workload and node
// records (pkg/coordinator), so an agent can push status updates and
// heartbeats back per §6.2/§6.3.
type CoordinatorServer interface {
	Heartbeat(ctx context.Context, req HeartbeatRequest) (HeartbeatResponse, error)
	UpdateWorkload(ctx context.Context, req UpdateWorkloadRequest) (UpdateWorkloadResponse, error)
}

const (
	agentServiceName       = "fleet.transport.Agent"
	coordinatorServiceName = "fleet.transport.Coordinator"
)

func agentStartWorkloadHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		resp, err := srv.(AgentServer).StartWorkload(ctx, startWorkloadRequestFromStruct(req.(*structpb.Struct)))
		if err != nil {
			return nil, err
		}
		return resp.toStruct()
	}
	if interceptor == nil {
		return run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + agentServiceName + "/StartWorkload"}
	return interceptor(ctx, in, info, run)
}

func agentStopWorkloadHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		resp, err := srv.(AgentServer).StopWorkload(ctx, stopWorkloadRequestFromStruct(req.(*structpb.Struct)))
		if err != nil {
			return nil, err
		}
		return resp.toStruct()
	}
	if interceptor == nil {
		return run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + agentServiceName + "/StopWorkload"}
	return interceptor(ctx, in, info, run)
}

func agentExecInWorkloadHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		resp, err := srv.(AgentServer).ExecInWorkload(ctx, execRequestFromStruct(req.(*structpb.Struct)))
		if err != nil {
			return nil, err
		}
		return resp.toStruct()
	}
	if interceptor == nil {
		return run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + agentServiceName + "/ExecInWorkload"}
	return interceptor(ctx, in, info, run)
}

func coordinatorHeartbeatHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		resp, err := srv.(CoordinatorServer).Heartbeat(ctx, heartbeatRequestFromStruct(req.(*structpb.Struct)))
		if err != nil {
			return nil, err
		}
		return resp.toStruct()
	}
	if interceptor == nil {
		return run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + coordinatorServiceName + "/Heartbeat"}
	return interceptor(ctx, in, info, run)
}

func coordinatorUpdateWorkloadHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req any) (any, error) {
		resp, err := srv.(CoordinatorServer).UpdateWorkload(ctx, updateWorkloadRequestFromStruct(req.(*structpb.Struct)))
		if err != nil {
			return nil, err
		}
		return resp.toStruct()
	}
	if interceptor == nil {
		return run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + coordinatorServiceName + "/UpdateWorkload"}
	return interceptor(ctx, in, info, run)
}

// agentServiceDesc is the hand-rolled equivalent of what
// protoc-gen-go-grpc would generate from an agent.proto declaring
// StartWorkload, StopWorkload and ExecInWorkload as unary RPCs over
// google.protobuf.Struct.
var agentServiceDesc = grpc.ServiceDesc{
	ServiceName: agentServiceName,
	HandlerType: (*AgentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartWorkload", Handler: agentStartWorkloadHandler},
		{MethodName: "StopWorkload", Handler: agentStopWorkloadHandler},
		{MethodName: "ExecInWorkload", Handler: agentExecInWorkloadHandler},
	},
}

var coordinatorServiceDesc = grpc.ServiceDesc{
	ServiceName: coordinatorServiceName,
	HandlerType: (*CoordinatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Heartbeat", Handler: coordinatorHeartbeatHandler},
		{MethodName: "UpdateWorkload", Handler: coordinatorUpdateWorkloadHandler},
	},
}

// RegisterAgentServer registers an AgentServer implementation on gs.
func RegisterAgentServer(gs *grpc.Server, srv AgentServer) {
	gs.RegisterService(&agentServiceDesc, srv)
}

// RegisterCoordinatorServer registers a CoordinatorServer implementation on gs.
func RegisterCoordinatorServer(gs *grpc.Server, srv CoordinatorServer) {
	gs.RegisterService(&coordinatorServiceDesc, srv)
}
