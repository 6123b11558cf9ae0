package transport

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// HeartbeatRequest is what an agent sends the coordinator every
// heartbeat_interval_s seconds.
type HeartbeatRequest struct {
	NodeID   string
	Hostname string
	CPUUsed  int
	MemUsed  int
	Status   string
}

// HeartbeatResponse acknowledges a heartbeat.
type HeartbeatResponse struct {
	Ok    bool
	Error string
}

// StartWorkloadRequest carries everything an agent needs to launch a
// workload.
type StartWorkloadRequest struct {
	WorkloadID string
	Type       string
	Command    string
	Args       []string
	Env        map[string]string
}

// StartWorkloadResponse reports the outcome of a start attempt.
type StartWorkloadResponse struct {
	Ok    bool
	IP    string
	Error string
}

// StopWorkloadRequest asks an agent to stop a running workload.
// Dispatcher.Stop sends it as a unary RPC and waits for the
// StopWorkloadResponse.
type StopWorkloadRequest struct {
	WorkloadID string
}

// StopWorkloadResponse reports the outcome of a stop; Dispatcher.Stop
// turns Ok=false into an error carrying Error.
type StopWorkloadResponse struct {
	Ok    bool
	Error string
}

// ExecRequest runs a one-off command inside a running workload.
type ExecRequest struct {
	WorkloadID string
	Command    []string
	TimeoutMS  int64
}

// ExecResponse carries the command's captured output.
type ExecResponse struct {
	Ok     bool
	Output string
	Error  string
}

// UpdateWorkloadRequest is how an agent pushes a status change back
// to the coordinator (§6.3's update_workload).
type UpdateWorkloadRequest struct {
	WorkloadID string
	Status     string
	StartedAt  *time.Time
	StoppedAt  *time.Time
	Error      string
	IP         string
}

// UpdateWorkloadResponse acknowledges an update push.
type UpdateWorkloadResponse struct {
	Ok    bool
	Error string
}

func toStruct(fields map[string]any) (*structpb.Struct, error) {
	return structpb.NewStruct(fields)
}

func optionalUnixMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func timeFromUnixMillis(v any) *time.Time {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	t := time.UnixMilli(int64(f)).UTC()
	return &t
}

func stringsFromAny(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringMapFromAny(v any) map[string]string {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}
