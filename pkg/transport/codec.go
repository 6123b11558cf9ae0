package transport

import "google.golang.org/protobuf/types/known/structpb"

func (r HeartbeatRequest) toStruct() (*structpb.Struct, error) {
	return toStruct(map[string]any{
		"node_id":  r.NodeID,
		"hostname": r.Hostname,
		"cpu_used": float64(r.CPUUsed),
		"mem_used": float64(r.MemUsed),
		"status":   r.Status,
	})
}

func heartbeatRequestFromStruct(s *structpb.Struct) HeartbeatRequest {
	m := s.AsMap()
	return HeartbeatRequest{
		NodeID:   stringField(m, "node_id"),
		Hostname: stringField(m, "hostname"),
		CPUUsed:  intField(m, "cpu_used"),
		MemUsed:  intField(m, "mem_used"),
		Status:   stringField(m, "status"),
	}
}

func (r HeartbeatResponse) toStruct() (*structpb.Struct, error) {
	return toStruct(map[string]any{"ok": r.Ok, "error": r.Error})
}

func heartbeatResponseFromStruct(s *structpb.Struct) HeartbeatResponse {
	m := s.AsMap()
	return HeartbeatResponse{Ok: boolField(m, "ok"), Error: stringField(m, "error")}
}

func (r StartWorkloadRequest) toStruct() (*structpb.Struct, error) {
	env := make(map[string]any, len(r.Env))
	for k, v := range r.Env {
		env[k] = v
	}
	args := make([]any, len(r.Args))
	for i, a := range r.Args {
		args[i] = a
	}
	return toStruct(map[string]any{
		"workload_id": r.WorkloadID,
		"type":        r.Type,
		"command":     r.Command,
		"args":        args,
		"env":         env,
	})
}

func startWorkloadRequestFromStruct(s *structpb.Struct) StartWorkloadRequest {
	m := s.AsMap()
	return StartWorkloadRequest{
		WorkloadID: stringField(m, "workload_id"),
		Type:       stringField(m, "type"),
		Command:    stringField(m, "command"),
		Args:       stringsFromAny(m["args"]),
		Env:        stringMapFromAny(m["env"]),
	}
}

func (r StartWorkloadResponse) toStruct() (*structpb.Struct, error) {
	return toStruct(map[string]any{"ok": r.Ok, "ip": r.IP, "error": r.Error})
}

func startWorkloadResponseFromStruct(s *structpb.Struct) StartWorkloadResponse {
	m := s.AsMap()
	return StartWorkloadResponse{Ok: boolField(m, "ok"), IP: stringField(m, "ip"), Error: stringField(m, "error")}
}

func (r StopWorkloadRequest) toStruct() (*structpb.Struct, error) {
	return toStruct(map[string]any{"workload_id": r.WorkloadID})
}

func stopWorkloadRequestFromStruct(s *structpb.Struct) StopWorkloadRequest {
	return StopWorkloadRequest{WorkloadID: stringField(s.AsMap(), "workload_id")}
}

func (r StopWorkloadResponse) toStruct() (*structpb.Struct, error) {
	return toStruct(map[string]any{"ok": r.Ok, "error": r.Error})
}

func stopWorkloadResponseFromStruct(s *structpb.Struct) StopWorkloadResponse {
	m := s.AsMap()
	return StopWorkloadResponse{Ok: boolField(m, "ok"), Error: stringField(m, "error")}
}

func (r ExecRequest) toStruct() (*structpb.Struct, error) {
	cmd := make([]any, len(r.Command))
	for i, c := range r.Command {
		cmd[i] = c
	}
	return toStruct(map[string]any{
		"workload_id": r.WorkloadID,
		"command":     cmd,
		"timeout_ms":  float64(r.TimeoutMS),
	})
}

func execRequestFromStruct(s *structpb.Struct) ExecRequest {
	m := s.AsMap()
	return ExecRequest{
		WorkloadID: stringField(m, "workload_id"),
		Command:    stringsFromAny(m["command"]),
		TimeoutMS:  int64Field(m, "timeout_ms"),
	}
}

func (r ExecResponse) toStruct() (*structpb.Struct, error) {
	return toStruct(map[string]any{"ok": r.Ok, "output": r.Output, "error": r.Error})
}

func execResponseFromStruct(s *structpb.Struct) ExecResponse {
	m := s.AsMap()
	return ExecResponse{Ok: boolField(m, "ok"), Output: stringField(m, "output"), Error: stringField(m, "error")}
}

func (r UpdateWorkloadRequest) toStruct() (*structpb.Struct, error) {
	return toStruct(map[string]any{
		"workload_id": r.WorkloadID,
		"status":      r.Status,
		"started_at":  optionalUnixMillis(r.StartedAt),
		"stopped_at":  optionalUnixMillis(r.StoppedAt),
		"error":       r.Error,
		"ip":          r.IP,
	})
}

func updateWorkloadRequestFromStruct(s *structpb.Struct) UpdateWorkloadRequest {
	m := s.AsMap()
	return UpdateWorkloadRequest{
		WorkloadID: stringField(m, "workload_id"),
		Status:     stringField(m, "status"),
		StartedAt:  timeFromUnixMillis(m["started_at"]),
		StoppedAt:  timeFromUnixMillis(m["stopped_at"]),
		Error:      stringField(m, "error"),
		IP:         stringField(m, "ip"),
	}
}

func (r UpdateWorkloadResponse) toStruct() (*structpb.Struct, error) {
	return toStruct(map[string]any{"ok": r.Ok, "error": r.Error})
}

func updateWorkloadResponseFromStruct(s *structpb.Struct) UpdateWorkloadResponse {
	m := s.AsMap()
	return UpdateWorkloadResponse{Ok: boolField(m, "ok"), Error: stringField(m, "error")}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func intField(m map[string]any, key string) int {
	f, _ := m[key].(float64)
	return int(f)
}

func int64Field(m map[string]any, key string) int64 {
	f, _ := m[key].(float64)
	return int64(f)
}
