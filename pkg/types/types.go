package types

import "time"

// Node represents one agent host capable of running workloads.
type Node struct {
	ID              string
	Hostname        string // unique
	Status          NodeStatus
	CPUTotal        int
	MemoryTotalMB   int
	CPUUsed         int
	MemoryUsedMB    int
	Hypervisor      string // optional
	Capabilities    map[string]string
	LastHeartbeatAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NodeStatus is the lifecycle state of a Node.
type NodeStatus string

const (
	NodeAvailable   NodeStatus = "available"
	NodeUnavailable NodeStatus = "unavailable"
	NodeDraining    NodeStatus = "draining"
)

// Workload is one requested unit of work: a process or a microvm.
type Workload struct {
	ID                string
	Type              WorkloadType
	Status            WorkloadStatus
	Command           string
	Args              []string
	Env               map[string]string
	CPURequired       int
	MemoryRequiredMB  int
	Constraints       map[string]string
	NodeID            *string
	Error             string
	StartedAt         *time.Time
	StoppedAt         *time.Time
	IP                string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// WorkloadType distinguishes a plain OS process from a lightweight VM.
type WorkloadType string

const (
	WorkloadProcess WorkloadType = "process"
	WorkloadMicroVM WorkloadType = "microvm"
)

// WorkloadStatus is a state in the lifecycle graph described by
// valid_transition/2 in the scheduling rules.
type WorkloadStatus string

const (
	WorkloadPending  WorkloadStatus = "pending"
	WorkloadStarting WorkloadStatus = "starting"
	WorkloadRunning  WorkloadStatus = "running"
	WorkloadStopping WorkloadStatus = "stopping"
	WorkloadStopped  WorkloadStatus = "stopped"
	WorkloadFailed   WorkloadStatus = "failed"
)

// Terminal reports whether s has no outgoing transitions.
func (s WorkloadStatus) Terminal() bool {
	return s == WorkloadStopped || s == WorkloadFailed
}

// WorkloadEvent is an append-only audit record of a workload's notable
// transitions. Never updated, never deleted.
type WorkloadEvent struct {
	ID         string
	WorkloadID string
	EventType  string
	Metadata   map[string]string
	InsertedAt time.Time
}

// SchedulingRule is a user-supplied rule extending the shipped rule
// base. Enabled rules are loaded in ascending Priority order after the
// shipped rules.
type SchedulingRule struct {
	ID          string
	Name        string // unique
	Description string
	RuleText    string
	Enabled     bool
	Priority    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Strategy selects one placement candidate from the eligible set.
type Strategy string

const (
	StrategySpread Strategy = "spread"
	StrategyPack   Strategy = "pack"
	StrategyRandom Strategy = "random"
)

// DeployRequest is the operator-supplied shape of a new workload.
type DeployRequest struct {
	Type             WorkloadType
	Command          string
	Args             []string
	Env              map[string]string
	CPURequired      int
	MemoryRequiredMB int
	Constraints      map[string]string
}

// ClusterStatus is the aggregate view returned by cluster_status; it is
// computed directly from durable records, never from derived facts.
type ClusterStatus struct {
	NodeCount            int
	NodesAvailable       int
	NodesUnavailable     int
	NodesDraining        int
	WorkloadCount        int
	WorkloadsByStatus    map[WorkloadStatus]int
	CPUTotal             int
	CPUUsed              int
	MemoryTotalMB        int
	MemoryUsedMB         int
}
