package leader

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"

	"github.com/cuemby/fleet/pkg/log"
)

// Config configures a single coordinator replica's participation in
// the leader-election cluster.
type Config struct {
	// NodeID must be stable across restarts of this replica.
	NodeID string
	// BindAddr is the local TCP address the Raft transport listens on.
	BindAddr string
	// DataDir holds the Raft log, stable store, and snapshots.
	DataDir string
	// Peers maps every replica's NodeID to its BindAddr, including
	// this one. Only consulted when Bootstrap is true.
	Peers map[string]string
	// Bootstrap is true for the replica (exactly one, ever) that forms
	// the initial single-server or multi-server configuration. A
	// replica joining an already-bootstrapped cluster leaves this
	// false and is added via an out-of-band AddVoter call instead.
	Bootstrap bool
}

// Elector wraps a Raft instance used purely for leader election; it
// satisfies pkg/metrics.RaftStats.
type Elector struct {
	raft *raft.Raft
	log  zerolog.Logger
}

// New starts participating in the Raft cluster described by cfg.
func New(cfg Config) (*Elector, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("leader: create data dir: %w", err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("leader: resolve bind addr: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("leader: create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("leader: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("leader: create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("leader: create stable store: %w", err)
	}

	r, err := raft.NewRaft(raftCfg, nopFSM{}, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("leader: create raft: %w", err)
	}

	e := &Elector{raft: r, log: log.WithComponent("leader")}

	if cfg.Bootstrap {
		servers := make([]raft.Server, 0, len(cfg.Peers))
		if len(cfg.Peers) == 0 {
			servers = append(servers, raft.Server{ID: raftCfg.LocalID, Address: transport.LocalAddr()})
		} else {
			for id, peerAddr := range cfg.Peers {
				servers = append(servers, raft.Server{ID: raft.ServerID(id), Address: raft.ServerAddress(peerAddr)})
			}
		}
		future := r.BootstrapCluster(raft.Configuration{Servers: servers})
		if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
			return nil, fmt.Errorf("leader: bootstrap cluster: %w", err)
		}
	}

	return e, nil
}

// IsLeader reports whether this replica currently holds Raft
// leadership.
func (e *Elector) IsLeader() bool {
	return e.raft.State() == raft.Leader
}

// LeaderAddr returns the advertised address of the current leader, or
// "" if none is known.
func (e *Elector) LeaderAddr() string {
	return string(e.raft.Leader())
}

// Stats exposes Raft's own diagnostic snapshot, satisfying
// pkg/metrics.RaftStats.
func (e *Elector) Stats() map[string]string {
	return e.raft.Stats()
}

// Shutdown leaves the Raft cluster. It does not remove this replica's
// data directory.
func (e *Elector) Shutdown() error {
	return e.raft.Shutdown().Error()
}
