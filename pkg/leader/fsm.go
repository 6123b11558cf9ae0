package leader

import (
	"io"

	"github.com/hashicorp/raft"
)

// nopFSM is a Raft FSM that carries no application state. Every
// coordinator replica keeps its own fact base and durable store;
// Raft here exists only to agree on which replica is the leader, the
// same mechanical use Warren's WarrenFSM makes of raft.Log, minus the
// log entries themselves.
type nopFSM struct{}

func (nopFSM) Apply(*raft.Log) interface{} { return nil }

func (nopFSM) Snapshot() (raft.FSMSnapshot, error) { return nopSnapshot{}, nil }

func (nopFSM) Restore(rc io.ReadCloser) error { return rc.Close() }

type nopSnapshot struct{}

func (nopSnapshot) Persist(sink raft.SnapshotSink) error { return sink.Close() }

func (nopSnapshot) Release() {}
