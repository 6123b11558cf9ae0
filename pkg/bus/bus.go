package bus

import "time"

// Op is the kind of mutation a RecordChange describes.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Schema names the record type a RecordChange carries, since Record
// is an untyped payload (the concrete types live in pkg/types).
type Schema string

const (
	SchemaNode           Schema = "node"
	SchemaWorkload       Schema = "workload"
	SchemaWorkloadEvent  Schema = "workload_event"
	SchemaSchedulingRule Schema = "scheduling_rule"
)

// RecordChange is one message on the record_changes topic.
type RecordChange struct {
	Schema Schema
	Op     Op
	Record any
	At     time.Time
}

// DerivedFactsSnapshot is one message on the derived_facts topic: the
// bundle of all current derivations of the five reactor-relevant
// derived predicates. Consumers must treat it as level-triggered
// state, not an edge-triggered event.
type DerivedFactsSnapshot struct {
	StaleNodes []string
	ShouldFail []string
	Orphaned   []string
	CanRestart []string
	Overloaded []string
	At         time.Time
}

// RecordChangeSubscription is a live subscription to the
// record_changes topic.
type RecordChangeSubscription struct {
	q *queue[RecordChange]
	b *Bus
}

// Recv blocks for the next message, returning ok=false once the
// subscription has been closed.
func (s *RecordChangeSubscription) Recv() (RecordChange, bool) { return s.q.Recv() }

// Close unsubscribes; any blocked Recv returns ok=false.
func (s *RecordChangeSubscription) Close() { s.b.recordChanges.unsubscribe(s.q) }

// DerivedFactsSubscription is a live subscription to the derived_facts
// topic.
type DerivedFactsSubscription struct {
	q *queue[DerivedFactsSnapshot]
	b *Bus
}

func (s *DerivedFactsSubscription) Recv() (DerivedFactsSnapshot, bool) { return s.q.Recv() }
func (s *DerivedFactsSubscription) Close()                             { s.b.derivedFacts.unsubscribe(s.q) }

// Bus is the in-process change bus: two topics, record_changes and
// derived_facts, each with independent subscriber queues.
type Bus struct {
	recordChanges *broadcaster[RecordChange]
	derivedFacts  *broadcaster[DerivedFactsSnapshot]
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{
		recordChanges: newBroadcaster[RecordChange](),
		derivedFacts:  newBroadcaster[DerivedFactsSnapshot](),
	}
}

// PublishRecordChange delivers msg to every current record_changes
// subscriber. If At is zero it is stamped with the current time.
func (b *Bus) PublishRecordChange(msg RecordChange) {
	if msg.At.IsZero() {
		msg.At = time.Now()
	}
	b.recordChanges.publish(msg)
}

// SubscribeRecordChanges registers a new record_changes subscriber.
func (b *Bus) SubscribeRecordChanges() *RecordChangeSubscription {
	return &RecordChangeSubscription{q: b.recordChanges.subscribe(), b: b}
}

// PublishDerivedFacts delivers msg to every current derived_facts
// subscriber.
func (b *Bus) PublishDerivedFacts(msg DerivedFactsSnapshot) {
	if msg.At.IsZero() {
		msg.At = time.Now()
	}
	b.derivedFacts.publish(msg)
}

// SubscribeDerivedFacts registers a new derived_facts subscriber.
func (b *Bus) SubscribeDerivedFacts() *DerivedFactsSubscription {
	return &DerivedFactsSubscription{q: b.derivedFacts.subscribe(), b: b}
}
