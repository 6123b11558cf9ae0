package bus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordChangeFIFOPerSubscriber(t *testing.T) {
	b := New()
	sub := b.SubscribeRecordChanges()
	defer sub.Close()

	for i := 0; i < 5; i++ {
		b.PublishRecordChange(RecordChange{Schema: SchemaNode, Op: OpUpdate, Record: i})
	}

	for i := 0; i < 5; i++ {
		msg, ok := sub.Recv()
		require.True(t, ok)
		assert.Equal(t, i, msg.Record)
	}
}

func TestMultipleSubscribersEachGetAllMessages(t *testing.T) {
	b := New()
	sub1 := b.SubscribeRecordChanges()
	sub2 := b.SubscribeRecordChanges()
	defer sub1.Close()
	defer sub2.Close()

	b.PublishRecordChange(RecordChange{Schema: SchemaWorkload, Op: OpCreate, Record: "w1"})

	msg1, ok := sub1.Recv()
	require.True(t, ok)
	assert.Equal(t, "w1", msg1.Record)

	msg2, ok := sub2.Recv()
	require.True(t, ok)
	assert.Equal(t, "w1", msg2.Record)
}

func TestCloseUnblocksRecv(t *testing.T) {
	b := New()
	sub := b.SubscribeRecordChanges()

	var wg sync.WaitGroup
	wg.Add(1)
	var gotOK bool
	go func() {
		defer wg.Done()
		_, gotOK = sub.Recv()
	}()

	sub.Close()
	wg.Wait()
	assert.False(t, gotOK)
}

func TestSlowSubscriberDoesNotBlockFastOne(t *testing.T) {
	b := New()
	slow := b.SubscribeRecordChanges()
	fast := b.SubscribeRecordChanges()
	defer slow.Close()
	defer fast.Close()

	for i := 0; i < 100; i++ {
		b.PublishRecordChange(RecordChange{Schema: SchemaNode, Op: OpUpdate, Record: i})
	}

	msg, ok := fast.Recv()
	require.True(t, ok)
	assert.Equal(t, 0, msg.Record)

	// slow subscriber's queue still has all 100 buffered, unread.
	for i := 0; i < 100; i++ {
		m, ok := slow.Recv()
		require.True(t, ok)
		assert.Equal(t, i, m.Record)
	}
}

func TestDerivedFactsSnapshot(t *testing.T) {
	b := New()
	sub := b.SubscribeDerivedFacts()
	defer sub.Close()

	b.PublishDerivedFacts(DerivedFactsSnapshot{StaleNodes: []string{"n1"}})
	snap, ok := sub.Recv()
	require.True(t, ok)
	assert.Equal(t, []string{"n1"}, snap.StaleNodes)
	assert.False(t, snap.At.IsZero())
}
