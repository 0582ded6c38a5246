package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// drain reads every queued payload from a test connection's send channel.
func drain(c *Connection) [][]byte {
	var out [][]byte
	for {
		select {
		case payload := <-c.send:
			out = append(out, payload)
		default:
			return out
		}
	}
}

func TestDispatchWritesIdenticalEnvelopeToAllConnections(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	dispatcher := NewDispatcher(registry)

	b1 := newTestConn("bob", 8)
	b2 := newTestConn("bob", 8)
	a1 := newTestConn("alice", 8)
	req.NoError(registry.Register(b1))
	req.NoError(registry.Register(b2))
	req.NoError(registry.Register(a1))

	envelope := []byte(`{"type":"group_message","chat_id":"room-1","data":{}}`)
	report := dispatcher.Dispatch([]string{"alice", "bob"}, envelope)

	req.Equal(3, report.Delivered)
	req.Zero(report.Failed)
	req.Zero(report.Offline)

	for _, c := range []*Connection{b1, b2, a1} {
		payloads := drain(c)
		req.Len(payloads, 1)
		req.Equal(envelope, payloads[0])
	}
}

func TestDispatchSkipsUntargetedUsers(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	dispatcher := NewDispatcher(registry)

	target := newTestConn("alice", 8)
	bystander := newTestConn("bob", 8)
	req.NoError(registry.Register(target))
	req.NoError(registry.Register(bystander))

	report := dispatcher.Dispatch([]string{"alice"}, []byte(`{}`))

	req.Equal(1, report.Delivered)
	req.Len(drain(target), 1)
	req.Empty(drain(bystander))
}

func TestDispatchCountsOfflineTargets(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	dispatcher := NewDispatcher(registry)

	report := dispatcher.Dispatch([]string{"ghost"}, []byte(`{}`))

	req.Zero(report.Delivered)
	req.Zero(report.Failed)
	req.Equal(1, report.Offline)
}

func TestDispatchIsolatesFailedConnections(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	dispatcher := NewDispatcher(registry)

	healthy := newTestConn("bob", 8)
	dead := newTestConn("bob", 8)
	other := newTestConn("carol", 8)
	req.NoError(registry.Register(healthy))
	req.NoError(registry.Register(dead))
	req.NoError(registry.Register(other))

	dead.closed.Store(true)

	envelope := []byte(`{"type":"personal_message","data":{}}`)
	report := dispatcher.Dispatch([]string{"bob", "carol"}, envelope)

	req.Equal(2, report.Delivered)
	req.Equal(1, report.Failed)

	// the failed connection was unregistered; the user's other connection
	// and other users were unaffected
	req.Len(registry.ConnectionsOf("bob"), 1)
	req.Len(drain(healthy), 1)
	req.Len(drain(other), 1)
}

func TestDispatchAfterUnregisterSkipsConnection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	dispatcher := NewDispatcher(registry)

	c1 := newTestConn("bob", 8)
	c2 := newTestConn("bob", 8)
	req.NoError(registry.Register(c1))
	req.NoError(registry.Register(c2))

	registry.Unregister(c1)

	report := dispatcher.Dispatch([]string{"bob"}, []byte(`{}`))

	req.Equal(1, report.Delivered)
	req.Empty(drain(c1))
	req.Len(drain(c2), 1)
}

func TestDispatchFullQueueUnregistersConnection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	dispatcher := NewDispatcher(registry)

	// zero-capacity queue: the first enqueue fails immediately
	c := newTestConn("bob", 0)
	req.NoError(registry.Register(c))

	report := dispatcher.Dispatch([]string{"bob"}, []byte(`{}`))

	req.Zero(report.Delivered)
	req.Equal(1, report.Failed)
	req.Empty(registry.ConnectionsOf("bob"))
	req.True(c.Closed())
}
