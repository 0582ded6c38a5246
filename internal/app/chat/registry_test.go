package chat

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatcore/internal/pkg/randx"
)

// newTestConn builds a connection without a network transport. Enqueue and
// Close work normally; the pumps are simply never started.
func newTestConn(userID string, queueSize int) *Connection {
	return &Connection{
		id:        randx.ConnectionID(),
		userID:    userID,
		createdAt: time.Now().UTC(),
		send:      make(chan []byte, queueSize),
		done:      make(chan struct{}),
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	c1 := newTestConn("alice", 8)
	c2 := newTestConn("alice", 8)
	c3 := newTestConn("bob", 8)

	req.NoError(registry.Register(c1))
	req.NoError(registry.Register(c2))
	req.NoError(registry.Register(c3))

	req.Len(registry.ConnectionsOf("alice"), 2)
	req.Len(registry.ConnectionsOf("bob"), 1)
	req.Empty(registry.ConnectionsOf("carol"))
	req.Equal(2, registry.ConnectedUsers())
}

func TestRegistryRejectsClosedConnection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	c := newTestConn("alice", 8)
	c.Close()

	err := registry.Register(c)
	req.ErrorIs(err, ErrConnectionClosed)
	req.Empty(registry.ConnectionsOf("alice"))
}

func TestRegistryUnregisterIsIdempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	c1 := newTestConn("alice", 8)
	c2 := newTestConn("alice", 8)
	req.NoError(registry.Register(c1))
	req.NoError(registry.Register(c2))

	registry.Unregister(c1)
	registry.Unregister(c1)

	remaining := registry.ConnectionsOf("alice")
	req.Len(remaining, 1)
	req.Same(c2, remaining[0])

	// Unregistering a connection that was never registered is a no-op.
	registry.Unregister(newTestConn("carol", 8))
	req.Len(registry.ConnectionsOf("alice"), 1)
}

func TestRegistryDropsEmptyUserEntries(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	c := newTestConn("alice", 8)
	req.NoError(registry.Register(c))
	req.Equal(1, registry.ConnectedUsers())

	registry.Unregister(c)
	req.Equal(0, registry.ConnectedUsers())
}

func TestRegistryCleanupMarksAbandonedEntryDead(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	c1 := newTestConn("alice", 8)
	req.NoError(registry.Register(c1))

	registry.mu.RLock()
	uc := registry.users["alice"]
	registry.mu.RUnlock()
	req.NotNil(uc)

	registry.Unregister(c1)

	// the removed entry is dead; an insert that still holds its pointer must
	// not land in it
	uc.mu.Lock()
	req.True(uc.dead)
	req.Empty(uc.conns)
	uc.mu.Unlock()

	// a later registration gets a fresh entry and is visible again
	c2 := newTestConn("alice", 8)
	req.NoError(registry.Register(c2))

	conns := registry.ConnectionsOf("alice")
	req.Len(conns, 1)
	req.Same(c2, conns[0])

	registry.mu.RLock()
	req.NotSame(uc, registry.users["alice"])
	registry.mu.RUnlock()
}

func TestRegistryRegisterVisibleUnderConcurrentCleanup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Unregistering a user's last connection while another connection of the
	// same user registers must never leave the new connection invisible to
	// ConnectionsOf.
	const iterations = 5000

	for i := 0; i < iterations; i++ {
		old := newTestConn("alice", 8)
		req.NoError(registry.Register(old))

		fresh := newTestConn("alice", 8)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			registry.Unregister(old)
		}()
		go func() {
			defer wg.Done()
			if err := registry.Register(fresh); err != nil {
				t.Error(err)
			}
		}()
		wg.Wait()

		conns := registry.ConnectionsOf("alice")
		req.Len(conns, 1)
		req.Same(fresh, conns[0])

		registry.Unregister(fresh)
	}
}

func TestRegistryConcurrentChurn(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	const users = 8
	const connsPerUser = 16

	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("user-%d", u)
		for i := 0; i < connsPerUser; i++ {
			wg.Add(1)
			go func(uid string) {
				defer wg.Done()

				c := newTestConn(uid, 8)
				if err := registry.Register(c); err != nil {
					t.Error(err)
					return
				}
				// read path runs concurrently with registrations
				registry.ConnectionsOf(uid)
			}(userID)
		}
	}
	wg.Wait()

	for u := 0; u < users; u++ {
		req.Len(registry.ConnectionsOf(fmt.Sprintf("user-%d", u)), connsPerUser)
	}
}
