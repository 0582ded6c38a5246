/*
Package chat contains the real-time notification core: the connection registry,
event router, per-user room cache, and broadcast dispatcher.

This file defines the Registry struct, which tracks every live connection per
authenticated user. A user may hold several simultaneous connections
(multi-device); unrelated users never contend on the same lock.
*/
package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"chatcore/internal/pkg/logx"
)

// Registry tracks the set of live connections for each user.
// Registering or unregistering never triggers event delivery on its own.
type Registry struct {
	// mu guards only the users map itself; per-user mutation happens under
	// the entry's own lock so one user's churn cannot block another's.
	mu sync.RWMutex

	users map[string]*userConns

	logger zerolog.Logger
}

// userConns is the live connection set of a single user.
type userConns struct {
	mu    sync.Mutex
	conns map[*Connection]struct{}

	// dead is set, under mu, in the same critical section that removes the
	// entry from the registry map. An insert that finds it set raced with the
	// last-connection cleanup and must resolve a fresh entry instead.
	dead bool
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[string]*userConns),
		logger: logx.Logger().With().Str("component", "registry").Logger(),
	}
}

// entry returns the connection set for userID, creating it lazily.
func (r *Registry) entry(userID string) *userConns {
	r.mu.RLock()
	uc, ok := r.users[userID]
	r.mu.RUnlock()

	if ok {
		return uc
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if uc, ok = r.users[userID]; !ok {
		uc = &userConns{conns: make(map[*Connection]struct{})}
		r.users[userID] = uc
	}

	return uc
}

// Register adds a connection to its owning user's live set. It fails with
// ErrConnectionClosed when the connection has already been closed, in which
// case no registry entry is created and the caller should abort the upgrade.
func (r *Registry) Register(c *Connection) error {
	if c.Closed() {
		return ErrConnectionClosed
	}

	var total int
	for {
		uc := r.entry(c.UserID())

		uc.mu.Lock()
		if uc.dead {
			// Lost a race with Unregister's empty-entry cleanup: this entry
			// is already out of the map and anything added to it would never
			// be seen again. Resolve a fresh entry.
			uc.mu.Unlock()
			continue
		}
		uc.conns[c] = struct{}{}
		total = len(uc.conns)
		uc.mu.Unlock()
		break
	}

	r.logger.Info().
		Str("conn_id", c.ID()).
		Str("user_id", c.UserID()).
		Int("user_connections", total).
		Msg("Connection registered")

	return nil
}

// Unregister removes a connection from its user's live set. It is idempotent:
// removing a connection that was never registered, or was already removed, is
// a no-op.
func (r *Registry) Unregister(c *Connection) {
	r.mu.RLock()
	uc, ok := r.users[c.UserID()]
	r.mu.RUnlock()

	if !ok {
		return
	}

	uc.mu.Lock()
	_, present := uc.conns[c]
	if present {
		delete(uc.conns, c)
	}
	remaining := len(uc.conns)
	uc.mu.Unlock()

	if !present {
		return
	}

	if remaining == 0 {
		// Drop the empty entry so the map does not grow with every user ever
		// seen. The entry is marked dead under its own lock before removal so
		// a concurrent Register cannot insert into the abandoned set.
		r.mu.Lock()
		uc.mu.Lock()
		if len(uc.conns) == 0 && r.users[c.UserID()] == uc {
			uc.dead = true
			delete(r.users, c.UserID())
		}
		uc.mu.Unlock()
		r.mu.Unlock()
	}

	r.logger.Info().
		Str("conn_id", c.ID()).
		Str("user_id", c.UserID()).
		Int("user_connections", remaining).
		Msg("Connection unregistered")
}

// ConnectionsOf returns a snapshot of the user's live connections, possibly empty.
func (r *Registry) ConnectionsOf(userID string) []*Connection {
	r.mu.RLock()
	uc, ok := r.users[userID]
	r.mu.RUnlock()

	if !ok {
		return nil
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	conns := make([]*Connection, 0, len(uc.conns))
	for c := range uc.conns {
		conns = append(conns, c)
	}

	return conns
}

// ConnectedUsers returns the number of users with at least one live connection.
func (r *Registry) ConnectedUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users)
}
