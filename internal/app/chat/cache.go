/*
Package chat contains the real-time notification core: the connection registry,
event router, per-user room cache, and broadcast dispatcher.

This file defines the Cache struct, the per-user ordered view of chat-room
summaries. Entries are unique by chat id and ordered by last_updated
descending. The cache is a process-local coherence aid for connected clients,
not a durable store.
*/
package chat

import (
	"sort"
	"sync"
)

// Cache holds each user's ordered sequence of room summaries.
// Updates for one user are serialized under that user's lock; different users
// proceed independently.
type Cache struct {
	mu    sync.RWMutex
	users map[string]*userCache
}

type userCache struct {
	mu    sync.Mutex
	rooms map[string]RoomSummary
}

// NewCache constructs an empty Cache.
func NewCache() *Cache {
	return &Cache{users: make(map[string]*userCache)}
}

// entry returns the cache of userID, creating it lazily on first event.
func (c *Cache) entry(userID string) *userCache {
	c.mu.RLock()
	uc, ok := c.users[userID]
	c.mu.RUnlock()

	if ok {
		return uc
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if uc, ok = c.users[userID]; !ok {
		uc = &userCache{rooms: make(map[string]RoomSummary)}
		c.users[userID] = uc
	}

	return uc
}

// Apply inserts or replaces the summary for summary.ChatID in the user's cache
// and returns the updated ordered sequence. An existing entry is replaced only
// when the incoming last_updated is not older, which makes replays idempotent
// and keeps a late duplicate from rolling a room backwards.
func (c *Cache) Apply(userID string, summary RoomSummary) []RoomSummary {
	uc := c.entry(userID)

	uc.mu.Lock()
	defer uc.mu.Unlock()

	current, exists := uc.rooms[summary.ChatID]
	if !exists || !summary.LastUpdated.Before(current.LastUpdated) {
		uc.rooms[summary.ChatID] = summary
	}

	return uc.orderedLocked()
}

// Snapshot returns a read-only copy of the user's ordered room summaries.
// A user the cache has never seen yields an empty sequence.
func (c *Cache) Snapshot(userID string) []RoomSummary {
	c.mu.RLock()
	uc, ok := c.users[userID]
	c.mu.RUnlock()

	if !ok {
		return []RoomSummary{}
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	return uc.orderedLocked()
}

// orderedLocked materializes the summaries sorted by last_updated descending,
// chat id ascending on ties for a stable order. Caller must hold uc.mu.
func (uc *userCache) orderedLocked() []RoomSummary {
	out := make([]RoomSummary, 0, len(uc.rooms))
	for _, s := range uc.rooms {
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastUpdated.Equal(out[j].LastUpdated) {
			return out[i].ChatID < out[j].ChatID
		}
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})

	return out
}
