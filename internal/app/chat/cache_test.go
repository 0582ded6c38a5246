package chat

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func summary(chatID string, name string, ts time.Time) RoomSummary {
	var namePtr *string
	if name != "" {
		namePtr = &name
	}
	return RoomSummary{ChatID: chatID, ChatName: namePtr, LastUpdated: ts}
}

func TestCacheApplyOrdersByLastUpdatedDescending(t *testing.T) {
	req := require.New(t)
	cache := NewCache()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cache.Apply("alice", summary("room-a", "A", base))
	cache.Apply("alice", summary("room-b", "B", base.Add(2*time.Minute)))
	ordered := cache.Apply("alice", summary("room-c", "C", base.Add(time.Minute)))

	req.Len(ordered, 3)
	req.Equal("room-b", ordered[0].ChatID)
	req.Equal("room-c", ordered[1].ChatID)
	req.Equal("room-a", ordered[2].ChatID)

	for i := 1; i < len(ordered); i++ {
		req.False(ordered[i].LastUpdated.After(ordered[i-1].LastUpdated))
	}
}

func TestCacheApplyReplacesExistingEntry(t *testing.T) {
	req := require.New(t)
	cache := NewCache()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cache.Apply("alice", summary("room-a", "A", base))
	cache.Apply("alice", summary("room-b", "B", base.Add(time.Minute)))
	ordered := cache.Apply("alice", summary("room-a", "A", base.Add(2*time.Minute)))

	req.Len(ordered, 2)
	req.Equal("room-a", ordered[0].ChatID)
	req.Equal(base.Add(2*time.Minute), ordered[0].LastUpdated)
}

func TestCacheApplyIsIdempotent(t *testing.T) {
	req := require.New(t)
	cache := NewCache()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := summary("room-a", "Team", ts)

	cache.Apply("alice", s)
	ordered := cache.Apply("alice", s)

	req.Len(ordered, 1)
	req.Equal(ts, ordered[0].LastUpdated)
}

func TestCacheApplyIgnoresStaleUpdate(t *testing.T) {
	req := require.New(t)
	cache := NewCache()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cache.Apply("alice", summary("room-a", "A", ts))
	ordered := cache.Apply("alice", summary("room-a", "A", ts.Add(-time.Minute)))

	req.Len(ordered, 1)
	req.Equal(ts, ordered[0].LastUpdated)
}

func TestCacheSnapshotUnknownUserIsEmpty(t *testing.T) {
	require.Empty(t, NewCache().Snapshot("nobody"))
}

func TestCacheUsersAreIndependent(t *testing.T) {
	req := require.New(t)
	cache := NewCache()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cache.Apply("alice", summary("room-a", "A", ts))
	cache.Apply("bob", summary("room-b", "B", ts))

	aliceRooms := cache.Snapshot("alice")
	req.Len(aliceRooms, 1)
	req.Equal("room-a", aliceRooms[0].ChatID)

	bobRooms := cache.Snapshot("bob")
	req.Len(bobRooms, 1)
	req.Equal("room-b", bobRooms[0].ChatID)
}

func TestCacheConcurrentApplyLosesNoUpdates(t *testing.T) {
	req := require.New(t)
	cache := NewCache()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	const rooms = 64

	var wg sync.WaitGroup
	for i := 0; i < rooms; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cache.Apply("alice", summary(fmt.Sprintf("room-%03d", i), "", base.Add(time.Duration(i)*time.Second)))
		}(i)
	}
	wg.Wait()

	ordered := cache.Snapshot("alice")
	req.Len(ordered, rooms)

	seen := make(map[string]struct{}, rooms)
	for i, s := range ordered {
		_, dup := seen[s.ChatID]
		req.False(dup, "duplicate chat_id %s", s.ChatID)
		seen[s.ChatID] = struct{}{}

		if i > 0 {
			req.False(s.LastUpdated.After(ordered[i-1].LastUpdated))
		}
	}
}
