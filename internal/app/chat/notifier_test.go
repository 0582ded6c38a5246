package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestNotifier() (*Notifier, *Registry) {
	registry := NewRegistry()
	router := NewRouter(DefaultRouterConfig())
	cache := NewCache()
	dispatcher := NewDispatcher(registry)
	return NewNotifier(router, cache, dispatcher), registry
}

// Walks a group room through its lifecycle: creation fans out to every
// participant (including one with two devices and one offline), then a
// message moves the room to the front of each participant's room list.
func TestNotifierGroupRoomLifecycle(t *testing.T) {
	req := require.New(t)
	notifier, registry := newTestNotifier()

	a := newTestConn("alice", 8)
	b1 := newTestConn("bob", 8)
	b2 := newTestConn("bob", 8)
	req.NoError(registry.Register(a))
	req.NoError(registry.Register(b1))
	req.NoError(registry.Register(b2))
	// carol stays offline throughout

	name := "Team"
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	report, err := notifier.Publish(NewChatRoomEvent{
		Room:         RoomSummary{ChatID: "room-team", ChatName: &name, LastUpdated: t0},
		Kind:         RoomGroup,
		Participants: []string{"alice", "bob", "carol"},
	})
	req.NoError(err)
	req.Equal(3, report.Delivered)
	req.Zero(report.Failed)
	req.Equal(1, report.Offline)

	// both of bob's devices received the identical envelope
	p1 := drain(b1)
	p2 := drain(b2)
	req.Len(p1, 1)
	req.Len(p2, 1)
	req.JSONEq(string(p1[0]), string(p2[0]))

	var announced struct {
		Type     string      `json:"type"`
		ChatRoom RoomSummary `json:"chat_room"`
	}
	req.NoError(json.Unmarshal(p1[0], &announced))
	req.Equal("new_chat_room", announced.Type)
	req.Equal("room-team", announced.ChatRoom.ChatID)

	// the offline participant's cache was updated even though nothing was pushed
	carolRooms := notifier.Rooms("carol")
	req.Len(carolRooms, 1)
	req.Equal(t0, carolRooms[0].LastUpdated)

	// a second room so ordering is observable
	t1 := t0.Add(time.Minute)
	_, err = notifier.Publish(NewChatRoomEvent{
		Room:         RoomSummary{ChatID: "room-pair", LastUpdated: t1},
		Kind:         RoomPersonal,
		Participants: []string{"alice", "bob"},
	})
	req.NoError(err)

	bobRooms := notifier.Rooms("bob")
	req.Len(bobRooms, 2)
	req.Equal("room-pair", bobRooms[0].ChatID)

	drain(a)
	drain(b1)
	drain(b2)

	// a group message pushes room-team back to the front for every participant
	t2 := t1.Add(time.Minute)
	report, err = notifier.Publish(GroupMessageEvent{
		RoomID:   "room-team",
		SenderID: "alice",
		Data:     json.RawMessage(`{"content":"standup in 5"}`),
		SentAt:   t2,
	})
	req.NoError(err)
	req.Equal(3, report.Delivered)
	req.Equal(1, report.Offline)

	for _, rooms := range [][]RoomSummary{
		notifier.Rooms("alice"),
		notifier.Rooms("bob"),
	} {
		req.Equal("room-team", rooms[0].ChatID)
		req.Equal(t2, rooms[0].LastUpdated)
	}

	msgs := drain(b1)
	req.Len(msgs, 1)

	var pushed struct {
		Type   string          `json:"type"`
		ChatID string          `json:"chat_id"`
		Data   json.RawMessage `json:"data"`
	}
	req.NoError(json.Unmarshal(msgs[0], &pushed))
	req.Equal("group_message", pushed.Type)
	req.Equal("room-team", pushed.ChatID)
	req.JSONEq(`{"content":"standup in 5"}`, string(pushed.Data))
}

func TestNotifierPersonalMessageReachesBothParticipants(t *testing.T) {
	req := require.New(t)
	notifier, registry := newTestNotifier()

	a := newTestConn("alice", 8)
	b := newTestConn("bob", 8)
	req.NoError(registry.Register(a))
	req.NoError(registry.Register(b))

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	_, err := notifier.Publish(NewChatRoomEvent{
		Room:         RoomSummary{ChatID: "room-pair", LastUpdated: t0},
		Kind:         RoomPersonal,
		Participants: []string{"alice", "bob"},
	})
	req.NoError(err)
	drain(a)
	drain(b)

	report, err := notifier.Publish(PersonalMessageEvent{
		RoomID:   "room-pair",
		SenderID: "alice",
		Data:     json.RawMessage(`{"content":"hi"}`),
		SentAt:   t0.Add(time.Second),
	})
	req.NoError(err)
	req.Equal(2, report.Delivered)

	// the sender's own connections receive the push too
	req.Len(drain(a), 1)
	req.Len(drain(b), 1)
}

func TestNotifierRejectsMessageForUnknownRoom(t *testing.T) {
	req := require.New(t)
	notifier, registry := newTestNotifier()

	c := newTestConn("alice", 8)
	req.NoError(registry.Register(c))

	_, err := notifier.Publish(GroupMessageEvent{
		RoomID:   "never-created",
		SenderID: "alice",
		Data:     json.RawMessage(`{}`),
		SentAt:   time.Now().UTC(),
	})
	req.ErrorIs(err, ErrUnknownRoom)

	// the failed publish left no trace: no cache entry, nothing pushed
	req.Empty(notifier.Rooms("alice"))
	req.Empty(drain(c))
}

func TestNotifierReplayedEventKeepsCacheStable(t *testing.T) {
	req := require.New(t)
	notifier, _ := newTestNotifier()

	name := "Team"
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := NewChatRoomEvent{
		Room:         RoomSummary{ChatID: "room-team", ChatName: &name, LastUpdated: t0},
		Kind:         RoomGroup,
		Participants: []string{"alice", "bob"},
	}

	_, err := notifier.Publish(event)
	req.NoError(err)
	_, err = notifier.Publish(event)
	req.NoError(err)

	rooms := notifier.Rooms("alice")
	req.Len(rooms, 1)
	req.Equal(t0, rooms[0].LastUpdated)
}

func TestNotifierSeedRoomEnablesRoutingWithoutDelivery(t *testing.T) {
	req := require.New(t)
	notifier, registry := newTestNotifier()

	c := newTestConn("alice", 8)
	req.NoError(registry.Register(c))

	notifier.SeedRoom("room-old", RoomGroup, nil, []string{"alice", "bob"})

	// seeding broadcasts nothing and leaves caches alone
	req.Empty(drain(c))
	req.Empty(notifier.Rooms("alice"))

	participants, err := notifier.Participants("room-old")
	req.NoError(err)
	req.ElementsMatch([]string{"alice", "bob"}, participants)

	kind, err := notifier.RoomKindOf("room-old")
	req.NoError(err)
	req.Equal(RoomGroup, kind)

	// messages route normally after the seed
	report, err := notifier.Publish(GroupMessageEvent{
		RoomID:   "room-old",
		SenderID: "bob",
		Data:     json.RawMessage(`{"content":"back online"}`),
		SentAt:   time.Now().UTC(),
	})
	req.NoError(err)
	req.Equal(1, report.Delivered)
	req.Equal(1, report.Offline)
	req.Len(drain(c), 1)
}
