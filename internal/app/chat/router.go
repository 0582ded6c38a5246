/*
Package chat contains the real-time notification core: the connection registry,
event router, per-user room cache, and broadcast dispatcher.

This file defines the Router struct, which resolves the set of target users for
a domain event. It maintains the participant table populated by new_chat_room
events; message events referencing a room it has never seen are rejected
instead of silently creating state.
*/
package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatcore/internal/pkg/logx"
)

var (
	// ErrUnknownRoom is returned for a message event whose chat id has no
	// prior new_chat_room event routed. Surfaced to the originating request
	// handler, never to connected clients.
	ErrUnknownRoom = errors.New("chat: unknown chat room")

	// ErrInvalidParticipants is returned when a room event carries an
	// unusable participant set (empty, or not exactly two for personal rooms).
	ErrInvalidParticipants = errors.New("chat: invalid participant set")
)

// RouterConfig tunes routing policy.
type RouterConfig struct {
	// IncludeSender controls whether group_message events are delivered back
	// to the sender's own connections. Enabled by default so a sender's other
	// devices stay in sync.
	IncludeSender bool
}

// DefaultRouterConfig returns the routing policy used unless configured otherwise.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{IncludeSender: true}
}

// roomEntry is the router's view of one chat room.
type roomEntry struct {
	kind         RoomKind
	name         *string
	participants []string
}

// Delivery is the routing outcome for one event: who gets it, the cache
// summary to apply for each target, and the serialized envelope, identical
// for every target.
type Delivery struct {
	Targets  []string
	Summary  RoomSummary
	Envelope []byte
}

// Router resolves domain events to target users.
type Router struct {
	mu     sync.RWMutex
	rooms  map[string]*roomEntry
	cfg    RouterConfig
	logger zerolog.Logger
}

// NewRouter constructs a Router with the given policy.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		rooms:  make(map[string]*roomEntry),
		cfg:    cfg,
		logger: logx.Logger().With().Str("component", "router").Logger(),
	}
}

// Route resolves the event into a Delivery. For new_chat_room events it also
// records the room's participant set; replaying the same room registration is
// harmless.
func (rt *Router) Route(event Event) (Delivery, error) {
	envelope, err := event.Envelope()
	if err != nil {
		return Delivery{}, err
	}

	switch e := event.(type) {
	case NewChatRoomEvent:
		return rt.routeNewRoom(e, envelope)

	case PersonalMessageEvent:
		entry, err := rt.lookup(e.RoomID)
		if err != nil {
			return Delivery{}, err
		}
		return rt.routeMessage(e.RoomID, e.SenderID, e.SentAt, entry, envelope)

	case GroupMessageEvent:
		entry, err := rt.lookup(e.RoomID)
		if err != nil {
			return Delivery{}, err
		}
		return rt.routeMessage(e.RoomID, e.SenderID, e.SentAt, entry, envelope)

	default:
		return Delivery{}, errors.New("chat: unsupported event type")
	}
}

func (rt *Router) routeNewRoom(e NewChatRoomEvent, envelope []byte) (Delivery, error) {
	if len(e.Participants) == 0 {
		return Delivery{}, ErrInvalidParticipants
	}
	if e.Kind == RoomPersonal && len(e.Participants) != 2 {
		return Delivery{}, ErrInvalidParticipants
	}

	participants := make([]string, len(e.Participants))
	copy(participants, e.Participants)

	rt.mu.Lock()
	rt.rooms[e.Room.ChatID] = &roomEntry{
		kind:         e.Kind,
		name:         e.Room.ChatName,
		participants: participants,
	}
	rt.mu.Unlock()

	rt.logger.Info().
		Str("chat_id", e.Room.ChatID).
		Str("kind", string(e.Kind)).
		Int("participants", len(participants)).
		Msg("Room registered for routing")

	targets := make([]string, len(participants))
	copy(targets, participants)

	return Delivery{Targets: targets, Summary: e.Room, Envelope: envelope}, nil
}

func (rt *Router) routeMessage(chatID, senderID string, sentAt time.Time, entry *roomEntry, envelope []byte) (Delivery, error) {
	targets := make([]string, 0, len(entry.participants))
	for _, p := range entry.participants {
		if entry.kind == RoomGroup && !rt.cfg.IncludeSender && p == senderID {
			continue
		}
		targets = append(targets, p)
	}

	summary := RoomSummary{
		ChatID:      chatID,
		ChatName:    entry.name,
		LastUpdated: sentAt,
	}

	return Delivery{Targets: targets, Summary: summary, Envelope: envelope}, nil
}

// Seed records a room's routing entry without producing a delivery. It lets a
// producer rehydrate the participant table from durable storage after a
// restart; an already-known room is left untouched.
func (rt *Router) Seed(chatID string, kind RoomKind, name *string, participants []string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, ok := rt.rooms[chatID]; ok {
		return
	}

	ps := make([]string, len(participants))
	copy(ps, participants)

	rt.rooms[chatID] = &roomEntry{kind: kind, name: name, participants: ps}
}

// lookup returns the routing entry for chatID or ErrUnknownRoom.
func (rt *Router) lookup(chatID string) (*roomEntry, error) {
	rt.mu.RLock()
	entry, ok := rt.rooms[chatID]
	rt.mu.RUnlock()

	if !ok {
		rt.logger.Warn().Str("chat_id", chatID).Msg("Message event for unknown room rejected")
		return nil, ErrUnknownRoom
	}

	return entry, nil
}

// RoomKindOf returns the kind recorded for chatID.
func (rt *Router) RoomKindOf(chatID string) (RoomKind, error) {
	entry, err := rt.lookup(chatID)
	if err != nil {
		return "", err
	}
	return entry.kind, nil
}

// Participants returns a copy of the participant set known for chatID.
func (rt *Router) Participants(chatID string) ([]string, error) {
	entry, err := rt.lookup(chatID)
	if err != nil {
		return nil, err
	}

	// roomEntry is immutable once stored; re-registration swaps the pointer.
	participants := make([]string, len(entry.participants))
	copy(participants, entry.participants)
	return participants, nil
}
