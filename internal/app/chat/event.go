/*
Package chat contains the real-time notification core: the connection registry,
event router, per-user room cache, and broadcast dispatcher.

This file defines the domain events this core routes and the wire envelopes
pushed to clients, one JSON object per event.
*/
package chat

import (
	"encoding/json"
	"time"
)

// RoomKind distinguishes one-to-one rooms from group rooms.
type RoomKind string

const (
	RoomPersonal RoomKind = "personal"
	RoomGroup    RoomKind = "group"
)

// RoomSummary is the minimal chat-room representation pushed in notifications
// and held in the per-user cache. ChatName is null on the wire for unnamed
// (typically personal) rooms.
type RoomSummary struct {
	ChatID      string    `json:"chat_id"`
	ChatName    *string   `json:"chat_name"`
	LastUpdated time.Time `json:"last_updated"`
}

// Event is a domain occurrence this core must deliver to interested users.
// Each variant knows which room it belongs to, when it happened, and how it
// serializes on the wire.
type Event interface {
	// ChatID identifies the room whose event stream this event belongs to.
	ChatID() string

	// OccurredAt is the event timestamp mirrored into cache entries.
	OccurredAt() time.Time

	// Envelope serializes the event into the wire form pushed to clients.
	Envelope() ([]byte, error)
}

// NewChatRoomEvent announces a freshly created chat room to its participants.
// It must be the first event routed for its chat id.
type NewChatRoomEvent struct {
	Room         RoomSummary
	Kind         RoomKind
	Participants []string
}

func (e NewChatRoomEvent) ChatID() string { return e.Room.ChatID }

func (e NewChatRoomEvent) OccurredAt() time.Time { return e.Room.LastUpdated }

func (e NewChatRoomEvent) Envelope() ([]byte, error) {
	return json.Marshal(struct {
		Type     string      `json:"type"`
		ChatRoom RoomSummary `json:"chat_room"`
	}{
		Type:     "new_chat_room",
		ChatRoom: e.Room,
	})
}

// PersonalMessageEvent carries a message sent in a one-to-one room.
type PersonalMessageEvent struct {
	RoomID   string
	SenderID string
	Data     json.RawMessage
	SentAt   time.Time
}

func (e PersonalMessageEvent) ChatID() string { return e.RoomID }

func (e PersonalMessageEvent) OccurredAt() time.Time { return e.SentAt }

func (e PersonalMessageEvent) Envelope() ([]byte, error) {
	return json.Marshal(struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}{
		Type: "personal_message",
		Data: e.Data,
	})
}

// GroupMessageEvent carries a message sent in a group room.
type GroupMessageEvent struct {
	RoomID   string
	SenderID string
	Data     json.RawMessage
	SentAt   time.Time
}

func (e GroupMessageEvent) ChatID() string { return e.RoomID }

func (e GroupMessageEvent) OccurredAt() time.Time { return e.SentAt }

func (e GroupMessageEvent) Envelope() ([]byte, error) {
	return json.Marshal(struct {
		Type   string          `json:"type"`
		ChatID string          `json:"chat_id"`
		Data   json.RawMessage `json:"data"`
	}{
		Type:   "group_message",
		ChatID: e.RoomID,
		Data:   e.Data,
	})
}
